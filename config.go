package main

import (
	"strconv"
	"strings"
	"time"
)

const (
	DEFAULT_POLL_SECONDS     = 30
	MIN_POLL_SECONDS         = 5
	MAX_POLL_SECONDS         = 300
	DEFAULT_CAROUSEL_SECONDS = 10
	MIN_CAROUSEL_SECONDS     = 1
	MAX_CAROUSEL_SECONDS     = 60
)

// Settings is the per-button-instance configuration, decoded from the flat
// key/value object the host hands over on appear and on every settings
// change. Range checks happen here, at the boundary; the session trusts
// whatever Settings it is handed.
type Settings struct {
	AvatarWebhook    string
	MessagesWebhook  string
	RosterWebhook    string
	UserEmail        string
	PollInterval     time.Duration
	CarouselDuration time.Duration
	Animate          bool
	ShowTitle        bool
}

func defaultSettings() Settings {
	return Settings{
		PollInterval:     DEFAULT_POLL_SECONDS * time.Second,
		CarouselDuration: DEFAULT_CAROUSEL_SECONDS * time.Second,
		Animate:          true,
		ShowTitle:        true,
	}
}

// parseSettings builds Settings from a raw host payload. Absent numeric
// fields fall back to defaults; present ones are clamped into their allowed
// range. Values arrive as JSON strings, numbers or booleans depending on the
// configuration UI control, so each accessor accepts all three.
func parseSettings(raw map[string]any) Settings {
	s := defaultSettings()
	if raw == nil {
		return s
	}

	s.AvatarWebhook = settingString(raw, "avatarWebhookUrl")
	s.MessagesWebhook = settingString(raw, "messagesWebhookUrl")
	s.RosterWebhook = settingString(raw, "rotatingWebhookUrl")
	s.UserEmail = settingString(raw, "userEmail")

	if secs, ok := settingInt(raw, "pollingSeconds"); ok {
		s.PollInterval = time.Duration(clampInt(secs, MIN_POLL_SECONDS, MAX_POLL_SECONDS)) * time.Second
	}
	if secs, ok := settingInt(raw, "carouselSeconds"); ok {
		s.CarouselDuration = time.Duration(clampInt(secs, MIN_CAROUSEL_SECONDS, MAX_CAROUSEL_SECONDS)) * time.Second
	}
	if b, ok := settingBool(raw, "animate"); ok {
		s.Animate = b
	}
	if b, ok := settingBool(raw, "showTitle"); ok {
		s.ShowTitle = b
	}
	return s
}

func settingString(raw map[string]any, key string) string {
	if v, ok := raw[key]; ok {
		if str, ok := v.(string); ok {
			return strings.TrimSpace(str)
		}
	}
	return ""
}

func settingInt(raw map[string]any, key string) (int, bool) {
	switch v := raw[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func settingBool(raw map[string]any, key string) (bool, bool) {
	switch v := raw[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "1":
			return true, true
		case "false", "off", "0":
			return false, true
		}
	case float64:
		return v != 0, true
	}
	return false, false
}

func clampInt(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
