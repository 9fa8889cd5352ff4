package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// UserEntry is one row of the roster webhook response. Entries are replaced
// wholesale on every poll; identity persists across polls via UserID.
type UserEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
	FromType    string `json:"fromType"` // "user" or "bot"
}

// IsBot reports whether the entry came from a bot rather than a person.
func (u UserEntry) IsBot() bool {
	return u.FromType == "bot"
}

// WebhookMessage is one unread message from the messages webhook.
type WebhookMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// errInvalidData marks a feed whose body was reachable but not decodable into
// the expected shape; callers map it to the invalid-data static image.
var errInvalidData = errors.New("response body has unexpected shape")

const fetchTimeout = 10 * time.Second

// webhookClient wraps the outbound HTTP surface shared by all feeds.
type webhookClient struct {
	http *http.Client
}

func newWebhookClient() *webhookClient {
	return &webhookClient{http: &http.Client{Timeout: fetchTimeout}}
}

func (c *webhookClient) getBody(rawURL string, queryKey, queryValue string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("bad webhook url %q: %v", rawURL, err)
	}
	if queryKey != "" {
		q := u.Query()
		q.Set(queryKey, queryValue)
		u.RawQuery = q.Encode()
	}

	resp, err := c.http.Get(u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook %s returned status %d", u.Host, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// probe performs the user-initiated connectivity check against a feed URL.
// Unlike getBody it hands the status code back so the caller can distinguish
// a reachable-but-unhappy endpoint from a transport failure.
func (c *webhookClient) probe(rawURL, email string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("bad webhook url %q: %v", rawURL, err)
	}
	if email != "" {
		q := u.Query()
		q.Set("user", email)
		u.RawQuery = q.Encode()
	}
	resp, err := c.http.Get(u.String())
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

// fetchMessages retrieves the unread messages for one user. Transport errors
// and non-2xx statuses propagate; a body that is not a JSON array is treated
// as an empty list.
func (c *webhookClient) fetchMessages(webhookURL, email string) ([]WebhookMessage, error) {
	body, err := c.getBody(webhookURL, "user", email)
	if err != nil {
		return nil, err
	}
	var msgs []WebhookMessage
	if err := json.Unmarshal(body, &msgs); err != nil {
		return []WebhookMessage{}, nil
	}
	return msgs, nil
}

// fetchRoster retrieves the aggregate user list. Missing fields default
// (count to 0, fromType to "user"); a non-array body reports errInvalidData.
func (c *webhookClient) fetchRoster(webhookURL string) ([]UserEntry, error) {
	body, err := c.getBody(webhookURL, "", "")
	if err != nil {
		return nil, err
	}
	var entries []UserEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidData, err)
	}
	for i := range entries {
		if entries[i].FromType == "" {
			entries[i].FromType = "user"
		}
	}
	return entries, nil
}

// fetchAvatar retrieves and decodes one avatar image, normalized to the
// button canvas size.
func (c *webhookClient) fetchAvatar(webhookURL, queryKey, queryValue string) (*image.RGBA, error) {
	body, err := c.getBody(webhookURL, queryKey, queryValue)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidData, err)
	}
	fitted := imaging.Fill(img, KEY_SIZE, KEY_SIZE, imaging.Center, imaging.Lanczos)
	return toRGBA(fitted), nil
}

//---------------- Fetch-and-fallback pipeline ----------------

// avatarSource resolves base or composited avatars for one session,
// consulting the session cache first and falling back from webhook fetch to
// initials synthesis. Fetch and decode failures are logged and swallowed;
// every terminal branch populates the cache.
type avatarSource struct {
	cache  *avatarCache
	client *webhookClient
	logf   func(format string, args ...any)
}

func newAvatarSource(cache *avatarCache, client *webhookClient, logf func(string, ...any)) *avatarSource {
	return &avatarSource{cache: cache, client: client, logf: logf}
}

// resolveUser returns the fully composited (avatar + badge) image for one
// roster entry, cached under the exact (identity, count) pair.
func (s *avatarSource) resolveUser(entry UserEntry, avatarWebhook string) *image.RGBA {
	key := carouselKey(entry.UserID, entry.Count)
	if img, ok := s.cache.get(key); ok {
		return img
	}

	var base *image.RGBA
	switch {
	case entry.IsBot():
		base = renderInitials(entry.DisplayName, botInitialsOverride(entry.DisplayName))
	case avatarWebhook == "":
		base = renderInitials(entry.DisplayName, "")
	default:
		fetched, err := s.client.fetchAvatar(avatarWebhook, "userId", entry.UserID)
		if err != nil {
			s.logf("avatar fetch for %s failed, using initials: %v", entry.UserID, err)
			fetched = renderInitials(entry.DisplayName, "")
		}
		base = fetched
	}

	composite := overlayCount(base, entry.Count)
	s.cache.set(key, composite)
	return composite
}

// resolveBase returns the badge-free avatar for single-avatar mode, cached
// under the email alone so the same base survives count changes; the badge
// is recomposited fresh by the caller on every display update.
func (s *avatarSource) resolveBase(email, displayName, avatarWebhook string) *image.RGBA {
	if img, ok := s.cache.get(email); ok {
		return img
	}

	var base *image.RGBA
	if avatarWebhook == "" {
		base = renderInitials(displayName, "")
	} else {
		fetched, err := s.client.fetchAvatar(avatarWebhook, "user", email)
		if err != nil {
			s.logf("avatar fetch for %s failed, using initials: %v", email, err)
			fetched = renderInitials(displayName, "")
		}
		base = fetched
	}

	s.cache.set(email, base)
	return base
}

// displayNameFromEmail derives a readable name from the local part of an
// email address: dots and underscores become spaces.
func displayNameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	local = strings.NewReplacer(".", " ", "_", " ").Replace(local)
	return strings.TrimSpace(local)
}
