package main

import (
	"errors"
	"fmt"
	"image"
	"log"
	"strconv"
	"time"
)

const (
	modeSingle = "single" // one identity, badge recomposited per update
	modeRotate = "rotate" // roster carousel with crossfade transitions

	TEST_REVERT_DELAY = 2 * time.Second
)

// Session is the per-button-instance state machine. All mutable state is
// confined to a single task loop fed by a command channel; timers and
// prefetch goroutines never touch state directly, they post closures. That
// keeps the cooperative single-consumer model without any locking beyond
// the cache.
type Session struct {
	context string
	mode    string
	surface DisplaySurface

	settings Settings
	cache    *avatarCache
	client   *webhookClient
	source   *avatarSource
	car      carousel

	cmds  chan func()
	done  chan struct{}
	alive bool

	pollTimer     *time.Timer
	carouselTimer *time.Timer
	frameTimer    *time.Timer
	safetyTimer   *time.Timer
	revertTimer   *time.Timer

	isFetchingNext  bool
	lastRenderedKey string
	messages        []WebhookMessage
}

func newSession(context, mode string, surface DisplaySurface, rawSettings map[string]any) *Session {
	s := &Session{
		context: context,
		mode:    mode,
		surface: surface,
		cmds:    make(chan func(), 32),
		done:    make(chan struct{}),
		alive:   true,
	}
	s.cache = newAvatarCache()
	s.client = newWebhookClient()
	s.source = newAvatarSource(s.cache, s.client, s.logf)

	go s.run()
	s.post(func() {
		s.showStatic(StateLoading)
		s.applySettings(rawSettings)
	})
	return s
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.done:
			s.stopTimers()
			return
		}
	}
}

// post hands a closure to the task loop; it is a no-op once the session is
// torn down, so late timer fires and stale fetches fall on the floor.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

//---------------- External events (called from the dispatcher) ----------------

func (s *Session) UpdateSettings(raw map[string]any) {
	s.post(func() { s.applySettings(raw) })
}

func (s *Session) KeyDown() {
	s.post(s.keyDown)
}

func (s *Session) Inspector(command string) {
	if command == "testConnection" {
		s.post(s.runConnectivityTest)
	}
}

// Close tears the session down. Timer cancellation is immediate and
// unconditional; anything still in flight is dropped by the liveness flag.
func (s *Session) Close() {
	s.post(func() {
		s.alive = false
		s.stopTimers()
		close(s.done)
	})
}

//---------------- Settings / timers ----------------

func (s *Session) applySettings(raw map[string]any) {
	s.settings = parseSettings(raw)
	s.cache.clear()
	s.stopTimers()
	s.car.endTransition()
	s.lastRenderedKey = ""
	s.pollTick()
}

func (s *Session) stopTimers() {
	for _, t := range []*time.Timer{s.pollTimer, s.carouselTimer, s.frameTimer, s.safetyTimer, s.revertTimer} {
		if t != nil {
			t.Stop()
		}
	}
	s.pollTimer = nil
	s.carouselTimer = nil
	s.frameTimer = nil
	s.safetyTimer = nil
	s.revertTimer = nil
}

func (s *Session) schedulePoll() {
	if s.pollTimer != nil {
		s.pollTimer.Stop()
	}
	s.pollTimer = time.AfterFunc(s.settings.PollInterval, func() { s.post(s.pollTick) })
}

// carouselPeriod is the effective carousel interval: the configured duration
// plus one second of reserved crossfade playback time when animated.
func (s *Session) carouselPeriod() time.Duration {
	period := s.settings.CarouselDuration
	if s.settings.Animate {
		period += time.Second
	}
	return period
}

func (s *Session) scheduleCarousel() {
	if s.carouselTimer != nil {
		s.carouselTimer.Stop()
	}
	s.carouselTimer = time.AfterFunc(s.carouselPeriod(), func() { s.post(s.carouselTick) })
}

//---------------- Polling ----------------

func (s *Session) pollTick() {
	if !s.alive {
		return
	}
	var retry bool
	if s.mode == modeSingle {
		retry = s.pollSingle()
	} else {
		retry = s.pollRoster()
	}
	if retry {
		s.schedulePoll()
	}
}

// pollSingle refreshes the unread count and composited avatar for the
// configured email. Returns false only when configuration is missing, in
// which case polling pauses until the next settings change.
func (s *Session) pollSingle() bool {
	if s.settings.UserEmail == "" || s.settings.MessagesWebhook == "" {
		s.showStatic(StateConfigRequired)
		return false
	}

	msgs, err := s.client.fetchMessages(s.settings.MessagesWebhook, s.settings.UserEmail)
	if err != nil {
		s.logf("messages fetch failed: %v", err)
		s.showStatic(StateError)
		return true
	}
	s.messages = msgs
	count := len(msgs)

	name := displayNameFromEmail(s.settings.UserEmail)
	base := s.source.resolveBase(s.settings.UserEmail, name, s.settings.AvatarWebhook)
	composite := overlayCount(base, count)

	key := s.settings.UserEmail + "_" + strconv.Itoa(count)
	s.updateDisplay(composite, name, key)
	return true
}

// pollRoster refreshes the carousel roster, re-anchors the current user,
// eagerly resolves the current image and kicks off the next prefetch.
func (s *Session) pollRoster() bool {
	if s.settings.RosterWebhook == "" {
		s.showStatic(StateConfigRequired)
		return false
	}

	entries, err := s.client.fetchRoster(s.settings.RosterWebhook)
	if err != nil {
		s.logf("roster fetch failed: %v", err)
		if errors.Is(err, errInvalidData) {
			s.showStatic(StateInvalidData)
		} else {
			s.showStatic(StateError)
		}
		return true
	}
	if len(entries) == 0 {
		s.car.adoptRoster(nil)
		s.showStatic(StateNoUsers)
		return true
	}

	sortRoster(entries)
	s.car.adoptRoster(entries)

	cur, _ := s.car.current()
	s.car.currentImage = s.source.resolveUser(cur, s.settings.AvatarWebhook)
	if !s.car.transitioning {
		s.showCurrent()
	}
	s.prefetchNext()

	if len(s.car.users) >= 2 && s.carouselTimer == nil {
		s.scheduleCarousel()
	}
	return true
}

// prefetchNext resolves the upcoming user's composite off the task loop,
// deduplicated by an in-flight guard so overlapping triggers are no-ops.
func (s *Session) prefetchNext() {
	if s.isFetchingNext || len(s.car.users) < 2 {
		return
	}
	next, ok := s.car.next()
	if !ok {
		return
	}
	s.isFetchingNext = true
	webhook := s.settings.AvatarWebhook
	go func() {
		img := s.source.resolveUser(next, webhook)
		s.post(func() {
			s.isFetchingNext = false
			s.car.nextImage = img
		})
	}()
}

//---------------- Carousel / transitions ----------------

func (s *Session) carouselTick() {
	if !s.alive || s.mode != modeRotate {
		return
	}
	if s.car.transitioning {
		// playback still running; completion belongs to the frame timer or
		// the safety timer, never to a carousel tick
		s.scheduleCarousel()
		return
	}
	if len(s.car.users) >= 2 {
		if s.settings.Animate && s.car.beginTransition() {
			s.frameTimer = time.AfterFunc(frameInterval, func() { s.post(s.frameTick) })
			s.safetyTimer = time.AfterFunc(TRANSITION_TIMEOUT, func() { s.post(s.forceCompleteTransition) })
		} else {
			s.instantSwitch()
		}
	}
	s.scheduleCarousel()
}

// instantSwitch advances the carousel without animation. Used when
// transitions are disabled, when an image is missing, and for manual
// activation.
func (s *Session) instantSwitch() {
	if len(s.car.users) < 2 {
		return
	}
	if s.car.nextImage == nil {
		if next, ok := s.car.next(); ok {
			s.car.nextImage = s.source.resolveUser(next, s.settings.AvatarWebhook)
		}
	}
	s.car.advance()
	s.showCurrent()
	s.prefetchNext()
}

func (s *Session) frameTick() {
	if !s.alive || !s.car.transitioning {
		return
	}
	s.writeFrame(s.car.frames[s.car.frameIndex])
	s.car.frameIndex++
	if s.car.frameIndex >= len(s.car.frames) {
		s.finishTransition()
		return
	}
	s.frameTimer = time.AfterFunc(frameInterval, func() { s.post(s.frameTick) })
}

// forceCompleteTransition is the 2s safety net: if frame playback stalls, the
// transition completes as if the last frame had played. Index and cache state
// stay intact; the user just sees the fade skip.
func (s *Session) forceCompleteTransition() {
	if !s.car.transitioning {
		return
	}
	s.logf("transition stalled, forcing completion")
	s.finishTransition()
}

func (s *Session) finishTransition() {
	if s.frameTimer != nil {
		s.frameTimer.Stop()
		s.frameTimer = nil
	}
	if s.safetyTimer != nil {
		s.safetyTimer.Stop()
		s.safetyTimer = nil
	}
	s.car.endTransition()
	s.car.advance()
	s.showCurrent()
	s.prefetchNext()
}

func (s *Session) showCurrent() {
	cur, ok := s.car.current()
	if !ok {
		return
	}
	if s.car.currentImage == nil {
		s.car.currentImage = s.source.resolveUser(cur, s.settings.AvatarWebhook)
	}
	key := carouselKey(cur.UserID, cur.Count) + "_" + strconv.Itoa(s.car.currentIndex)
	s.updateDisplay(s.car.currentImage, cur.DisplayName, key)
}

//---------------- Activation / connectivity test ----------------

func (s *Session) keyDown() {
	if !s.alive {
		return
	}
	if s.mode == modeSingle {
		s.openMessagesView()
		return
	}
	// manual advance always takes the instant path
	if s.car.transitioning {
		s.finishTransition()
		return
	}
	s.instantSwitch()
}

// runConnectivityTest probes the configured feed and surfaces exactly one of
// OK / Fail / Error, reverting to normal display after two seconds.
func (s *Session) runConnectivityTest() {
	if !s.alive {
		return
	}
	target := s.settings.MessagesWebhook
	if s.mode == modeRotate {
		target = s.settings.RosterWebhook
	}

	state := StateTestError
	title := "Error"
	if target != "" {
		status, err := s.client.probe(target, s.settings.UserEmail)
		switch {
		case err != nil:
			state, title = StateTestError, "Error"
		case status >= 200 && status <= 299:
			state, title = StateTestOK, "OK"
		default:
			state, title = StateTestFail, "Fail"
		}
	}
	s.logf("connectivity test: %s", title)

	img := renderStatic(state)
	publishFrame(s.context, img)
	if err := s.surface.SetImage(s.context, img); err != nil {
		log.Printf("setImage failed: %v", err)
	}
	if err := s.surface.SetTitle(s.context, title); err != nil {
		log.Printf("setTitle failed: %v", err)
	}
	s.lastRenderedKey = "test_" + title

	if s.revertTimer != nil {
		s.revertTimer.Stop()
	}
	s.revertTimer = time.AfterFunc(TEST_REVERT_DELAY, func() { s.post(s.revertConnectivityTest) })
}

// revertConnectivityTest restores the normal display after the test overlay.
// Clearing the dedup key forces the next poll result through even when the
// semantic state is unchanged.
func (s *Session) revertConnectivityTest() {
	if !s.alive {
		return
	}
	s.lastRenderedKey = ""
	s.pollTick()
}

//---------------- Display writes ----------------

// updateDisplay writes image and title only when the semantic state key
// changed since the last write.
func (s *Session) updateDisplay(img *image.RGBA, title, key string) {
	if !s.alive || img == nil {
		return
	}
	if key == s.lastRenderedKey {
		return
	}
	s.lastRenderedKey = key

	publishFrame(s.context, img)
	if err := s.surface.SetImage(s.context, img); err != nil {
		log.Printf("setImage failed: %v", err)
	}
	if !s.settings.ShowTitle {
		title = ""
	}
	if err := s.surface.SetTitle(s.context, title); err != nil {
		log.Printf("setTitle failed: %v", err)
	}
}

// writeFrame pushes one transition frame. Playback bypasses deduplication:
// every frame is visually distinct.
func (s *Session) writeFrame(img *image.RGBA) {
	if !s.alive || img == nil {
		return
	}
	publishFrame(s.context, img)
	if err := s.surface.SetImage(s.context, img); err != nil {
		log.Printf("setImage failed: %v", err)
	}
}

func (s *Session) showStatic(kind StaticState) {
	s.updateDisplay(renderStatic(kind), "", "static_"+string(kind))
}

func (s *Session) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", s.context, msg)
	s.surface.Log(msg)
}
