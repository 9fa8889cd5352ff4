package main

import (
	"image"
	"sort"
	"time"
)

const (
	TRANSITION_FRAMES  = 25 // frame 0 is 100% current, frame 24 is 100% next
	TRANSITION_FPS     = 24
	TRANSITION_TIMEOUT = 2 * time.Second
)

var frameInterval = time.Second / TRANSITION_FPS

// carousel owns the ordered roster, the current position and the image pair
// used for crossfades. All methods are called from the owning session's task
// loop only.
type carousel struct {
	users         []UserEntry
	currentIndex  int
	currentImage  *image.RGBA
	nextImage     *image.RGBA
	transitioning bool
	frames        []*image.RGBA
	frameIndex    int
}

// sortRoster orders entries by descending count. The sort is stable: equal
// counts keep the relative order the webhook supplied.
func sortRoster(entries []UserEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
}

// adoptRoster replaces the user list wholesale and re-anchors the current
// position: if the previously current user still exists in the new list we
// follow it to its new index, otherwise we reset to the top.
func (c *carousel) adoptRoster(entries []UserEntry) {
	var prevID string
	if cur, ok := c.current(); ok {
		prevID = cur.UserID
	}

	c.users = entries
	c.currentIndex = 0
	if prevID == "" {
		return
	}
	for i, u := range entries {
		if u.UserID == prevID {
			c.currentIndex = i
			return
		}
	}
}

func (c *carousel) current() (UserEntry, bool) {
	if c.currentIndex < 0 || c.currentIndex >= len(c.users) {
		return UserEntry{}, false
	}
	return c.users[c.currentIndex], true
}

func (c *carousel) nextIndex() int {
	if len(c.users) == 0 {
		return 0
	}
	return (c.currentIndex + 1) % len(c.users)
}

func (c *carousel) next() (UserEntry, bool) {
	if len(c.users) == 0 {
		return UserEntry{}, false
	}
	return c.users[c.nextIndex()], true
}

// advance promotes next to current. The pre-fetched next image moves into
// the current slot; the next slot is cleared for the upcoming pre-fetch.
func (c *carousel) advance() {
	c.currentIndex = c.nextIndex()
	c.currentImage = c.nextImage
	c.nextImage = nil
}

// beginTransition generates the crossfade sequence between the current and
// next images. It refuses to start while another transition is running or
// when either image is missing; callers fall back to an instant switch.
func (c *carousel) beginTransition() bool {
	if c.transitioning || c.currentImage == nil || c.nextImage == nil {
		return false
	}
	c.frames = crossfadeFrames(c.currentImage, c.nextImage)
	c.frameIndex = 0
	c.transitioning = true
	return true
}

// endTransition clears all playback state and discards the frame buffers.
func (c *carousel) endTransition() {
	c.transitioning = false
	c.frames = nil
	c.frameIndex = 0
}

// crossfadeFrames builds the 25-frame linear crossfade between two equally
// sized images, each frame composited over an opaque black background.
// Frame i blends current at 1-i/24 against next at i/24.
func crossfadeFrames(current, next *image.RGBA) []*image.RGBA {
	bounds := current.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	frames := make([]*image.RGBA, TRANSITION_FRAMES)
	for i := 0; i < TRANSITION_FRAMES; i++ {
		t := float64(i) / float64(TRANSITION_FRAMES-1)
		frame := image.NewRGBA(image.Rect(0, 0, w, h))
		blendOverBlack(frame, current, next, t)
		frames[i] = frame
	}
	return frames
}

// blendOverBlack writes cur*(1-t) + nxt*t into dst. Each source is first
// flattened against black through its own alpha, so partially transparent
// avatars fade the same way the display shows them.
func blendOverBlack(dst, cur, nxt *image.RGBA, t float64) {
	w := dst.Bounds().Dx()
	h := dst.Bounds().Dy()
	curWeight := uint32((1 - t) * 255)
	nxtWeight := uint32(t * 255)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := cur.RGBAAt(cur.Bounds().Min.X+x, cur.Bounds().Min.Y+y)
			b := nxt.RGBAAt(nxt.Bounds().Min.X+x, nxt.Bounds().Min.Y+y)

			// flatten each sample against black via its alpha
			ar := uint32(a.R) * uint32(a.A) / 255
			ag := uint32(a.G) * uint32(a.A) / 255
			ab := uint32(a.B) * uint32(a.A) / 255
			br := uint32(b.R) * uint32(b.A) / 255
			bg := uint32(b.G) * uint32(b.A) / 255
			bb := uint32(b.B) * uint32(b.A) / 255

			i := dst.PixOffset(x, y)
			dst.Pix[i] = uint8((ar*curWeight + br*nxtWeight) / 255)
			dst.Pix[i+1] = uint8((ag*curWeight + bg*nxtWeight) / 255)
			dst.Pix[i+2] = uint8((ab*curWeight + bb*nxtWeight) / 255)
			dst.Pix[i+3] = 255
		}
	}
}
