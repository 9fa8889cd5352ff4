package main

import (
	"image"
	"testing"
)

func TestCarouselKey(t *testing.T) {
	tests := []struct {
		userID string
		count  int
		want   string
	}{
		{"u1", 0, "u1_0"},
		{"u1", 7, "u1_7"},
		{"long-user-id", 120, "long-user-id_120"},
	}
	for _, tt := range tests {
		if got := carouselKey(tt.userID, tt.count); got != tt.want {
			t.Errorf("carouselKey(%q, %d) = %q, want %q", tt.userID, tt.count, got, tt.want)
		}
	}
}

func TestCarouselKeyDistinguishesCounts(t *testing.T) {
	// A changed count must always miss the cache.
	if carouselKey("u1", 3) == carouselKey("u1", 4) {
		t.Error("keys for different counts collide")
	}
}

func TestAvatarCache(t *testing.T) {
	c := newAvatarCache()

	if _, ok := c.get("missing"); ok {
		t.Error("empty cache reported a hit")
	}

	img := image.NewRGBA(image.Rect(0, 0, KEY_SIZE, KEY_SIZE))
	c.set("u1_3", img)

	got, ok := c.get("u1_3")
	if !ok || got != img {
		t.Error("cache did not return the stored image")
	}
	if c.size() != 1 {
		t.Errorf("size = %d, want 1", c.size())
	}

	c.clear()
	if c.size() != 0 {
		t.Errorf("size after clear = %d, want 0", c.size())
	}
	if _, ok := c.get("u1_3"); ok {
		t.Error("cleared cache reported a hit")
	}
}
