package main

import (
	"image"
	"strconv"
	"sync"
)

// avatarCache maps an identity key to a previously rendered image. Each
// display session owns exactly one cache; nothing is shared across button
// instances. There is no eviction beyond clear(); the live key space
// (users × counts seen between settings changes) stays small.
type avatarCache struct {
	mu     sync.RWMutex
	images map[string]*image.RGBA
}

func newAvatarCache() *avatarCache {
	return &avatarCache{images: make(map[string]*image.RGBA)}
}

func (c *avatarCache) get(key string) (*image.RGBA, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[key]
	return img, ok
}

func (c *avatarCache) set(key string, img *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[key] = img
}

func (c *avatarCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = make(map[string]*image.RGBA)
}

func (c *avatarCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// carouselKey builds the cache key for a fully composited carousel image,
// valid only for the exact (identity, count) pair.
func carouselKey(userID string, count int) string {
	return userID + "_" + strconv.Itoa(count)
}
