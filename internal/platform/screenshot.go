package platform

import "sync"

// ScreenshotCache holds one representative screenshot per candidate URL so a
// candidate visited by several queries in one run is captured once. Owned by
// the Searcher and cleared between runs.
type ScreenshotCache struct {
	mu    sync.Mutex
	byURL map[string][]byte
}

// NewScreenshotCache returns an empty cache.
func NewScreenshotCache() *ScreenshotCache {
	return &ScreenshotCache{byURL: make(map[string][]byte)}
}

// Get returns the cached screenshot for url, if any.
func (c *ScreenshotCache) Get(url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.byURL[url]
	return img, ok
}

// Put stores a screenshot for url. Empty payloads are not cached so a failed
// capture can be retried on the next query that hits the same URL.
func (c *ScreenshotCache) Put(url string, img []byte) {
	if len(img) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byURL[url] = img
}

// Clear drops all cached screenshots. Called at the start of each run.
func (c *ScreenshotCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byURL = make(map[string][]byte)
}

// Len reports the number of cached entries.
func (c *ScreenshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byURL)
}
