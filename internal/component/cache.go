// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package component

import "sync"

// Cache holds fully expanded component markup keyed by the component's
// resolved path. It is safe for concurrent use.
type Cache struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{m: make(map[string]string)}
}

// Get returns the expansion stored for path.
func (c *Cache) Get(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.m[path]
	return s, ok
}

// Put stores the expansion of path.
func (c *Cache) Put(path, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[path] = content
}

// Len returns the number of stored expansions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Reset removes every stored expansion.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]string)
}
