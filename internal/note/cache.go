package note

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ShareCache remembers which document a share code pointed to. A hit is
// only a hint: the service re-reads the document and checks the code.
type ShareCache struct {
	lru *expirable.LRU[string, string]
}

// NewShareCache creates a cache of at most size codes, each kept for ttl.
// A non-positive size disables caching.
func NewShareCache(size int, ttl time.Duration) *ShareCache {
	if size <= 0 {
		return nil
	}

	return &ShareCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *ShareCache) get(code string) (string, bool) {
	if c == nil {
		return "", false
	}

	return c.lru.Get(code)
}

func (c *ShareCache) put(code, docID string) {
	if c == nil || code == "" {
		return
	}

	c.lru.Add(code, docID)
}

func (c *ShareCache) remove(code string) {
	if c == nil || code == "" {
		return
	}

	c.lru.Remove(code)
}

// Len returns the number of cached codes.
func (c *ShareCache) Len() int {
	if c == nil {
		return 0
	}

	return c.lru.Len()
}
