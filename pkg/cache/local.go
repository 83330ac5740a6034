package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Local is a size and time bounded in-process cache.
type Local struct {
	lru *expirable.LRU[string, []byte]
}

func NewLocal(size int, ttl time.Duration) *Local {
	return &Local{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (l *Local) Get(key string) ([]byte, bool) {
	return l.lru.Get(key)
}

func (l *Local) Set(key string, value []byte) {
	l.lru.Add(key, value)
}

// Delete removes the keys and returns how many were present.
func (l *Local) Delete(keys ...string) int {
	removed := 0

	for _, key := range keys {
		if l.lru.Remove(key) {
			removed++
		}
	}

	return removed
}

func (l *Local) Len() int {
	return l.lru.Len()
}
