package server

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// StrikeCache counts malformed packets per remote host. The least recently
// offending hosts are evicted once the cache is full.
type StrikeCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, int]
}

// NewStrikeCache creates a StrikeCache holding at most size hosts.
func NewStrikeCache(size int) *StrikeCache {
	cache, err := lru.New[string, int](size)
	if err != nil {
		// Only a non-positive size fails, which config validation rejects.
		panic(err)
	}

	return &StrikeCache{cache: cache}
}

// Add records one strike against host and returns its running total.
func (sc *StrikeCache) Add(host string) int {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	count, _ := sc.cache.Get(host)
	count++
	sc.cache.Add(host, count)

	return count
}

// Count returns the strikes recorded against host.
func (sc *StrikeCache) Count(host string) int {
	count, _ := sc.cache.Peek(host)

	return count
}

// Forget clears the strikes recorded against host.
func (sc *StrikeCache) Forget(host string) {
	sc.cache.Remove(host)
}

// Len returns the number of hosts with strikes.
func (sc *StrikeCache) Len() int {
	return sc.cache.Len()
}
