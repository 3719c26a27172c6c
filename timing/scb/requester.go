package scb

import "github.com/sarchlab/ooosim/timing/mem"

// CacheRequester asks a cache for write ownership through the request pool.
type CacheRequester struct {
	pool  *mem.Pool
	cache mem.MemObj
}

// NewCacheRequester returns a requester that sends write requests to cache.
func NewCacheRequester(pool *mem.Pool, cache mem.MemObj) *CacheRequester {
	return &CacheRequester{pool: pool, cache: cache}
}

// RequestOwnership sends a write request for addr.
func (r *CacheRequester) RequestOwnership(addr, pc uint64, keepStats bool, done func()) {
	r.pool.SendReqWrite(r.cache, keepStats, addr, pc, done)
}
