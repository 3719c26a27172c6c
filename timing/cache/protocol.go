package cache

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/mem"
)

// DoReq performs the lookup of a request.
func (c *Cache) DoReq(r *mem.Request) {
	line := c.LineAddr(r.Addr)

	if e := c.mshr.Query(0, line); e != nil {
		c.stats.MSHRHits++
		e.Requests = append(e.Requests, r)

		return
	}

	if p, ok := c.recalls[line]; ok {
		if p != r {
			r.Schedule(1)
			return
		}

		delete(c.recalls, line)
	}

	block := c.lookup(line)

	// A miss with no free entry retries next cycle, before it is counted.
	if !c.isHit(r, block) && c.mshr.IsFull() {
		c.stats.MSHRFull++
		r.Schedule(1)

		return
	}

	switch r.Action {
	case mem.ActionInstall:
		c.doInstall(r, line, block)
		return
	case mem.ActionWrite:
		c.count(&c.stats.Writes, r)
	default:
		c.count(&c.stats.Reads, r)
		if r.Spec {
			c.count(&c.stats.SpecReads, r)
		}
	}

	if c.isHit(r, block) {
		c.doHit(r, line, block)
		return
	}

	c.count(&c.stats.Misses, r)
	c.mshr.Add(0, line)
	c.trace("miss", r, line)

	c.sched.Schedule(event.Cycle(c.config.MissLatency), func() {
		mem.Forward(r, c.lower)
	})
}

func (c *Cache) isHit(r *mem.Request, block *akitacache.Block) bool {
	if r.Action == mem.ActionInstall {
		return true
	}

	return block != nil && (r.Action != mem.ActionWrite || c.writable(block))
}

func (c *Cache) doHit(r *mem.Request, line uint64, block *akitacache.Block) {
	if c.recall(r, line) {
		return
	}

	c.count(&c.stats.Hits, r)
	c.directory.Visit(block)

	if r.Action == mem.ActionWrite {
		block.IsDirty = true
	}

	r.Exclusive = c.exclusive[c.blockIndex(block)]
	c.recordSharer(r, line)

	mem.Respond(r, 1)
}

func (c *Cache) doInstall(r *mem.Request, line uint64, block *akitacache.Block) {
	c.count(&c.stats.Installs, r)

	if block == nil {
		block = c.allocate(line, r.KeepStats)
	}

	c.directory.Visit(block)
	mem.Respond(r, 1)
}

// recall sends setState messages to every upper level that must give up
// the line before r can be served, and parks r until they all answer.
func (c *Cache) recall(r *mem.Request, line uint64) bool {
	if len(c.uppers) == 0 {
		return false
	}

	requester := c.upperIndex(r.PeekPath())

	var (
		targets uint64
		act     mem.Action
	)

	switch {
	case r.Action == mem.ActionWrite:
		targets = c.sharers[line] &^ bit(requester)
		act = mem.ActionInvalidate
	default:
		if o, ok := c.owner[line]; ok && o != requester {
			targets = bit(o)
			act = mem.ActionShared
		}
	}

	if targets == 0 {
		return false
	}

	c.recalls[line] = r

	for i, up := range c.uppers {
		if targets&bit(i) != 0 {
			c.count(&c.stats.Invalidations, r)
			c.pool.SendSetState(c, up, line, act, r, 1)
		}
	}

	return true
}

func (c *Cache) recordSharer(r *mem.Request, line uint64) {
	if len(c.uppers) == 0 || r.Spec {
		return
	}

	requester := c.upperIndex(r.PeekPath())
	if requester < 0 {
		return
	}

	if r.Action == mem.ActionWrite {
		c.sharers[line] = bit(requester)
		c.owner[line] = requester
		r.Exclusive = true

		return
	}

	c.sharers[line] |= bit(requester)
	r.Exclusive = c.sharers[line] == bit(requester)
	if r.Exclusive {
		c.owner[line] = requester
	}
}

// DoReqAck fills the line a miss fetched and wakes the requests that waited
// on it.
func (c *Cache) DoReqAck(r *mem.Request) {
	line := c.LineAddr(r.Addr)

	if !r.Spec {
		block := c.lookup(line)
		if block == nil {
			block = c.allocate(line, r.KeepStats)
		}

		if r.Exclusive || r.Action == mem.ActionWrite {
			c.exclusive[c.blockIndex(block)] = true
		}

		if r.Action == mem.ActionWrite {
			block.IsDirty = true
		}

		c.directory.Visit(block)
		c.recordSharer(r, line)
	}

	if e := c.mshr.Query(0, line); e != nil {
		c.mshr.Remove(0, line)
		c.trace("fill", r, line)

		for _, w := range e.Requests {
			w.(*mem.Request).Schedule(0)
		}
	}

	mem.Respond(r, 1)
}

// allocate evicts a victim and claims its block for line.
func (c *Cache) allocate(line uint64, keepStats bool) *akitacache.Block {
	victim := c.directory.FindVictim(line)
	if victim == nil {
		log.Panicf("cache %s: no victim for %#x", c.name, line)
	}

	if victim.IsValid {
		c.count(&c.stats.Evictions, nil)
		c.evictUppers(victim.Tag)

		if victim.IsDirty {
			c.count(&c.stats.Writebacks, nil)
			c.pool.SendDisp(c, c.lower, keepStats, victim.Tag, true)
		}
	}

	delete(c.exclusive, c.blockIndex(victim))
	victim.Tag = line
	victim.IsValid = true
	victim.IsDirty = false

	return victim
}

// evictUppers keeps upper levels inclusive when a shared line leaves.
func (c *Cache) evictUppers(line uint64) {
	mask := c.sharers[line]
	delete(c.sharers, line)
	delete(c.owner, line)

	for i, up := range c.uppers {
		if mask&bit(i) != 0 {
			c.pool.SendSetState(c, up, line, mem.ActionInvalidate, nil, 1)
		}
	}
}

// DoSetState applies a state change requested by the level below and
// answers it.
func (c *Cache) DoSetState(r *mem.Request) {
	line := c.LineAddr(r.Addr)

	if block := c.lookup(line); block != nil {
		idx := c.blockIndex(block)
		if block.IsDirty {
			r.NeedsDisp = true
		}

		switch r.Action {
		case mem.ActionInvalidate:
			c.count(&c.stats.Invalidations, r)
			block.IsValid = false
			block.IsDirty = false
		case mem.ActionShared:
			block.IsDirty = false
		}

		delete(c.exclusive, idx)
	}

	r.ConvertSetStateAck()
	r.SetNextHop(r.Creator())
	r.Schedule(1)
}

// DoSetStateAck collects the answer of an upper level and resumes the
// request that was waiting on it.
func (c *Cache) DoSetStateAck(r *mem.Request) {
	line := c.LineAddr(r.Addr)

	if i := c.upperIndex(r.Prev()); i >= 0 {
		switch r.Action {
		case mem.ActionInvalidate:
			c.sharers[line] &^= bit(i)
			if o, ok := c.owner[line]; ok && o == i {
				delete(c.owner, line)
			}
		case mem.ActionShared:
			delete(c.owner, line)
		}

		if c.sharers[line] == 0 {
			delete(c.sharers, line)
		}
	}

	if r.NeedsDisp {
		if block := c.lookup(line); block != nil {
			block.IsDirty = true
		}
	}

	r.SetStateAckDone(0)
	r.Destroy()
}

// DoDisp absorbs a line displaced from an upper level.
func (c *Cache) DoDisp(r *mem.Request) {
	line := c.LineAddr(r.Addr)

	if i := c.upperIndex(r.Prev()); i >= 0 {
		c.sharers[line] &^= bit(i)
		if o, ok := c.owner[line]; ok && o == i {
			delete(c.owner, line)
		}
	}

	if block := c.lookup(line); block != nil {
		if r.NeedsDisp {
			block.IsDirty = true
		}
	} else if r.NeedsDisp {
		c.pool.SendDisp(c, c.lower, r.KeepStats, line, true)
	}

	r.Destroy()
}

// Invalidate marks a cache line as invalid.
func (c *Cache) Invalidate(addr uint64) {
	if block := c.lookup(c.LineAddr(addr)); block != nil {
		block.IsValid = false
		block.IsDirty = false
		delete(c.exclusive, c.blockIndex(block))
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.stats.Writebacks++
				c.pool.SendDisp(c, c.lower, true, block.Tag, true)
			}

			block.IsValid = false
			block.IsDirty = false
		}
	}

	c.exclusive = make(map[int]bool)
}

// Reset invalidates all cache lines without writeback.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.mshr.Reset()
	c.stats = Statistics{}
	c.exclusive = make(map[int]bool)
	c.sharers = make(map[uint64]uint64)
	c.owner = make(map[uint64]int)
}

func (c *Cache) trace(msg string, r *mem.Request, line uint64) {
	if !c.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	c.logger.Debug(msg,
		"req", r.ID.String(),
		"line", fmt.Sprintf("%#x", line),
		"latency", uint64(r.Latency()),
		"outstanding", c.Outstanding())
}

func (c *Cache) count(field *uint64, r *mem.Request) {
	if r == nil || r.KeepStats {
		*field++
	}
}
