package core

import (
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
)

// retire moves instructions that passed their point of no return from the
// reorder buffer into the retirement buffer, then commits from there.
// Squashed and wrong-path instructions are flushed at the head of the
// reorder buffer instead.
func (c *Core) retire(now event.Cycle) {
	for !c.rob.Empty() {
		d := c.rob.Front()
		r := c.resource(d)
		flushing := d.IsAny(dinst.Squashed | dinst.Transient)

		if !r.Preretire(d, flushing) {
			break
		}

		d.Set(dinst.Preretired)

		if flushing {
			if !r.Cluster().Retire(d, r, true) {
				break
			}

			c.rob.Pop()
			c.flush(d)

			continue
		}

		c.hook(HookPosPNR, d)
		c.rob.Pop()
		c.rrob.Push(d)
	}

	c.robUsed.Sample(float64(c.rob.Len()), !c.rob.Empty())
	c.rrobUsed.Sample(float64(c.rrob.Len()), !c.rrob.Empty())

	for i := 0; i < c.cfg.RetireWidth && !c.rrob.Empty(); i++ {
		d := c.rrob.Front()
		if d.ExecutedTime+event.Cycle(c.cfg.RetireDelay) >= now {
			break
		}

		r := c.resource(d)
		if !r.Cluster().Retire(d, r, false) {
			break
		}

		c.rrob.Pop()
		c.commit(d)
	}
}

func (c *Core) releaseReg(d *dinst.Dinst) {
	if d.Release(dinst.CreditCoreReg) {
		c.nTotalRegs++
	}
}

func (c *Core) commit(d *dinst.Dinst) {
	d.Set(dinst.Retired)
	c.releaseReg(d)
	c.nCommitted.Inc(true)
	c.hook(HookPosCommit, d)
	c.pool.Destroy(d)
}

func (c *Core) flush(d *dinst.Dinst) {
	c.releaseReg(d)

	if d.Op().IsBranch() && !d.Is(dinst.Executed) {
		c.nUnresolved--
	}

	if c.fetchBlocked && c.blockedOn == d.Handle() {
		c.fetchBlocked = false
	}

	c.clearRAT(d)
	c.hook(HookPosFlush, d)
	c.pool.Destroy(d)
}

// Replay squashes target and every younger instruction. Fetch restarts at
// target once the squashed work has drained.
func (c *Core) Replay(target *dinst.Dinst) {
	if !c.cfg.MemoryReplay || target.IsAny(dinst.Squashed|dinst.Transient) {
		return
	}

	target.Set(dinst.Replay)
	c.nReplays.Inc(true)
	c.hook(HookPosReplay, target)

	wasted := c.fetchQ.Len()
	c.rob.Each(func(d *dinst.Dinst) {
		if d.ID() < target.ID() || d.Is(dinst.Squashed) {
			return
		}

		wasted++
		d.Set(dinst.Squashed)
		c.nSquashed.Inc(true)
		c.resource(d).TryFlushed(d)
	})
	c.nReplayInst.Sample(float64(wasted), true)

	for !c.fetchQ.Empty() {
		d := c.fetchQ.Pop()
		c.hook(HookPosFlush, d)
		c.pool.Destroy(d)
	}

	c.next = nil

	if c.fetchBlocked {
		if b := c.pool.Resolve(c.blockedOn); b == nil || b.Is(dinst.Squashed) {
			c.fetchBlocked = false
		}
	}

	if !c.replay.recovering || target.Seq < c.replay.seq {
		c.replay.seq = target.Seq
	}

	if c.replay.id < target.ID() {
		c.replay.id = target.ID()
	}

	if !c.replay.recovering {
		c.logger.Debug("replay started",
			"id", uint64(target.ID()), "pc", target.PC, "seq", target.Seq)
	}

	c.replay.recovering = true
}

// finishRecovery rewinds the source and adjusts the serialization level:
// replays far apart relax it, replays close together tighten it.
func (c *Core) finishRecovery(now event.Cycle) {
	rs := &c.replay
	s := &c.serial
	thr := dinst.ID(c.cfg.ForwardProgressThreshold)

	rs.recovering = false
	prev := s.level

	if rs.last+2*thr < rs.id {
		s.level = 3
	}

	if rs.last+thr > rs.id {
		if s.level > 0 {
			s.level--
		}

		s.remaining = s.length
	}

	rs.last = rs.id

	c.rat = [len(c.rat)]dinst.Handle{}
	s.rat = [len(s.rat)]dinst.Handle{}
	s.last = dinst.Handle{}
	s.lastST = dinst.Handle{}

	c.source.Rewind(c.hid, rs.seq)
	c.sourceDone = false
	c.next = nil

	c.logger.Debug("replay recovered",
		"cycle", uint64(now), "seq", rs.seq, "level", s.level)

	if s.level != prev {
		c.logger.Debug("serialization level changed", "from", prev, "to", s.level)
	}
}

// Executing is called by a cluster when d starts to execute.
func (c *Core) Executing(d *dinst.Dinst) {
	c.hook(HookPosExecute, d)
}

// Executed is called by a cluster when the result of d is available.
func (c *Core) Executed(d *dinst.Dinst) {
	c.clearRAT(d)

	if d.Op().IsBranch() {
		c.nUnresolved--
	}

	c.hook(HookPosWriteback, d)
}

// IsROBEmpty reports whether the reorder buffer is empty.
func (c *Core) IsROBEmpty() bool {
	return c.rob.Empty()
}

// UnblockFetch restarts fetch after the mispredicted branch d resolved.
func (c *Core) UnblockFetch(d *dinst.Dinst) {
	if !c.fetchBlocked || c.blockedOn != d.Handle() {
		return
	}

	c.fetchBlocked = false
	c.fetchResume = c.sched.Now() + event.Cycle(c.cfg.MispredictPenalty)
}
