package core

import (
	"github.com/sarchlab/ooosim/emu"
	"github.com/sarchlab/ooosim/timing/bpred"
	"github.com/sarchlab/ooosim/timing/cluster"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
)

func (c *Core) peek() (emu.Record, bool) {
	if c.next != nil {
		return *c.next, true
	}

	if c.sourceDone {
		return emu.Record{}, false
	}

	rec, ok := c.source.Next(c.hid)
	if !ok {
		c.sourceDone = true
		return emu.Record{}, false
	}

	c.next = &rec

	return rec, true
}

// fetch moves up to FetchWidth records into the instruction queue. A taken
// branch ends the fetch group. A mispredicted branch stops fetch until it
// resolves; only wrong-path records flow in its shadow.
func (c *Core) fetch(now event.Cycle) {
	if c.replay.recovering || now < c.fetchResume {
		return
	}

	space := c.cfg.InstQueueSize - c.fetchQ.Len()
	n := min(c.cfg.FetchWidth, space)

	for i := 0; i < n; i++ {
		rec, ok := c.peek()
		if !ok {
			return
		}

		if c.fetchBlocked && !rec.Transient {
			return
		}

		c.next = nil
		d := c.create(rec, now)
		c.fetchQ.Push(d)
		c.hook(HookPosFetch, d)

		if !d.Op().IsBranch() || d.Is(dinst.Transient) || c.fetchBlocked {
			continue
		}

		switch c.bpred.Predict(d, true, true) {
		case bpred.Miss, bpred.NoBTBPrediction:
			d.Set(dinst.BranchMiss)
			c.fetchBlocked = true
			c.blockedOn = d.Handle()

			return
		}

		if d.Taken {
			return
		}
	}
}

func (c *Core) create(rec emu.Record, now event.Cycle) *dinst.Dinst {
	d := c.pool.Create(rec.Inst, rec.PC, rec.Addr, c.hid)
	d.Seq = rec.Seq
	d.Taken = rec.Taken
	d.FetchTime = now

	if rec.Size > 0 {
		d.Size = rec.Size
	}

	if rec.Transient {
		d.Set(dinst.Transient)
	}

	if rec.Syscall {
		d.Set(dinst.Syscall)
	}

	return d
}

// issue renames up to IssueWidth decoded instructions. The first stall
// ends the group and charges the lost slots to its cause.
func (c *Core) issue(now event.Cycle) {
	width := c.cfg.IssueWidth

	for n := 0; n < width && !c.fetchQ.Empty(); n++ {
		d := c.fetchQ.Front()
		if d.FetchTime+event.Cycle(c.cfg.DecodeDelay) > now {
			return
		}

		if sc := c.addInst(d, now); sc != cluster.NoStall {
			c.nStall[sc].Add(uint64(width-n), true)
			return
		}

		c.fetchQ.Pop()
	}
}
