package core

import (
	"fmt"
	"log"
	"strings"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
)

// Hook positions invoked by the core. The hook item is the *dinst.Dinst the
// event is about.
var (
	HookPosFetch     = &sim.HookPos{Name: "IF"}
	HookPosRename    = &sim.HookPos{Name: "RN"}
	HookPosExecute   = &sim.HookPos{Name: "EX"}
	HookPosWriteback = &sim.HookPos{Name: "WB"}
	HookPosPNR       = &sim.HookPos{Name: "PNR"}
	HookPosCommit    = &sim.HookPos{Name: "Commit"}
	HookPosFlush     = &sim.HookPos{Name: "Flush"}
	HookPosReplay    = &sim.HookPos{Name: "Replay"}
)

func (c *Core) hook(pos *sim.HookPos, d *dinst.Dinst) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   d,
	})
}

// watchdog panics when the oldest in-flight instruction makes no progress
// for longer than interval cycles.
type watchdog struct {
	interval event.Cycle
	oldest   dinst.Handle
	since    event.Cycle
}

func (w *watchdog) check(c *Core, now event.Cycle) {
	if w.interval == 0 {
		return
	}

	d := c.rrob.Front()
	if d == nil {
		d = c.rob.Front()
	}

	if d == nil {
		w.oldest = dinst.Handle{}
		w.since = now

		return
	}

	if d.Handle() != w.oldest {
		w.oldest = d.Handle()
		w.since = now

		return
	}

	if now-w.since <= w.interval {
		return
	}

	dump := c.dump()
	c.logger.Error("core locked",
		"cycle", uint64(now), "since", uint64(w.since), "oldest", d.String())
	log.Panicf("core %s: no progress since cycle %d:\n%s", c.name, w.since, dump)
}

func (c *Core) dump() string {
	var b strings.Builder

	fmt.Fprintf(&b, "rrob (%d):\n", c.rrob.Len())
	c.rrob.Each(func(d *dinst.Dinst) {
		fmt.Fprintf(&b, "  %s\n", d)
	})

	fmt.Fprintf(&b, "rob (%d):\n", c.rob.Len())
	c.rob.Each(func(d *dinst.Dinst) {
		fmt.Fprintf(&b, "  %s\n", d)
	})

	return b.String()
}
