// Package tracer writes pipeline traces in the Kanata 0004 format read by
// the Konata viewer. A Kanata tracer is an akita hook; attach it to every
// core whose instructions should appear in the trace.
package tracer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ooosim/timing/core"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
)

// Stage names shown in the viewer.
const (
	StageFetch     = "F"
	StageRename    = "Rn"
	StageExecute   = "X"
	StageWriteback = "Wb"
	StagePNR       = "Cm"
)

// Retire kinds.
const (
	retireCommit = 0
	retireFlush  = 1
)

type entry struct {
	id    uint64
	stage string
}

// Kanata records instruction lifecycles through the core hooks.
type Kanata struct {
	w     *bufio.Writer
	clock event.Clock

	started bool
	last    event.Cycle

	live    map[dinst.Handle]*entry
	nextID  uint64
	retired uint64

	err error
}

// NewKanata creates a tracer that writes to w and stamps lines with the
// cycles of clock.
func NewKanata(w io.Writer, clock event.Clock) *Kanata {
	return &Kanata{
		w:     bufio.NewWriter(w),
		clock: clock,
		live:  make(map[dinst.Handle]*entry),
	}
}

// Func implements sim.Hook.
func (k *Kanata) Func(ctx sim.HookCtx) {
	d, ok := ctx.Item.(*dinst.Dinst)
	if !ok || k.err != nil {
		return
	}

	k.sync()

	switch ctx.Pos {
	case core.HookPosFetch:
		k.fetch(d)
	case core.HookPosRename:
		k.stage(d, StageRename)
	case core.HookPosExecute:
		k.stage(d, StageExecute)
	case core.HookPosWriteback:
		k.stage(d, StageWriteback)
	case core.HookPosPNR:
		k.stage(d, StagePNR)
	case core.HookPosReplay:
		if e := k.live[d.Handle()]; e != nil {
			k.printf("L\t%d\t1\treplayed\n", e.id)
		}
	case core.HookPosCommit:
		k.retire(d, retireCommit)
	case core.HookPosFlush:
		k.retire(d, retireFlush)
	}
}

func (k *Kanata) sync() {
	now := k.clock.Now()

	if !k.started {
		k.started = true
		k.last = now
		k.printf("Kanata\t0004\nC=\t%d\n", now)

		return
	}

	if now > k.last {
		k.printf("C\t%d\n", now-k.last)
		k.last = now
	}
}

func (k *Kanata) fetch(d *dinst.Dinst) {
	e := &entry{id: k.nextID, stage: StageFetch}
	k.nextID++
	k.live[d.Handle()] = e

	k.printf("I\t%d\t%d\t%d\n", e.id, d.Seq, d.HID)
	k.printf("L\t%d\t0\t%#x: %v\n", e.id, d.PC, d.Inst())
	k.printf("S\t%d\t0\t%s\n", e.id, StageFetch)
}

func (k *Kanata) stage(d *dinst.Dinst, name string) {
	e := k.live[d.Handle()]
	if e == nil || e.stage == name {
		return
	}

	k.printf("E\t%d\t0\t%s\n", e.id, e.stage)
	k.printf("S\t%d\t0\t%s\n", e.id, name)
	e.stage = name
}

func (k *Kanata) retire(d *dinst.Dinst, kind int) {
	e := k.live[d.Handle()]
	if e == nil {
		return
	}

	delete(k.live, d.Handle())

	retireID := uint64(0)
	if kind == retireCommit {
		retireID = k.retired
		k.retired++
	}

	k.printf("E\t%d\t0\t%s\n", e.id, e.stage)
	k.printf("R\t%d\t%d\t%d\n", e.id, retireID, kind)
}

func (k *Kanata) printf(format string, args ...any) {
	if k.err != nil {
		return
	}

	_, k.err = fmt.Fprintf(k.w, format, args...)
}

// Live returns the number of instructions fetched but not yet retired.
func (k *Kanata) Live() int { return len(k.live) }

// Flush writes buffered lines and reports the first write error.
func (k *Kanata) Flush() error {
	if k.err != nil {
		return k.err
	}

	return k.w.Flush()
}
