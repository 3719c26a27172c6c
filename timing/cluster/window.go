package cluster

import (
	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/port"
)

// Window holds admitted instructions until their sources are ready, then
// dispatches them to their units through the scheduler port.
type Window struct {
	cluster *Cluster
	port    port.Port
	sched   *event.Scheduler
	pool    *dinst.Pool
	lookup  func(insts.Op) Resource

	schedDelay      event.Cycle
	interClusterLat event.Cycle
}

// AddInst selects d right away when nothing it depends on is in flight.
func (w *Window) AddInst(d *dinst.Dinst, r Resource) {
	if !d.HasPending() {
		w.selectInst(d, r, false)
	}
}

func (w *Window) selectInst(d *dinst.Dinst, r Resource, remote bool) {
	d.Set(dinst.Issued)
	d.IssueTime = w.sched.Now()

	delay := w.schedDelay
	if remote {
		delay = w.interClusterLat
	}

	when := w.port.NextSlot(true) + delay
	h := d.Handle()
	w.sched.ScheduleAbs(when, func() { w.dispatch(h, r) })
}

func (w *Window) dispatch(h dinst.Handle, r Resource) {
	d := w.pool.Resolve(h)
	if d == nil || d.Is(dinst.Squashed) {
		return
	}

	if !w.cluster.takeLateReg(d) {
		w.sched.Schedule(1, func() { w.dispatch(h, r) })
		return
	}

	r.Executing(d)
}

// wake readies the consumers of d. A consumer in another cluster pays the
// inter-cluster latency instead of the scheduling delay.
func (w *Window) wake(d *dinst.Dinst) {
	d.WakeConsumers(w.pool, func(c *dinst.Dinst) {
		if c.Is(dinst.Squashed) {
			return
		}

		r := w.lookup(c.Op())
		other := r.Cluster()
		other.window.selectInst(c, r, other != w.cluster)
	})
}
