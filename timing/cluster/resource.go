// Package cluster models how functional-unit contention turns into pipeline
// stalls. A Cluster owns a scheduling window and a register pool; each
// opcode class executes on a Resource inside one cluster.
package cluster

import (
	"log/slog"

	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/lsq"
	"github.com/sarchlab/ooosim/timing/mem"
	"github.com/sarchlab/ooosim/timing/port"
	"github.com/sarchlab/ooosim/timing/scb"
	"github.com/sarchlab/ooosim/timing/stats"
)

// Processor is the core that clusters report lifecycle transitions to.
type Processor interface {
	// Executing is called when an instruction starts to execute.
	Executing(d *dinst.Dinst)

	// Executed is called when the result of an instruction is available.
	Executed(d *dinst.Dinst)

	// Replay squashes target and every younger instruction.
	Replay(target *dinst.Dinst)

	// IsROBEmpty reports whether nothing older waits in the reorder buffer.
	IsROBEmpty() bool

	// UnblockFetch resumes fetch stopped by the mispredicted branch d.
	UnblockFetch(d *dinst.Dinst)
}

// Resource is one kind of functional unit. Every check is re-pollable: a
// false or a stall cause means "ask again next cycle".
type Resource interface {
	Name() string
	Cluster() *Cluster

	// CanIssue checks unit-specific admission limits.
	CanIssue(d *dinst.Dinst) StallCause

	// AddInst reserves the unit-specific credits checked by CanIssue.
	AddInst(d *dinst.Dinst)

	// Executing reserves a port slot and schedules Executed.
	Executing(d *dinst.Dinst)

	// Executed makes the result visible to consumers.
	Executed(d *dinst.Dinst)

	// Preretire is the point of no return.
	Preretire(d *dinst.Dinst, flushing bool) bool

	// Retire does the final bookkeeping.
	Retire(d *dinst.Dinst, flushing bool) bool

	// TryFlushed drops the unit state of a squashed instruction.
	TryFlushed(d *dinst.Dinst)
}

// Env holds the parts of a core that units work with.
type Env struct {
	// Name prefixes every statistic, as in "P(0)".
	Name string

	Sched  *event.Scheduler
	Pool   *dinst.Pool
	Stats  *stats.Registry
	Proc   Processor
	Logger *slog.Logger

	LSQ      *lsq.LSQ
	StoreSet *lsq.StoreSet
	SCB      *scb.StoreBuffer

	// MemPool and DL1 carry load requests. A nil DL1 makes every load hit
	// with the store forwarding delay.
	MemPool *mem.Pool
	DL1     mem.MemObj
}

type unit struct {
	name    string
	cluster *Cluster
	port    port.Port
	lat     event.Cycle

	sched *event.Scheduler
	pool  *dinst.Pool
	proc  Processor

	renameToIssue    *stats.Average
	issueToExecuted  *stats.Average
	executedToRetire *stats.Average
}

func newUnit(name string, c *Cluster, p port.Port, lat uint64, env *Env) unit {
	return unit{
		name:             name,
		cluster:          c,
		port:             p,
		lat:              event.Cycle(lat),
		sched:            env.Sched,
		pool:             env.Pool,
		proc:             env.Proc,
		renameToIssue:    env.Stats.Average(name + "_avgRenameTime"),
		issueToExecuted:  env.Stats.Average(name + "_avgIssueTime"),
		executedToRetire: env.Stats.Average(name + "_avgRetireTime"),
	}
}

func (u *unit) Name() string      { return u.name }
func (u *unit) Cluster() *Cluster { return u.cluster }

// at runs fn on d at cycle when, unless d was recycled or squashed by then.
func (u *unit) at(when event.Cycle, d *dinst.Dinst, fn func(*dinst.Dinst)) {
	u.sched.ScheduleAbs(when, u.callback(d, fn))
}

func (u *unit) callback(d *dinst.Dinst, fn func(*dinst.Dinst)) func() {
	h := d.Handle()

	return func() {
		d := u.pool.Resolve(h)
		if d == nil || d.Is(dinst.Squashed) {
			return
		}

		fn(d)
	}
}

func (u *unit) sample(d *dinst.Dinst) {
	if d.IsAny(dinst.Transient|dinst.Squashed) || !d.Is(dinst.Executed) {
		return
	}

	now := u.sched.Now()
	u.renameToIssue.Sample(float64(d.IssueTime-d.RenameTime), true)
	u.issueToExecuted.Sample(float64(d.ExecutedTime-d.IssueTime), true)
	u.executedToRetire.Sample(float64(now-d.ExecutedTime), true)
}
