package cluster

import (
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/stats"
)

// Branch resolves control-flow ops. It bounds the number of branches in
// flight, adds the predictor delay to the unit latency, and restarts fetch
// after a misprediction.
type Branch struct {
	unit

	maxBranches int
	free        int
	drainOnMiss bool
	bpredDelay  event.Cycle

	nMiss *stats.Counter
}

// FreeBranches returns the number of branch credits left. It is meaningless
// when the unit is unbounded.
func (u *Branch) FreeBranches() int { return u.free }

// CanIssue stalls when every branch credit is taken.
func (u *Branch) CanIssue(*dinst.Dinst) StallCause {
	if u.maxBranches > 0 && u.free <= 0 {
		return OutstandingBranches
	}

	return NoStall
}

// AddInst takes a branch credit.
func (u *Branch) AddInst(d *dinst.Dinst) {
	if u.maxBranches == 0 {
		return
	}

	u.free--
	d.Take(dinst.CreditBranch)
}

func (u *Branch) release(d *dinst.Dinst) {
	if d.Release(dinst.CreditBranch) {
		u.free++
	}
}

// Executing schedules the resolution.
func (u *Branch) Executing(d *dinst.Dinst) {
	u.cluster.Executing(d)
	u.at(u.port.NextSlot(true)+u.lat+u.bpredDelay, d, u.Executed)
}

// Executed resolves the branch and returns its credit.
func (u *Branch) Executed(d *dinst.Dinst) {
	d.Set(dinst.Performed)
	u.cluster.Executed(d)

	if d.Is(dinst.BranchMiss) {
		u.nMiss.Inc(!d.Is(dinst.Transient))

		if !u.drainOnMiss {
			u.proc.UnblockFetch(d)
		}
	}

	u.release(d)
}

// Preretire waits for the resolution. With drain-on-miss a mispredicted
// branch restarts fetch only here.
func (u *Branch) Preretire(d *dinst.Dinst, flushing bool) bool {
	if flushing {
		u.release(d)
		return true
	}

	if !d.Is(dinst.Executed) {
		return false
	}

	if u.drainOnMiss && d.Is(dinst.BranchMiss) {
		u.proc.UnblockFetch(d)
	}

	return true
}

// Retire samples the latencies of d.
func (u *Branch) Retire(d *dinst.Dinst, _ bool) bool {
	u.sample(d)
	return true
}

// TryFlushed returns the branch credit.
func (u *Branch) TryFlushed(d *dinst.Dinst) {
	u.release(d)
}
