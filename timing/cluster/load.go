package cluster

import (
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/lsq"
	"github.com/sarchlab/ooosim/timing/mem"
	"github.com/sarchlab/ooosim/timing/scb"
	"github.com/sarchlab/ooosim/timing/stats"
)

// Load executes loads. A load covered by an older store in the queue or by
// the store buffer is forwarded. Any other load reads the first-level
// cache. With speculative loads on, a load younger than an unresolved
// branch reads without allocating and installs the line once it reaches
// the point of no return.
type Load struct {
	unit

	lsq      *lsq.LSQ
	storeSet *lsq.StoreSet
	scb      *scb.StoreBuffer
	memPool  *mem.Pool
	dl1      mem.MemObj

	size       int
	free       int
	stFwdDelay event.Cycle
	specLoads  bool

	nForwarded    *stats.Counter
	nSCBForwarded *stats.Counter
	nSpecReads    *stats.Counter
}

// FreeEntries returns the number of load-queue credits left.
func (u *Load) FreeEntries() int { return u.free }

// CanIssue stalls when the load queue or the LSQ is full.
func (u *Load) CanIssue(*dinst.Dinst) StallCause {
	if u.size > 0 && u.free <= 0 {
		return OutstandingLoads
	}

	if !u.lsq.HasFreeEntries() {
		return OutstandingLoads
	}

	return NoStall
}

// AddInst inserts d in the LSQ and its store set and takes a queue credit.
func (u *Load) AddInst(d *dinst.Dinst) {
	u.lsq.Insert(d)
	u.storeSet.Insert(d)

	if u.size > 0 {
		u.free--
		d.Take(dinst.CreditLoadQueue)
	}
}

func (u *Load) release(d *dinst.Dinst) {
	if d.Release(dinst.CreditLoadQueue) {
		u.free++
	}
}

// Executing forwards d or sends it to the cache.
func (u *Load) Executing(d *dinst.Dinst) {
	u.cluster.Executing(d)
	when := u.port.NextSlot(true) + u.lat

	u.lsq.Executing(d)

	switch {
	case d.Is(dinst.LoadForwarded):
		u.nForwarded.Inc(true)
		u.at(when+u.stFwdDelay, d, u.forwarded)
	case u.scb != nil && u.scb.IsLoadForward(d.Addr, d.Size):
		u.nSCBForwarded.Inc(true)
		u.at(when+u.stFwdDelay, d, u.forwarded)
	case u.dl1 == nil:
		u.at(when+u.stFwdDelay, d, u.forwarded)
	default:
		u.at(when, d, u.dispatch)
	}
}

func (u *Load) forwarded(d *dinst.Dinst) {
	d.Set(dinst.Dispatched)
	u.performed(d)
}

func (u *Load) dispatch(d *dinst.Dinst) {
	d.Set(dinst.Dispatched)

	if u.specLoads && d.Is(dinst.Spec) {
		u.nSpecReads.Inc(true)
		u.memPool.SendSpecReqRead(u.dl1, true, d.Addr, d.PC, u.callback(d, u.specDone))

		return
	}

	u.memPool.SendReqRead(u.dl1, true, d.Addr, d.PC, u.callback(d, u.performed))
}

func (u *Load) performed(d *dinst.Dinst) {
	d.Set(dinst.Performed)
	u.Executed(d)
}

// specDone makes the value available. The load performs when its install
// completes.
func (u *Load) specDone(d *dinst.Dinst) {
	u.Executed(d)
}

// Executed releases the consumers of d once.
func (u *Load) Executed(d *dinst.Dinst) {
	if d.Is(dinst.Executed) {
		return
	}

	u.storeSet.Remove(d)
	u.cluster.Executed(d)
}

// Preretire waits for the request to leave. The queue credit is returned
// here; a speculative load installs its line.
func (u *Load) Preretire(d *dinst.Dinst, flushing bool) bool {
	if flushing {
		u.release(d)
		return true
	}

	if !d.Is(dinst.Dispatched) {
		return false
	}

	if u.specLoads && d.Is(dinst.Spec) && !d.Is(dinst.Safe) {
		d.Set(dinst.Safe)

		if !d.Is(dinst.Performed) {
			u.memPool.SendInstall(u.dl1, true, d.Addr, d.PC, u.callback(d, u.performed))
		}
	}

	u.release(d)

	return true
}

// Retire waits for the data and leaves the LSQ.
func (u *Load) Retire(d *dinst.Dinst, flushing bool) bool {
	if !flushing && !d.Is(dinst.Performed) {
		return false
	}

	u.lsq.Remove(d)
	u.storeSet.Remove(d)
	u.release(d)
	u.sample(d)

	return true
}

// TryFlushed removes d from the LSQ and its store set.
func (u *Load) TryFlushed(d *dinst.Dinst) {
	u.lsq.Remove(d)
	u.storeSet.Remove(d)
	u.release(d)
}
