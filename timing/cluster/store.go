package cluster

import (
	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/lsq"
	"github.com/sarchlab/ooosim/timing/mem"
	"github.com/sarchlab/ooosim/timing/scb"
	"github.com/sarchlab/ooosim/timing/stats"
)

// Store executes stores. Executing checks the LSQ for a younger load that
// already ran and replays it. At the point of no return the store moves
// into the store buffer, which asks the cache for ownership.
// Store-address micro-ops only compute an address and skip the queues.
type Store struct {
	unit

	lsq      *lsq.LSQ
	storeSet *lsq.StoreSet
	scb      *scb.StoreBuffer
	dl1      mem.MemObj

	size int
	free int

	nViolations *stats.Counter
	nSCBFull    *stats.Counter
}

func isAddrOnly(d *dinst.Dinst) bool {
	return d.Op() == insts.OpSALUAddr
}

// FreeEntries returns the number of store-queue credits left.
func (u *Store) FreeEntries() int { return u.free }

// CanIssue stalls when the store queue or the LSQ is full.
func (u *Store) CanIssue(d *dinst.Dinst) StallCause {
	if isAddrOnly(d) {
		return NoStall
	}

	if u.size > 0 && u.free <= 0 {
		return OutstandingStores
	}

	if !u.lsq.HasFreeEntries() {
		return OutstandingStores
	}

	return NoStall
}

// AddInst inserts d in the LSQ and its store set and takes a queue credit.
func (u *Store) AddInst(d *dinst.Dinst) {
	if isAddrOnly(d) {
		return
	}

	u.lsq.Insert(d)
	u.storeSet.Insert(d)

	if u.size > 0 {
		u.free--
		d.Take(dinst.CreditStoreQueue)
	}
}

func (u *Store) release(d *dinst.Dinst) {
	if d.Release(dinst.CreditStoreQueue) {
		u.free++
	}
}

// Executing replays a younger load that read a stale value, then
// schedules the address computation.
func (u *Store) Executing(d *dinst.Dinst) {
	u.cluster.Executing(d)

	if !isAddrOnly(d) {
		if load := u.lsq.Executing(d); load != nil {
			u.nViolations.Inc(!d.Is(dinst.Transient))
			u.storeSet.StldViolation(d, load)
			u.proc.Replay(load)
		}
	}

	u.at(u.port.NextSlot(true)+u.lat, d, u.Executed)
}

// Executed lets the next store of the set go.
func (u *Store) Executed(d *dinst.Dinst) {
	if !isAddrOnly(d) {
		u.storeSet.Remove(d)
	}

	u.cluster.Executed(d)
}

// Preretire moves the store into the store buffer. It waits while the
// buffer cannot take the line or the cache is busy with it.
func (u *Store) Preretire(d *dinst.Dinst, flushing bool) bool {
	if flushing {
		u.release(d)
		return true
	}

	if !d.Is(dinst.Executed) {
		return false
	}

	if isAddrOnly(d) {
		d.Set(dinst.Performed)
		return true
	}

	if u.scb != nil {
		if !u.scb.CanAcceptStore(d.Addr, d.Size) {
			u.nSCBFull.Inc(true)
			return false
		}

		if u.dl1 != nil && u.dl1.IsBusy(d.Addr) {
			return false
		}

		u.scb.AddStore(d.Addr, d.Size, d.PC, true)
	}

	d.Set(dinst.Performed)
	u.release(d)

	return true
}

// Retire leaves the LSQ.
func (u *Store) Retire(d *dinst.Dinst, _ bool) bool {
	u.lsq.Remove(d)
	u.storeSet.Remove(d)
	u.release(d)
	u.sample(d)

	return true
}

// TryFlushed removes d from the LSQ and its store set.
func (u *Store) TryFlushed(d *dinst.Dinst) {
	u.lsq.Remove(d)
	u.storeSet.Remove(d)
	u.release(d)
}
