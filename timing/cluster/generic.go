package cluster

import (
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/stats"
)

// SyscallBlock is how long a syscall keeps the RALU from issuing.
const SyscallBlock event.Cycle = 100

// Generic executes arithmetic ops: one port slot plus a fixed latency.
type Generic struct {
	unit
}

// CanIssue never stalls.
func (u *Generic) CanIssue(*dinst.Dinst) StallCause { return NoStall }

// AddInst reserves nothing.
func (u *Generic) AddInst(*dinst.Dinst) {}

// Executing schedules the result after the port slot and the latency.
func (u *Generic) Executing(d *dinst.Dinst) {
	u.cluster.Executing(d)
	u.at(u.port.NextSlot(true)+u.lat, d, u.Executed)
}

// Executed marks d done.
func (u *Generic) Executed(d *dinst.Dinst) {
	d.Set(dinst.Performed)
	u.cluster.Executed(d)
}

// Preretire waits for the result.
func (u *Generic) Preretire(d *dinst.Dinst, flushing bool) bool {
	return flushing || d.Is(dinst.Executed)
}

// Retire samples the latencies of d.
func (u *Generic) Retire(d *dinst.Dinst, _ bool) bool {
	u.sample(d)
	return true
}

// TryFlushed has nothing to drop.
func (u *Generic) TryFlushed(*dinst.Dinst) {}

// RALU executes serializing ops. A syscall blocks issue for SyscallBlock
// cycles. A barrier, an op with no destination register, is counted
// whenever it issues behind older work.
type RALU struct {
	Generic

	blocked    bool
	blockUntil event.Cycle

	nSyscall *stats.Counter
	nBarrier *stats.Counter
}

// CanIssue holds a syscall back until the block expires.
func (u *RALU) CanIssue(d *dinst.Dinst) StallCause {
	now := u.sched.Now()

	if d.Is(dinst.Syscall) {
		if !u.blocked {
			u.blocked = true
			u.blockUntil = now + SyscallBlock
			u.nSyscall.Inc(true)

			return Syscall
		}

		if now < u.blockUntil {
			return Syscall
		}

		u.blocked = false

		return NoStall
	}

	if !d.Inst().HasDstRegister() && !u.proc.IsROBEmpty() {
		u.nBarrier.Inc(true)
	}

	return NoStall
}
