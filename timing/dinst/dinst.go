// Package dinst provides dynamic instructions: the in-flight occurrences of
// static instructions that move through the timing model.
//
// Dynamic instructions live in a Pool and are recycled after retirement.
// Anything that may outlive an instruction, such as a register alias table
// entry, a dependency list entry, or a deferred callback, holds a Handle
// instead of a pointer. A handle carries the generation of the slot it was
// taken from, so resolving it after the slot is recycled yields nil.
package dinst

import (
	"fmt"
	"log"

	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/event"
)

// ID is the program-order id of a dynamic instruction. IDs are unique and
// strictly increasing in creation order; zero is never used.
type ID uint64

// Handle is a weak reference to a pooled dynamic instruction.
type Handle struct {
	idx uint32
	gen uint32
}

// IsNil reports whether the handle refers to nothing.
func (h Handle) IsNil() bool {
	return h.gen == 0
}

// Flags holds the lifecycle and classification bits of an instruction.
type Flags uint32

// Lifecycle and classification flags.
const (
	Renamed Flags = 1 << iota
	Issued
	Executing
	Executed
	Performed
	Preretired
	Retired
	Transient  // wrong-path work that never commits
	Safe       // reached the point of no return
	Spec       // younger than an unresolved branch
	Dispatched // memory request sent to the cache
	Replay     // target of a memory-order replay
	Squashed   // discarded by a replay
	LoadForwarded
	BranchMiss
	Serializing
	Syscall
)

// Credit names a resource an instruction may hold. Each credit is taken and
// returned exactly once.
type Credit uint8

// Credits.
const (
	CreditCoreReg Credit = 1 << iota
	CreditClusterReg
	CreditWindow
	CreditLoadQueue
	CreditStoreQueue
	CreditBranch
)

// Dependency slots. Slot 2 carries ordering-only edges such as store-set
// and serialization chains.
const (
	SlotSrc1 = 0
	SlotSrc2 = 1
	SlotSrc3 = 2
)

type consumer struct {
	h    Handle
	slot uint8
}

// Dinst is one dynamic instruction.
type Dinst struct {
	handle Handle
	id     ID
	live   bool

	inst    insts.Instruction
	flags   Flags
	credits Credit

	pending  int
	waitMask uint8
	pend     []consumer

	// Seq is the position of the instruction in its source stream.
	Seq uint64
	// HID is the hardware thread the instruction belongs to.
	HID int
	// PC is the program counter.
	PC uint64
	// Addr is the effective address of memory ops and the resolved target
	// of control-flow ops.
	Addr uint64
	// Size is the memory access width in bytes.
	Size int
	// Taken is the resolved direction of a control-flow op.
	Taken bool
	// SSID is the store-set id, or -1 when the instruction has no set.
	SSID int

	FetchTime     event.Cycle
	RenameTime    event.Cycle
	IssueTime     event.Cycle
	ExecutingTime event.Cycle
	ExecutedTime  event.Cycle
}

// Handle returns a weak reference to the instruction.
func (d *Dinst) Handle() Handle { return d.handle }

// ID returns the program-order id.
func (d *Dinst) ID() ID { return d.id }

// Inst returns the static instruction.
func (d *Dinst) Inst() insts.Instruction { return d.inst }

// Op returns the opcode class.
func (d *Dinst) Op() insts.Op { return d.inst.Op }

// Is reports whether every bit of f is set.
func (d *Dinst) Is(f Flags) bool { return d.flags&f == f }

// IsAny reports whether any bit of f is set.
func (d *Dinst) IsAny(f Flags) bool { return d.flags&f != 0 }

// Set sets the bits of f.
func (d *Dinst) Set(f Flags) { d.flags |= f }

// Clear clears the bits of f.
func (d *Dinst) Clear(f Flags) { d.flags &^= f }

// Holds reports whether the instruction currently holds credit c.
func (d *Dinst) Holds(c Credit) bool { return d.credits&c != 0 }

// Take records that the instruction acquired credit c.
func (d *Dinst) Take(c Credit) {
	if d.credits&c != 0 {
		log.Panicf("dinst %d: credit %#x taken twice", d.id, c)
	}

	d.credits |= c
}

// Release clears credit c and reports whether it was held. Callers return
// the credit to its pool only when Release returns true.
func (d *Dinst) Release(c Credit) bool {
	if d.credits&c == 0 {
		return false
	}

	d.credits &^= c

	return true
}

// HasPending reports whether some source is still unresolved.
func (d *Dinst) HasPending() bool { return d.pending > 0 }

// HasConsumers reports whether some instruction waits on this one.
func (d *Dinst) HasConsumers() bool { return len(d.pend) > 0 }

// HasConsumer reports whether c already waits on d through any slot.
func (d *Dinst) HasConsumer(c *Dinst) bool {
	for _, e := range d.pend {
		if e.h == c.handle {
			return true
		}
	}

	return false
}

// AddConsumer makes c wait on d through the given source slot.
func (d *Dinst) AddConsumer(slot int, c *Dinst) {
	if slot < SlotSrc1 || slot > SlotSrc3 {
		log.Panicf("dinst %d: bad dependency slot %d", d.id, slot)
	}

	if c.id <= d.id {
		log.Panicf("dinst %d: consumer %d is not younger", d.id, c.id)
	}

	// The ordering slot may collect several edges. Register slots hold one.
	bit := uint8(1) << slot
	if slot != SlotSrc3 && c.waitMask&bit != 0 {
		log.Panicf("dinst %d: consumer %d already waits on slot %d", d.id, c.id, slot)
	}

	for _, e := range d.pend {
		if e.h == c.handle && int(e.slot) == slot {
			log.Panicf("dinst %d: consumer %d listed twice", d.id, c.id)
		}
	}

	c.waitMask |= bit
	c.pending++
	d.pend = append(d.pend, consumer{h: c.handle, slot: uint8(slot)})
}

// WakeConsumers resolves every consumer waiting on d and calls ready for
// each one that has no pending source left. Consumers already recycled are
// skipped.
func (d *Dinst) WakeConsumers(pool *Pool, ready func(*Dinst)) {
	list := d.pend
	d.pend = nil

	for _, e := range list {
		c := pool.Resolve(e.h)
		if c == nil {
			continue
		}

		c.waitMask &^= uint8(1) << e.slot
		c.pending--
		if c.pending < 0 {
			log.Panicf("dinst %d: negative pending count", c.id)
		}

		if c.pending == 0 && ready != nil {
			ready(c)
		}
	}
}

func (d *Dinst) String() string {
	return fmt.Sprintf("%d:%#x %v", d.id, d.PC, d.inst)
}
