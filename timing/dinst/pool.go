package dinst

import (
	"log"

	"github.com/sarchlab/ooosim/insts"
)

// Pool owns every dynamic instruction of one core.
type Pool struct {
	slots  []*Dinst
	free   []uint32
	nextID ID
	live   int
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{nextID: 1}
}

// Create takes a slot from the pool and returns a fresh instruction with the
// next program-order id.
func (p *Pool) Create(inst insts.Instruction, pc, addr uint64, hid int) *Dinst {
	var d *Dinst

	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		d = p.slots[idx]
	} else {
		idx := uint32(len(p.slots))
		d = &Dinst{handle: Handle{idx: idx}}
		p.slots = append(p.slots, d)
	}

	gen := d.handle.gen + 1
	if gen == 0 {
		gen = 1
	}

	pend := d.pend[:0]
	*d = Dinst{
		handle: Handle{idx: d.handle.idx, gen: gen},
		id:     p.nextID,
		live:   true,
		inst:   inst,
		pend:   pend,
		HID:    hid,
		PC:     pc,
		Addr:   addr,
		Size:   8,
		SSID:   -1,
	}

	p.nextID++
	p.live++

	return d
}

// Resolve returns the instruction h refers to, or nil if the slot was
// recycled since the handle was taken.
func (p *Pool) Resolve(h Handle) *Dinst {
	if h.IsNil() || int(h.idx) >= len(p.slots) {
		return nil
	}

	d := p.slots[h.idx]
	if !d.live || d.handle.gen != h.gen {
		return nil
	}

	return d
}

// MustResolve is Resolve for handles that cannot be stale.
func (p *Pool) MustResolve(h Handle) *Dinst {
	d := p.Resolve(h)
	if d == nil {
		log.Panicf("dinst: stale handle %+v", h)
	}

	return d
}

// Destroy returns d to the pool. Handles to d stop resolving.
func (p *Pool) Destroy(d *Dinst) {
	if !d.live || p.slots[d.handle.idx] != d {
		log.Panicf("dinst %d: destroyed twice", d.id)
	}

	if d.credits != 0 {
		log.Panicf("dinst %d: destroyed while holding credits %#x", d.id, d.credits)
	}

	d.live = false
	d.pend = d.pend[:0]
	p.free = append(p.free, d.handle.idx)
	p.live--
}

// Live returns the number of instructions not yet destroyed.
func (p *Pool) Live() int {
	return p.live
}

// NextID returns the id the next created instruction will get.
func (p *Pool) NextID() ID {
	return p.nextID
}
