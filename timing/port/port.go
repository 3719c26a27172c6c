// Package port models the occupancy of a functional-unit group.
//
// A Port answers one question: when is the next cycle at which this group
// can accept another operation? Each call to NextSlot reserves the slot it
// returns.
package port

import (
	"log"

	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/stats"
)

// Port is an occupancy timer for one group of functional units.
type Port interface {
	// Name returns the port's statistics name.
	Name() string

	// NextSlot reserves and returns the next free cycle. The wait is
	// sampled into the port's occupancy average when sample is true.
	NextSlot(sample bool) event.Cycle

	// IsBusyFor reports whether the group stays occupied for at least clk
	// more cycles.
	IsBusyFor(clk event.Cycle) bool
}

// New picks the cheapest port model for the unit count and occupancy:
// Unlimited for zero units, FullyPipe for one fully pipelined unit, NPipe
// for several fully pipelined units, and Occupancy when an operation holds
// its unit for more than one cycle.
func New(
	name string,
	clock event.Clock,
	nUnits, occ int,
	reg *stats.Registry,
) Port {
	if nUnits < 0 {
		log.Panicf("port %s: negative unit count %d", name, nUnits)
	}

	b := base{
		name:  name + "_occ",
		clock: clock,
		avg:   reg.Average(name + "_occ"),
	}

	switch {
	case nUnits == 0:
		return &Unlimited{base: b}
	case occ > 1:
		return newOccupancy(b, nUnits, occ)
	case nUnits == 1:
		return &FullyPipe{base: b, lTime: clock.Now()}
	default:
		return &NPipe{
			base:           b,
			nUnitsMinusOne: nUnits - 1,
			freeUnits:      nUnits,
			lTime:          clock.Now(),
		}
	}
}

type base struct {
	name  string
	clock event.Clock
	avg   *stats.Average
}

func (b *base) Name() string { return b.name }

func (b *base) sample(slot event.Cycle, enabled bool) {
	b.avg.Sample(float64(slot-b.clock.Now()), enabled)
}

// Unlimited never delays an operation.
type Unlimited struct {
	base
}

// NextSlot always returns the current cycle.
func (p *Unlimited) NextSlot(sample bool) event.Cycle {
	now := p.clock.Now()
	p.sample(now, sample)

	return now
}

// IsBusyFor is always false.
func (p *Unlimited) IsBusyFor(event.Cycle) bool {
	return false
}

// FullyPipe is one fully pipelined unit that accepts one operation per
// cycle.
type FullyPipe struct {
	base
	lTime event.Cycle
}

// NextSlot returns the next unreserved cycle and reserves it.
func (p *FullyPipe) NextSlot(sample bool) event.Cycle {
	now := p.clock.Now()
	if p.lTime < now {
		p.lTime = now
	}

	p.sample(p.lTime, sample)
	slot := p.lTime
	p.lTime++

	return slot
}

// IsBusyFor reports whether the unit is reserved clk cycles ahead.
func (p *FullyPipe) IsBusyFor(clk event.Cycle) bool {
	return p.lTime >= p.clock.Now()+clk
}

// NPipe is a group of fully pipelined units that accepts N operations per
// cycle.
type NPipe struct {
	base
	nUnitsMinusOne int
	freeUnits      int
	lTime          event.Cycle
}

// NextSlot returns the current slot while free sub-units remain in it and
// moves to the following cycle once they are exhausted.
func (p *NPipe) NextSlot(sample bool) event.Cycle {
	now := p.clock.Now()

	switch {
	case p.lTime < now:
		p.lTime = now
		p.freeUnits = p.nUnitsMinusOne
	case p.freeUnits > 0:
		p.freeUnits--
	default:
		p.lTime++
		p.freeUnits = p.nUnitsMinusOne
	}

	p.sample(p.lTime, sample)

	return p.lTime
}

// IsBusyFor reports whether the group is reserved clk cycles ahead.
func (p *NPipe) IsBusyFor(clk event.Cycle) bool {
	return p.lTime >= p.clock.Now()+clk
}

// Occupancy is a group of units where each operation holds its unit for occ
// cycles.
type Occupancy struct {
	base
	occ  event.Cycle
	free []event.Cycle
}

func newOccupancy(b base, nUnits, occ int) *Occupancy {
	p := &Occupancy{
		base: b,
		occ:  event.Cycle(occ),
		free: make([]event.Cycle, nUnits),
	}

	for i := range p.free {
		p.free[i] = b.clock.Now()
	}

	return p
}

// NextSlot picks the unit that frees up first and holds it for occ cycles.
func (p *Occupancy) NextSlot(sample bool) event.Cycle {
	now := p.clock.Now()

	best := 0
	for i, t := range p.free {
		if t < p.free[best] {
			best = i
		}
	}

	slot := p.free[best]
	if slot < now {
		slot = now
	}

	p.free[best] = slot + p.occ
	p.sample(slot, sample)

	return slot
}

// IsBusyFor reports whether every unit is held clk cycles ahead.
func (p *Occupancy) IsBusyFor(clk event.Cycle) bool {
	limit := p.clock.Now() + clk
	for _, t := range p.free {
		if t <= limit {
			return false
		}
	}

	return true
}
