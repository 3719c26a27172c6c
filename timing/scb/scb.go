// Package scb provides the speculative store/commit buffer that sits between
// a core's store unit and its first private cache.
//
// Stores enter the buffer at the point of no return and immediately ask the
// cache for write ownership of their line. Until ownership arrives, the line
// is invisible to the rest of the hierarchy, but loads from the same core
// can be forwarded from it. Lines that hold ownership are clean and are the
// only ones the buffer may drop to make room.
package scb

import (
	"fmt"
	"log"

	"github.com/sarchlab/ooosim/timing/event"
)

// LineState is the coherence progress of a buffered line.
type LineState uint8

// Line states, in the only order a line may move through them.
const (
	Uncoherent LineState = iota
	WaitingWriteback
	Clean
)

func (s LineState) String() string {
	switch s {
	case Uncoherent:
		return "Uncoherent"
	case WaitingWriteback:
		return "WaitingWriteback"
	case Clean:
		return "Clean"
	default:
		return fmt.Sprintf("LineState(%d)", uint8(s))
	}
}

// OwnershipRequester obtains write ownership of a line from the cache below
// the buffer and calls done once it is granted.
type OwnershipRequester interface {
	RequestOwnership(addr, pc uint64, keepStats bool, done func())
}

// Line is one buffered cache line.
type Line struct {
	Addr   uint64
	State  LineState
	stored []bool
}

func (l *Line) store(offset, size int) {
	for i := offset; i < offset+size; i++ {
		l.stored[i] = true
	}
}

func (l *Line) covers(offset, size int) bool {
	if offset+size > len(l.stored) {
		return false
	}

	for i := offset; i < offset+size; i++ {
		if !l.stored[i] {
			return false
		}
	}

	return true
}

// StoreBuffer is one core's store/commit buffer.
type StoreBuffer struct {
	size     int
	lineSize uint64

	lines      map[uint64]*Line
	cleanLines int

	requester OwnershipRequester
	sched     *event.Scheduler
}

// New creates a buffer of size lines of lineSize bytes. A nil requester
// grants ownership one cycle after it is asked for.
func New(
	size int,
	lineSize uint64,
	requester OwnershipRequester,
	sched *event.Scheduler,
) *StoreBuffer {
	if size <= 0 {
		log.Panicf("scb: size must be positive, got %d", size)
	}

	if lineSize == 0 || lineSize&(lineSize-1) != 0 {
		log.Panicf("scb: line size %d is not a power of two", lineSize)
	}

	return &StoreBuffer{
		size:      size,
		lineSize:  lineSize,
		lines:     make(map[uint64]*Line),
		requester: requester,
		sched:     sched,
	}
}

// Size returns the configured capacity in lines.
func (b *StoreBuffer) Size() int { return b.size }

// Len returns the number of buffered lines, clean ones included.
func (b *StoreBuffer) Len() int { return len(b.lines) }

// CleanLines returns the number of lines that hold ownership.
func (b *StoreBuffer) CleanLines() int { return b.cleanLines }

// Line returns the buffered line holding addr, or nil.
func (b *StoreBuffer) Line(addr uint64) *Line {
	return b.lines[b.lineAddr(addr)]
}

func (b *StoreBuffer) lineAddr(addr uint64) uint64 {
	return addr &^ (b.lineSize - 1)
}

func (b *StoreBuffer) offset(addr uint64) int {
	return int(addr & (b.lineSize - 1))
}

// span calls fn for each line-sized piece of size bytes at addr.
func (b *StoreBuffer) span(addr uint64, size int, fn func(addr uint64, size int) bool) bool {
	if size <= 0 {
		size = 1
	}

	for size > 0 {
		n := int(b.lineSize) - b.offset(addr)
		if n > size {
			n = size
		}

		if !fn(addr, n) {
			return false
		}

		addr += uint64(n)
		size -= n
	}

	return true
}

// CanAcceptStore reports whether a size-byte store to addr may enter the
// buffer. A store to a buffered line is always accepted. Otherwise the lines
// that are not yet clean must leave room. A store that crosses into a second
// line must also leave room for every line it makes dirty.
func (b *StoreBuffer) CanAcceptStore(addr uint64, size int) bool {
	dirty := len(b.lines) - b.cleanLines

	first, last := b.lineAddr(addr), b.lineAddr(addr+uint64(max(size, 1))-1)
	if first == last {
		_, ok := b.lines[first]
		return ok || dirty < b.size
	}

	claims := 0

	b.span(addr, size, func(a uint64, _ int) bool {
		if line, ok := b.lines[b.lineAddr(a)]; !ok || line.State == Clean {
			claims++
		}

		return true
	})

	return dirty+claims <= b.size
}

// AddStore buffers size bytes written at addr and asks for ownership of
// every line the buffer does not already hold or await. A store that
// crosses a line boundary is split across both lines. The caller must have
// checked CanAcceptStore.
func (b *StoreBuffer) AddStore(addr uint64, size int, pc uint64, keepStats bool) {
	if !b.CanAcceptStore(addr, size) {
		log.Panicf("scb: store to %#x added to a full buffer", addr)
	}

	b.span(addr, size, func(a uint64, n int) bool {
		b.addToLine(a, n, pc, keepStats)
		return true
	})
}

func (b *StoreBuffer) addToLine(addr uint64, size int, pc uint64, keepStats bool) {
	key := b.lineAddr(addr)

	line, ok := b.lines[key]
	if !ok {
		if len(b.lines) >= b.size {
			b.RemoveClean()
		}

		line = &Line{
			Addr:   key,
			State:  Uncoherent,
			stored: make([]bool, b.lineSize),
		}
		line.store(b.offset(addr), size)
		b.lines[key] = line

		line.State = WaitingWriteback
		b.requestOwnership(addr, pc, keepStats)

		return
	}

	line.store(b.offset(addr), size)

	if line.State != Clean {
		return
	}

	line.State = WaitingWriteback
	b.cleanLines--
	b.requestOwnership(addr, pc, keepStats)
}

func (b *StoreBuffer) requestOwnership(addr, pc uint64, keepStats bool) {
	done := func() { b.OwnershipDone(addr) }

	if b.requester == nil {
		b.sched.Schedule(1, done)
		return
	}

	b.requester.RequestOwnership(addr, pc, keepStats, done)
}

// OwnershipDone marks the line holding addr clean.
func (b *StoreBuffer) OwnershipDone(addr uint64) {
	line, ok := b.lines[b.lineAddr(addr)]
	if !ok {
		log.Panicf("scb: ownership granted for %#x which is not buffered", addr)
	}

	if line.State != WaitingWriteback {
		log.Panicf("scb: ownership granted for %#x in state %v", addr, line.State)
	}

	line.State = Clean
	b.cleanLines++
}

// RemoveClean drops every clean line.
func (b *StoreBuffer) RemoveClean() {
	if b.cleanLines == 0 {
		log.Panic("scb: no clean line to remove")
	}

	for key, line := range b.lines {
		if line.State == Clean {
			delete(b.lines, key)
		}
	}

	b.cleanLines = 0
}

// IsLoadForward reports whether every byte of a size-byte load at addr is
// held by buffered stores. A load that crosses a line boundary needs both
// lines.
func (b *StoreBuffer) IsLoadForward(addr uint64, size int) bool {
	return b.span(addr, size, func(a uint64, n int) bool {
		line, ok := b.lines[b.lineAddr(a)]
		return ok && line.covers(b.offset(a), n)
	})
}
