// Package emu provides the instruction sources that feed the timing model.
//
// A source hands out the dynamic instruction stream of each hardware thread
// one record at a time. The timing model only ever asks a source for the
// next record or for a rewind to an earlier sequence number after a replay,
// so a source must be able to produce the same suffix of the stream again.
package emu

import (
	"fmt"
	"log"

	"github.com/sarchlab/ooosim/insts"
)

// Record is one executed instruction as seen by the timing model.
type Record struct {
	// Seq is the position of the record in its thread's stream.
	Seq uint64
	// PC is the program counter.
	PC uint64
	// Inst is the static instruction.
	Inst insts.Instruction
	// Addr is the effective address of a memory op or the resolved target
	// of a control-flow op.
	Addr uint64
	// Size is the access width of a memory op in bytes.
	Size int
	// Taken is the resolved direction of a control-flow op.
	Taken bool
	// Transient marks wrong-path work that never commits.
	Transient bool
	// Syscall marks environment calls.
	Syscall bool
}

func (r Record) String() string {
	return fmt.Sprintf("#%d pc=0x%x %v addr=0x%x", r.Seq, r.PC, r.Inst, r.Addr)
}

// Source produces the instruction stream of each hardware thread.
type Source interface {
	// Next returns the next record of thread hid, or false when the thread
	// has no more records.
	Next(hid int) (Record, bool)

	// Rewind makes Next return the record with sequence number seq again.
	Rewind(hid int, seq uint64)
}

// Stream is a Source backed by in-memory records, one slice per thread.
type Stream struct {
	threads [][]Record
	pos     []int
}

// NewStream creates a stream over the given threads. Sequence numbers are
// assigned from each record's position in its thread.
func NewStream(threads ...[]Record) *Stream {
	s := &Stream{
		threads: make([][]Record, len(threads)),
		pos:     make([]int, len(threads)),
	}

	for hid, recs := range threads {
		own := make([]Record, len(recs))
		copy(own, recs)

		for i := range own {
			own[i].Seq = uint64(i)
		}

		s.threads[hid] = own
	}

	return s
}

// Threads returns the number of hardware threads.
func (s *Stream) Threads() int {
	return len(s.threads)
}

// Len returns the number of records of thread hid.
func (s *Stream) Len(hid int) int {
	return len(s.threads[hid])
}

// Remaining returns how many records Next still returns for thread hid.
func (s *Stream) Remaining(hid int) int {
	return len(s.threads[hid]) - s.pos[hid]
}

// Next returns the next record of thread hid.
func (s *Stream) Next(hid int) (Record, bool) {
	if hid >= len(s.threads) || s.pos[hid] >= len(s.threads[hid]) {
		return Record{}, false
	}

	r := s.threads[hid][s.pos[hid]]
	s.pos[hid]++

	return r, true
}

// Rewind moves thread hid back to sequence number seq.
func (s *Stream) Rewind(hid int, seq uint64) {
	if seq > uint64(s.pos[hid]) {
		log.Panicf("emu: cannot rewind thread %d forward to %d, at %d",
			hid, seq, s.pos[hid])
	}

	s.pos[hid] = int(seq)
}
