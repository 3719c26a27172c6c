// Package lsq detects memory-order violations between the loads and stores
// of one core and predicts which of them must be ordered.
package lsq

import (
	"log"

	"github.com/sarchlab/ooosim/timing/dinst"
)

// WordBits is the address granularity of conflict detection.
const WordBits = 3

// LSQ holds the in-flight memory instructions of one core, grouped by word
// address. An access that spans several words is listed under each of them.
type LSQ struct {
	size int
	free int

	words map[uint64][]dinst.Handle
	where map[dinst.Handle]wordRange

	pool *dinst.Pool
}

// New creates a queue with size entries; zero means unlimited.
func New(size int, pool *dinst.Pool) *LSQ {
	if size < 0 {
		log.Panicf("lsq: negative size %d", size)
	}

	return &LSQ{
		size:  size,
		free:  size,
		words: make(map[uint64][]dinst.Handle),
		where: make(map[dinst.Handle]wordRange),
		pool:  pool,
	}
}

// Len returns the number of queued instructions.
func (q *LSQ) Len() int { return len(q.where) }

// HasFreeEntries reports whether another instruction fits.
func (q *LSQ) HasFreeEntries() bool {
	return q.size == 0 || q.free > 0
}

func word(addr uint64) uint64 {
	return addr >> WordBits
}

type wordRange struct {
	first, last uint64
}

func wordsOf(d *dinst.Dinst) wordRange {
	size := uint64(max(d.Size, 1))
	return wordRange{first: word(d.Addr), last: word(d.Addr + size - 1)}
}

// Insert enqueues d. It panics if the queue is full or d is queued.
func (q *LSQ) Insert(d *dinst.Dinst) {
	if !q.HasFreeEntries() {
		log.Panicf("lsq: insert %v into a full queue", d)
	}

	h := d.Handle()
	if _, ok := q.where[h]; ok {
		log.Panicf("lsq: %v inserted twice", d)
	}

	r := wordsOf(d)
	for w := r.first; w <= r.last; w++ {
		q.words[w] = append(q.words[w], h)
	}
	q.where[h] = r

	if q.size > 0 {
		q.free--
	}
}

// Remove dequeues d if it is queued.
func (q *LSQ) Remove(d *dinst.Dinst) {
	h := d.Handle()

	r, ok := q.where[h]
	if !ok {
		return
	}

	delete(q.where, h)

	for w := r.first; w <= r.last; w++ {
		q.unlink(w, h)
	}

	if q.size > 0 {
		q.free++
	}
}

func (q *LSQ) unlink(w uint64, h dinst.Handle) {
	list := q.words[w]
	for i, e := range list {
		if e == h {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}

	if len(list) == 0 {
		delete(q.words, w)
	} else {
		q.words[w] = list
	}
}

// Contains reports whether d is queued.
func (q *LSQ) Contains(d *dinst.Dinst) bool {
	_, ok := q.where[d.Handle()]
	return ok
}

// Executing checks d against the other queued instructions that share a
// word with it and returns the load that must be replayed, or nil.
//
// A store that executes after an overlapping younger load has already
// started has been bypassed; the oldest such load is returned. A load that
// finds an overlapping older executed store is marked LoadForwarded.
func (q *LSQ) Executing(d *dinst.Dinst) *dinst.Dinst {
	var faulty *dinst.Dinst

	isStore := d.Op().IsStore()
	isLoad := d.Op().IsLoad()

	r := wordsOf(d)
	for w := r.first; w <= r.last; w++ {
		faulty = q.check(d, w, isStore, isLoad, faulty)
	}

	return faulty
}

func (q *LSQ) check(d *dinst.Dinst, w uint64, isStore, isLoad bool, faulty *dinst.Dinst) *dinst.Dinst {
	for _, h := range q.words[w] {
		other := q.pool.Resolve(h)
		if other == nil || other == d || other.Is(dinst.Squashed) {
			continue
		}

		if other.ID() > d.ID() {
			if isStore && other.Op().IsLoad() && other.IsAny(dinst.Executing|dinst.Executed) {
				if faulty == nil || other.ID() < faulty.ID() {
					faulty = other
				}
			}

			continue
		}

		if isLoad && other.Op().IsStore() && other.Is(dinst.Executed) {
			d.Set(dinst.LoadForwarded)
		}
	}

	return faulty
}
