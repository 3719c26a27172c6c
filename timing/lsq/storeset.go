package lsq

import (
	"log"

	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
)

// StoreSet predicts memory dependences with a store-set id table, indexed
// by PC, and a last-fetched-store table, indexed by set id.
type StoreSet struct {
	ssit []int
	lfst []dinst.Handle

	nextSSID int

	clearInterval event.Cycle
	lastClear     event.Cycle

	pool *dinst.Pool
}

// NewStoreSet creates the predictor. Both sizes must be powers of two. A
// clearInterval of zero never clears the tables.
func NewStoreSet(
	ssitSize, lfstSize int,
	clearInterval event.Cycle,
	pool *dinst.Pool,
) *StoreSet {
	for _, n := range []int{ssitSize, lfstSize} {
		if n <= 0 || n&(n-1) != 0 {
			log.Panicf("lsq: store-set table size %d is not a power of two", n)
		}
	}

	s := &StoreSet{
		ssit:          make([]int, ssitSize),
		lfst:          make([]dinst.Handle, lfstSize),
		clearInterval: clearInterval,
		pool:          pool,
	}
	s.Clear()

	return s
}

func (s *StoreSet) index(pc uint64) int {
	return int((pc>>2)^(pc>>12)) & (len(s.ssit) - 1)
}

// SSID returns the set the instruction at pc belongs to, or -1.
func (s *StoreSet) SSID(pc uint64) int {
	return s.ssit[s.index(pc)]
}

// Clear forgets every set.
func (s *StoreSet) Clear() {
	for i := range s.ssit {
		s.ssit[i] = -1
	}

	for i := range s.lfst {
		s.lfst[i] = dinst.Handle{}
	}
}

// MaybeClear clears the tables once every clear interval.
func (s *StoreSet) MaybeClear(now event.Cycle) bool {
	if s.clearInterval == 0 || now-s.lastClear < s.clearInterval {
		return false
	}

	s.lastClear = now
	s.Clear()

	return true
}

// Insert assigns d its set and makes it wait on the last in-flight store of
// that set. A store becomes the set's last store.
func (s *StoreSet) Insert(d *dinst.Dinst) {
	ssid := s.SSID(d.PC)
	if ssid < 0 {
		return
	}

	d.SSID = ssid

	if last := s.pool.Resolve(s.lfst[ssid]); last != nil && last != d &&
		!last.IsAny(dinst.Executed|dinst.Squashed) && !last.HasConsumer(d) {
		last.AddConsumer(dinst.SlotSrc3, d)
	}

	if d.Op().IsStore() {
		s.lfst[ssid] = d.Handle()
	}
}

// Remove drops d from the last-fetched-store table.
func (s *StoreSet) Remove(d *dinst.Dinst) {
	if d.SSID < 0 || d.SSID >= len(s.lfst) {
		return
	}

	if s.lfst[d.SSID] == d.Handle() {
		s.lfst[d.SSID] = dinst.Handle{}
	}
}

// StldViolation puts a store and the load that bypassed it into one set.
func (s *StoreSet) StldViolation(store, load *dinst.Dinst) {
	si, li := s.index(store.PC), s.index(load.PC)
	sid, lid := s.ssit[si], s.ssit[li]

	switch {
	case sid < 0 && lid < 0:
		id := s.allocate()
		s.ssit[si], s.ssit[li] = id, id
	case sid < 0:
		s.ssit[si] = lid
	case lid < 0:
		s.ssit[li] = sid
	default:
		id := min(sid, lid)
		s.ssit[si], s.ssit[li] = id, id
	}
}

func (s *StoreSet) allocate() int {
	id := s.nextSSID
	s.nextSSID = (s.nextSSID + 1) & (len(s.lfst) - 1)
	s.lfst[id] = dinst.Handle{}

	return id
}
