package lsq_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/lsq"
)

func load(pool *dinst.Pool, pc, addr uint64) *dinst.Dinst {
	inst := insts.New(insts.OpLALULoad, insts.IntReg(1), insts.RegR0, insts.IntReg(2), insts.RegInvalidOutput)
	return pool.Create(inst, pc, addr, 0)
}

func store(pool *dinst.Pool, pc, addr uint64) *dinst.Dinst {
	inst := insts.New(insts.OpSALUStore, insts.IntReg(1), insts.IntReg(3), insts.RegInvalidOutput, insts.RegInvalidOutput)
	return pool.Create(inst, pc, addr, 0)
}

var _ = Describe("LSQ", func() {
	var (
		pool *dinst.Pool
		q    *lsq.LSQ
	)

	BeforeEach(func() {
		pool = dinst.NewPool()
		q = lsq.New(4, pool)
	})

	It("should track capacity", func() {
		ds := []*dinst.Dinst{}
		for i := 0; i < 4; i++ {
			d := load(pool, 0x100, uint64(0x1000+8*i))
			q.Insert(d)
			ds = append(ds, d)
		}

		Expect(q.HasFreeEntries()).To(BeFalse())
		Expect(func() { q.Insert(load(pool, 0x100, 0x2000)) }).To(Panic())

		q.Remove(ds[0])

		Expect(q.HasFreeEntries()).To(BeTrue())
		Expect(q.Len()).To(Equal(3))
	})

	It("should never fill when unlimited", func() {
		q = lsq.New(0, pool)
		for i := 0; i < 100; i++ {
			q.Insert(load(pool, 0x100, uint64(8*i)))
		}

		Expect(q.HasFreeEntries()).To(BeTrue())
	})

	It("should ignore removing an instruction it does not hold", func() {
		d := load(pool, 0x100, 0x1000)
		q.Remove(d)

		Expect(q.Len()).To(BeZero())
		Expect(q.HasFreeEntries()).To(BeTrue())
	})

	It("should panic on a double insert", func() {
		d := load(pool, 0x100, 0x1000)
		q.Insert(d)

		Expect(func() { q.Insert(d) }).To(Panic())
	})

	Context("when a store executes after a younger load", func() {
		var (
			st  *dinst.Dinst
			ld1 *dinst.Dinst
			ld2 *dinst.Dinst
		)

		BeforeEach(func() {
			st = store(pool, 0x100, 0x1000)
			ld1 = load(pool, 0x104, 0x1004)
			ld2 = load(pool, 0x108, 0x1000)
			q.Insert(st)
			q.Insert(ld1)
			q.Insert(ld2)
		})

		It("should return the oldest bypassing load", func() {
			ld1.Set(dinst.Executing)
			ld2.Set(dinst.Executing | dinst.Executed)

			Expect(q.Executing(st)).To(BeIdenticalTo(ld1))
		})

		It("should not flag loads that have not started", func() {
			Expect(q.Executing(st)).To(BeNil())
		})

		It("should skip squashed loads", func() {
			ld1.Set(dinst.Executing | dinst.Squashed)
			ld2.Set(dinst.Executing)

			Expect(q.Executing(st)).To(BeIdenticalTo(ld2))
		})

		It("should not flag loads to another word", func() {
			other := load(pool, 0x10c, 0x1008)
			q.Insert(other)
			other.Set(dinst.Executing)

			Expect(q.Executing(st)).To(BeNil())
		})
	})

	Context("when accesses straddle a word boundary", func() {
		It("should flag a younger load that overlaps the store's second word", func() {
			st := store(pool, 0x100, 0x1004)
			ld := load(pool, 0x104, 0x1008)
			q.Insert(st)
			q.Insert(ld)
			ld.Set(dinst.Executing | dinst.Executed)

			Expect(q.Executing(st)).To(BeIdenticalTo(ld))
		})

		It("should flag a straddling load that overlaps the store's word", func() {
			st := store(pool, 0x100, 0x1008)
			ld := load(pool, 0x104, 0x1004)
			q.Insert(st)
			q.Insert(ld)
			ld.Set(dinst.Executing)

			Expect(q.Executing(st)).To(BeIdenticalTo(ld))
		})

		It("should drop a straddling access from every word on removal", func() {
			st := store(pool, 0x100, 0x1004)
			ld := load(pool, 0x104, 0x1008)
			q.Insert(st)
			q.Insert(ld)
			ld.Set(dinst.Executing)

			q.Remove(ld)

			Expect(q.Executing(st)).To(BeNil())
			Expect(q.Len()).To(Equal(1))
			Expect(q.HasFreeEntries()).To(BeTrue())
		})
	})

	It("should never replay on behalf of a load", func() {
		ld := load(pool, 0x100, 0x1000)
		st := store(pool, 0x104, 0x1000)
		q.Insert(ld)
		q.Insert(st)

		Expect(q.Executing(ld)).To(BeNil())
	})

	It("should mark a load behind an executed store as forwarded", func() {
		st := store(pool, 0x100, 0x1000)
		ld := load(pool, 0x104, 0x1000)
		q.Insert(st)
		q.Insert(ld)
		st.Set(dinst.Executed)

		q.Executing(ld)

		Expect(ld.Is(dinst.LoadForwarded)).To(BeTrue())
	})

	It("should not forward from a store that has not executed", func() {
		st := store(pool, 0x100, 0x1000)
		ld := load(pool, 0x104, 0x1000)
		q.Insert(st)
		q.Insert(ld)

		q.Executing(ld)

		Expect(ld.Is(dinst.LoadForwarded)).To(BeFalse())
	})
})

var _ = Describe("StoreSet", func() {
	var (
		pool *dinst.Pool
		ss   *lsq.StoreSet
	)

	BeforeEach(func() {
		pool = dinst.NewPool()
		ss = lsq.NewStoreSet(1024, 128, 0, pool)
	})

	It("should leave unknown PCs without a set", func() {
		d := load(pool, 0x100, 0x1000)
		ss.Insert(d)

		Expect(d.SSID).To(Equal(-1))
		Expect(d.HasPending()).To(BeFalse())
	})

	It("should order a load after a store it once bypassed", func() {
		st := store(pool, 0x100, 0x1000)
		ld := load(pool, 0x200, 0x1000)
		ss.StldViolation(st, ld)

		Expect(ss.SSID(0x100)).To(BeNumerically(">=", 0))
		Expect(ss.SSID(0x200)).To(Equal(ss.SSID(0x100)))

		st2 := store(pool, 0x100, 0x1000)
		ld2 := load(pool, 0x200, 0x1000)
		ss.Insert(st2)
		ss.Insert(ld2)

		Expect(ld2.HasPending()).To(BeTrue())
		Expect(st2.HasConsumers()).To(BeTrue())
	})

	It("should not wait on a store that already executed", func() {
		ss.StldViolation(store(pool, 0x100, 0), load(pool, 0x200, 0))

		st := store(pool, 0x100, 0x1000)
		ss.Insert(st)
		st.Set(dinst.Executed)
		ld := load(pool, 0x200, 0x1000)
		ss.Insert(ld)

		Expect(ld.HasPending()).To(BeFalse())
	})

	It("should stop ordering after the store is removed", func() {
		ss.StldViolation(store(pool, 0x100, 0), load(pool, 0x200, 0))

		st := store(pool, 0x100, 0x1000)
		ss.Insert(st)
		ss.Remove(st)
		ld := load(pool, 0x200, 0x1000)
		ss.Insert(ld)

		Expect(ld.HasPending()).To(BeFalse())
	})

	It("should merge two sets into the smaller id", func() {
		ss.StldViolation(store(pool, 0x100, 0), load(pool, 0x200, 0))
		ss.StldViolation(store(pool, 0x300, 0), load(pool, 0x400, 0))
		a, b := ss.SSID(0x100), ss.SSID(0x300)
		Expect(a).NotTo(Equal(b))

		ss.StldViolation(store(pool, 0x300, 0), load(pool, 0x200, 0))

		Expect(ss.SSID(0x300)).To(Equal(min(a, b)))
		Expect(ss.SSID(0x200)).To(Equal(min(a, b)))
	})

	It("should clear periodically", func() {
		ss = lsq.NewStoreSet(1024, 128, 100, pool)
		ss.StldViolation(store(pool, 0x100, 0), load(pool, 0x200, 0))

		Expect(ss.MaybeClear(50)).To(BeFalse())
		Expect(ss.SSID(0x100)).NotTo(Equal(-1))

		Expect(ss.MaybeClear(100)).To(BeTrue())
		Expect(ss.SSID(0x100)).To(Equal(-1))
	})

	It("should reject table sizes that are not powers of two", func() {
		Expect(func() { lsq.NewStoreSet(1000, 128, 0, pool) }).To(Panic())
	})
})
