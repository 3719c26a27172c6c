package dinst_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/dinst"
)

func aluInst() insts.Instruction {
	return insts.New(insts.OpAALU, insts.IntReg(1), insts.IntReg(2), insts.IntReg(3), insts.RegInvalidOutput)
}

var _ = Describe("Pool", func() {
	var pool *dinst.Pool

	BeforeEach(func() {
		pool = dinst.NewPool()
	})

	It("should hand out increasing ids", func() {
		a := pool.Create(aluInst(), 0x100, 0, 0)
		b := pool.Create(aluInst(), 0x104, 0, 0)

		Expect(a.ID()).To(BeNumerically(">", 0))
		Expect(b.ID()).To(BeNumerically(">", a.ID()))
		Expect(pool.Live()).To(Equal(2))
	})

	It("should stop resolving handles of destroyed instructions", func() {
		a := pool.Create(aluInst(), 0x100, 0, 0)
		h := a.Handle()

		Expect(pool.Resolve(h)).To(BeIdenticalTo(a))

		pool.Destroy(a)
		Expect(pool.Resolve(h)).To(BeNil())

		b := pool.Create(aluInst(), 0x104, 0, 0)
		Expect(b.Handle()).NotTo(Equal(h))
		Expect(pool.Resolve(h)).To(BeNil())
		Expect(pool.Resolve(b.Handle())).To(BeIdenticalTo(b))
	})

	It("should never resolve the nil handle", func() {
		Expect(pool.Resolve(dinst.Handle{})).To(BeNil())
		Expect(func() { pool.MustResolve(dinst.Handle{}) }).To(Panic())
	})

	It("should reset recycled slots", func() {
		a := pool.Create(aluInst(), 0x100, 0x80, 0)
		a.Set(dinst.Executed | dinst.Transient)
		pool.Destroy(a)

		b := pool.Create(aluInst(), 0x200, 0, 1)
		Expect(b.IsAny(dinst.Executed | dinst.Transient)).To(BeFalse())
		Expect(b.HID).To(Equal(1))
		Expect(b.SSID).To(Equal(-1))
	})

	It("should panic on double destroy", func() {
		a := pool.Create(aluInst(), 0x100, 0, 0)
		pool.Destroy(a)
		Expect(func() { pool.Destroy(a) }).To(Panic())
	})

	It("should refuse to destroy instructions holding credits", func() {
		a := pool.Create(aluInst(), 0x100, 0, 0)
		a.Take(dinst.CreditWindow)
		Expect(func() { pool.Destroy(a) }).To(Panic())
	})
})

var _ = Describe("Dinst", func() {
	var (
		pool     *dinst.Pool
		producer *dinst.Dinst
		consumer *dinst.Dinst
	)

	BeforeEach(func() {
		pool = dinst.NewPool()
		producer = pool.Create(aluInst(), 0x100, 0, 0)
		consumer = pool.Create(aluInst(), 0x104, 0, 0)
	})

	It("should track flags", func() {
		consumer.Set(dinst.Renamed | dinst.Issued)

		Expect(consumer.Is(dinst.Renamed)).To(BeTrue())
		Expect(consumer.Is(dinst.Renamed | dinst.Executed)).To(BeFalse())
		Expect(consumer.IsAny(dinst.Renamed | dinst.Executed)).To(BeTrue())

		consumer.Clear(dinst.Issued)
		Expect(consumer.Is(dinst.Issued)).To(BeFalse())
	})

	It("should take and release each credit once", func() {
		producer.Take(dinst.CreditClusterReg)

		Expect(producer.Holds(dinst.CreditClusterReg)).To(BeTrue())
		Expect(func() { producer.Take(dinst.CreditClusterReg) }).To(Panic())
		Expect(producer.Release(dinst.CreditClusterReg)).To(BeTrue())
		Expect(producer.Release(dinst.CreditClusterReg)).To(BeFalse())
	})

	It("should wake consumers once every source resolves", func() {
		other := pool.Create(aluInst(), 0x102, 0, 0)
		consumer2 := pool.Create(aluInst(), 0x108, 0, 0)

		producer.AddConsumer(dinst.SlotSrc1, consumer2)
		other.AddConsumer(dinst.SlotSrc2, consumer2)
		Expect(consumer2.HasPending()).To(BeTrue())

		var woken []dinst.ID
		ready := func(d *dinst.Dinst) { woken = append(woken, d.ID()) }

		producer.WakeConsumers(pool, ready)
		Expect(woken).To(BeEmpty())

		other.WakeConsumers(pool, ready)
		Expect(woken).To(Equal([]dinst.ID{consumer2.ID()}))
		Expect(consumer2.HasPending()).To(BeFalse())
	})

	It("should let one producer feed both sources", func() {
		producer.AddConsumer(dinst.SlotSrc1, consumer)
		producer.AddConsumer(dinst.SlotSrc2, consumer)

		woken := 0
		producer.WakeConsumers(pool, func(*dinst.Dinst) { woken++ })

		Expect(woken).To(Equal(1))
	})

	It("should report existing edges", func() {
		Expect(producer.HasConsumer(consumer)).To(BeFalse())
		producer.AddConsumer(dinst.SlotSrc3, consumer)
		Expect(producer.HasConsumer(consumer)).To(BeTrue())
	})

	It("should panic when a consumer is listed twice", func() {
		producer.AddConsumer(dinst.SlotSrc1, consumer)
		Expect(func() { producer.AddConsumer(dinst.SlotSrc1, consumer) }).To(Panic())
	})

	It("should allow several ordering edges", func() {
		other := pool.Create(aluInst(), 0x102, 0, 0)
		last := pool.Create(aluInst(), 0x10c, 0, 0)

		producer.AddConsumer(dinst.SlotSrc3, last)
		other.AddConsumer(dinst.SlotSrc3, last)

		producer.WakeConsumers(pool, nil)
		Expect(last.HasPending()).To(BeTrue())
		other.WakeConsumers(pool, nil)
		Expect(last.HasPending()).To(BeFalse())
	})

	It("should skip consumers that were recycled", func() {
		producer.AddConsumer(dinst.SlotSrc1, consumer)
		pool.Destroy(consumer)

		woken := 0
		producer.WakeConsumers(pool, func(*dinst.Dinst) { woken++ })

		Expect(woken).To(Equal(0))
		Expect(producer.HasConsumers()).To(BeFalse())
	})

	It("should reject older consumers", func() {
		Expect(func() { consumer.AddConsumer(dinst.SlotSrc1, producer) }).To(Panic())
	})
})

var _ = Describe("Queue", func() {
	var (
		pool *dinst.Pool
		q    *dinst.Queue
	)

	BeforeEach(func() {
		pool = dinst.NewPool()
		q = dinst.NewQueue(2)
	})

	It("should keep FIFO order across growth", func() {
		var ids []dinst.ID
		for i := 0; i < 5; i++ {
			d := pool.Create(aluInst(), uint64(i), 0, 0)
			ids = append(ids, d.ID())
			q.Push(d)
		}

		Expect(q.Pop().ID()).To(Equal(ids[0]))
		q.Push(pool.Create(aluInst(), 9, 0, 0))

		var got []dinst.ID
		q.Each(func(d *dinst.Dinst) { got = append(got, d.ID()) })

		Expect(got[:4]).To(Equal(ids[1:]))
		Expect(q.Len()).To(Equal(5))
		Expect(q.Front().ID()).To(Equal(ids[1]))
	})

	It("should reject out of order pushes", func() {
		a := pool.Create(aluInst(), 0, 0, 0)
		b := pool.Create(aluInst(), 4, 0, 0)

		q.Push(b)
		Expect(func() { q.Push(a) }).To(Panic())
	})

	It("should panic when popping an empty queue", func() {
		Expect(q.Empty()).To(BeTrue())
		Expect(q.Front()).To(BeNil())
		Expect(func() { q.Pop() }).To(Panic())
	})
})
