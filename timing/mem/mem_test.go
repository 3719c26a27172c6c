package mem_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/mem"
	"github.com/sarchlab/ooosim/timing/stats"
)

var _ = Describe("Pool", func() {
	var (
		mockCtrl *gomock.Controller
		sched    *event.Scheduler
		pool     *mem.Pool
		upper    *MockMemObj
		lower    *MockMemObj
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sched = event.NewScheduler()
		pool = mem.NewPool(sched, 4)
		upper = NewMockMemObj(mockCtrl)
		lower = NewMockMemObj(mockCtrl)
		upper.EXPECT().Name().Return("upper").AnyTimes()
		lower.EXPECT().Name().Return("lower").AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should complete address 0 on the next cycle without a message", func() {
		var at event.Cycle
		called := false

		pool.SendReqRead(upper, true, 0, 0x100, func() {
			called = true
			at = sched.Now()
		})
		sched.Run()

		Expect(called).To(BeTrue())
		Expect(at).To(Equal(event.Cycle(1)))
		Expect(pool.InUse()).To(Equal(0))
	})

	It("should hand a read to the first level", func() {
		var got *mem.Request
		upper.EXPECT().Req(gomock.Any()).Do(func(r *mem.Request) { got = r })

		pool.SendReqRead(upper, true, 0x1000, 0x40, nil)

		Expect(got).NotTo(BeNil())
		Expect(got.Type).To(Equal(mem.MsgReq))
		Expect(got.Action).To(Equal(mem.ActionRead))
		Expect(got.Addr).To(Equal(uint64(0x1000)))
		Expect(got.PC).To(Equal(uint64(0x40)))
		Expect(got.Curr()).To(BeIdenticalTo(upper))
		Expect(got.Creator()).To(BeIdenticalTo(upper))
		Expect(got.Spec).To(BeFalse())
		Expect(pool.InUse()).To(Equal(1))
	})

	It("should mark speculative reads", func() {
		var got *mem.Request
		upper.EXPECT().Req(gomock.Any()).Do(func(r *mem.Request) { got = r })

		pool.SendSpecReqRead(upper, false, 0x1000, 0, nil)

		Expect(got.Spec).To(BeTrue())
		Expect(got.KeepStats).To(BeFalse())
	})

	It("should run the callback when the creator responds", func() {
		var got *mem.Request
		called := false
		upper.EXPECT().Req(gomock.Any()).Do(func(r *mem.Request) { got = r })

		pool.SendReqWrite(upper, true, 0x1000, 0, func() { called = true })
		mem.Respond(got, 1)

		Expect(called).To(BeTrue())
		Expect(pool.InUse()).To(Equal(0))
	})

	It("should grow when every request is in flight", func() {
		for i := 0; i < 6; i++ {
			pool.Create(upper, uint64(0x40*(i+1)))
		}

		Expect(pool.InUse()).To(Equal(6))
		Expect(pool.Grown()).To(Equal(2))
	})

	It("should reuse destroyed requests", func() {
		r := pool.Create(upper, 0x40)
		r.Destroy()
		r2 := pool.Create(upper, 0x80)

		Expect(r2).To(BeIdenticalTo(r))
		Expect(r2.Addr).To(Equal(uint64(0x80)))
		Expect(pool.Grown()).To(Equal(0))
	})

	It("should panic on a double destroy", func() {
		r := pool.Create(upper, 0x40)
		r.Destroy()

		Expect(func() { r.Destroy() }).To(Panic())
	})

	It("should panic when hopping to the current owner", func() {
		r := pool.Create(upper, 0x40)

		Expect(func() { r.SetNextHop(upper) }).To(Panic())
		Expect(func() { r.SetNextHop(nil) }).To(Panic())
	})

	It("should drop a displacement with no lower level", func() {
		pool.SendDisp(upper, nil, true, 0x40, true)

		Expect(pool.InUse()).To(Equal(0))
	})

	It("should deliver a displacement after one cycle", func() {
		var at event.Cycle
		lower.EXPECT().DoDisp(gomock.Any()).Do(func(r *mem.Request) {
			at = sched.Now()
			Expect(r.NeedsDisp).To(BeTrue())
			Expect(r.Prev()).To(BeIdenticalTo(upper))
			r.Destroy()
		})

		pool.SendDisp(upper, lower, true, 0x40, true)
		sched.Run()

		Expect(at).To(Equal(event.Cycle(1)))
	})

	Context("when a request fans out set-state messages", func() {
		var (
			orig *mem.Request
			acks []*mem.Request
		)

		BeforeEach(func() {
			acks = nil
			orig = pool.Create(lower, 0x40)
			upper.EXPECT().DoSetState(gomock.Any()).
				Do(func(r *mem.Request) { acks = append(acks, r) }).
				Times(2)

			pool.SendSetState(lower, upper, 0x40, mem.ActionInvalidate, orig, 1)
			pool.SendSetState(lower, upper, 0x40, mem.ActionInvalidate, orig, 1)
			sched.Run()
		})

		It("should count every pending ack", func() {
			Expect(acks).To(HaveLen(2))
			Expect(orig.PendingSetStateAcks()).To(Equal(2))
		})

		It("should resume the original after the last ack", func() {
			resumed := 0
			lower.EXPECT().DoReq(orig).Do(func(*mem.Request) { resumed++ })

			acks[0].SetStateAckDone(0)
			acks[0].Destroy()
			sched.Run()
			Expect(resumed).To(Equal(0))
			Expect(orig.PendingSetStateAcks()).To(Equal(1))

			acks[1].SetStateAckDone(0)
			acks[1].Destroy()
			sched.Run()
			Expect(resumed).To(Equal(1))
			Expect(orig.PendingSetStateAcks()).To(Equal(0))
		})

		It("should refuse to destroy the original while acks are pending", func() {
			Expect(func() { orig.Destroy() }).To(Panic())
		})
	})
})

var _ = Describe("Memory", func() {
	var (
		mockCtrl *gomock.Controller
		sched    *event.Scheduler
		reg      *stats.Registry
		pool     *mem.Pool
		upper    *MockMemObj
		memory   *mem.Memory
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sched = event.NewScheduler()
		reg = stats.NewRegistry()
		pool = mem.NewPool(sched, 4)
		upper = NewMockMemObj(mockCtrl)
		upper.EXPECT().Name().Return("upper").AnyTimes()
		memory = mem.NewMemory("mem", sched, 20, 0, reg)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should answer a forwarded read after its latency", func() {
		var at event.Cycle
		upper.EXPECT().DoReqAck(gomock.Any()).Do(func(r *mem.Request) {
			at = sched.Now()
			Expect(r.Type).To(Equal(mem.MsgReqAck))
			Expect(r.Exclusive).To(BeTrue())
			mem.Respond(r, 0)
		})

		r := pool.Create(upper, 0x1000)
		r.Action = mem.ActionRead
		r.KeepStats = true
		mem.Forward(r, memory)
		sched.Run()

		Expect(at).To(Equal(event.Cycle(21)))
		Expect(reg.Counter("mem:readHit").Value()).To(Equal(uint64(1)))
		Expect(pool.InUse()).To(Equal(0))
	})

	It("should absorb displacements", func() {
		pool.SendDisp(upper, memory, true, 0x40, true)
		sched.Run()

		Expect(reg.Counter("mem:nDisp").Value()).To(Equal(uint64(1)))
		Expect(pool.InUse()).To(Equal(0))
	})

	It("should never be busy", func() {
		Expect(memory.IsBusy(0x40)).To(BeFalse())
	})
})
