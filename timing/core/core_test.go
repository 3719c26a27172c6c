package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ooosim/emu"
	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/cluster"
	"github.com/sarchlab/ooosim/timing/core"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/stats"
)

type recorder struct {
	seqs map[string][]uint64
}

func newRecorder() *recorder {
	return &recorder{seqs: make(map[string][]uint64)}
}

func (r *recorder) Func(ctx sim.HookCtx) {
	d := ctx.Item.(*dinst.Dinst)
	r.seqs[ctx.Pos.Name] = append(r.seqs[ctx.Pos.Name], d.Seq)
}

func count(seqs []uint64, seq uint64) int {
	n := 0

	for _, s := range seqs {
		if s == seq {
			n++
		}
	}

	return n
}

var (
	r1 = insts.IntReg(1)
	r2 = insts.IntReg(2)
	r3 = insts.IntReg(3)
	r4 = insts.IntReg(4)
	r5 = insts.IntReg(5)
)

var _ = Describe("Core", func() {
	var (
		cfg   core.Config
		sched *event.Scheduler
		reg   *stats.Registry
		rec   *recorder
	)

	BeforeEach(func() {
		cfg = core.DefaultConfig()
		sched = event.NewScheduler()
		reg = stats.NewRegistry()
		rec = newRecorder()
	})

	build := func(b *emu.Builder) *core.Core {
		c, err := core.New(0, cfg, sched, emu.NewStream(b.Records()), core.WithStats(reg))
		Expect(err).NotTo(HaveOccurred())

		c.AcceptHook(rec)
		sched.AddTicker(c)

		return c
	}

	stat := func(name string) float64 {
		v, ok := reg.Lookup(name)
		Expect(ok).To(BeTrue(), name)

		return v
	}

	Context("with a straight-line program", func() {
		It("should commit every instruction in order", func() {
			b := emu.NewBuilder(0x1000)
			for i := 0; i < 20; i++ {
				b.ALU(r1, r1, r2)
			}

			c := build(b)
			Expect(sched.Run()).To(Succeed())

			Expect(c.Done()).To(BeTrue())
			Expect(c.Stats().Instructions).To(Equal(uint64(20)))
			Expect(c.InFlight()).To(BeZero())
			Expect(c.FreeRegs()).To(Equal(cfg.NumRegs))

			commits := rec.seqs["Commit"]
			Expect(commits).To(HaveLen(20))
			for i, s := range commits {
				Expect(s).To(Equal(uint64(i)))
			}
		})

		It("should overlap independent work", func() {
			chain := emu.NewBuilder(0x1000)
			indep := emu.NewBuilder(0x1000)
			for i := 0; i < 16; i++ {
				chain.Mul(r1, r1, r1)
				indep.Mul(insts.IntReg(uint32(1+i%8)), r2, r2)
			}

			c1 := build(chain)
			Expect(sched.Run()).To(Succeed())
			chained := c1.Stats().Cycles

			sched = event.NewScheduler()
			reg = stats.NewRegistry()
			c2 := build(indep)
			Expect(sched.Run()).To(Succeed())

			Expect(c2.Stats().Cycles).To(BeNumerically("<", chained))
		})

		It("should keep the reorder buffers within their size", func() {
			cfg.ROBSize = 4

			b := emu.NewBuilder(0x1000).Op(insts.OpCALUDiv, r1, r2, r2)
			for i := 0; i < 8; i++ {
				b.ALU(r3, r2, r2)
			}

			c := build(b)
			peak := 0
			sched.AddTicker(event.TickerFunc(func(event.Cycle) bool {
				peak = max(peak, c.ROBLen()+c.RROBLen())
				return !c.Done()
			}))

			Expect(sched.Run()).To(Succeed())
			Expect(peak).To(BeNumerically("<=", cfg.ROBSize-1))
			Expect(stat("P(0)_SmallROBStall")).To(BeNumerically(">", 0))
			Expect(c.Stats().Instructions).To(Equal(uint64(9)))
		})

		It("should commit at most RetireWidth per cycle", func() {
			cfg.RetireWidth = 2

			b := emu.NewBuilder(0x1000)
			for i := 0; i < 16; i++ {
				b.ALU(insts.IntReg(uint32(1+i%8)), r0(), r0())
			}

			c := build(b)
			last := uint64(0)
			burst := uint64(0)
			sched.AddTicker(event.TickerFunc(func(event.Cycle) bool {
				n := c.Stats().Instructions
				burst = max(burst, n-last)
				last = n

				return !c.Done()
			}))

			Expect(sched.Run()).To(Succeed())
			Expect(burst).To(BeNumerically("<=", 2))
			Expect(c.Stats().Instructions).To(Equal(uint64(16)))
		})

		It("should stall when the register budget runs out", func() {
			cfg.NumRegs = 2

			b := emu.NewBuilder(0x1000)
			for i := 0; i < 10; i++ {
				b.ALU(insts.IntReg(uint32(1+i)), r0(), r0())
			}

			c := build(b)
			Expect(sched.Run()).To(Succeed())

			Expect(stat("P(0)_SmallREGStall")).To(BeNumerically(">", 0))
			Expect(c.Stats().Instructions).To(Equal(uint64(10)))
			Expect(c.FreeRegs()).To(Equal(2))
		})

		It("should hold a syscall back", func() {
			c := build(emu.NewBuilder(0x1000).Syscall().ALU(r1, r0(), r0()))
			Expect(sched.Run()).To(Succeed())

			Expect(stat("P(0)_SyscallStall")).To(BeNumerically(">", 0))
			Expect(c.Stats().Cycles).To(BeNumerically(">=", uint64(cluster.SyscallBlock)))
			Expect(c.Stats().Instructions).To(Equal(uint64(2)))
		})

		It("should count renamed instructions per class", func() {
			build(emu.NewBuilder(0x1000).ALU(r1, r0(), r0()).Mul(r2, r1, r1).Load(r3, r1, 0x40))
			Expect(sched.Run()).To(Succeed())

			Expect(stat("P(0)_iAALU")).To(Equal(1.0))
			Expect(stat("P(0)_iCALU_MULT")).To(Equal(1.0))
			Expect(stat("P(0)_iLALU_LD")).To(Equal(1.0))
		})
	})

	Context("with a mispredicted branch", func() {
		It("should fetch only wrong-path work until the branch resolves", func() {
			b := emu.NewBuilder(0x1000).Branch(r1, r2, true, 0x2000)
			b.Transient(func(b *emu.Builder) {
				b.ALU(r3, r0(), r0()).ALU(r4, r0(), r0()).ALU(r5, r0(), r0())
			})
			b.ALU(r3, r1, r2).ALU(r4, r3, r3)

			c := build(b)
			Expect(sched.Run()).To(Succeed())

			Expect(c.Stats().Instructions).To(Equal(uint64(3)))
			Expect(rec.seqs["Flush"]).To(ConsistOf(uint64(1), uint64(2), uint64(3)))
			Expect(rec.seqs["Commit"]).To(Equal([]uint64{0, 4, 5}))
			Expect(stat("P(0)_BPred:nNoPredict")).To(Equal(1.0))
			Expect(c.InFlight()).To(BeZero())
		})
	})

	Context("with a memory-order violation", func() {
		violation := func(b *emu.Builder, addr uint64) {
			b.Op(insts.OpCALUDiv, r2, r1, r1).
				Store(r1, r2, addr).
				Load(r3, r1, addr).
				ALU(r4, r3, r3)
		}

		It("should squash the load and refetch it", func() {
			b := emu.NewBuilder(0x1000).ALU(r1, r0(), r0())
			violation(b, 0x1000)

			c := build(b)
			Expect(sched.Run()).To(Succeed())

			Expect(c.Stats().Replays).To(Equal(uint64(1)))
			Expect(c.Stats().Squashed).To(BeNumerically(">=", 1))
			Expect(c.Stats().Instructions).To(Equal(uint64(5)))
			Expect(rec.seqs["Replay"]).To(Equal([]uint64{3}))
			Expect(count(rec.seqs["IF"], 3)).To(Equal(2))
			Expect(rec.seqs["Commit"]).To(Equal([]uint64{0, 1, 2, 3, 4}))
			Expect(c.Recovering()).To(BeFalse())
			Expect(c.InFlight()).To(BeZero())
			Expect(c.FreeRegs()).To(Equal(cfg.NumRegs))
		})

		It("should tighten serialization after close replays", func() {
			b := emu.NewBuilder(0x1000).ALU(r1, r0(), r0())
			violation(b, 0x1000)

			c := build(b)
			Expect(c.SerializeLevel()).To(Equal(2))
			Expect(sched.Run()).To(Succeed())

			Expect(c.SerializeLevel()).To(Equal(1))
		})

		It("should hold loads behind unissued stores while serializing", func() {
			b := emu.NewBuilder(0x1000).ALU(r1, r0(), r0())
			violation(b, 0x1000)
			violation(b, 0x2000)

			c := build(b)
			Expect(sched.Run()).To(Succeed())

			Expect(c.Stats().Replays).To(Equal(uint64(1)))
			Expect(c.Stats().Instructions).To(Equal(uint64(9)))
		})

		It("should replay every violation without serialization", func() {
			cfg.ReplaySerializeFor = 0

			b := emu.NewBuilder(0x1000).ALU(r1, r0(), r0())
			violation(b, 0x1000)
			violation(b, 0x2000)

			c := build(b)
			Expect(sched.Run()).To(Succeed())

			Expect(c.Stats().Replays).To(Equal(uint64(2)))
			Expect(c.Stats().Instructions).To(Equal(uint64(9)))
		})

		It("should not replay when replay is off", func() {
			cfg.MemoryReplay = false

			b := emu.NewBuilder(0x1000).ALU(r1, r0(), r0())
			violation(b, 0x1000)

			c := build(b)
			Expect(sched.Run()).To(Succeed())

			Expect(c.Stats().Replays).To(BeZero())
			Expect(c.Stats().Instructions).To(Equal(uint64(5)))
		})
	})

	It("should panic when the oldest instruction makes no progress", func() {
		cfg.LockCheckInterval = 5

		build(emu.NewBuilder(0x1000).Op(insts.OpCALUDiv, r1, r2, r2))

		Expect(func() { _ = sched.Run() }).To(Panic())
	})

	It("should report a cycles-per-instruction figure", func() {
		Expect(core.Stats{}.CPI()).To(BeZero())
		Expect(core.Stats{Cycles: 30, Instructions: 10}.CPI()).To(Equal(3.0))
	})

	Describe("building", func() {
		It("should reject an opcode class no cluster executes", func() {
			cfg.Clusters = []cluster.Config{{
				Name:      "ONLY",
				WinSize:   4,
				NumRegs:   4,
				RecycleAt: "retire",
				Units:     map[string]string{"iAALU": "ALU"},
			}}

			_, err := core.New(0, cfg, sched, emu.NewStream())
			Expect(err).To(MatchError(ContainSubstring("no cluster executes")))
		})

		It("should name the core after its id", func() {
			c, err := core.New(3, cfg, sched, emu.NewStream())
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Name()).To(Equal("P(3)"))
			Expect(c.ID()).To(Equal(3))
			Expect(c.StoreBuffer()).NotTo(BeNil())
		})

		It("should run without a store buffer", func() {
			cfg.SCBSize = 0

			c := build(emu.NewBuilder(0x1000).Store(r1, r2, 0x80).Load(r3, r1, 0x80))
			Expect(c.StoreBuffer()).To(BeNil())
			Expect(sched.Run()).To(Succeed())
			Expect(c.Stats().Instructions).To(Equal(uint64(2)))
		})

		DescribeTable("should validate the configuration",
			func(mutate func(*core.Config), msg string) {
				mutate(&cfg)
				Expect(cfg.Validate()).To(MatchError(ContainSubstring(msg)))

				_, err := core.New(0, cfg, sched, emu.NewStream())
				Expect(err).To(MatchError(ContainSubstring(msg)))
			},
			Entry("fetch width", func(c *core.Config) { c.FetchWidth = 0 }, "fetch_width"),
			Entry("issue width", func(c *core.Config) { c.IssueWidth = 0 }, "issue_width"),
			Entry("retire width", func(c *core.Config) { c.RetireWidth = -1 }, "retire_width"),
			Entry("inst queue", func(c *core.Config) { c.InstQueueSize = 2 }, "inst_queue_size"),
			Entry("rob", func(c *core.Config) { c.ROBSize = 1 }, "rob_size"),
			Entry("registers", func(c *core.Config) { c.NumRegs = 0 }, "num_regs"),
			Entry("scb line", func(c *core.Config) { c.SCBLineSize = 48 }, "scb_line_size"),
			Entry("ssit", func(c *core.Config) { c.SSITSize = 1000 }, "store-set"),
			Entry("clusters", func(c *core.Config) { c.Clusters = nil }, "no clusters"),
		)
	})
})

func r0() insts.Reg { return insts.RegR0 }
