package cache_test

import (
	"bytes"
	"log/slog"
	"regexp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ooosim/logger"
	"github.com/sarchlab/ooosim/timing/cache"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/mem"
	"github.com/sarchlab/ooosim/timing/stats"
)

type access struct {
	done bool
	at   event.Cycle
}

func (a *access) callback(sched *event.Scheduler) func() {
	return func() {
		a.done = true
		a.at = sched.Now()
	}
}

var _ = Describe("Cache", func() {
	var (
		sched  *event.Scheduler
		reg    *stats.Registry
		pool   *mem.Pool
		memory *mem.Memory
		l2     *cache.Cache
		l1a    *cache.Cache
		l1b    *cache.Cache
	)

	l1Config := cache.Config{
		Size:           4 * 1024,
		Associativity:  4,
		BlockSize:      64,
		HitLatency:     1,
		MissLatency:    0,
		MaxOutstanding: 4,
	}

	build := func(l1 cache.Config) {
		sched = event.NewScheduler()
		reg = stats.NewRegistry()
		pool = mem.NewPool(sched, 16)
		memory = mem.NewMemory("mem", sched, 20, 0, reg)
		l2 = cache.New("l2", cache.Config{
			Size:          64 * 1024,
			Associativity: 8,
			BlockSize:     64,
			HitLatency:    4,
			MissLatency:   0,
		}, pool, reg, cache.WithLower(memory))
		l1a = cache.New("l1a", l1, pool, reg, cache.WithLower(l2))
		l1b = cache.New("l1b", l1, pool, reg, cache.WithLower(l2))
		l2.AddUpper(l1a)
		l2.AddUpper(l1b)
	}

	read := func(c *cache.Cache, addr uint64) *access {
		a := &access{}
		pool.SendReqRead(c, true, addr, 0, a.callback(sched))
		return a
	}

	write := func(c *cache.Cache, addr uint64) *access {
		a := &access{}
		pool.SendReqWrite(c, true, addr, 0, a.callback(sched))
		return a
	}

	BeforeEach(func() {
		build(l1Config)
	})

	It("should compute the number of sets", func() {
		Expect(l1Config.NumSets()).To(Equal(16))
		Expect(cache.DefaultL1DConfig().NumSets()).To(Equal(128))
		Expect(cache.DefaultL2Config().NumSets()).To(Equal(4096))
	})

	It("should align addresses to lines", func() {
		Expect(l1a.LineAddr(0x1234)).To(Equal(uint64(0x1200)))
	})

	Describe("reads", func() {
		It("should miss through every level on a cold cache", func() {
			a := read(l1a, 0x1000)
			sched.Run()

			Expect(a.done).To(BeTrue())
			Expect(a.at).To(Equal(event.Cycle(27)))
			Expect(l1a.Stats().Misses).To(Equal(uint64(1)))
			Expect(l2.Stats().Misses).To(Equal(uint64(1)))
			Expect(reg.Counter("mem:readHit").Value()).To(Equal(uint64(1)))
			Expect(l1a.Contains(0x1000)).To(BeTrue())
			Expect(l2.Contains(0x1000)).To(BeTrue())
			Expect(pool.InUse()).To(Equal(0))
		})

		It("should hit after the line is filled", func() {
			read(l1a, 0x1000)
			sched.Run()

			start := sched.Now()
			a := read(l1a, 0x1008)
			sched.Run()

			Expect(a.at - start).To(Equal(event.Cycle(1)))
			Expect(l1a.Stats().Hits).To(Equal(uint64(1)))
			Expect(l1a.Stats().HitRate()).To(BeNumerically("~", 0.5))
		})

		It("should merge reads to a line that is already missing", func() {
			a := read(l1a, 0x1000)
			b := read(l1a, 0x1010)
			sched.Run()

			Expect(a.done).To(BeTrue())
			Expect(b.done).To(BeTrue())
			Expect(b.at).To(Equal(a.at))
			Expect(l1a.Stats().Misses).To(Equal(uint64(1)))
			Expect(l1a.Stats().MSHRHits).To(Equal(uint64(1)))
			Expect(reg.Counter("mem:readHit").Value()).To(Equal(uint64(1)))
		})

		It("should report busy while a miss is in flight", func() {
			read(l1a, 0x1000)
			sched.RunFor(3)

			Expect(l1a.IsBusy(0x1000)).To(BeTrue())
			Expect(l1a.IsBusy(0x2000)).To(BeFalse())

			sched.Run()

			Expect(l1a.IsBusy(0x1000)).To(BeFalse())
		})

		It("should report busy when the miss table is full", func() {
			for i := uint64(1); i <= 4; i++ {
				read(l1a, i*0x1000)
			}
			sched.RunFor(3)

			Expect(l1a.IsBusy(0x9000)).To(BeTrue())
		})

		It("should never exceed the outstanding miss limit", func() {
			limited := l1Config
			limited.MaxOutstanding = 1
			build(limited)

			a := read(l1a, 0x1000)
			b := read(l1a, 0x2000)

			peak := 0
			sched.AddTicker(event.TickerFunc(func(event.Cycle) bool {
				if n := l1a.Outstanding(); n > peak {
					peak = n
				}
				return pool.InUse() > 0
			}))
			sched.Run()

			Expect(a.done).To(BeTrue())
			Expect(b.done).To(BeTrue())
			Expect(peak).To(Equal(1))
			Expect(b.at).To(BeNumerically(">", a.at+20))
			Expect(l1a.Stats().Misses).To(Equal(uint64(2)))
			Expect(l1a.Stats().MSHRFull).NotTo(BeZero())
			Expect(l1a.Outstanding()).To(BeZero())
		})

		It("should tag miss and fill logs with the request id", func() {
			var buf bytes.Buffer
			l1 := cache.New("l1log", l1Config, pool, reg,
				cache.WithLower(l2),
				cache.WithLogger(logger.New(&buf, slog.LevelDebug)))

			read(l1, 0x1000)
			sched.Run()

			ids := regexp.MustCompile(`req=(\S+)`).FindAllStringSubmatch(buf.String(), -1)
			Expect(ids).To(HaveLen(2))
			Expect(ids[0][1]).To(Equal(ids[1][1]))
			Expect(buf.String()).To(ContainSubstring("miss req="))
			Expect(buf.String()).To(ContainSubstring("fill req="))
		})

		It("should not allocate speculative reads that miss", func() {
			a := &access{}
			pool.SendSpecReqRead(l1a, true, 0x1000, 0, a.callback(sched))
			sched.Run()

			Expect(a.done).To(BeTrue())
			Expect(l1a.Contains(0x1000)).To(BeFalse())
			Expect(l2.Contains(0x1000)).To(BeFalse())
			Expect(l1a.Stats().SpecReads).To(Equal(uint64(1)))
		})

		It("should complete address 0 without touching the hierarchy", func() {
			a := read(l1a, 0)
			sched.Run()

			Expect(a.done).To(BeTrue())
			Expect(a.at).To(Equal(event.Cycle(1)))
			Expect(l1a.Stats().Reads).To(BeZero())
		})

		It("should not count accesses without stats", func() {
			pool.SendReqRead(l1a, false, 0x1000, 0, nil)
			sched.Run()

			Expect(l1a.Stats().Reads).To(BeZero())
			Expect(l1a.Stats().Misses).To(BeZero())
		})
	})

	Describe("installs", func() {
		It("should place a line without fetching it", func() {
			a := &access{}
			pool.SendInstall(l1a, true, 0x1000, 0, a.callback(sched))
			sched.Run()

			Expect(a.done).To(BeTrue())
			Expect(l1a.Contains(0x1000)).To(BeTrue())
			Expect(l1a.Stats().Installs).To(Equal(uint64(1)))
			Expect(reg.Counter("mem:readHit").Value()).To(BeZero())
		})
	})

	Describe("coherence", func() {
		It("should grant a sole reader exclusive ownership", func() {
			read(l1a, 0x1000)
			sched.Run()

			Expect(l2.Sharers(0x1000)).To(Equal(uint64(1)))

			write(l1a, 0x1000)
			sched.Run()

			Expect(l1a.IsDirty(0x1000)).To(BeTrue())
			Expect(l1a.Stats().Hits).To(Equal(uint64(1)))
		})

		It("should share a line read by two caches", func() {
			read(l1a, 0x1000)
			sched.Run()
			read(l1b, 0x1000)
			sched.Run()

			Expect(l1a.Contains(0x1000)).To(BeTrue())
			Expect(l1b.Contains(0x1000)).To(BeTrue())
			Expect(l2.Sharers(0x1000)).To(Equal(uint64(3)))
		})

		It("should invalidate other sharers on a write", func() {
			read(l1a, 0x1000)
			sched.Run()
			read(l1b, 0x1000)
			sched.Run()

			w := write(l1b, 0x1000)
			sched.Run()

			Expect(w.done).To(BeTrue())
			Expect(l1a.Contains(0x1000)).To(BeFalse())
			Expect(l1b.IsDirty(0x1000)).To(BeTrue())
			Expect(l2.Sharers(0x1000)).To(Equal(uint64(2)))
			Expect(l1a.Stats().Invalidations).To(Equal(uint64(1)))
			Expect(pool.InUse()).To(Equal(0))
		})

		It("should downgrade a dirty owner when another cache reads", func() {
			write(l1a, 0x1000)
			sched.Run()
			Expect(l1a.IsDirty(0x1000)).To(BeTrue())

			r := read(l1b, 0x1000)
			sched.Run()

			Expect(r.done).To(BeTrue())
			Expect(l1a.Contains(0x1000)).To(BeTrue())
			Expect(l1a.IsDirty(0x1000)).To(BeFalse())
			Expect(l2.IsDirty(0x1000)).To(BeTrue())
			Expect(l2.Sharers(0x1000)).To(Equal(uint64(3)))
		})
	})

	Describe("evictions", func() {
		BeforeEach(func() {
			build(cache.Config{
				Size:          128,
				Associativity: 2,
				BlockSize:     64,
				HitLatency:    1,
			})
		})

		It("should write back a dirty victim", func() {
			write(l1a, 0x1000)
			sched.Run()
			write(l1a, 0x2000)
			sched.Run()
			read(l1a, 0x3000)
			sched.Run()

			Expect(l1a.Contains(0x1000)).To(BeFalse())
			Expect(l1a.Contains(0x3000)).To(BeTrue())
			Expect(l1a.Stats().Evictions).To(Equal(uint64(1)))
			Expect(l1a.Stats().Writebacks).To(Equal(uint64(1)))
			Expect(l2.Sharers(0x1000)).To(BeZero())
			Expect(l2.IsDirty(0x1000)).To(BeTrue())
			Expect(pool.InUse()).To(Equal(0))
		})

		It("should drop a clean victim silently", func() {
			read(l1a, 0x1000)
			sched.Run()
			read(l1a, 0x2000)
			sched.Run()
			read(l1a, 0x3000)
			sched.Run()

			Expect(l1a.Stats().Evictions).To(Equal(uint64(1)))
			Expect(l1a.Stats().Writebacks).To(BeZero())
		})

		It("should write back everything on a flush", func() {
			write(l1a, 0x1000)
			sched.Run()

			l1a.Flush()
			sched.Run()

			Expect(l1a.Contains(0x1000)).To(BeFalse())
			Expect(l1a.Stats().Writebacks).To(Equal(uint64(1)))
			Expect(pool.InUse()).To(Equal(0))
		})
	})

	It("should forget every line on reset", func() {
		read(l1a, 0x1000)
		sched.Run()

		l1a.Reset()

		Expect(l1a.Contains(0x1000)).To(BeFalse())
		Expect(l1a.Stats()).To(Equal(cache.Statistics{}))
	})
})
