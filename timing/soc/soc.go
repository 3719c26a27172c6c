// Package soc assembles a multi-core system: the cores, a private L1 data
// cache per core, a shared L2, and main memory, all driven by one
// scheduler.
package soc

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ooosim/emu"
	"github.com/sarchlab/ooosim/logger"
	"github.com/sarchlab/ooosim/timing/cache"
	"github.com/sarchlab/ooosim/timing/config"
	"github.com/sarchlab/ooosim/timing/core"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/mem"
	"github.com/sarchlab/ooosim/timing/stats"
)

// System is a set of cores sharing a memory hierarchy.
type System struct {
	cfg    *config.Config
	logger *slog.Logger
	hooks  []sim.Hook

	sched *event.Scheduler
	reg   *stats.Registry

	memPool *mem.Pool
	memory  *mem.Memory
	l2      *cache.Cache
	l1d     []*cache.Cache
	cores   []*core.Core

	running []*core.Core
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		s.logger = l
	}
}

// WithStats records every statistic in reg.
func WithStats(reg *stats.Registry) Option {
	return func(s *System) {
		s.reg = reg
	}
}

// WithHook attaches h to every core.
func WithHook(h sim.Hook) Option {
	return func(s *System) {
		s.hooks = append(s.hooks, h)
	}
}

// WithScheduler drives the system with sched instead of a new scheduler.
func WithScheduler(sched *event.Scheduler) Option {
	return func(s *System) {
		s.sched = sched
	}
}

// New builds the system cfg describes. Core i fetches thread i of source.
func New(cfg *config.Config, source emu.Source, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &System{
		cfg:    cfg.Clone(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.sched == nil {
		s.sched = event.NewScheduler()
	}

	if s.reg == nil {
		s.reg = stats.NewRegistry()
	}

	s.buildHierarchy()

	if err := s.buildCores(source); err != nil {
		return nil, err
	}

	s.sched.AddTicker(s)

	return s, nil
}

func (s *System) componentLogger(name string) *slog.Logger {
	return s.logger.With(logger.ComponentKey, name)
}

func (s *System) buildHierarchy() {
	cfg := s.cfg

	s.memPool = mem.NewPool(s.sched, cfg.MemPoolSize)
	s.memory = mem.NewMemory("Memory", s.sched,
		event.Cycle(cfg.MemoryLatency), cfg.MemoryBandwidth, s.reg)
	s.l2 = cache.New("L2", cfg.L2, s.memPool, s.reg,
		cache.WithLower(s.memory), cache.WithLogger(s.componentLogger("L2")))

	if cfg.L1D.Size == 0 {
		return
	}

	for i := 0; i < cfg.NumCores; i++ {
		name := fmt.Sprintf("P(%d)_DL1", i)
		l1 := cache.New(name, cfg.L1D, s.memPool, s.reg,
			cache.WithLower(s.l2), cache.WithLogger(s.componentLogger(name)))
		s.l2.AddUpper(l1)
		s.l1d = append(s.l1d, l1)
	}
}

func (s *System) buildCores(source emu.Source) error {
	for i := 0; i < s.cfg.NumCores; i++ {
		var dl1 mem.MemObj = s.l2
		if s.l1d != nil {
			dl1 = s.l1d[i]
		}

		c, err := core.New(i, s.cfg.Core, s.sched, source,
			core.WithLogger(s.logger),
			core.WithStats(s.reg),
			core.WithMemory(s.memPool, dl1),
		)
		if err != nil {
			return err
		}

		for _, h := range s.hooks {
			c.AcceptHook(h)
		}

		s.cores = append(s.cores, c)
		s.running = append(s.running, c)
	}

	s.logger.Debug("system built",
		"cores", s.cfg.NumCores, "l1d", s.cfg.L1D.Size, "l2", s.cfg.L2.Size)

	return nil
}

// Tick advances every running core by one cycle. A core that reports no
// remaining work leaves the running set.
func (s *System) Tick(now event.Cycle) bool {
	running := s.running[:0]

	for _, c := range s.running {
		if c.Tick(now) {
			running = append(running, c)
			continue
		}

		s.logger.Debug("core finished", "core", c.Name(), "cycle", uint64(now))
	}

	s.running = running

	return len(s.running) > 0
}

// Run simulates until every core is done.
func (s *System) Run() error {
	if err := s.sched.Run(); err != nil {
		return err
	}

	s.publish()

	return nil
}

// RunFor simulates at most n more cycles and returns as soon as the system
// goes idle. It reports whether every core is done.
func (s *System) RunFor(n event.Cycle) (bool, error) {
	if err := s.sched.RunAtMost(n); err != nil {
		return false, err
	}

	s.publish()

	return s.Done(), nil
}

// Done reports whether every core has finished.
func (s *System) Done() bool { return len(s.running) == 0 }

// Now returns the current cycle.
func (s *System) Now() event.Cycle { return s.sched.Now() }

// Scheduler returns the scheduler driving the system.
func (s *System) Scheduler() *event.Scheduler { return s.sched }

// Cores returns the cores in id order.
func (s *System) Cores() []*core.Core { return s.cores }

// L1D returns the private data cache of core i, or nil without private
// caches.
func (s *System) L1D(i int) *cache.Cache {
	if s.l1d == nil {
		return nil
	}

	return s.l1d[i]
}

// L2 returns the shared cache.
func (s *System) L2() *cache.Cache { return s.l2 }

// Stats returns the registry holding every statistic.
func (s *System) Stats() *stats.Registry { return s.reg }

// publish copies the cache statistics into the registry.
func (s *System) publish() {
	caches := append([]*cache.Cache{s.l2}, s.l1d...)

	for _, c := range caches {
		st := c.Stats()
		set := func(name string, v uint64) {
			ctr := s.reg.Counter(c.Name() + ":" + name)
			ctr.Add(v-ctr.Value(), true)
		}

		set("reads", st.Reads)
		set("writes", st.Writes)
		set("hits", st.Hits)
		set("misses", st.Misses)
		set("mshrHits", st.MSHRHits)
		set("mshrFull", st.MSHRFull)
		set("evictions", st.Evictions)
		set("writebacks", st.Writebacks)
		set("invalidations", st.Invalidations)
	}
}

// Summary holds the headline numbers of a run.
type Summary struct {
	Cycles       uint64
	Instructions uint64
	Replays      uint64
	Cores        []core.Stats
}

// IPC returns committed instructions per cycle across all cores.
func (s Summary) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}

	return float64(s.Instructions) / float64(s.Cycles)
}

// Summary collects the per-core statistics.
func (s *System) Summary() Summary {
	out := Summary{Cycles: uint64(s.sched.Now())}

	for _, c := range s.cores {
		st := c.Stats()
		out.Cores = append(out.Cores, st)
		out.Instructions += st.Instructions
		out.Replays += st.Replays
	}

	return out
}

// Report writes a per-core summary followed by every statistic.
func (s *System) Report(w io.Writer) error {
	sum := s.Summary()

	if _, err := fmt.Fprintf(w, "cycles: %d\ninstructions: %d\nIPC: %.3f\n",
		sum.Cycles, sum.Instructions, sum.IPC()); err != nil {
		return err
	}

	for i, st := range sum.Cores {
		if _, err := fmt.Fprintf(w, "P(%d): cycles=%d insts=%d CPI=%.3f stalls=%d replays=%d squashed=%d\n",
			i, st.Cycles, st.Instructions, st.CPI(), st.Stalls, st.Replays, st.Squashed); err != nil {
			return err
		}
	}

	return s.reg.Report(w)
}
