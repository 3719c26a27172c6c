// Package core provides the out-of-order processor model.
//
// Each cycle the core retires from its reorder buffer, renames and admits
// decoded instructions into the clusters, and fetches from its instruction
// source. Execution happens in the clusters, which report back through the
// cluster.Processor callbacks. A memory-order violation squashes the
// offending load and everything younger; once the squashed work drains the
// core rewinds its source to the load and fetches it again.
package core

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ooosim/emu"
	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/logger"
	"github.com/sarchlab/ooosim/timing/bpred"
	"github.com/sarchlab/ooosim/timing/cluster"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/lsq"
	"github.com/sarchlab/ooosim/timing/mem"
	"github.com/sarchlab/ooosim/timing/scb"
	"github.com/sarchlab/ooosim/timing/stats"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the number of cycles the core was ticked.
	Cycles uint64
	// Instructions is the number of instructions committed.
	Instructions uint64
	// Stalls is the number of rename slots lost to stalls.
	Stalls uint64
	// Replays is the number of memory-order replays.
	Replays uint64
	// Squashed is the number of instructions discarded by replays.
	Squashed uint64
}

// CPI returns cycles per committed instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}

	return float64(s.Cycles) / float64(s.Instructions)
}

// Core is one out-of-order processor.
type Core struct {
	sim.HookableBase

	id     int
	hid    int
	name   string
	cfg    Config
	logger *slog.Logger

	sched    *event.Scheduler
	pool     *dinst.Pool
	reg      *stats.Registry
	source   emu.Source
	bpred    *bpred.Predictor
	clusters *cluster.Manager
	lsq      *lsq.LSQ
	storeSet *lsq.StoreSet
	scb      *scb.StoreBuffer
	memPool  *mem.Pool
	dl1      mem.MemObj

	fetchQ *dinst.Queue
	rob    *dinst.Queue
	rrob   *dinst.Queue

	next       *emu.Record
	sourceDone bool

	fetchBlocked bool
	blockedOn    dinst.Handle
	fetchResume  event.Cycle

	rat         [insts.NumRegs]dinst.Handle
	nTotalRegs  int
	nUnresolved int

	replay   replayState
	serial   serialState
	watchdog watchdog

	counters
}

type replayState struct {
	recovering bool
	id         dinst.ID
	seq        uint64
	last       dinst.ID
}

type counters struct {
	cycles      *stats.Counter
	nCommitted  *stats.Counter
	nReplays    *stats.Counter
	nSquashed   *stats.Counter
	nReplayInst *stats.Average
	robUsed     *stats.Average
	rrobUsed    *stats.Average
	nStall      [cluster.NumStallCauses]*stats.Counter
	nInst       [insts.NumOps]*stats.Counter
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the core's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Core) {
		c.logger = l
	}
}

// WithStats records the core's statistics in reg.
func WithStats(reg *stats.Registry) Option {
	return func(c *Core) {
		c.reg = reg
	}
}

// WithMemory connects the core to its first-level data cache. Without it
// every load completes after the store forwarding delay and stores are
// granted ownership one cycle after they ask.
func WithMemory(pool *mem.Pool, dl1 mem.MemObj) Option {
	return func(c *Core) {
		c.memPool = pool
		c.dl1 = dl1
	}
}

// WithHardwareThread selects the source thread the core fetches from. It
// defaults to the core id.
func WithHardwareThread(hid int) Option {
	return func(c *Core) {
		c.hid = hid
	}
}

// New creates core id fetching from source.
func New(
	id int,
	cfg Config,
	sched *event.Scheduler,
	source emu.Source,
	opts ...Option,
) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("core %d: %w", id, err)
	}

	c := &Core{
		id:         id,
		hid:        id,
		name:       fmt.Sprintf("P(%d)", id),
		cfg:        cfg,
		logger:     slog.Default(),
		sched:      sched,
		pool:       dinst.NewPool(),
		source:     source,
		fetchQ:     dinst.NewQueue(cfg.InstQueueSize),
		rob:        dinst.NewQueue(cfg.ROBSize),
		rrob:       dinst.NewQueue(cfg.RetireWidth),
		nTotalRegs: cfg.NumRegs,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.reg == nil {
		c.reg = stats.NewRegistry()
	}

	if c.memPool == nil {
		c.memPool = mem.NewPool(sched, 64)
	}

	c.logger = c.logger.With(logger.ComponentKey, c.name)
	c.serial = newSerialState(cfg.ReplaySerializeFor)
	c.watchdog = watchdog{interval: event.Cycle(cfg.LockCheckInterval)}
	c.initStats()

	if err := c.buildBackend(); err != nil {
		return nil, fmt.Errorf("core %d: %w", id, err)
	}

	return c, nil
}

func (c *Core) buildBackend() error {
	c.bpred = bpred.New(c.name+"_BPred", c.cfg.BPred, c.reg)
	c.lsq = lsq.New(c.cfg.LSQSize, c.pool)
	c.storeSet = lsq.NewStoreSet(c.cfg.SSITSize, c.cfg.LFSTSize,
		event.Cycle(c.cfg.StoreSetClear), c.pool)

	if c.cfg.SCBSize > 0 {
		var requester scb.OwnershipRequester
		if c.dl1 != nil {
			requester = scb.NewCacheRequester(c.memPool, c.dl1)
		}

		c.scb = scb.New(c.cfg.SCBSize, c.cfg.SCBLineSize, requester, c.sched)
	}

	m, err := cluster.NewManager(c.cfg.Clusters, c.cfg.Units, c.cfg.Params, cluster.Env{
		Name:     c.name,
		Sched:    c.sched,
		Pool:     c.pool,
		Stats:    c.reg,
		Proc:     c,
		Logger:   c.logger,
		LSQ:      c.lsq,
		StoreSet: c.storeSet,
		SCB:      c.scb,
		MemPool:  c.memPool,
		DL1:      c.dl1,
	})
	if err != nil {
		return err
	}

	for op := insts.OpInvalid + 1; op < insts.NumOps; op++ {
		if !m.Mapped(op) {
			return fmt.Errorf("no cluster executes %v", op)
		}
	}

	c.clusters = m

	return nil
}

func (c *Core) initStats() {
	p := c.name + "_"

	c.cycles = c.reg.Counter(p + "clockTicks")
	c.nCommitted = c.reg.Counter(p + "nCommitted")
	c.nReplays = c.reg.Counter(p + "nReplays")
	c.nSquashed = c.reg.Counter(p + "nSquashed")
	c.nReplayInst = c.reg.Average(p + "nReplayInst")
	c.robUsed = c.reg.Average(p + "robUsed")
	c.rrobUsed = c.reg.Average(p + "rrobUsed")

	for sc := cluster.NoStall; sc < cluster.NumStallCauses; sc++ {
		c.nStall[sc] = c.reg.Counter(p + sc.String())
	}

	for op := insts.Op(0); op < insts.NumOps; op++ {
		c.nInst[op] = c.reg.Counter(p + op.String())
	}
}

// ID returns the core id.
func (c *Core) ID() int { return c.id }

// Name returns the statistics prefix of the core, such as "P(0)".
func (c *Core) Name() string { return c.name }

// Config returns the configuration the core was built with.
func (c *Core) Config() Config { return c.cfg }

// Clusters returns the cluster manager.
func (c *Core) Clusters() *cluster.Manager { return c.clusters }

// StoreBuffer returns the store buffer, or nil when it is disabled.
func (c *Core) StoreBuffer() *scb.StoreBuffer { return c.scb }

// Predictor returns the branch predictor.
func (c *Core) Predictor() *bpred.Predictor { return c.bpred }

// ROBLen returns the occupancy of the reorder buffer.
func (c *Core) ROBLen() int { return c.rob.Len() }

// RROBLen returns the occupancy of the retirement buffer.
func (c *Core) RROBLen() int { return c.rrob.Len() }

// FreeRegs returns the core-wide registers left.
func (c *Core) FreeRegs() int { return c.nTotalRegs }

// Recovering reports whether a replay is draining.
func (c *Core) Recovering() bool { return c.replay.recovering }

// SerializeLevel returns how strictly memory ops are chained after replays:
// 0 chains every memory op, 1 chains loads behind stores, and 2 or more
// chains ops that share an address register.
func (c *Core) SerializeLevel() int { return c.serial.level }

// InFlight returns the number of live dynamic instructions.
func (c *Core) InFlight() int { return c.pool.Live() }

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	s := Stats{
		Cycles:       c.cycles.Value(),
		Instructions: c.nCommitted.Value(),
		Replays:      c.nReplays.Value(),
		Squashed:     c.nSquashed.Value(),
	}

	for sc := cluster.NoStall + 1; sc < cluster.NumStallCauses; sc++ {
		s.Stalls += c.nStall[sc].Value()
	}

	return s
}

// Done reports whether the source is exhausted and nothing is in flight.
func (c *Core) Done() bool {
	return c.sourceDone && c.next == nil && c.fetchQ.Empty() &&
		c.rob.Empty() && c.rrob.Empty() && !c.replay.recovering
}

// Tick advances the core by one cycle. It returns whether work remains.
func (c *Core) Tick(now event.Cycle) bool {
	c.cycles.Inc(true)
	c.storeSet.MaybeClear(now)

	if c.replay.recovering {
		if !c.rob.Empty() || !c.rrob.Empty() {
			c.nStall[cluster.Replays].Add(uint64(c.cfg.IssueWidth), true)
			c.retire(now)
			c.watchdog.check(c, now)

			return true
		}

		c.finishRecovery(now)
	}

	c.retire(now)
	c.issue(now)
	c.fetch(now)
	c.watchdog.check(c, now)

	return !c.Done()
}

func (c *Core) resource(d *dinst.Dinst) cluster.Resource {
	return c.clusters.Resource(d.Op())
}
