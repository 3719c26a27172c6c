package cluster

import (
	"fmt"
	"log"

	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/port"
	"github.com/sarchlab/ooosim/timing/stats"
)

// Cluster is a group of units that share a scheduling window and a pool of
// physical registers.
//
// A register credit is taken at AddInst, or when the instruction is
// dispatched to its unit if late allocation is on, and is returned at
// retire. The recycle policy decides when the window entry is returned.
type Cluster struct {
	name      string
	policy    RecyclePolicy
	lateAlloc bool

	nRegs   int
	regPool int

	maxWinSize int
	winSize    int

	window *Window
	sched  *event.Scheduler
	proc   Processor

	winNotUsed *stats.Average
	rdRegPool  *stats.Counter
	wrRegPool  *stats.Counter
}

func newCluster(
	cfg Config,
	env *Env,
	lookup func(insts.Op) Resource,
) (*Cluster, error) {
	policy, err := ParseRecyclePolicy(cfg.RecycleAt)
	if err != nil {
		return nil, fmt.Errorf("cluster %s: %w", cfg.Name, err)
	}

	prefix := fmt.Sprintf("%s_%s", env.Name, cfg.Name)

	c := &Cluster{
		name:       cfg.Name,
		policy:     policy,
		lateAlloc:  cfg.LateAlloc,
		nRegs:      cfg.NumRegs,
		regPool:    cfg.NumRegs,
		maxWinSize: cfg.WinSize,
		winSize:    cfg.WinSize,
		sched:      env.Sched,
		proc:       env.Proc,
		winNotUsed: env.Stats.Average(prefix + "_winNotUsed"),
		rdRegPool:  env.Stats.Counter(prefix + "_rdRegPool"),
		wrRegPool:  env.Stats.Counter(prefix + "_wrRegPool"),
	}

	c.window = &Window{
		cluster:         c,
		port:            port.New(prefix+"_sched", env.Sched, cfg.SchedNum, cfg.SchedOcc, env.Stats),
		sched:           env.Sched,
		pool:            env.Pool,
		lookup:          lookup,
		schedDelay:      event.Cycle(cfg.SchedLat),
		interClusterLat: event.Cycle(cfg.InterClusterLat),
	}

	return c, nil
}

// Name returns the cluster's name.
func (c *Cluster) Name() string { return c.name }

// Policy returns the recycle policy.
func (c *Cluster) Policy() RecyclePolicy { return c.policy }

// NumRegs returns the size of the register pool.
func (c *Cluster) NumRegs() int { return c.nRegs }

// RegPool returns the number of free registers.
func (c *Cluster) RegPool() int { return c.regPool }

// MaxWindowSize returns the number of window entries.
func (c *Cluster) MaxWindowSize() int { return c.maxWinSize }

// WindowSize returns the number of free window entries.
func (c *Cluster) WindowSize() int { return c.winSize }

// CanIssue runs the cluster checks and then the unit checks for d.
func (c *Cluster) CanIssue(d *dinst.Dinst, r Resource) StallCause {
	if c.regPool <= 0 {
		return SmallRegisterPool
	}

	if c.winSize <= 0 {
		return SmallWindow
	}

	return r.CanIssue(d)
}

// AddInst admits d into the window. CanIssue must have returned NoStall in
// the same cycle.
func (c *Cluster) AddInst(d *dinst.Dinst, r Resource) {
	c.rdRegPool.Add(2, true)

	if !c.lateAlloc && d.Inst().HasDstRegister() {
		c.takeReg(d)
	}

	if c.winSize <= 0 {
		log.Panicf("cluster %s: window overflow on %v", c.name, d)
	}

	c.winSize--
	d.Take(dinst.CreditWindow)

	r.AddInst(d)
	c.window.AddInst(d, r)
}

func (c *Cluster) takeReg(d *dinst.Dinst) {
	if c.regPool <= 0 {
		log.Panicf("cluster %s: register pool underflow on %v", c.name, d)
	}

	c.regPool--
	c.wrRegPool.Inc(true)
	d.Take(dinst.CreditClusterReg)
}

// takeLateReg is called when d leaves the window. It reports false when the
// late-allocated register is not available yet.
func (c *Cluster) takeLateReg(d *dinst.Dinst) bool {
	if !c.lateAlloc || !d.Inst().HasDstRegister() || d.Holds(dinst.CreditClusterReg) {
		return true
	}

	if c.regPool <= 0 {
		return false
	}

	c.takeReg(d)

	return true
}

func (c *Cluster) releaseReg(d *dinst.Dinst) {
	if !d.Release(dinst.CreditClusterReg) {
		return
	}

	c.regPool++
	if c.regPool > c.nRegs {
		log.Panicf("cluster %s: register pool overflow on %v", c.name, d)
	}
}

func (c *Cluster) releaseWindow(d *dinst.Dinst) {
	if !d.Release(dinst.CreditWindow) {
		return
	}

	c.winSize++
	if c.winSize > c.maxWinSize {
		log.Panicf("cluster %s: window credit returned twice by %v", c.name, d)
	}
}

// Executing is called by a unit when d starts to execute.
func (c *Cluster) Executing(d *dinst.Dinst) {
	d.Set(dinst.Executing)
	d.ExecutingTime = c.sched.Now()

	if c.policy == RecycleAtExecuting {
		c.releaseWindow(d)
	}

	c.proc.Executing(d)
}

// Executed is called by a unit when the result of d is available. It wakes
// the consumers of d.
func (c *Cluster) Executed(d *dinst.Dinst) {
	d.Set(dinst.Executed)
	d.ExecutedTime = c.sched.Now()

	if c.policy == RecycleAtExecuted {
		c.releaseWindow(d)
	}

	c.proc.Executed(d)
	c.window.wake(d)
}

// Retire retires d on r and returns the credits d still holds. A flushed
// instruction that never executed releases its consumers so none of them
// waits forever.
func (c *Cluster) Retire(d *dinst.Dinst, r Resource, flushing bool) bool {
	if !r.Retire(d, flushing) {
		return false
	}

	c.releaseReg(d)
	c.releaseWindow(d)
	c.winNotUsed.Sample(float64(c.winSize), !flushing)

	if flushing && !d.Is(dinst.Executed) {
		c.window.wake(d)
	}

	return true
}
