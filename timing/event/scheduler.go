// Package event provides the logical clock and the deferred-callback queue
// that drive the timing model.
//
// Each simulated cycle is two akita events. The tick event runs every
// registered Ticker at the start of the cycle. The callback event runs, in
// FIFO order, every callback that was scheduled for that cycle. Future
// callbacks are held in per-cycle buckets and only handed to the engine when
// their cycle starts, so the engine never runs past the last requested
// cycle.
package event

import (
	"log"

	"github.com/sarchlab/akita/v4/sim"
)

// Cycle is a point on the logical clock.
type Cycle uint64

// Clock is a read-only view of the logical clock.
type Clock interface {
	Now() Cycle
}

// Ticker is advanced once per cycle. Tick returns whether the ticker still
// has work to do.
type Ticker interface {
	Tick(now Cycle) bool
}

// TickerFunc adapts a function to the Ticker interface.
type TickerFunc func(now Cycle) bool

// Tick calls f(now).
func (f TickerFunc) Tick(now Cycle) bool {
	return f(now)
}

type tickEvent struct {
	*sim.EventBase
	cycle Cycle
}

type callbackEvent struct {
	*sim.EventBase
	cycle Cycle
}

// Scheduler owns the logical clock and the deferred-callback queue.
type Scheduler struct {
	engine sim.Engine
	freq   sim.Freq

	now      Cycle
	running  bool
	limit    Cycle
	bounded  bool
	stopIdle bool

	buckets map[Cycle][]func()
	pending int

	tickers []Ticker
	active  []bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithEngine replaces the default serial engine.
func WithEngine(engine sim.Engine) SchedulerOption {
	return func(s *Scheduler) {
		s.engine = engine
	}
}

// WithFreq sets the frequency used to place cycles on the engine timeline.
func WithFreq(freq sim.Freq) SchedulerOption {
	return func(s *Scheduler) {
		s.freq = freq
	}
}

// NewScheduler creates a scheduler at cycle 0.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		freq:    1 * sim.GHz,
		buckets: make(map[Cycle][]func()),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		s.engine = sim.NewSerialEngine()
	}

	return s
}

// Now returns the current cycle.
func (s *Scheduler) Now() Cycle {
	return s.now
}

// Pending returns the number of callbacks not yet run.
func (s *Scheduler) Pending() int {
	return s.pending
}

// Engine returns the underlying akita engine.
func (s *Scheduler) Engine() sim.Engine {
	return s.engine
}

// AddTicker registers a ticker. Tickers run in registration order.
func (s *Scheduler) AddTicker(t Ticker) {
	s.tickers = append(s.tickers, t)
	s.active = append(s.active, true)
}

// Schedule runs fn delay cycles from now. A zero delay runs fn in the
// callback phase of the current cycle.
func (s *Scheduler) Schedule(delay Cycle, fn func()) {
	s.ScheduleAbs(s.now+delay, fn)
}

// ScheduleAbs runs fn at cycle when.
func (s *Scheduler) ScheduleAbs(when Cycle, fn func()) {
	if when < s.now {
		log.Panicf("event: cannot schedule at cycle %d, now is %d", when, s.now)
	}

	s.buckets[when] = append(s.buckets[when], fn)
	s.pending++
}

// Run advances the clock until every ticker is idle and no callbacks remain.
func (s *Scheduler) Run() error {
	s.bounded = false
	s.stopIdle = true

	return s.run()
}

// RunFor advances the clock by exactly n cycles, whether or not work remains.
func (s *Scheduler) RunFor(n Cycle) error {
	if n == 0 {
		return nil
	}

	s.bounded = true
	s.stopIdle = false
	s.limit = s.now + n

	return s.run()
}

// RunAtMost advances the clock by up to n cycles. It stops early once every
// ticker is idle and no callbacks remain, leaving Now at the first idle
// cycle.
func (s *Scheduler) RunAtMost(n Cycle) error {
	if n == 0 {
		return nil
	}

	s.bounded = true
	s.stopIdle = true
	s.limit = s.now + n

	return s.run()
}

// RunUntil advances the clock until cycle when has been fully processed.
func (s *Scheduler) RunUntil(when Cycle) error {
	if when < s.now {
		return nil
	}

	return s.RunFor(when - s.now + 1)
}

func (s *Scheduler) run() error {
	if s.running {
		log.Panic("event: scheduler is already running")
	}

	if s.stopIdle && !s.hasWork() {
		return nil
	}

	s.running = true
	defer func() { s.running = false }()

	s.scheduleTick()

	return s.engine.Run()
}

func (s *Scheduler) hasWork() bool {
	if s.pending > 0 {
		return true
	}

	for _, a := range s.active {
		if a {
			return true
		}
	}

	return false
}

func (s *Scheduler) timeOf(c Cycle) sim.VTimeInSec {
	return sim.VTimeInSec(float64(c) / float64(s.freq))
}

func (s *Scheduler) scheduleTick() {
	evt := &tickEvent{
		EventBase: sim.NewEventBase(s.timeOf(s.now), s),
		cycle:     s.now,
	}
	s.engine.Schedule(evt)
}

// Handle implements sim.Handler.
func (s *Scheduler) Handle(e sim.Event) error {
	switch evt := e.(type) {
	case *tickEvent:
		s.handleTick(evt)
	case *callbackEvent:
		s.handleCallbacks(evt)
	default:
		log.Panicf("event: cannot handle event of type %T", e)
	}

	return nil
}

func (s *Scheduler) handleTick(evt *tickEvent) {
	s.now = evt.cycle

	for i, t := range s.tickers {
		if !s.active[i] {
			continue
		}

		s.active[i] = t.Tick(s.now)
	}

	if len(s.buckets[s.now]) == 0 {
		s.endCycle()
		return
	}

	half := s.freq.Period() / 2
	s.engine.Schedule(&callbackEvent{
		EventBase: sim.NewEventBase(s.timeOf(s.now)+half, s),
		cycle:     s.now,
	})
}

func (s *Scheduler) handleCallbacks(evt *callbackEvent) {
	// Callbacks may append to the bucket being drained.
	for i := 0; i < len(s.buckets[evt.cycle]); i++ {
		fn := s.buckets[evt.cycle][i]
		s.pending--
		fn()
	}

	s.endCycle()
}

func (s *Scheduler) endCycle() {
	delete(s.buckets, s.now)
	s.now++

	if s.bounded && s.now >= s.limit {
		return
	}

	if s.stopIdle && !s.hasWork() {
		return
	}

	s.scheduleTick()
}

// Wake marks every ticker active again. Components call it when new work
// arrives for a ticker that had reported itself idle.
func (s *Scheduler) Wake() {
	for i := range s.active {
		s.active[i] = true
	}
}
