package mem

import (
	"log"

	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/port"
	"github.com/sarchlab/ooosim/timing/stats"
)

// Respond acknowledges r toward the requester. The ack resumes at the
// previous hop after delay cycles, or completes at once if the current
// owner created the request.
func Respond(r *Request, delay event.Cycle) {
	if r.Type == MsgReq {
		r.ConvertReqAck()
	}

	up := r.PopPath()
	if up == nil {
		r.Complete()
		return
	}

	r.SetNextHop(up)
	r.Schedule(delay)
}

// Forward sends r one level further from the core. The current owner is
// recorded so the ack returns through it.
func Forward(r *Request, lower MemObj) {
	if lower == nil {
		log.Panicf("mem: %s has no lower level for %v", r.curr.Name(), r.Action)
	}

	r.PushPath(r.curr)
	r.SetNextHop(lower)
	lower.Req(r)
}

// Memory is the endpoint of the hierarchy. Every request hits.
type Memory struct {
	name    string
	port    port.Port
	latency event.Cycle

	reads  *stats.Counter
	writes *stats.Counter
	disps  *stats.Counter
}

// NewMemory creates a memory with the given access latency. Bandwidth is the
// number of requests it starts per cycle; zero means unlimited.
func NewMemory(
	name string,
	clock event.Clock,
	latency event.Cycle,
	bandwidth int,
	reg *stats.Registry,
) *Memory {
	return &Memory{
		name:    name,
		port:    port.New(name, clock, bandwidth, 1, reg),
		latency: latency,
		reads:   reg.Counter(name + ":readHit"),
		writes:  reg.Counter(name + ":writeHit"),
		disps:   reg.Counter(name + ":nDisp"),
	}
}

// Name returns the memory's name.
func (m *Memory) Name() string { return m.name }

// Req schedules the access after the memory latency.
func (m *Memory) Req(r *Request) {
	slot := m.port.NextSlot(r.KeepStats)
	r.ScheduleAbs(slot + m.latency)
}

// DoReq serves the access.
func (m *Memory) DoReq(r *Request) {
	switch r.Action {
	case ActionWrite:
		m.writes.Inc(r.KeepStats)
	default:
		m.reads.Inc(r.KeepStats)
	}

	r.Exclusive = true
	Respond(r, 1)
}

// DoReqAck is never valid for memory.
func (m *Memory) DoReqAck(r *Request) {
	log.Panicf("mem: %s received reqAck %s", m.name, r.ID)
}

// DoSetState is never valid for memory.
func (m *Memory) DoSetState(r *Request) {
	log.Panicf("mem: %s received setState %s", m.name, r.ID)
}

// DoSetStateAck is never valid for memory.
func (m *Memory) DoSetStateAck(r *Request) {
	log.Panicf("mem: %s received setStateAck %s", m.name, r.ID)
}

// DoDisp absorbs a written-back line.
func (m *Memory) DoDisp(r *Request) {
	m.disps.Inc(r.KeepStats)
	r.Destroy()
}

// IsBusy is always false; memory queues without limit.
func (m *Memory) IsBusy(uint64) bool {
	return false
}
