package mem

import (
	"log"

	"github.com/sarchlab/ooosim/timing/event"
)

// DefaultPoolSize is the number of requests a pool preallocates.
const DefaultPoolSize = 2048

// Pool recycles requests. It grows past its initial size when every
// request is in flight.
type Pool struct {
	sched *event.Scheduler
	free  []*Request
	inUse int
	seq   uint64
	grown int
}

// NewPool preallocates size requests.
func NewPool(sched *event.Scheduler, size int) *Pool {
	p := &Pool{sched: sched}

	p.free = make([]*Request, 0, size)
	for i := 0; i < size; i++ {
		p.free = append(p.free, newRequest(p))
	}

	return p
}

// InUse returns the number of requests in flight.
func (p *Pool) InUse() int { return p.inUse }

// Grown returns how many requests were allocated beyond the initial size.
func (p *Pool) Grown() int { return p.grown }

// Scheduler returns the scheduler requests resume on.
func (p *Pool) Scheduler() *event.Scheduler { return p.sched }

// Create checks a request out of the pool. The request is owned by obj.
func (p *Pool) Create(obj MemObj, addr uint64) *Request {
	var r *Request

	if n := len(p.free); n > 0 {
		r = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		r = newRequest(p)
		p.grown++
	}

	p.seq++
	p.inUse++
	r.reset(p.seq, obj, addr, p.sched.Now())

	return r
}

func (p *Pool) release(r *Request) {
	if !r.inUse {
		log.Panicf("mem: request %s destroyed twice", r.ID)
	}

	r.inUse = false
	r.done = nil
	r.home, r.creator, r.curr, r.prev = nil, nil, nil, nil
	r.setStateAckOrig = nil

	p.inUse--
	p.free = append(p.free, r)
}

func (p *Pool) immediate(done func()) {
	if done != nil {
		p.sched.Schedule(1, done)
	}
}

func (p *Pool) send(obj MemObj, act Action, keepStats bool, addr, pc uint64, done func()) *Request {
	if addr == 0 || obj == nil {
		p.immediate(done)
		return nil
	}

	r := p.Create(obj, addr)
	r.Type = MsgReq
	r.Action = act
	r.PC = pc
	r.KeepStats = keepStats
	r.done = done

	return r
}

// SendReqRead sends a read for addr to obj and calls done when the data is
// back. Address 0 or a nil obj completes on the next cycle without a
// message.
func (p *Pool) SendReqRead(obj MemObj, keepStats bool, addr, pc uint64, done func()) {
	if r := p.send(obj, ActionRead, keepStats, addr, pc, done); r != nil {
		obj.Req(r)
	}
}

// SendSpecReqRead sends a read that may not allocate the line anywhere it
// misses.
func (p *Pool) SendSpecReqRead(obj MemObj, keepStats bool, addr, pc uint64, done func()) {
	if r := p.send(obj, ActionRead, keepStats, addr, pc, done); r != nil {
		r.Spec = true
		obj.Req(r)
	}
}

// SendReqWrite asks obj for write ownership of addr.
func (p *Pool) SendReqWrite(obj MemObj, keepStats bool, addr, pc uint64, done func()) {
	if r := p.send(obj, ActionWrite, keepStats, addr, pc, done); r != nil {
		obj.Req(r)
	}
}

// SendInstall places a line into obj without fetching it from below.
func (p *Pool) SendInstall(obj MemObj, keepStats bool, addr, pc uint64, done func()) {
	if r := p.send(obj, ActionInstall, keepStats, addr, pc, done); r != nil {
		obj.Req(r)
	}
}

// SendDisp hands a displaced line from one level to the level below.
func (p *Pool) SendDisp(from, to MemObj, keepStats bool, addr uint64, dirty bool) {
	if to == nil {
		return
	}

	r := p.Create(from, addr)
	r.Type = MsgDisp
	r.KeepStats = keepStats
	r.NeedsDisp = dirty
	r.SetNextHop(to)
	r.Schedule(1)
}

// SendSetState asks to, a level closer to a core, to change the state of
// addr. When orig is not nil it waits for the ack.
func (p *Pool) SendSetState(from, to MemObj, addr uint64, act Action, orig *Request, delay event.Cycle) {
	r := p.Create(from, addr)
	r.Type = MsgSetState
	r.Action = act

	if orig != nil {
		r.KeepStats = orig.KeepStats
		r.AddPendingSetStateAck(orig)
	}

	r.SetNextHop(to)
	r.Schedule(delay)
}
