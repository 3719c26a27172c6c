package mem

import (
	"log"

	"github.com/rs/xid"

	"github.com/sarchlab/ooosim/timing/event"
)

// Request is a pooled memory message.
type Request struct {
	pool *Pool

	// ID is a unique trace id. It is rendered only when logged.
	ID  xid.ID
	seq uint64

	Addr   uint64
	PC     uint64
	Type   MsgType
	Action Action

	// KeepStats is false for requests that must not disturb statistics.
	KeepStats bool
	// Spec marks a speculative read that must not allocate lines.
	Spec bool
	// NeedsDisp is set when a state change found dirty data.
	NeedsDisp bool
	// Exclusive is set on an ack that grants sole ownership of the line.
	Exclusive bool

	home    MemObj
	creator MemObj
	curr    MemObj
	prev    MemObj
	path    []MemObj

	pendingSetStateAck int
	setStateAckOrig    *Request

	StartTime event.Cycle
	done      func()
	redoFn    func()
	inUse     bool
}

// Home returns the object the request was first handed to.
func (r *Request) Home() MemObj { return r.home }

// Creator returns the object that created the request.
func (r *Request) Creator() MemObj { return r.creator }

// Curr returns the object that currently owns the request.
func (r *Request) Curr() MemObj { return r.curr }

// Prev returns the object that owned the request before the last hop.
func (r *Request) Prev() MemObj { return r.prev }

// Seq returns the request's creation order.
func (r *Request) Seq() uint64 { return r.seq }

// PendingSetStateAcks returns how many fan-out acks the request waits on.
func (r *Request) PendingSetStateAcks() int { return r.pendingSetStateAck }

// SetNextHop moves ownership of the request to next.
func (r *Request) SetNextHop(next MemObj) {
	if next == nil {
		log.Panicf("mem: request %s has no next hop", r.ID)
	}

	if next == r.curr {
		log.Panicf("mem: request %s hops to its current owner %s", r.ID, next.Name())
	}

	r.prev = r.curr
	r.curr = next
}

// PushPath records obj as a hop the ack must return through.
func (r *Request) PushPath(obj MemObj) {
	r.path = append(r.path, obj)
}

// PeekPath returns the hop the ack returns to next without removing it.
func (r *Request) PeekPath() MemObj {
	if len(r.path) == 0 {
		return nil
	}

	return r.path[len(r.path)-1]
}

// PopPath returns the most recent hop the ack must return through, or nil
// if the ack has arrived back at its creator.
func (r *Request) PopPath() MemObj {
	n := len(r.path)
	if n == 0 {
		return nil
	}

	obj := r.path[n-1]
	r.path = r.path[:n-1]

	return obj
}

// ConvertReqAck turns a request into its acknowledgment.
func (r *Request) ConvertReqAck() {
	if r.Type != MsgReq {
		log.Panicf("mem: request %s converting %v to reqAck", r.ID, r.Type)
	}

	r.Type = MsgReqAck
}

// ConvertSetStateAck turns a setState into its acknowledgment.
func (r *Request) ConvertSetStateAck() {
	if r.Type != MsgSetState {
		log.Panicf("mem: request %s converting %v to setStateAck", r.ID, r.Type)
	}

	r.Type = MsgSetStateAck
}

// Schedule resumes the request at its current owner after delay cycles.
func (r *Request) Schedule(delay event.Cycle) {
	r.pool.sched.Schedule(delay, r.redoFn)
}

// ScheduleAbs resumes the request at its current owner at cycle when.
func (r *Request) ScheduleAbs(when event.Cycle) {
	r.pool.sched.ScheduleAbs(when, r.redoFn)
}

func (r *Request) redo() {
	if !r.inUse {
		log.Panicf("mem: request %s resumed after destroy", r.ID)
	}

	switch r.Type {
	case MsgReq:
		r.curr.DoReq(r)
	case MsgReqAck:
		r.curr.DoReqAck(r)
	case MsgSetState:
		r.curr.DoSetState(r)
	case MsgSetStateAck:
		r.curr.DoSetStateAck(r)
	case MsgDisp:
		r.curr.DoDisp(r)
	}
}

// AddPendingSetStateAck makes orig wait until r is acknowledged.
func (r *Request) AddPendingSetStateAck(orig *Request) {
	if r.setStateAckOrig != nil {
		log.Panicf("mem: request %s already blocks %s", r.ID, r.setStateAckOrig.ID)
	}

	orig.pendingSetStateAck++
	r.setStateAckOrig = orig
}

// SetStateAckDone records that r was acknowledged. When the request r was
// blocking sees its last ack, it resumes after delay cycles. A blocked
// setState resumes as its own ack.
func (r *Request) SetStateAckDone(delay event.Cycle) {
	orig := r.setStateAckOrig
	r.setStateAckOrig = nil

	if orig == nil {
		return
	}

	orig.pendingSetStateAck--
	if orig.pendingSetStateAck < 0 {
		log.Panicf("mem: request %s pending acks went negative", orig.ID)
	}

	if orig.pendingSetStateAck > 0 {
		return
	}

	if orig.Type == MsgSetState {
		orig.ConvertSetStateAck()
	}

	orig.Schedule(delay)
}

// Complete runs the requester's callback and returns the request to the
// pool.
func (r *Request) Complete() {
	done := r.done
	r.Destroy()

	if done != nil {
		done()
	}
}

// Destroy returns the request to the pool.
func (r *Request) Destroy() {
	if r.pendingSetStateAck != 0 {
		log.Panicf("mem: request %s destroyed with %d pending acks", r.ID, r.pendingSetStateAck)
	}

	r.pool.release(r)
}

// Latency returns the cycles elapsed since the request was created.
func (r *Request) Latency() event.Cycle {
	return r.pool.sched.Now() - r.StartTime
}

func newRequest(p *Pool) *Request {
	r := &Request{pool: p}
	r.redoFn = r.redo

	return r
}

func (r *Request) reset(seq uint64, obj MemObj, addr uint64, now event.Cycle) {
	path := r.path[:0]
	pool, redo := r.pool, r.redoFn

	*r = Request{
		pool:      pool,
		redoFn:    redo,
		ID:        xid.New(),
		seq:       seq,
		Addr:      addr,
		KeepStats: true,
		home:      obj,
		creator:   obj,
		curr:      obj,
		path:      path,
		StartTime: now,
		inUse:     true,
	}
}
