// Package mem provides the memory request message that threads one load or
// store through the memory hierarchy, and the MemObj contract that every
// level of the hierarchy implements.
//
// A request never blocks. Each hop hands the request to the next MemObj,
// which schedules the request to resume after its own processing latency.
// When the request resumes it dispatches on its message type to the
// matching Do method of its current owner.
package mem

// MsgType is the protocol stage a request is in.
type MsgType uint8

// Protocol stages.
const (
	// MsgReq travels away from the core to find the line.
	MsgReq MsgType = iota
	// MsgReqAck travels back toward the requester.
	MsgReqAck
	// MsgSetState asks a cache closer to a core to change a line's state.
	MsgSetState
	// MsgSetStateAck answers a MsgSetState.
	MsgSetStateAck
	// MsgDisp carries a displaced line away from the core.
	MsgDisp
)

func (t MsgType) String() string {
	switch t {
	case MsgReq:
		return "req"
	case MsgReqAck:
		return "reqAck"
	case MsgSetState:
		return "setState"
	case MsgSetStateAck:
		return "setStateAck"
	case MsgDisp:
		return "disp"
	default:
		return "unknown"
	}
}

// Action is what the request wants done to the line.
type Action uint8

// Request actions.
const (
	ActionRead Action = iota
	ActionWrite
	// ActionInstall places a line the requester already holds without
	// fetching it.
	ActionInstall
	ActionInvalidate
	ActionShared
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionInstall:
		return "install"
	case ActionInvalidate:
		return "invalidate"
	case ActionShared:
		return "shared"
	default:
		return "unknown"
	}
}

// MemObj is one level of the memory hierarchy.
type MemObj interface {
	// Name identifies the object in logs and statistics.
	Name() string

	// Req accepts a request whose current hop is this object. The object
	// schedules the request to resume once its port and lookup latency
	// allow.
	Req(r *Request)

	DoReq(r *Request)
	DoReqAck(r *Request)
	DoSetState(r *Request)
	DoSetStateAck(r *Request)
	DoDisp(r *Request)

	// IsBusy reports whether the object cannot take another request for
	// addr right now.
	IsBusy(addr uint64) bool
}
