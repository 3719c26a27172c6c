package cluster

import "fmt"

// StallCause says why an instruction could not be admitted this cycle. A
// stall is not an error: the front end keeps the instruction and asks again
// on the next cycle.
type StallCause uint8

// Stall causes, in the order the core reports them.
const (
	NoStall StallCause = iota
	SmallWindow
	SmallROB
	SmallRegisterPool
	OutstandingLoads
	OutstandingStores
	OutstandingBranches
	Syscall
	Replays
	NumStallCauses
)

var stallNames = [NumStallCauses]string{
	NoStall:             "NoStall",
	SmallWindow:         "SmallWinStall",
	SmallROB:            "SmallROBStall",
	SmallRegisterPool:   "SmallREGStall",
	OutstandingLoads:    "OutsLoadsStall",
	OutstandingStores:   "OutsStoresStall",
	OutstandingBranches: "OutsBranchesStall",
	Syscall:             "SyscallStall",
	Replays:             "ReplaysStall",
}

func (s StallCause) String() string {
	if s >= NumStallCauses {
		return fmt.Sprintf("StallCause(%d)", uint8(s))
	}

	return stallNames[s]
}
