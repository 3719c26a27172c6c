package insts

import (
	"fmt"
	"strings"
)

// Op is an opcode class. Instructions of the same class share a functional
// unit and the same issue and retire rules.
type Op uint8

// Opcode classes.
const (
	OpInvalid Op = iota
	OpRALU       // serializing ops: fences, CSR accesses, syscalls
	OpAALU       // integer arithmetic and logic
	OpBALULBranch
	OpBALURBranch
	OpBALULJump
	OpBALURJump
	OpBALULCall
	OpBALURCall
	OpBALURet
	OpLALULoad
	OpSALUStore
	OpSALULL
	OpSALUSC
	OpSALUAddr
	OpCALUFPMult
	OpCALUFPDiv
	OpCALUFPALU
	OpCALUMult
	OpCALUDiv
	NumOps
)

var opNames = [NumOps]string{
	OpInvalid:     "iOpInvalid",
	OpRALU:        "iRALU",
	OpAALU:        "iAALU",
	OpBALULBranch: "iBALU_LBRANCH",
	OpBALURBranch: "iBALU_RBRANCH",
	OpBALULJump:   "iBALU_LJUMP",
	OpBALURJump:   "iBALU_RJUMP",
	OpBALULCall:   "iBALU_LCALL",
	OpBALURCall:   "iBALU_RCALL",
	OpBALURet:     "iBALU_RET",
	OpLALULoad:    "iLALU_LD",
	OpSALUStore:   "iSALU_ST",
	OpSALULL:      "iSALU_LL",
	OpSALUSC:      "iSALU_SC",
	OpSALUAddr:    "iSALU_ADDR",
	OpCALUFPMult:  "iCALU_FPMULT",
	OpCALUFPDiv:   "iCALU_FPDIV",
	OpCALUFPALU:   "iCALU_FPALU",
	OpCALUMult:    "iCALU_MULT",
	OpCALUDiv:     "iCALU_DIV",
}

// String returns the configuration name of the opcode class.
func (op Op) String() string {
	if op >= NumOps {
		return fmt.Sprintf("Op(%d)", uint8(op))
	}

	return opNames[op]
}

// ParseOp converts a configuration name back to an opcode class. Names are
// matched case-insensitively.
func ParseOp(name string) (Op, error) {
	for i, n := range opNames {
		if strings.EqualFold(n, name) {
			return Op(i), nil
		}
	}

	return OpInvalid, fmt.Errorf("unknown opcode class %q", name)
}

// IsBranch reports whether the class changes control flow.
func (op Op) IsBranch() bool {
	return op >= OpBALULBranch && op <= OpBALURet
}

// IsLoad reports whether the class reads memory.
func (op Op) IsLoad() bool {
	return op == OpLALULoad
}

// IsStore reports whether the class writes memory.
func (op Op) IsStore() bool {
	return op >= OpSALUStore && op <= OpSALUAddr
}

// IsMemory reports whether the class is handled by the load/store units.
func (op Op) IsMemory() bool {
	return op.IsLoad() || op.IsStore()
}
