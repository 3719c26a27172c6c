package insts

import "fmt"

// Reg is a logical register id.
//
// Ids 0 to 31 are the integer registers and 32 to 63 the floating-point
// registers. RegR0 reads as zero and therefore never creates a dependence.
// RegInvalidOutput marks an unused destination slot.
type Reg uint8

// Special registers.
const (
	RegR0            Reg = 0
	RegRA            Reg = 1
	RegFP0           Reg = 32
	RegInvalidOutput Reg = 64
	NumRegs              = 65
)

// IntReg returns the logical id of integer register n.
func IntReg(n uint32) Reg {
	if n > 31 {
		panic(fmt.Sprintf("integer register %d out of range", n))
	}

	return Reg(n)
}

// FPReg returns the logical id of floating-point register n.
func FPReg(n uint32) Reg {
	if n > 31 {
		panic(fmt.Sprintf("fp register %d out of range", n))
	}

	return RegFP0 + Reg(n)
}

// Valid reports whether the register id fits the register alias table.
func (r Reg) Valid() bool {
	return r < NumRegs
}

func (r Reg) String() string {
	switch {
	case r == RegInvalidOutput:
		return "-"
	case r < RegFP0:
		return fmt.Sprintf("x%d", uint8(r))
	case r < RegInvalidOutput:
		return fmt.Sprintf("f%d", uint8(r-RegFP0))
	default:
		return fmt.Sprintf("Reg(%d)", uint8(r))
	}
}
