package insts

import "fmt"

// Instruction is a static instruction as seen by the timing model.
type Instruction struct {
	Op   Op
	Src1 Reg
	Src2 Reg
	Dst1 Reg
	Dst2 Reg
}

// New builds an instruction. A destination of RegR0 is discarded because
// writes to the zero register are never observed.
func New(op Op, src1, src2, dst1, dst2 Reg) Instruction {
	for _, r := range []Reg{src1, src2, dst1, dst2} {
		if !r.Valid() {
			panic(fmt.Sprintf("insts: register %d out of range", r))
		}
	}

	if dst1 == RegR0 {
		dst1 = RegInvalidOutput
	}

	if dst2 == RegR0 {
		dst2 = RegInvalidOutput
	}

	return Instruction{Op: op, Src1: src1, Src2: src2, Dst1: dst1, Dst2: dst2}
}

// HasSrc1 reports whether the first source creates a dependence.
func (i Instruction) HasSrc1() bool {
	return i.Src1 != RegR0 && i.Src1 != RegInvalidOutput
}

// HasSrc2 reports whether the second source creates a dependence.
func (i Instruction) HasSrc2() bool {
	return i.Src2 != RegR0 && i.Src2 != RegInvalidOutput
}

// HasDst1 reports whether the first destination is written.
func (i Instruction) HasDst1() bool {
	return i.Dst1 != RegInvalidOutput
}

// HasDst2 reports whether the second destination is written.
func (i Instruction) HasDst2() bool {
	return i.Dst2 != RegInvalidOutput
}

// HasDstRegister reports whether the instruction produces any register value.
func (i Instruction) HasDstRegister() bool {
	return i.HasDst1() || i.HasDst2()
}

// IsFuncCall reports whether the instruction pushes a return address.
func (i Instruction) IsFuncCall() bool {
	return i.Op == OpBALULCall || i.Op == OpBALURCall
}

// IsFuncRet reports whether the instruction pops a return address.
func (i Instruction) IsFuncRet() bool {
	return i.Op == OpBALURet
}

func (i Instruction) String() string {
	return fmt.Sprintf("%v %v,%v <- %v,%v", i.Op, i.Dst1, i.Dst2, i.Src1, i.Src2)
}
