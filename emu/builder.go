package emu

import (
	"github.com/sarchlab/ooosim/insts"
)

// Builder assembles synthetic instruction streams. It tracks the program
// counter the way a functional emulator would: four bytes per instruction
// and a jump to the target on every taken control-flow op.
type Builder struct {
	pc        uint64
	transient bool
	recs      []Record
}

// NewBuilder starts a stream at pc.
func NewBuilder(pc uint64) *Builder {
	return &Builder{pc: pc}
}

// PC returns the program counter of the next instruction.
func (b *Builder) PC() uint64 { return b.pc }

// Len returns the number of records built so far.
func (b *Builder) Len() int { return len(b.recs) }

// At moves the program counter.
func (b *Builder) At(pc uint64) *Builder {
	b.pc = pc
	return b
}

// Records returns the records built so far.
func (b *Builder) Records() []Record {
	out := make([]Record, len(b.recs))
	copy(out, b.recs)

	return out
}

func (b *Builder) add(r Record) *Builder {
	r.PC = b.pc
	r.Transient = b.transient
	r.Seq = uint64(len(b.recs))
	b.recs = append(b.recs, r)

	if r.Inst.Op.IsBranch() && r.Taken {
		b.pc = r.Addr
	} else {
		b.pc += 4
	}

	return b
}

// Op appends an instruction of class op.
func (b *Builder) Op(op insts.Op, dst, src1, src2 insts.Reg) *Builder {
	return b.add(Record{Inst: insts.New(op, src1, src2, dst, insts.RegInvalidOutput)})
}

// ALU appends an integer op.
func (b *Builder) ALU(dst, src1, src2 insts.Reg) *Builder {
	return b.Op(insts.OpAALU, dst, src1, src2)
}

// Mul appends an integer multiply.
func (b *Builder) Mul(dst, src1, src2 insts.Reg) *Builder {
	return b.Op(insts.OpCALUMult, dst, src1, src2)
}

// FPU appends a floating-point op.
func (b *Builder) FPU(dst, src1, src2 insts.Reg) *Builder {
	return b.Op(insts.OpCALUFPALU, dst, src1, src2)
}

// Load appends an eight-byte load of addr into dst.
func (b *Builder) Load(dst, base insts.Reg, addr uint64) *Builder {
	return b.add(Record{
		Inst: insts.New(insts.OpLALULoad, base, insts.RegR0, dst, insts.RegInvalidOutput),
		Addr: addr,
		Size: 8,
	})
}

// Store appends an eight-byte store of data to addr.
func (b *Builder) Store(base, data insts.Reg, addr uint64) *Builder {
	return b.add(Record{
		Inst: insts.New(insts.OpSALUStore, base, data, insts.RegInvalidOutput, insts.RegInvalidOutput),
		Addr: addr,
		Size: 8,
	})
}

// Branch appends a conditional branch to target.
func (b *Builder) Branch(src1, src2 insts.Reg, taken bool, target uint64) *Builder {
	addr := b.pc + 4
	if taken {
		addr = target
	}

	return b.add(Record{
		Inst:  insts.New(insts.OpBALULBranch, src1, src2, insts.RegInvalidOutput, insts.RegInvalidOutput),
		Addr:  addr,
		Taken: taken,
	})
}

// Jump appends a direct jump.
func (b *Builder) Jump(target uint64) *Builder {
	return b.add(Record{
		Inst:  insts.New(insts.OpBALULJump, insts.RegR0, insts.RegR0, insts.RegInvalidOutput, insts.RegInvalidOutput),
		Addr:  target,
		Taken: true,
	})
}

// Call appends a direct call that links into ra.
func (b *Builder) Call(target uint64) *Builder {
	return b.add(Record{
		Inst:  insts.New(insts.OpBALULCall, insts.RegR0, insts.RegR0, insts.RegRA, insts.RegInvalidOutput),
		Addr:  target,
		Taken: true,
	})
}

// Ret appends a return to target.
func (b *Builder) Ret(target uint64) *Builder {
	return b.add(Record{
		Inst:  insts.New(insts.OpBALURet, insts.RegRA, insts.RegR0, insts.RegInvalidOutput, insts.RegInvalidOutput),
		Addr:  target,
		Taken: true,
	})
}

// Fence appends a serializing op with no destination.
func (b *Builder) Fence() *Builder {
	return b.Op(insts.OpRALU, insts.RegInvalidOutput, insts.RegR0, insts.RegR0)
}

// Syscall appends an environment call.
func (b *Builder) Syscall() *Builder {
	return b.add(Record{
		Inst:    insts.New(insts.OpRALU, insts.RegR0, insts.RegR0, insts.RegR0, insts.RegInvalidOutput),
		Syscall: true,
	})
}

// Transient appends the records fn builds as wrong-path work. The program
// counter is restored afterwards.
func (b *Builder) Transient(fn func(*Builder)) *Builder {
	pc, prev := b.pc, b.transient
	b.transient = true

	fn(b)

	b.transient = prev
	b.pc = pc

	return b
}
