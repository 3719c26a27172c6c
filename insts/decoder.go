package insts

// Decoded is the result of classifying one raw instruction word.
type Decoded struct {
	Inst Instruction

	// Target is the static branch target for pc-relative control flow.
	Target uint64

	// Offset is the sign-extended immediate added to Src1 for memory ops
	// and register jumps.
	Offset int64

	// Size is the memory access width in bytes, zero for non-memory ops.
	Size int

	// Compressed is true for 16-bit encodings.
	Compressed bool

	// Syscall is true for environment calls.
	Syscall bool
}

// Decoder classifies RISC-V instruction words into opcode classes.
type Decoder struct{}

// NewDecoder creates a new RISC-V instruction classifier.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode classifies a raw instruction word fetched at pc. Words the
// classifier does not recognize decode as a plain ALU op with no registers.
func (d *Decoder) Decode(word uint32, pc uint64) Decoded {
	out := Decoded{
		Inst: New(OpAALU, RegR0, RegR0, RegInvalidOutput, RegInvalidOutput),
	}

	if word&0x3 != 0x3 {
		d.decodeCompressed(word, &out)
		return out
	}

	funct7 := (word >> 25) & 0x7F // bits [31:25]
	funct3 := (word >> 12) & 0x7  // bits [14:12]
	rs1 := (word >> 15) & 0x1F    // bits [19:15]
	rs2 := (word >> 20) & 0x1F    // bits [24:20]
	rd := (word >> 7) & 0x1F      // bits [11:7]

	switch word & 0x7F {
	case 0x03:
		if funct3 < 6 {
			out.Inst = New(OpLALULoad, IntReg(rs1), RegR0, IntReg(rd), RegInvalidOutput)
			out.Offset = signExtend(uint64(word>>20), 12)
			out.Size = 1 << (funct3 & 0x3)
		}
	case 0x0F:
		out.Inst = New(OpRALU, RegR0, RegR0, RegInvalidOutput, RegInvalidOutput)
	case 0x13:
		out.Inst = New(OpAALU, IntReg(rs1), RegR0, IntReg(rd), RegInvalidOutput)
	case 0x23:
		if funct3 < 4 {
			out.Inst = New(OpSALUStore, IntReg(rs1), IntReg(rs2), RegInvalidOutput, RegInvalidOutput)
			out.Offset = signExtend(uint64(funct7<<5|rd), 12)
			out.Size = 1 << funct3
		}
	case 0x2F:
		src2 := RegR0
		if rs2 != 0 {
			src2 = IntReg(rs2)
		}
		out.Inst = New(OpRALU, IntReg(rs1), src2, IntReg(rd), RegInvalidOutput)
	case 0x33:
		out.Inst = New(d.mulDivClass(funct7, funct3 >= 4), IntReg(rs1), IntReg(rs2), IntReg(rd), RegInvalidOutput)
	case 0x3B:
		op := OpAALU
		if funct7 == 1 {
			switch {
			case funct3 == 0:
				op = OpCALUMult
			case funct3 > 3:
				op = OpCALUDiv
			}
		}
		out.Inst = New(op, IntReg(rs1), IntReg(rs2), IntReg(rd), RegInvalidOutput)
	case 0x63:
		d.decodeBranch(word, pc, &out)
	case 0x67:
		if funct3 == 0 {
			d.decodeJALR(word, &out)
		}
	case 0x6F:
		d.decodeJAL(word, pc, &out)
	case 0x73:
		src1, dst := RegR0, RegInvalidOutput
		if funct3 != 0 && funct3 < 4 {
			src1, dst = IntReg(rs1), IntReg(rd)
		}
		out.Inst = New(OpRALU, src1, RegR0, dst, RegInvalidOutput)
		out.Syscall = word == 0x00000073
	}

	return out
}

func (d *Decoder) mulDivClass(funct7 uint32, div bool) Op {
	if funct7 != 1 {
		return OpAALU
	}

	if div {
		return OpCALUDiv
	}

	return OpCALUMult
}

// decodeCompressed only distinguishes c.jr and c.jalr style register jumps.
// Every other 16-bit encoding is an ALU op.
func (d *Decoder) decodeCompressed(word uint32, out *Decoded) {
	out.Compressed = true

	if word&0x3 != 0x2 {
		return
	}

	rs1 := (word >> 7) & 0x1F
	if word&0x7C != 0 || rs1 == 0 {
		return
	}

	op := OpBALURJump
	if Reg(rs1) == RegRA {
		op = OpBALURet
	}

	out.Inst = New(op, IntReg(rs1), RegR0, RegInvalidOutput, RegInvalidOutput)
}

// decodeBranch decodes B-type conditional branches.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | 1100011
func (d *Decoder) decodeBranch(word uint32, pc uint64, out *Decoded) {
	funct7 := (word >> 25) & 0x7F
	rd := (word >> 7) & 0x1F
	rs1 := (word >> 15) & 0x1F
	rs2 := (word >> 20) & 0x1F

	imm := (funct7&0x40)<<6 | (rd&1)<<11 | (funct7&0x3F)<<5 | rd&0x1E
	out.Offset = signExtend(uint64(imm), 13)
	out.Target = pc + uint64(out.Offset)
	out.Inst = New(OpBALULBranch, IntReg(rs1), IntReg(rs2), RegInvalidOutput, RegInvalidOutput)
}

// decodeJALR decodes register jumps, telling calls and returns apart by the
// link register convention.
func (d *Decoder) decodeJALR(word uint32, out *Decoded) {
	rd := IntReg((word >> 7) & 0x1F)
	rs1 := IntReg((word >> 15) & 0x1F)
	out.Offset = signExtend(uint64(word>>20), 12)

	op := OpBALURJump
	switch {
	case rd == RegR0 && rs1 == RegRA && out.Offset == 0:
		op = OpBALURet
	case rd == RegRA:
		op = OpBALURCall
	}

	out.Inst = New(op, rs1, RegR0, rd, RegInvalidOutput)
}

// decodeJAL decodes J-type jumps.
// Format: imm[20|10:1|11|19:12] | rd | 1101111
func (d *Decoder) decodeJAL(word uint32, pc uint64, out *Decoded) {
	rd := IntReg((word >> 7) & 0x1F)

	imm := (word>>31&0x1)<<20 |
		(word>>12&0xFF)<<12 |
		(word>>20&0x1)<<11 |
		(word>>21&0x3FF)<<1
	out.Offset = signExtend(uint64(imm), 21)
	out.Target = pc + uint64(out.Offset)

	op := OpBALULJump
	if rd == RegRA {
		op = OpBALULCall
	}

	out.Inst = New(op, RegR0, RegR0, rd, RegInvalidOutput)
}

func signExtend(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}
