// Package insts provides the static instruction model consumed by the timing
// simulator.
//
// The timing model never evaluates instruction results. An instruction is
// reduced to an opcode class, up to two logical source registers, and up to
// two logical destination registers. The RISC-V decoder classifies raw
// instruction words into that form.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00b50533, 0x1000) // add a0, a0, a1
//	fmt.Printf("Op: %v, Dst: %v, Src: %v %v\n", inst.Op, inst.Dst1, inst.Src1, inst.Src2)
package insts
