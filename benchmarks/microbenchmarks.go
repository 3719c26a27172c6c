package benchmarks

import (
	"github.com/sarchlab/ooosim/emu"
	"github.com/sarchlab/ooosim/insts"
)

const codeBase = 0x1000

var (
	r0 = insts.RegR0
	r1 = insts.IntReg(1)
	r2 = insts.IntReg(2)
	r3 = insts.IntReg(3)
	r4 = insts.IntReg(4)
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets a single mechanism of the core.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		aluIndependent(),
		aluChain(),
		streamingLoads(),
		pointerChase(),
		storeLoadForwarding(),
		memoryOrderViolation(),
		branchLoop(),
		wrongPathBurst(),
		functionCalls(),
		mixedOperations(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		aluChain(),
		memoryOrderViolation(),
		branchLoop(),
	}
}

func aluIndependent() Benchmark {
	return Benchmark{
		Name:        "alu_independent",
		Description: "64 ADDs over 8 registers - measures ALU throughput",
		Program: func() []emu.Record {
			b := emu.NewBuilder(codeBase)
			for i := 0; i < 64; i++ {
				rd := insts.IntReg(uint32(2 + i%8))
				b.ALU(rd, rd, r0)
			}

			return b.Records()
		},
	}
}

func aluChain() Benchmark {
	return Benchmark{
		Name:        "alu_chain",
		Description: "64 dependent ADDs - measures wakeup latency",
		Program: func() []emu.Record {
			b := emu.NewBuilder(codeBase)
			for i := 0; i < 64; i++ {
				b.ALU(r1, r1, r0)
			}

			return b.Records()
		},
	}
}

func streamingLoads() Benchmark {
	return Benchmark{
		Name:        "streaming_loads",
		Description: "64 independent loads over 8KB - measures memory-level parallelism",
		Program: func() []emu.Record {
			b := emu.NewBuilder(codeBase)
			for i := 0; i < 64; i++ {
				b.Load(insts.IntReg(uint32(2+i%8)), r0, 0x10_0000+uint64(i)*128)
			}

			return b.Records()
		},
	}
}

func pointerChase() Benchmark {
	return Benchmark{
		Name:        "pointer_chase",
		Description: "32 loads, each addressed by the previous one - measures load latency",
		Program: func() []emu.Record {
			b := emu.NewBuilder(codeBase)
			for i := 0; i < 32; i++ {
				b.Load(r1, r1, 0x20_0000+uint64(i)*4096)
			}

			return b.Records()
		},
	}
}

func storeLoadForwarding() Benchmark {
	return Benchmark{
		Name:        "store_load_forwarding",
		Description: "32 store-load pairs to one word - measures forwarding delay",
		Program: func() []emu.Record {
			b := emu.NewBuilder(codeBase)
			for i := 0; i < 32; i++ {
				b.ALU(r1, r1, r0).
					Store(r0, r1, 0x30_0000).
					Load(r2, r0, 0x30_0000).
					ALU(r3, r2, r2)
			}

			return b.Records()
		},
	}
}

// memoryOrderViolation runs loads that issue ahead of a store to the same
// word whose data comes from a divide.
func memoryOrderViolation() Benchmark {
	return Benchmark{
		Name:        "memory_order_violation",
		Description: "16 loads that overtake an older aliasing store - measures replay cost",
		Program: func() []emu.Record {
			b := emu.NewBuilder(codeBase).ALU(r1, r0, r0)
			for i := 0; i < 16; i++ {
				addr := 0x40_0000 + uint64(i)*64
				b.Op(insts.OpCALUDiv, r2, r1, r1).
					Store(r1, r2, addr).
					Load(r3, r1, addr).
					ALU(r4, r3, r3)
			}

			return b.Records()
		},
	}
}

// branchLoop runs a 16-iteration loop eight times. The first taken branch
// misses in the BTB and the exit branch of each pass mispredicts.
func branchLoop() Benchmark {
	return Benchmark{
		Name:        "branch_loop",
		Description: "8 passes of a 16-iteration loop - measures predictor training",
		Program: func() []emu.Record {
			b := emu.NewBuilder(codeBase)
			for pass := 0; pass < 8; pass++ {
				top := b.PC()
				for i := 0; i < 16; i++ {
					b.ALU(r1, r1, r0).
						ALU(r2, r1, r0).
						Branch(r1, r2, i < 15, top)
				}

				b.ALU(r3, r3, r0)
			}

			return b.Records()
		},
	}
}

// wrongPathBurst alternates taken branches with wrong-path work the core
// fetches before the branch resolves.
func wrongPathBurst() Benchmark {
	return Benchmark{
		Name:        "wrong_path_burst",
		Description: "16 taken branches, each followed by 4 wrong-path ops",
		Program: func() []emu.Record {
			b := emu.NewBuilder(codeBase)
			for i := 0; i < 16; i++ {
				b.ALU(r1, r1, r0).Branch(r1, r0, true, b.PC()+0x100)
				b.Transient(func(b *emu.Builder) {
					b.Load(r2, r0, 0x50_0000+uint64(i)*64).
						ALU(r3, r2, r2).
						ALU(r4, r3, r3).
						Store(r0, r4, 0x50_0000)
				})
			}

			return b.Records()
		},
	}
}

func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "16 calls to one leaf function - measures the return address stack",
		Program: func() []emu.Record {
			const leaf = 0x8000

			b := emu.NewBuilder(codeBase)
			for i := 0; i < 16; i++ {
				ret := b.PC() + 4
				b.Call(leaf).
					ALU(r1, r1, r0).
					ALU(r2, r1, r1).
					Ret(ret).
					ALU(r3, r2, r0)
			}

			return b.Records()
		},
	}
}

func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "multiplies, FP ops, memory, a fence and a syscall",
		Program: func() []emu.Record {
			f1, f2 := insts.FPReg(1), insts.FPReg(2)

			b := emu.NewBuilder(codeBase)
			for i := 0; i < 8; i++ {
				addr := 0x60_0000 + uint64(i)*8
				b.Mul(r1, r1, r2).
					FPU(f1, f1, f2).
					Op(insts.OpCALUFPMult, f2, f1, f1).
					Load(r2, r0, addr).
					ALU(r3, r2, r1).
					Store(r0, r3, addr+0x1000)
			}

			b.Fence().
				Op(insts.OpCALUFPDiv, f1, f1, f2).
				Syscall().
				ALU(r4, r3, r0)

			return b.Records()
		},
	}
}
