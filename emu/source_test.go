package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ooosim/emu"
	"github.com/sarchlab/ooosim/insts"
)

var _ = Describe("Stream", func() {
	var s *emu.Stream

	BeforeEach(func() {
		t0 := emu.NewBuilder(0x1000).
			ALU(insts.IntReg(5), insts.RegR0, insts.RegR0).
			Load(insts.IntReg(6), insts.IntReg(5), 0x8000).
			Store(insts.IntReg(5), insts.IntReg(6), 0x8008).
			Records()
		t1 := emu.NewBuilder(0x2000).Fence().Records()

		s = emu.NewStream(t0, t1)
	})

	It("should hand out records in order with sequence numbers", func() {
		Expect(s.Threads()).To(Equal(2))
		Expect(s.Len(0)).To(Equal(3))

		for i := 0; i < 3; i++ {
			r, ok := s.Next(0)
			Expect(ok).To(BeTrue())
			Expect(r.Seq).To(Equal(uint64(i)))
			Expect(r.PC).To(Equal(0x1000 + uint64(4*i)))
		}

		_, ok := s.Next(0)
		Expect(ok).To(BeFalse())
	})

	It("should keep threads apart", func() {
		r, ok := s.Next(1)
		Expect(ok).To(BeTrue())
		Expect(r.Inst.Op).To(Equal(insts.OpRALU))
		Expect(s.Remaining(0)).To(Equal(3))
		Expect(s.Remaining(1)).To(Equal(0))
	})

	It("should return nothing for an unknown thread", func() {
		_, ok := s.Next(7)
		Expect(ok).To(BeFalse())
	})

	It("should replay the suffix after a rewind", func() {
		s.Next(0)
		s.Next(0)
		s.Next(0)

		s.Rewind(0, 1)
		Expect(s.Remaining(0)).To(Equal(2))

		r, _ := s.Next(0)
		Expect(r.Seq).To(Equal(uint64(1)))
		Expect(r.Inst.Op).To(Equal(insts.OpLALULoad))
	})

	It("should refuse to rewind forward", func() {
		Expect(func() { s.Rewind(0, 2) }).To(Panic())
	})
})

var _ = Describe("Builder", func() {
	It("should follow taken branches", func() {
		b := emu.NewBuilder(0x100)
		b.ALU(insts.IntReg(1), insts.RegR0, insts.RegR0).
			Branch(insts.IntReg(1), insts.RegR0, true, 0x100).
			Branch(insts.IntReg(1), insts.RegR0, false, 0x100)

		recs := b.Records()
		Expect(recs[1].PC).To(Equal(uint64(0x104)))
		Expect(recs[1].Addr).To(Equal(uint64(0x100)))
		Expect(recs[2].PC).To(Equal(uint64(0x100)))
		Expect(recs[2].Addr).To(Equal(uint64(0x104)))
		Expect(b.PC()).To(Equal(uint64(0x104)))
	})

	It("should link calls and returns", func() {
		recs := emu.NewBuilder(0x100).Call(0x400).ALU(insts.IntReg(3), insts.RegR0, insts.RegR0).Ret(0x104).Records()

		Expect(recs[0].Inst.IsFuncCall()).To(BeTrue())
		Expect(recs[1].PC).To(Equal(uint64(0x400)))
		Expect(recs[2].Inst.IsFuncRet()).To(BeTrue())
		Expect(recs[2].Taken).To(BeTrue())
	})

	It("should mark transient work and restore the pc", func() {
		b := emu.NewBuilder(0x100)
		b.Transient(func(t *emu.Builder) {
			t.Load(insts.IntReg(2), insts.RegR0, 0x9000).ALU(insts.IntReg(3), insts.IntReg(2), insts.RegR0)
		})
		b.ALU(insts.IntReg(4), insts.RegR0, insts.RegR0)

		recs := b.Records()
		Expect(recs).To(HaveLen(3))
		Expect(recs[0].Transient).To(BeTrue())
		Expect(recs[1].Transient).To(BeTrue())
		Expect(recs[2].Transient).To(BeFalse())
		Expect(recs[2].PC).To(Equal(uint64(0x100)))
	})

	It("should flag syscalls", func() {
		recs := emu.NewBuilder(0).Syscall().Records()
		Expect(recs[0].Syscall).To(BeTrue())
		Expect(recs[0].Inst.HasDstRegister()).To(BeFalse())
	})
})
