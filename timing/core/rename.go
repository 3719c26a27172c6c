package core

import (
	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/cluster"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/event"
)

// addInst runs the admission chain for d. On NoStall, d is in the reorder
// buffer, linked to its producers, and admitted into its cluster.
func (c *Core) addInst(d *dinst.Dinst, now event.Cycle) cluster.StallCause {
	if c.replay.recovering && d.ID() > c.replay.id {
		return cluster.Replays
	}

	if c.rob.Len()+c.rrob.Len() >= c.cfg.ROBSize-1 {
		return cluster.SmallROB
	}

	if c.nTotalRegs <= 0 {
		return cluster.SmallRegisterPool
	}

	r := c.resource(d)
	cl := r.Cluster()

	if sc := cl.CanIssue(d, r); sc != cluster.NoStall {
		return sc
	}

	inst := d.Inst()
	if inst.HasDstRegister() {
		c.nTotalRegs--
		d.Take(dinst.CreditCoreReg)
	}

	if inst.Op.IsLoad() && c.nUnresolved > 0 {
		d.Set(dinst.Spec)
	}

	if inst.Op.IsBranch() {
		c.nUnresolved++
	}

	c.serialize(d)
	c.nInst[inst.Op].Inc(!d.Is(dinst.Transient))

	c.rob.Push(d)
	c.link(d)

	d.RenameTime = now
	d.Set(dinst.Renamed)
	cl.AddInst(d, r)

	if !d.IsAny(dinst.Executed|dinst.Transient) {
		if inst.HasDst1() {
			c.rat[inst.Dst1] = d.Handle()
		}

		if inst.HasDst2() {
			c.rat[inst.Dst2] = d.Handle()
		}
	}

	c.hook(HookPosRename, d)

	return cluster.NoStall
}

// link makes d wait on the in-flight producers of its sources.
func (c *Core) link(d *dinst.Dinst) {
	inst := d.Inst()

	if inst.HasSrc1() {
		c.linkSlot(c.rat[inst.Src1], dinst.SlotSrc1, d)
	}

	if inst.HasSrc2() {
		c.linkSlot(c.rat[inst.Src2], dinst.SlotSrc2, d)
	}
}

func (c *Core) linkSlot(h dinst.Handle, slot int, d *dinst.Dinst) {
	p := c.pool.Resolve(h)
	if p == nil || p.IsAny(dinst.Executed|dinst.Squashed) {
		return
	}

	p.AddConsumer(slot, d)
}

// clearRAT drops the mapping of every destination of d that still points
// at d.
func (c *Core) clearRAT(d *dinst.Dinst) {
	inst := d.Inst()
	h := d.Handle()

	for _, r := range []insts.Reg{inst.Dst1, inst.Dst2} {
		if r != insts.RegInvalidOutput && c.rat[r] == h {
			c.rat[r] = dinst.Handle{}
		}
	}
}

type serialState struct {
	level     int
	remaining int
	length    int

	last   dinst.Handle
	lastST dinst.Handle

	rat       [insts.NumRegs]dinst.Handle
	logical   insts.Reg
	logicalPC uint64
}

func newSerialState(length int) serialState {
	return serialState{
		level:   2,
		length:  length,
		logical: insts.RegInvalidOutput,
	}
}

func isArch(r insts.Reg) bool {
	return r != insts.RegR0 && r < insts.RegInvalidOutput
}

// serialize chains memory ops after a replay, for as many renamed
// instructions as the serialization window lasts.
func (c *Core) serialize(d *dinst.Dinst) {
	s := &c.serial
	if s.remaining <= 0 || c.replay.recovering {
		return
	}

	s.remaining--

	op := d.Op()

	switch s.level {
	case 0:
		if op.IsMemory() {
			c.chainUnissued(s.last, d)
			s.last = d.Handle()
		}
	case 1:
		switch {
		case op.IsLoad():
			c.chainUnissued(s.lastST, d)
			s.last = d.Handle()
		case op.IsStore():
			c.chainUnissued(s.last, d)
			s.lastST = d.Handle()
		}
	default:
		c.serializeByRegister(d)
	}
}

// serializeByRegister chains memory ops that share their address register
// with an older memory op. A load waits only on a store.
func (c *Core) serializeByRegister(d *dinst.Dinst) {
	s := &c.serial
	inst := d.Inst()

	switch {
	case isArch(inst.Src1):
		s.logical = inst.Src1
	case s.logicalPC != d.PC:
		s.logical = insts.RegInvalidOutput
	}

	s.logicalPC = d.PC

	if !isArch(s.logical) {
		return
	}

	if !inst.Op.IsMemory() {
		for _, r := range []insts.Reg{inst.Dst1, inst.Dst2} {
			if r != insts.RegInvalidOutput {
				s.rat[r] = dinst.Handle{}
			}
		}

		return
	}

	if p := c.pool.Resolve(s.rat[s.logical]); p != nil &&
		(!inst.Op.IsLoad() || p.Op().IsStore()) {
		c.chainUnexecuted(p, d)
	}

	s.rat[s.logical] = d.Handle()
}

func (c *Core) chainUnissued(h dinst.Handle, d *dinst.Dinst) {
	p := c.pool.Resolve(h)
	if p == nil || p.IsAny(dinst.Issued|dinst.Squashed) {
		return
	}

	c.chain(p, d)
}

func (c *Core) chainUnexecuted(p, d *dinst.Dinst) {
	if p.IsAny(dinst.Executed | dinst.Squashed) {
		return
	}

	c.chain(p, d)
}

func (c *Core) chain(p, d *dinst.Dinst) {
	if p == d || p.HasConsumer(d) {
		return
	}

	p.AddConsumer(dinst.SlotSrc3, d)
	d.Set(dinst.Serializing)
}
