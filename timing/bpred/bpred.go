// Package bpred provides the branch predictor consumed by the core's fetch
// stage: a bimodal direction table, a branch target buffer, and a return
// address stack.
package bpred

import (
	"fmt"

	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/dinst"
	"github.com/sarchlab/ooosim/timing/stats"
)

// PredType is the outcome of predicting one control-flow instruction.
type PredType uint8

// Prediction outcomes. Anything but Correct redirects fetch.
const (
	Correct PredType = iota
	Miss
	NoPrediction
	NoBTBPrediction
)

func (p PredType) String() string {
	switch p {
	case Correct:
		return "Correct"
	case Miss:
		return "Miss"
	case NoPrediction:
		return "NoPrediction"
	case NoBTBPrediction:
		return "NoBTBPrediction"
	default:
		return fmt.Sprintf("PredType(%d)", uint8(p))
	}
}

// Config holds configuration for the branch predictor.
type Config struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 1024.
	BHTSize uint32 `json:"bht_size" yaml:"bht_size"`
	// BTBSize is the number of entries in the Branch Target Buffer.
	// Must be a power of 2. Default is 256.
	BTBSize uint32 `json:"btb_size" yaml:"btb_size"`
	// RASSize is the depth of the return address stack; 0 disables it.
	RASSize uint32 `json:"ras_size" yaml:"ras_size"`
	// Delay is the number of cycles a resolved branch spends in the
	// predictor before its unit reports it executed.
	Delay uint64 `json:"delay" yaml:"delay"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BHTSize: 1024,
		BTBSize: 256,
		RASSize: 32,
		Delay:   1,
	}
}

// Statistics holds statistics for the branch predictor.
type Statistics struct {
	Branches   uint64
	Taken      uint64
	Correct    uint64
	Misses     uint64
	NoPredicts uint64
	BTBHits    uint64
	BTBMisses  uint64
	RASHits    uint64
	RASMisses  uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s Statistics) Accuracy() float64 {
	if s.Branches == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Branches) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s Statistics) MispredictionRate() float64 {
	if s.Branches == 0 {
		return 0
	}
	return float64(s.Branches-s.Correct) / float64(s.Branches) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s Statistics) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

type btbEntry struct {
	pc     uint64
	target uint64
	valid  bool
}

type counters struct {
	branches, taken, correct, misses, noPredicts *stats.Counter
	btbHits, btbMisses, rasHits, rasMisses       *stats.Counter
}

// Predictor implements a 2-bit saturating counter (bimodal) predictor
// with a Branch Target Buffer (BTB) and a return address stack (RAS).
type Predictor struct {
	config Config

	// States: 0=Strongly Not Taken, 1=Weakly Not Taken,
	//         2=Weakly Taken, 3=Strongly Taken
	bht []uint8
	btb []btbEntry

	ras      []uint64
	rasIndex int

	c counters
}

// New creates a predictor whose counters are registered under name.
func New(name string, config Config, reg *stats.Registry) *Predictor {
	if config.BHTSize == 0 {
		config.BHTSize = 1024
	}
	if config.BTBSize == 0 {
		config.BTBSize = 256
	}

	p := &Predictor{
		config: config,
		bht:    make([]uint8, config.BHTSize),
		btb:    make([]btbEntry, config.BTBSize),
		ras:    make([]uint64, config.RASSize),
		c: counters{
			branches:   reg.Counter(name + ":nBranches"),
			taken:      reg.Counter(name + ":nTaken"),
			correct:    reg.Counter(name + ":nCorrect"),
			misses:     reg.Counter(name + ":nMiss"),
			noPredicts: reg.Counter(name + ":nNoPredict"),
			btbHits:    reg.Counter(name + ":btbHit"),
			btbMisses:  reg.Counter(name + ":btbMiss"),
			rasHits:    reg.Counter(name + ":rasHit"),
			rasMisses:  reg.Counter(name + ":rasMiss"),
		},
	}
	p.Reset()

	return p
}

// Config returns the predictor configuration.
func (p *Predictor) Config() Config { return p.config }

func (p *Predictor) bhtIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(p.config.BHTSize-1))
}

func (p *Predictor) btbIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(p.config.BTBSize-1))
}

// Predict checks the prediction the front end would have made for the
// resolved control-flow instruction d. With doUpdate the tables learn the
// outcome; with doStats the counters record it.
func (p *Predictor) Predict(d *dinst.Dinst, doUpdate, doStats bool) PredType {
	inst := d.Inst()
	if !inst.Op.IsBranch() {
		return NoPrediction
	}

	p.c.branches.Inc(doStats)
	p.c.taken.Inc(doStats && d.Taken)

	out := p.predictRAS(d, doUpdate, doStats)
	if out == NoPrediction {
		out = p.predictDirection(d, doUpdate, doStats)
	}

	p.c.correct.Inc(doStats && out == Correct)
	p.c.misses.Inc(doStats && out == Miss)
	p.c.noPredicts.Inc(doStats && (out == NoPrediction || out == NoBTBPrediction))

	return out
}

func (p *Predictor) predictRAS(d *dinst.Dinst, doUpdate, doStats bool) PredType {
	size := len(p.ras)
	inst := d.Inst()

	switch {
	case inst.IsFuncRet():
		if size == 0 {
			return NoPrediction
		}

		if doUpdate {
			p.rasIndex--
			if p.rasIndex < 0 {
				p.rasIndex = size - 1
			}
		}

		call := p.ras[p.rasIndex]
		if call+4 == d.Addr || call+2 == d.Addr {
			p.c.rasHits.Inc(doStats)
			return Correct
		}

		p.c.rasMisses.Inc(doStats)

		return Miss
	case inst.IsFuncCall() && size > 0 && doUpdate:
		p.ras[p.rasIndex] = d.PC
		p.rasIndex++
		if p.rasIndex >= size {
			p.rasIndex = 0
		}
	}

	return NoPrediction
}

func (p *Predictor) predictDirection(d *dinst.Dinst, doUpdate, doStats bool) PredType {
	op := d.Op()

	predicted := true
	if op == insts.OpBALULBranch || op == insts.OpBALURBranch {
		idx := p.bhtIndex(d.PC)
		counter := p.bht[idx]
		predicted = counter >= 2

		if doUpdate {
			if d.Taken && counter < 3 {
				p.bht[idx] = counter + 1
			} else if !d.Taken && counter > 0 {
				p.bht[idx] = counter - 1
			}
		}
	}

	if predicted != d.Taken {
		if doUpdate && d.Taken {
			p.fillBTB(d)
		}

		return Miss
	}

	if !d.Taken {
		return Correct
	}

	// Direct jumps and calls resolve their target at decode.
	if op == insts.OpBALULJump || op == insts.OpBALULCall {
		return Correct
	}

	return p.predictTarget(d, doUpdate, doStats)
}

func (p *Predictor) predictTarget(d *dinst.Dinst, doUpdate, doStats bool) PredType {
	e := &p.btb[p.btbIndex(d.PC)]

	hit := e.valid && e.pc == d.PC
	prev := e.target

	if doUpdate {
		p.fillBTB(d)
	}

	switch {
	case !hit:
		p.c.btbMisses.Inc(doStats)
		return NoBTBPrediction
	case prev != d.Addr:
		p.c.btbMisses.Inc(doStats)
		return Miss
	default:
		p.c.btbHits.Inc(doStats)
		return Correct
	}
}

func (p *Predictor) fillBTB(d *dinst.Dinst) {
	p.btb[p.btbIndex(d.PC)] = btbEntry{pc: d.PC, target: d.Addr, valid: true}
}

// Stats returns the branch predictor statistics.
func (p *Predictor) Stats() Statistics {
	return Statistics{
		Branches:   p.c.branches.Value(),
		Taken:      p.c.taken.Value(),
		Correct:    p.c.correct.Value(),
		Misses:     p.c.misses.Value(),
		NoPredicts: p.c.noPredicts.Value(),
		BTBHits:    p.c.btbHits.Value(),
		BTBMisses:  p.c.btbMisses.Value(),
		RASHits:    p.c.rasHits.Value(),
		RASMisses:  p.c.rasMisses.Value(),
	}
}

// Reset clears all predictor state.
func (p *Predictor) Reset() {
	// Reset BHT to weakly taken
	for i := range p.bht {
		p.bht[i] = 2
	}

	for i := range p.btb {
		p.btb[i] = btbEntry{}
	}

	for i := range p.ras {
		p.ras[i] = 0
	}
	p.rasIndex = 0
}
