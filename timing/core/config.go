package core

import (
	"fmt"

	"github.com/sarchlab/ooosim/timing/bpred"
	"github.com/sarchlab/ooosim/timing/cluster"
)

// Config holds the parameters of one out-of-order core.
type Config struct {
	// FetchWidth is the number of instructions fetched per cycle.
	FetchWidth int `json:"fetch_width" yaml:"fetch_width"`
	// InstQueueSize bounds the instructions between fetch and rename.
	InstQueueSize int `json:"inst_queue_size" yaml:"inst_queue_size"`
	// DecodeDelay is the number of cycles from fetch to rename.
	DecodeDelay uint64 `json:"decode_delay" yaml:"decode_delay"`
	// IssueWidth is the number of instructions renamed per cycle.
	IssueWidth int `json:"issue_width" yaml:"issue_width"`
	// RetireWidth is the number of instructions committed per cycle.
	RetireWidth int `json:"retire_width" yaml:"retire_width"`
	// RetireDelay is the minimum number of cycles between executed and
	// commit.
	RetireDelay uint64 `json:"retire_delay" yaml:"retire_delay"`
	// ROBSize bounds the reorder buffer and the retirement buffer together.
	ROBSize int `json:"rob_size" yaml:"rob_size"`
	// NumRegs is the core-wide physical register budget.
	NumRegs int `json:"num_regs" yaml:"num_regs"`
	// MispredictPenalty is the number of cycles fetch stays idle after a
	// mispredicted branch resolves.
	MispredictPenalty uint64 `json:"mispredict_penalty" yaml:"mispredict_penalty"`

	// MemoryReplay enables squash and replay on memory-order violations.
	MemoryReplay bool `json:"memory_replay" yaml:"memory_replay"`
	// ReplaySerializeFor is the number of instructions renamed with memory
	// serialization after replays come close together.
	ReplaySerializeFor int `json:"replay_serialize_for" yaml:"replay_serialize_for"`
	// ForwardProgressThreshold is the instruction distance between replays
	// under which serialization becomes stricter.
	ForwardProgressThreshold uint64 `json:"forward_progress_threshold" yaml:"forward_progress_threshold"`
	// LockCheckInterval is the number of cycles the oldest instruction may
	// stay in flight before the core is considered dead. Zero disables it.
	LockCheckInterval uint64 `json:"lock_check_interval" yaml:"lock_check_interval"`

	// LSQSize bounds the load/store queue; zero is unlimited.
	LSQSize int `json:"lsq_size" yaml:"lsq_size"`
	// SCBSize is the number of store buffer lines; zero disables the
	// buffer.
	SCBSize     int    `json:"scb_size" yaml:"scb_size"`
	SCBLineSize uint64 `json:"scb_line_size" yaml:"scb_line_size"`

	SSITSize      int    `json:"ssit_size" yaml:"ssit_size"`
	LFSTSize      int    `json:"lfst_size" yaml:"lfst_size"`
	StoreSetClear uint64 `json:"store_set_clear" yaml:"store_set_clear"`

	Params   cluster.Params                `json:"params" yaml:"params"`
	Units    map[string]cluster.UnitConfig `json:"units" yaml:"units"`
	Clusters []cluster.Config              `json:"clusters" yaml:"clusters"`
	BPred    bpred.Config                  `json:"bpred" yaml:"bpred"`
}

// DefaultConfig returns a four-wide core.
func DefaultConfig() Config {
	return Config{
		FetchWidth:               4,
		InstQueueSize:            16,
		DecodeDelay:              1,
		IssueWidth:               4,
		RetireWidth:              4,
		RetireDelay:              0,
		ROBSize:                  128,
		NumRegs:                  128,
		MispredictPenalty:        2,
		MemoryReplay:             true,
		ReplaySerializeFor:       64,
		ForwardProgressThreshold: 200,
		LockCheckInterval:        100000,
		LSQSize:                  64,
		SCBSize:                  16,
		SCBLineSize:              64,
		SSITSize:                 1024,
		LFSTSize:                 128,
		StoreSetClear:            100000,
		Params:                   cluster.DefaultParams(),
		Units:                    cluster.DefaultUnits(),
		Clusters:                 cluster.DefaultConfigs(),
		BPred:                    bpred.DefaultConfig(),
	}
}

// Validate checks the core-level parameters. Cluster settings are checked
// when the clusters are built.
func (c Config) Validate() error {
	switch {
	case c.FetchWidth <= 0:
		return fmt.Errorf("fetch_width must be positive, got %d", c.FetchWidth)
	case c.IssueWidth <= 0:
		return fmt.Errorf("issue_width must be positive, got %d", c.IssueWidth)
	case c.RetireWidth <= 0:
		return fmt.Errorf("retire_width must be positive, got %d", c.RetireWidth)
	case c.InstQueueSize < c.FetchWidth:
		return fmt.Errorf("inst_queue_size %d is smaller than fetch_width %d",
			c.InstQueueSize, c.FetchWidth)
	case c.ROBSize <= 1:
		return fmt.Errorf("rob_size must be greater than 1, got %d", c.ROBSize)
	case c.NumRegs <= 0:
		return fmt.Errorf("num_regs must be positive, got %d", c.NumRegs)
	case c.LSQSize < 0 || c.SCBSize < 0:
		return fmt.Errorf("lsq_size and scb_size must not be negative")
	case c.SCBSize > 0 && !isPow2(c.SCBLineSize):
		return fmt.Errorf("scb_line_size %d is not a power of two", c.SCBLineSize)
	case !isPow2(uint64(c.SSITSize)) || !isPow2(uint64(c.LFSTSize)):
		return fmt.Errorf("store-set tables must be powers of two, got %d and %d",
			c.SSITSize, c.LFSTSize)
	case len(c.Clusters) == 0:
		return fmt.Errorf("no clusters configured")
	}

	return nil
}

func isPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
