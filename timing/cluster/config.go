package cluster

import (
	"fmt"
	"strings"
)

// RecyclePolicy decides when an instruction gives its window entry back.
type RecyclePolicy uint8

// Recycle policies.
const (
	RecycleAtExecuting RecyclePolicy = iota
	RecycleAtExecuted
	RecycleAtRetire
)

func (p RecyclePolicy) String() string {
	switch p {
	case RecycleAtExecuting:
		return "executing"
	case RecycleAtExecuted:
		return "executed"
	case RecycleAtRetire:
		return "retire"
	default:
		return fmt.Sprintf("RecyclePolicy(%d)", uint8(p))
	}
}

// ParseRecyclePolicy reads a recycle_at value. "retired" is accepted as a
// synonym of "retire".
func ParseRecyclePolicy(s string) (RecyclePolicy, error) {
	switch strings.ToLower(s) {
	case "executing":
		return RecycleAtExecuting, nil
	case "executed":
		return RecycleAtExecuted, nil
	case "retire", "retired":
		return RecycleAtRetire, nil
	default:
		return 0, fmt.Errorf("unknown recycle_at %q", s)
	}
}

// UnitConfig describes one functional-unit group.
type UnitConfig struct {
	Lat uint64 `json:"lat" yaml:"lat"`
	Num int    `json:"num" yaml:"num"`
	Occ int    `json:"occ" yaml:"occ"`
}

// Config describes one cluster: its scheduling window, its register pool,
// and the unit each opcode class executes on.
type Config struct {
	Name            string `json:"name" yaml:"name"`
	WinSize         int    `json:"win_size" yaml:"win_size"`
	NumRegs         int    `json:"num_regs" yaml:"num_regs"`
	RecycleAt       string `json:"recycle_at" yaml:"recycle_at"`
	LateAlloc       bool   `json:"late_alloc" yaml:"late_alloc"`
	SchedNum        int    `json:"sched_num" yaml:"sched_num"`
	SchedOcc        int    `json:"sched_occ" yaml:"sched_occ"`
	SchedLat        uint64 `json:"sched_lat" yaml:"sched_lat"`
	InterClusterLat uint64 `json:"inter_cluster_lat" yaml:"inter_cluster_lat"`

	// Units maps an opcode class name, such as "iAALU", to a unit name.
	Units map[string]string `json:"units" yaml:"units"`
}

// Params are the core-wide settings of the memory and branch units.
type Params struct {
	MaxBranches int    `json:"max_branches" yaml:"max_branches"`
	DrainOnMiss bool   `json:"drain_on_miss" yaml:"drain_on_miss"`
	BpredDelay  uint64 `json:"bpred_delay" yaml:"bpred_delay"`
	LdqSize     int    `json:"ldq_size" yaml:"ldq_size"`
	StqSize     int    `json:"stq_size" yaml:"stq_size"`
	StFwdDelay  uint64 `json:"st_fwd_delay" yaml:"st_fwd_delay"`
	SpecLoads   bool   `json:"spec_loads" yaml:"spec_loads"`
}

// DefaultParams returns the unit settings of the default core.
func DefaultParams() Params {
	return Params{
		MaxBranches: 16,
		BpredDelay:  1,
		LdqSize:     32,
		StqSize:     24,
		StFwdDelay:  2,
	}
}

// DefaultUnits returns the functional-unit groups of the default core.
func DefaultUnits() map[string]UnitConfig {
	return map[string]UnitConfig{
		"ALU":    {Lat: 1, Num: 2, Occ: 1},
		"BRU":    {Lat: 1, Num: 1, Occ: 1},
		"MUL":    {Lat: 3, Num: 1, Occ: 1},
		"DIV":    {Lat: 12, Num: 1, Occ: 12},
		"FPU":    {Lat: 4, Num: 1, Occ: 1},
		"FPDIV":  {Lat: 10, Num: 1, Occ: 8},
		"LDU":    {Lat: 1, Num: 2, Occ: 1},
		"STU":    {Lat: 1, Num: 1, Occ: 1},
		"SYSTEM": {Lat: 1, Num: 1, Occ: 1},
	}
}

// DefaultConfigs returns an integer cluster, a memory cluster, and a
// floating-point cluster that together cover every opcode class.
func DefaultConfigs() []Config {
	return []Config{
		{
			Name:      "AUNIT",
			WinSize:   32,
			NumRegs:   64,
			RecycleAt: "executing",
			SchedNum:  4,
			SchedLat:  0,
			Units: map[string]string{
				"iRALU":         "SYSTEM",
				"iAALU":         "ALU",
				"iBALU_LBRANCH": "BRU",
				"iBALU_RBRANCH": "BRU",
				"iBALU_LJUMP":   "BRU",
				"iBALU_RJUMP":   "BRU",
				"iBALU_LCALL":   "BRU",
				"iBALU_RCALL":   "BRU",
				"iBALU_RET":     "BRU",
				"iCALU_MULT":    "MUL",
				"iCALU_DIV":     "DIV",
			},
		},
		{
			Name:            "MUNIT",
			WinSize:         24,
			NumRegs:         32,
			RecycleAt:       "executed",
			SchedNum:        2,
			InterClusterLat: 1,
			Units: map[string]string{
				"iLALU_LD":   "LDU",
				"iSALU_ST":   "STU",
				"iSALU_LL":   "STU",
				"iSALU_SC":   "STU",
				"iSALU_ADDR": "STU",
			},
		},
		{
			Name:            "FPUNIT",
			WinSize:         16,
			NumRegs:         32,
			RecycleAt:       "retire",
			SchedNum:        2,
			InterClusterLat: 1,
			Units: map[string]string{
				"iCALU_FPMULT": "FPU",
				"iCALU_FPDIV":  "FPDIV",
				"iCALU_FPALU":  "FPU",
			},
		},
	}
}

// Validate checks one cluster configuration against the unit table.
func (c Config) Validate(units map[string]UnitConfig) error {
	if c.Name == "" {
		return fmt.Errorf("cluster has no name")
	}

	if c.WinSize <= 0 {
		return fmt.Errorf("cluster %s: win_size must be positive, got %d", c.Name, c.WinSize)
	}

	if c.NumRegs < 2 {
		return fmt.Errorf("cluster %s: num_regs must be at least 2, got %d", c.Name, c.NumRegs)
	}

	if _, err := ParseRecyclePolicy(c.RecycleAt); err != nil {
		return fmt.Errorf("cluster %s: %w", c.Name, err)
	}

	if c.SchedNum < 0 || c.SchedOcc < 0 {
		return fmt.Errorf("cluster %s: negative scheduler port", c.Name)
	}

	for op, unit := range c.Units {
		u, ok := units[unit]
		if !ok {
			return fmt.Errorf("cluster %s: %s runs on unknown unit %q", c.Name, op, unit)
		}

		if u.Num < 0 || u.Occ < 0 {
			return fmt.Errorf("unit %s: negative num or occ", unit)
		}
	}

	return nil
}
