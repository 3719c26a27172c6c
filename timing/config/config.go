// Package config holds the complete simulator configuration: the core
// parameters, the cache hierarchy, and main memory. Configurations are
// stored as JSON or YAML.
package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/cache"
	"github.com/sarchlab/ooosim/timing/core"
)

// Config describes a multi-core system.
type Config struct {
	// NumCores is the number of cores. Each has a private L1D.
	NumCores int `json:"num_cores" yaml:"num_cores"`

	// Core is the configuration shared by every core.
	Core core.Config `json:"core" yaml:"core"`

	// L1D is the private data cache of each core. A zero size connects the
	// cores straight to the L2.
	L1D cache.Config `json:"l1d" yaml:"l1d"`

	// L2 is the cache shared by all cores.
	L2 cache.Config `json:"l2" yaml:"l2"`

	// MemoryLatency is the main memory access latency in cycles.
	MemoryLatency uint64 `json:"memory_latency" yaml:"memory_latency"`

	// MemoryBandwidth is the number of requests memory starts per cycle;
	// zero is unlimited.
	MemoryBandwidth int `json:"memory_bandwidth" yaml:"memory_bandwidth"`

	// MemPoolSize is the initial number of pooled memory requests.
	MemPoolSize int `json:"mem_pool_size" yaml:"mem_pool_size"`
}

// DefaultConfig returns a single-core system with a 64KB L1D, a 4MB L2,
// and 150-cycle memory.
func DefaultConfig() *Config {
	return &Config{
		NumCores:        1,
		Core:            core.DefaultConfig(),
		L1D:             cache.DefaultL1DConfig(),
		L2:              cache.DefaultL2Config(),
		MemoryLatency:   150,
		MemoryBandwidth: 1,
		MemPoolSize:     256,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadConfig reads a configuration file. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON. Fields the file leaves out keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to path in the format its extension
// names.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)

	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c.NumCores <= 0 {
		return fmt.Errorf("num_cores must be positive, got %d", c.NumCores)
	}

	if err := c.Core.Validate(); err != nil {
		return fmt.Errorf("core: %w", err)
	}

	if err := c.validateClusters(); err != nil {
		return fmt.Errorf("core: %w", err)
	}

	if c.L1D.Size != 0 {
		if err := validateCache(c.L1D); err != nil {
			return fmt.Errorf("l1d: %w", err)
		}
	}

	if err := validateCache(c.L2); err != nil {
		return fmt.Errorf("l2: %w", err)
	}

	if c.MemoryLatency == 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}

	if c.MemoryBandwidth < 0 {
		return fmt.Errorf("memory_bandwidth must not be negative")
	}

	return nil
}

// validateClusters checks every cluster against the unit table and that
// every opcode class runs in exactly one cluster.
func (c *Config) validateClusters() error {
	var mapped [insts.NumOps]string

	for _, cl := range c.Core.Clusters {
		if err := cl.Validate(c.Core.Units); err != nil {
			return err
		}

		for name := range cl.Units {
			op, err := insts.ParseOp(name)
			if err != nil {
				return fmt.Errorf("cluster %s: %w", cl.Name, err)
			}

			if mapped[op] != "" {
				return fmt.Errorf("%v runs in both %s and %s", op, mapped[op], cl.Name)
			}

			mapped[op] = cl.Name
		}
	}

	for op := insts.OpInvalid + 1; op < insts.NumOps; op++ {
		if mapped[op] == "" {
			return fmt.Errorf("no cluster executes %v", op)
		}
	}

	return nil
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func validateCache(c cache.Config) error {
	switch {
	case !isPow2(c.BlockSize):
		return fmt.Errorf("block_size %d is not a power of two", c.BlockSize)
	case !isPow2(c.Associativity):
		return fmt.Errorf("associativity %d is not a power of two", c.Associativity)
	case c.Size%(c.Associativity*c.BlockSize) != 0 || !isPow2(c.NumSets()):
		return fmt.Errorf("size %d does not give a power-of-two number of sets", c.Size)
	case c.HitLatency == 0:
		return fmt.Errorf("hit_latency must be > 0")
	case c.Ports < 0 || c.PortOcc < 0 || c.MaxOutstanding < 0:
		return fmt.Errorf("ports, port_occ, and max_outstanding must not be negative")
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c

	out.Core.Units = maps.Clone(c.Core.Units)
	out.Core.Clusters = slices.Clone(c.Core.Clusters)

	for i := range out.Core.Clusters {
		out.Core.Clusters[i].Units = maps.Clone(c.Core.Clusters[i].Units)
	}

	return &out
}
