// Package cache provides the cache levels of the memory hierarchy, built on
// the Akita cache directory.
package cache

import (
	"log/slog"
	"math"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/mem"
	"github.com/sarchlab/ooosim/timing/port"
	"github.com/sarchlab/ooosim/timing/stats"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size" yaml:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity" yaml:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size" yaml:"block_size"`
	// HitLatency in cycles
	HitLatency uint64 `json:"hit_latency" yaml:"hit_latency"`
	// MissLatency is the delay before a miss is sent to the next level.
	MissLatency uint64 `json:"miss_latency" yaml:"miss_latency"`
	// Ports is the number of lookups started per cycle; 0 is unlimited.
	Ports int `json:"ports" yaml:"ports"`
	// PortOcc is the number of cycles a lookup holds its port.
	PortOcc int `json:"port_occ" yaml:"port_occ"`
	// MaxOutstanding bounds in-flight misses; 0 is unlimited.
	MaxOutstanding int `json:"max_outstanding" yaml:"max_outstanding"`
}

// DefaultL1DConfig returns default configuration for a private L1 data
// cache: 64KB, 8-way, 64B lines, 3-cycle load-to-use.
func DefaultL1DConfig() Config {
	return Config{
		Size:           64 * 1024,
		Associativity:  8,
		BlockSize:      64,
		HitLatency:     3,
		MissLatency:    1,
		Ports:          2,
		PortOcc:        1,
		MaxOutstanding: 16,
	}
}

// DefaultL2Config returns default configuration for the shared L2:
// 4MB, 16-way, 64B lines.
func DefaultL2Config() Config {
	return Config{
		Size:           4 * 1024 * 1024,
		Associativity:  16,
		BlockSize:      64,
		HitLatency:     12,
		MissLatency:    2,
		Ports:          1,
		PortOcc:        1,
		MaxOutstanding: 64,
	}
}

// NumSets returns the number of sets the geometry implies.
func (c Config) NumSets() int {
	return c.Size / (c.Associativity * c.BlockSize)
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads         uint64
	Writes        uint64
	Installs      uint64
	Hits          uint64
	Misses        uint64
	MSHRHits      uint64
	MSHRFull      uint64
	SpecReads     uint64
	Evictions     uint64
	Writebacks    uint64
	Invalidations uint64
}

// HitRate returns hits over all lookups.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Cache is one write-back, write-allocate cache level. A cache with upper
// levels attached tracks which of them share each line and keeps them
// coherent with setState messages.
type Cache struct {
	name   string
	config Config

	sched *event.Scheduler
	pool  *mem.Pool
	port  port.Port

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	lower  mem.MemObj
	uppers []mem.MemObj

	exclusive map[int]bool
	sharers   map[uint64]uint64
	owner     map[uint64]int
	recalls   map[uint64]*mem.Request
	mshr      akitacache.MSHR

	stats  Statistics
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLower sets the next level of the hierarchy.
func WithLower(lower mem.MemObj) Option {
	return func(c *Cache) {
		c.lower = lower
	}
}

// WithLogger sets the cache's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a new cache with the given configuration.
func New(
	name string,
	config Config,
	pool *mem.Pool,
	reg *stats.Registry,
	opts ...Option,
) *Cache {
	c := &Cache{
		name:   name,
		config: config,
		sched:  pool.Scheduler(),
		pool:   pool,
		directory: akitacache.NewDirectory(
			config.NumSets(),
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		exclusive: make(map[int]bool),
		sharers:   make(map[uint64]uint64),
		owner:     make(map[uint64]int),
		recalls:   make(map[uint64]*mem.Request),
		mshr:      akitacache.NewMSHR(mshrCapacity(config.MaxOutstanding)),
		logger:    slog.Default(),
	}

	c.port = port.New(name, c.sched, config.Ports, config.PortOcc, reg)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the cache's name.
func (c *Cache) Name() string { return c.name }

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// SetLower sets the next level of the hierarchy.
func (c *Cache) SetLower(lower mem.MemObj) {
	c.lower = lower
}

// AddUpper attaches a level closer to a core and returns its sharer index.
func (c *Cache) AddUpper(upper mem.MemObj) int {
	if len(c.uppers) == 64 {
		panic("cache: at most 64 upper levels are supported")
	}

	c.uppers = append(c.uppers, upper)

	return len(c.uppers) - 1
}

// LineAddr returns the line-aligned address of addr.
func (c *Cache) LineAddr(addr uint64) uint64 {
	bs := uint64(c.config.BlockSize)
	return addr / bs * bs
}

// Contains reports whether the line holding addr is present.
func (c *Cache) Contains(addr uint64) bool {
	return c.lookup(c.LineAddr(addr)) != nil
}

// IsDirty reports whether the line holding addr is present and dirty.
func (c *Cache) IsDirty(addr uint64) bool {
	b := c.lookup(c.LineAddr(addr))
	return b != nil && b.IsDirty
}

// Sharers returns the sharer bit mask of the line holding addr.
func (c *Cache) Sharers(addr uint64) uint64 {
	return c.sharers[c.LineAddr(addr)]
}

// blockIndex computes a dense index for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) lookup(line uint64) *akitacache.Block {
	block := c.directory.Lookup(0, line)
	if block == nil || !block.IsValid {
		return nil
	}

	return block
}

func (c *Cache) writable(block *akitacache.Block) bool {
	return block.IsDirty || c.exclusive[c.blockIndex(block)]
}

func (c *Cache) upperIndex(obj mem.MemObj) int {
	for i, u := range c.uppers {
		if u == obj {
			return i
		}
	}

	return -1
}

func bit(i int) uint64 {
	if i < 0 {
		return 0
	}

	return 1 << uint(i)
}

func mshrCapacity(maxOutstanding int) int {
	if maxOutstanding <= 0 {
		return math.MaxInt
	}

	return maxOutstanding
}

// IsBusy reports whether a miss for addr is already in flight or the miss
// table is full.
func (c *Cache) IsBusy(addr uint64) bool {
	if c.mshr.Query(0, c.LineAddr(addr)) != nil {
		return true
	}

	return c.mshr.IsFull()
}

// Outstanding returns the number of misses in flight.
func (c *Cache) Outstanding() int {
	return len(c.mshr.AllEntries())
}

// Req schedules the lookup once the port and hit latency allow.
func (c *Cache) Req(r *mem.Request) {
	slot := c.port.NextSlot(r.KeepStats)
	r.ScheduleAbs(slot + event.Cycle(c.config.HitLatency))
}
