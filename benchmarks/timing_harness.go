// Package benchmarks runs synthetic workloads through the timing model and
// reports how each one stresses the core.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sarchlab/ooosim/emu"
	"github.com/sarchlab/ooosim/timing/config"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/soc"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsCommitted counts committed instructions over all cores
	InstructionsCommitted uint64 `json:"instructions_committed"`

	// CPI is cycles per committed instruction
	CPI float64 `json:"cpi"`

	// Stalls is the number of rename slots lost to stalls
	Stalls uint64 `json:"stalls"`

	// Replays is the number of memory-order replays
	Replays uint64 `json:"replays"`

	// Squashed is the number of instructions discarded by replays
	Squashed uint64 `json:"squashed"`

	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// Branch predictor stats
	BranchPredictions     uint64  `json:"branch_predictions,omitempty"`
	BranchCorrect         uint64  `json:"branch_correct,omitempty"`
	BranchMispredictions  uint64  `json:"branch_mispredictions,omitempty"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program builds the instruction stream one core runs. Every core runs
	// its own copy.
	Program func() []emu.Record
}

// committed returns the number of records that are not wrong-path work.
func committed(recs []emu.Record) uint64 {
	var n uint64

	for _, r := range recs {
		if !r.Transient {
			n++
		}
	}

	return n
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// System is the simulated machine. Nil selects config.DefaultConfig.
	System *config.Config

	// MaxCycles aborts a benchmark that runs longer. Zero is unlimited.
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives simulator diagnostics (default: slog.Default)
	Logger *slog.Logger

	// Verbose prints a line per benchmark while running
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		System:    config.DefaultConfig(),
		MaxCycles: 1_000_000,
		Output:    os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(cfg HarnessConfig) *Harness {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.System == nil {
		cfg.System = config.DefaultConfig()
	}

	return &Harness{
		config:     cfg,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// Benchmarks returns the benchmarks added so far.
func (h *Harness) Benchmarks() []Benchmark { return h.benchmarks }

// RunAll executes all benchmarks and returns results. It stops at the
// first benchmark that fails.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}

		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "ran %s: %d cycles, CPI %.3f\n",
				result.Name, result.SimulatedCycles, result.CPI)
		}

		results = append(results, result)
	}

	return results, nil
}

// runBenchmark executes a single benchmark on a fresh system.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	var expected uint64

	threads := make([][]emu.Record, h.config.System.NumCores)
	for i := range threads {
		threads[i] = bench.Program()
		expected += committed(threads[i])
	}

	sys, err := soc.New(h.config.System, emu.NewStream(threads...),
		soc.WithLogger(h.config.Logger))
	if err != nil {
		return BenchmarkResult{}, err
	}

	start := time.Now()

	if h.config.MaxCycles == 0 {
		err = sys.Run()
	} else {
		var done bool

		done, err = sys.RunFor(event.Cycle(h.config.MaxCycles))
		if err == nil && !done {
			err = fmt.Errorf("did not finish within %d cycles", h.config.MaxCycles)
		}
	}

	wallTime := time.Since(start)

	if err != nil {
		return BenchmarkResult{}, err
	}

	result := collect(bench, sys, wallTime)
	if result.InstructionsCommitted != expected {
		return result, fmt.Errorf("committed %d instructions, expected %d",
			result.InstructionsCommitted, expected)
	}

	return result, nil
}

func collect(bench Benchmark, sys *soc.System, wallTime time.Duration) BenchmarkResult {
	sum := sys.Summary()

	result := BenchmarkResult{
		Name:                  bench.Name,
		Description:           bench.Description,
		SimulatedCycles:       sum.Cycles,
		InstructionsCommitted: sum.Instructions,
		CPI:                   cpi(sum.Cycles, sum.Instructions),
		Replays:               sum.Replays,
		WallTime:              wallTime,
	}

	for i, c := range sys.Cores() {
		st := sum.Cores[i]
		result.Stalls += st.Stalls
		result.Squashed += st.Squashed

		bp := c.Predictor().Stats()
		result.BranchPredictions += bp.Branches
		result.BranchCorrect += bp.Correct
		result.BranchMispredictions += bp.Branches - bp.Correct

		if l1 := sys.L1D(i); l1 != nil {
			cs := l1.Stats()
			result.DCacheHits += cs.Hits
			result.DCacheMisses += cs.Misses
		}
	}

	if sys.L1D(0) == nil {
		cs := sys.L2().Stats()
		result.DCacheHits = cs.Hits
		result.DCacheMisses = cs.Misses
	}

	if result.BranchPredictions > 0 {
		result.BranchAccuracyPercent =
			float64(result.BranchCorrect) / float64(result.BranchPredictions) * 100
	}

	return result
}

func cpi(cycles, insts uint64) float64 {
	if insts == 0 {
		return 0
	}

	return float64(cycles) / float64(insts)
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output

	_, _ = fmt.Fprintln(w, "=== Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:       %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions Committed: %d\n", r.InstructionsCommitted)
		_, _ = fmt.Fprintf(w, "  CPI:                    %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(w, "  Stalls:                 %d\n", r.Stalls)

		if r.Replays > 0 {
			_, _ = fmt.Fprintf(w, "  Replays:                %d\n", r.Replays)
			_, _ = fmt.Fprintf(w, "  Squashed:               %d\n", r.Squashed)
		}

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(w, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(w, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(w, "  Misses: %d\n", r.DCacheMisses)
		}

		if r.BranchPredictions > 0 {
			_, _ = fmt.Fprintln(w, "  --- Branch Predictor ---")
			_, _ = fmt.Fprintf(w, "  Predictions:     %d\n", r.BranchPredictions)
			_, _ = fmt.Fprintf(w, "  Correct:         %d\n", r.BranchCorrect)
			_, _ = fmt.Fprintf(w, "  Mispredictions:  %d\n", r.BranchMispredictions)
			_, _ = fmt.Fprintf(w, "  Accuracy:        %.1f%%\n", r.BranchAccuracyPercent)
		}

		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,replays,squashed,dcache_hits,dcache_misses,branches,mispredictions")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsCommitted,
			r.CPI,
			r.Stalls,
			r.Replays,
			r.Squashed,
			r.DCacheHits,
			r.DCacheMisses,
			r.BranchPredictions,
			r.BranchMispredictions,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	Metadata ReportMetadata    `json:"metadata"`
	Results  []BenchmarkResult `json:"results"`
	Summary  ReportSummary     `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// System is the simulated machine
	System *config.Config `json:"system"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	TotalReplays      uint64        `json:"total_replays"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var summary ReportSummary

	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsCommitted
		summary.TotalReplays += r.Replays
		summary.TotalWallTime += r.WallTime
	}

	summary.TotalBenchmarks = len(results)
	summary.AverageCPI = cpi(summary.TotalCycles, summary.TotalInstructions)

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			System:    h.config.System,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")

	return encoder.Encode(report)
}

// Filter returns the benchmarks whose name contains any of the patterns.
// No patterns selects every benchmark.
func Filter(benchmarks []Benchmark, patterns ...string) []Benchmark {
	if len(patterns) == 0 {
		return benchmarks
	}

	var out []Benchmark

	for _, b := range benchmarks {
		for _, p := range patterns {
			if strings.Contains(b.Name, p) {
				out = append(out, b)
				break
			}
		}
	}

	return out
}

// Lookup returns the microbenchmark called name.
func Lookup(name string) (Benchmark, bool) {
	for _, b := range GetMicrobenchmarks() {
		if b.Name == name {
			return b, true
		}
	}

	return Benchmark{}, false
}
