// Command ooosim runs an instruction trace or a built-in workload through
// the out-of-order timing model.
//
// Usage:
//
//	ooosim [options] <trace>
//	ooosim [options] --workload <name>
//
// Every core runs its own copy of the instruction stream.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"github.com/sarchlab/ooosim/benchmarks"
	"github.com/sarchlab/ooosim/emu"
	"github.com/sarchlab/ooosim/loader"
	"github.com/sarchlab/ooosim/logger"
	"github.com/sarchlab/ooosim/timing/config"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/soc"
	"github.com/sarchlab/ooosim/timing/stats"
	"github.com/sarchlab/ooosim/timing/tracer"
)

type options struct {
	config     string
	dumpConfig string
	cores      int
	workload   string
	image      string
	kanata     string
	statsFile  string
	cpuProfile string
	maxCycles  uint64
	logLevel   string
	logFile    string
}

func main() {
	opts := options{logLevel: "info"}

	getopt.FlagLong(&opts.config, "config", 'c', "System configuration file (JSON or YAML)")
	getopt.FlagLong(&opts.dumpConfig, "dump-config", 0, "Write the effective configuration to this file and exit")
	getopt.FlagLong(&opts.cores, "cores", 'n', "Number of cores")
	getopt.FlagLong(&opts.workload, "workload", 'w', "Run a built-in workload instead of a trace")
	getopt.FlagLong(&opts.image, "image", 'i', "ELF image supplying instruction words the trace omits")
	getopt.FlagLong(&opts.kanata, "kanata", 'k', "Write a Kanata pipeline trace to this file")
	getopt.FlagLong(&opts.statsFile, "stats", 's', "Write every statistic as JSON to this file")
	getopt.FlagLong(&opts.cpuProfile, "cpuprofile", 0, "Write a CPU profile to this file")
	getopt.FlagLong(&opts.maxCycles, "max-cycles", 'm', "Stop after this many cycles (0 is unlimited)")
	getopt.FlagLong(&opts.logLevel, "log-level", 'l', "Log level: debug, info, warn, or error")
	getopt.FlagLong(&opts.logFile, "log", 0, "Log file (default: stderr)")
	optList := getopt.BoolLong("list", 0, "List the built-in workloads")
	optHelp := getopt.BoolLong("help", 'h', "Help")

	getopt.SetParameters("[trace]")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	if *optList {
		for _, b := range benchmarks.GetMicrobenchmarks() {
			fmt.Printf("%-24s %s\n", b.Name, b.Description)
		}
		os.Exit(0)
	}

	if err := run(opts, getopt.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "ooosim: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, args []string) error {
	log, closeLog, err := openLogger(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if opts.dumpConfig != "" {
		return cfg.SaveConfig(opts.dumpConfig)
	}

	records, err := loadRecords(opts, args)
	if err != nil {
		return err
	}

	log.Info("loaded instruction stream", "records", len(records), "cores", cfg.NumCores)

	if opts.cpuProfile != "" {
		stop, err := startProfile(opts.cpuProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	return simulate(opts, cfg, records, log)
}

func openLogger(opts options) (*slog.Logger, func(), error) {
	level, err := logger.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}

	if opts.logFile != "" {
		f, err := os.Create(opts.logFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log file: %w", err)
		}

		out = f
		closeFn = func() { _ = f.Close() }
	}

	log := logger.New(out, level)
	slog.SetDefault(log)

	return log, closeFn, nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if opts.config != "" {
		var err error

		cfg, err = config.LoadConfig(opts.config)
		if err != nil {
			return nil, err
		}
	}

	if opts.cores > 0 {
		cfg.NumCores = opts.cores
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadRecords(opts options, args []string) ([]emu.Record, error) {
	if opts.workload != "" {
		b, ok := benchmarks.Lookup(opts.workload)
		if !ok {
			return nil, fmt.Errorf("unknown workload %q (see --list)", opts.workload)
		}

		return b.Program(), nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("expected one trace file or --workload")
	}

	var traceOpts []emu.TraceOption

	if opts.image != "" {
		prog, err := loader.Load(opts.image)
		if err != nil {
			return nil, fmt.Errorf("failed to load image: %w", err)
		}

		traceOpts = append(traceOpts, emu.WithImage(prog))
	}

	return emu.NewTraceReader(traceOpts...).ReadFile(args[0])
}

func startProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

func simulate(opts options, cfg *config.Config, records []emu.Record, log *slog.Logger) (err error) {
	threads := make([][]emu.Record, cfg.NumCores)
	for i := range threads {
		threads[i] = records
	}

	sched := event.NewScheduler()
	reg := stats.NewRegistry()
	sysOpts := []soc.Option{
		soc.WithLogger(log),
		soc.WithStats(reg),
		soc.WithScheduler(sched),
	}

	var kanata *tracer.Kanata

	if opts.kanata != "" {
		f, cerr := os.Create(opts.kanata)
		if cerr != nil {
			return fmt.Errorf("failed to create kanata trace: %w", cerr)
		}

		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close kanata trace: %w", cerr)
			}
		}()

		kanata = tracer.NewKanata(f, sched)
		sysOpts = append(sysOpts, soc.WithHook(kanata))
	}

	sys, err := soc.New(cfg, emu.NewStream(threads...), sysOpts...)
	if err != nil {
		return err
	}

	start := time.Now()

	if opts.maxCycles > 0 {
		done, err := sys.RunFor(event.Cycle(opts.maxCycles))
		if err != nil {
			return err
		}

		if !done {
			log.Warn("cycle limit reached", "cycles", opts.maxCycles)
		}
	} else if err := sys.Run(); err != nil {
		return err
	}

	log.Info("simulation finished", "cycles", uint64(sys.Now()), "wall", time.Since(start))

	if kanata != nil {
		if err := kanata.Flush(); err != nil {
			return fmt.Errorf("failed to write kanata trace: %w", err)
		}
	}

	if err := sys.Report(os.Stdout); err != nil {
		return err
	}

	if opts.statsFile != "" {
		return writeStats(opts.statsFile, reg)
	}

	return nil
}

func writeStats(path string, reg *stats.Registry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close stats file: %w", cerr)
		}
	}()

	return reg.WriteJSON(f)
}
