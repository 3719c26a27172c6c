// Command benchmark runs the synthetic workloads through the timing model.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-c, --config FILE   System configuration (JSON or YAML)
//	-n, --cores N       Override the number of cores
//	-f, --filter LIST   Comma-separated name fragments to select benchmarks
//	    --core          Run only the quick validation set
//	    --csv           Output results in CSV format
//	    --json          Output results in JSON format
//	-m, --max-cycles N  Cycle budget per benchmark (0 is unlimited)
//	-v, --verbose       Print progress while running
//
// Example:
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark --csv > results.csv
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	getopt "github.com/pborman/getopt/v2"

	"github.com/sarchlab/ooosim/benchmarks"
	"github.com/sarchlab/ooosim/logger"
	"github.com/sarchlab/ooosim/timing/config"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "System configuration file (JSON or YAML)")
	optCores := getopt.IntLong("cores", 'n', 0, "Number of cores")
	optFilter := getopt.StringLong("filter", 'f', "", "Comma-separated benchmark name fragments")
	optCore := getopt.BoolLong("core", 0, "Run only the quick validation set")
	optCSV := getopt.BoolLong("csv", 0, "Output results in CSV format")
	optJSON := getopt.BoolLong("json", 0, "Output results in JSON format")
	maxCycles := uint64(1_000_000)
	getopt.FlagLong(&maxCycles, "max-cycles", 'm', "Cycle budget per benchmark (0 is unlimited)")
	optVerbose := getopt.BoolLong("verbose", 'v', "Print progress while running")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	log := logger.New(os.Stderr, slog.LevelWarn)

	sys := config.DefaultConfig()
	if *optConfig != "" {
		var err error

		sys, err = config.LoadConfig(*optConfig)
		if err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
	}

	if *optCores > 0 {
		sys.NumCores = *optCores
	}

	cfg := benchmarks.DefaultConfig()
	cfg.System = sys
	cfg.MaxCycles = maxCycles
	cfg.Logger = log
	cfg.Verbose = *optVerbose
	cfg.Output = os.Stdout

	set := benchmarks.GetMicrobenchmarks()
	if *optCore {
		set = benchmarks.GetCoreBenchmarks()
	}

	if *optFilter != "" {
		set = benchmarks.Filter(set, strings.Split(*optFilter, ",")...)
	}

	harness := benchmarks.NewHarness(cfg)
	harness.AddBenchmarks(set)

	if !*optCSV && !*optJSON {
		fmt.Println("Timing Benchmark Harness")
		fmt.Println("========================")
		fmt.Printf("Cores: %d\n", sys.NumCores)
		fmt.Printf("L1D:   %d bytes\n", sys.L1D.Size)
		fmt.Printf("L2:    %d bytes\n", sys.L2.Size)
		fmt.Println("")
	}

	results, err := harness.RunAll()
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	switch {
	case *optJSON:
		if err := harness.PrintJSON(results); err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
	case *optCSV:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}
}
