// Package main provides the entry point for the frost regression runner.
// It drives the random co-verification regression, or the directed LR/SC
// scenario, against the behavioral pipelined device.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/testbench"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath    string
	saveConfig    string
	seed          uint64
	seedSet       bool
	seeds         int
	parallel      int
	loops         int
	singleAddress bool
	directed      bool
	verbose       bool
	trace         bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("frost", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Path to testbench configuration file (JSON or YAML)")
	fs.StringVar(&o.saveConfig, "save-config", "", "Write the effective configuration to this path")
	fs.Uint64Var(&o.seed, "seed", 0, "Seed of the first run (overrides the config file when set)")
	fs.IntVar(&o.seeds, "seeds", 1, "Number of consecutive seeds to run")
	fs.IntVar(&o.parallel, "parallel", 4, "Maximum number of concurrent runs")
	fs.IntVar(&o.loops, "loops", 0, "Issue slots per run (overrides the config file when > 0)")
	fs.BoolVar(&o.singleAddress, "single-address", false, "Pin memory accesses to one address")
	fs.BoolVar(&o.directed, "directed", false, "Run the directed LR/SC scenario instead of the random stream")
	fs.BoolVar(&o.verbose, "v", false, "Verbose output")
	fs.BoolVar(&o.trace, "trace", false, "Log every executed instruction")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.seeds < 1 || o.parallel < 1 {
		return nil, fmt.Errorf("-seeds and -parallel must be >= 1")
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			o.seedSet = true
		}
	})
	return o, nil
}

func loadConfig(o *options) (*testbench.Config, error) {
	config := testbench.DefaultConfig()
	if o.configPath != "" {
		var err error
		config, err = testbench.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
	}

	if o.seedSet {
		config.Seed = o.seed
	}
	if o.loops > 0 {
		config.Loops = o.loops
	}
	if o.singleAddress {
		config.SingleAddressMode = true
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func newLogger(o *options, stderr io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(logrus.WarnLevel)
	if o.verbose {
		logger.SetLevel(logrus.InfoLevel)
	}
	if o.trace {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	config, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if o.saveConfig != "" {
		if err := config.SaveConfig(o.saveConfig); err != nil {
			fmt.Fprintf(stderr, "Error saving config: %v\n", err)
			return 1
		}
	}

	logger := newLogger(o, stderr)
	if o.verbose {
		fmt.Fprintf(stdout, "Seeds: %d..%d\n", config.Seed, config.Seed+uint64(o.seeds)-1)
		fmt.Fprintf(stdout, "Loops: %d, pipeline depth: %d, flush cycles: %d\n",
			config.Loops, config.PipelineDepth, config.FlushCycles)
	}

	reports := make([]*testbench.Report, o.seeds)
	var g errgroup.Group
	g.SetLimit(o.parallel)
	for i := range o.seeds {
		cfg := config.Clone()
		cfg.Seed = config.Seed + uint64(i)
		g.Go(func() error {
			reports[i] = runOne(ctx, o, cfg, logger.WithField("seed", cfg.Seed))
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range reports {
		fmt.Fprint(stdout, r.String())
		if !r.Passed() {
			failed++
		}
	}
	fmt.Fprintf(stdout, "\n%d of %d runs passed\n", len(reports)-failed, len(reports))

	if failed > 0 {
		return 1
	}
	return 0
}

func runOne(ctx context.Context, o *options, config *testbench.Config, logger logrus.FieldLogger) *testbench.Report {
	dut := testbench.NewDevice(config)

	if !o.directed {
		report, err := testbench.RunModel(ctx, dut, config, testbench.WithLogger(logger))
		if report == nil {
			report = &testbench.Report{Seed: config.Seed, Err: err}
		}
		return report
	}

	sim := hdl.NewSim(dut, hdl.WithMaxCycles(config.MaxCycles))
	bench, err := testbench.New(sim, config,
		testbench.WithMemorySnapshot(dut),
		testbench.WithRegisters(testbench.LRSCRegisters()),
		testbench.WithLogger(logger),
	)
	if err != nil {
		return &testbench.Report{Seed: config.Seed, Err: err}
	}
	report, err := bench.RunDirected(ctx, testbench.LRSCScenario)
	if report == nil {
		report = &testbench.Report{Seed: config.Seed, Err: err}
	}
	return report
}
