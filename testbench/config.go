package testbench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/adambagley/frost/simdut"
)

// Config holds the parameters of one regression run.
type Config struct {
	// Loops is the number of issue slots driven by the random stream.
	// Default: 16000.
	Loops int `json:"loops" yaml:"loops"`

	// Seed seeds the instruction generator and the register values.
	// Failures report it so a run can be replayed.
	Seed uint64 `json:"seed" yaml:"seed"`

	// MinCoverageCount is the number of times every mnemonic in the pool
	// must execute. Zero disables the coverage check. Default: 5.
	MinCoverageCount int `json:"min_coverage_count" yaml:"min_coverage_count"`

	// PipelineDepth is the number of stages between issue and retire.
	// Default: 6.
	PipelineDepth int `json:"pipeline_depth" yaml:"pipeline_depth"`

	// FlushCycles is the number of wrong-path slots squashed after a
	// redirect. Default: 3.
	FlushCycles int `json:"flush_cycles" yaml:"flush_cycles"`

	// ResetCycles is the number of rising edges reset is held for.
	// Default: 4.
	ResetCycles int `json:"reset_cycles" yaml:"reset_cycles"`

	// QueueDepth is the capacity of each expected-value queue.
	// Default: 64.
	QueueDepth int `json:"queue_depth" yaml:"queue_depth"`

	// MaxDrainCycles bounds the wait for outstanding outputs at the end
	// of a run. Default: 256.
	MaxDrainCycles int `json:"max_drain_cycles" yaml:"max_drain_cycles"`

	// MaxCycles bounds the whole run in rising edges. Zero means
	// unbounded. Default: 0.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// SingleAddressMode sends every non-compressed memory access to
	// SingleAddress to stress hazards on one location.
	SingleAddressMode bool `json:"single_address_mode" yaml:"single_address_mode"`

	// SingleAddress is the pinned address. It must be word aligned and
	// reachable from x0 with a 12-bit immediate. Default: 0x100.
	SingleAddress uint32 `json:"single_address" yaml:"single_address"`

	// MemoryWindow confines data addresses to [0, MemoryWindow). Zero
	// leaves the whole address space reachable. Default: 0.
	MemoryWindow uint32 `json:"memory_window" yaml:"memory_window"`

	// Compressed enables the C extension. Default: true.
	Compressed bool `json:"compressed" yaml:"compressed"`

	// Float enables the F extension. Default: true.
	Float bool `json:"float" yaml:"float"`

	// Atomic enables the A extension. Default: true.
	Atomic bool `json:"atomic" yaml:"atomic"`

	// PairCompressed fills the high half of a word whose low half holds a
	// compressed instruction with a random compressed ALU instruction
	// instead of c.nop. Default: true.
	PairCompressed bool `json:"pair_compressed" yaml:"pair_compressed"`

	// Latencies configures the device double used by the bundled runs.
	Latencies simdut.Latencies `json:"latencies" yaml:"latencies"`
}

// DefaultConfig returns the configuration of the standard regression.
func DefaultConfig() *Config {
	return &Config{
		Loops:            16000,
		MinCoverageCount: 5,
		PipelineDepth:    6,
		FlushCycles:      3,
		ResetCycles:      4,
		QueueDepth:       64,
		MaxDrainCycles:   256,
		SingleAddress:    0x100,
		Compressed:       true,
		Float:            true,
		Atomic:           true,
		PairCompressed:   true,
		Latencies:        simdut.DefaultLatencies(),
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig loads a Config from a JSON file, or a YAML file when the
// extension is .yaml or .yml. Fields absent from the file keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read testbench config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse testbench config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to path, as YAML when the extension is .yaml
// or .yml and as JSON otherwise.
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
		return fmt.Errorf("failed to serialize testbench config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write testbench config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a runnable regression.
func (c *Config) Validate() error {
	if c.Loops < 0 {
		return fmt.Errorf("loops must be >= 0")
	}
	if c.MinCoverageCount < 0 {
		return fmt.Errorf("min_coverage_count must be >= 0")
	}
	if c.PipelineDepth <= 0 {
		return fmt.Errorf("pipeline_depth must be > 0")
	}
	if c.FlushCycles < 0 {
		return fmt.Errorf("flush_cycles must be >= 0")
	}
	if c.ResetCycles <= 0 {
		return fmt.Errorf("reset_cycles must be > 0")
	}
	if c.QueueDepth < c.PipelineDepth+1 {
		return fmt.Errorf("queue_depth must be > pipeline_depth")
	}
	if c.MaxDrainCycles < c.PipelineDepth {
		return fmt.Errorf("max_drain_cycles must be >= pipeline_depth")
	}
	if c.SingleAddressMode {
		if c.SingleAddress&3 != 0 {
			return fmt.Errorf("single_address 0x%x must be word aligned", c.SingleAddress)
		}
		if c.SingleAddress > 2044 {
			return fmt.Errorf("single_address 0x%x must be <= 0x7fc", c.SingleAddress)
		}
	}
	if c.MemoryWindow != 0 {
		if c.MemoryWindow < 64 || c.MemoryWindow&3 != 0 {
			return fmt.Errorf("memory_window %d must be a multiple of 4 and >= 64", c.MemoryWindow)
		}
		if c.SingleAddressMode && c.SingleAddress >= c.MemoryWindow {
			return fmt.Errorf("single_address 0x%x is outside memory_window", c.SingleAddress)
		}
	}
	if err := c.Latencies.Validate(); err != nil {
		return fmt.Errorf("latencies: %w", err)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
