// Package config loads bench descriptions from YAML.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hwtb/bus"
	"github.com/sarchlab/hwtb/kernel"
	"gopkg.in/yaml.v3"
)

// Bus holds the options of one named bus.
type Bus struct {
	Width                      int    `yaml:"width"`
	FirstSymbolInHighOrderBits *bool  `yaml:"first_symbol_in_high_order_bits"`
	Idle                       string `yaml:"idle"`
	Words                      int    `yaml:"words"`
}

// Bench describes how a device is exercised.
type Bench struct {
	Name            string              `yaml:"name"`
	ClockMHz        float64             `yaml:"clock_mhz"`
	Seed            int64               `yaml:"seed"`
	CycleLimit      uint64              `yaml:"cycle_limit"`
	LogLevel        string              `yaml:"log_level"`
	InputBus        string              `yaml:"input_bus"`
	OutputBus       string              `yaml:"output_bus"`
	Buses           map[string]Bus      `yaml:"buses"`
	Commands        map[string][]string `yaml:"commands"`
	DoneSignal      string              `yaml:"done_signal"`
	FailImmediately *bool               `yaml:"fail_immediately"`
}

var idleStrategies = map[string]bool{
	"":                           true,
	"none":                       true,
	"always_on":                  true,
	"random_50_percent":          true,
	"intermittent_single_cycles": true,
	"wave":                       true,
}

var logLevels = map[string]slog.Level{
	"trace": kernel.LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Default returns the bench used when no file is given.
func Default() *Bench {
	return &Bench{
		Name:      "bench",
		ClockMHz:  100,
		InputBus:  "din",
		OutputBus: "dout",
	}
}

// Load reads and validates a bench file.
func Load(path string) (*Bench, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read bench file %s", path)
	}

	b, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "bench file %s", path)
	}

	return b, nil
}

// Parse decodes a bench over the defaults and validates it.
func Parse(data []byte) (*Bench, error) {
	b := Default()

	if err := yaml.Unmarshal(data, b); err != nil {
		return nil, errors.Wrap(err, "failed to parse bench")
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}

	return b, nil
}

// Validate checks the bench for values no component accepts.
func (b *Bench) Validate() error {
	if b.ClockMHz <= 0 {
		return errors.Errorf("clock_mhz must be positive, got %v", b.ClockMHz)
	}

	if b.InputBus == "" || b.OutputBus == "" {
		return errors.New("input_bus and output_bus must be set")
	}

	if _, found := logLevels[strings.ToLower(b.LogLevel)]; !found && b.LogLevel != "" {
		return errors.Errorf("unknown log_level %q", b.LogLevel)
	}

	for name, bc := range b.Buses {
		if bc.Width < 0 || bc.Width > kernel.MaxWidth {
			return errors.Errorf("bus %s: width %d out of range", name, bc.Width)
		}

		if bc.Words < 0 {
			return errors.Errorf("bus %s: words must not be negative", name)
		}

		if !idleStrategies[bc.Idle] {
			return errors.Errorf("bus %s: unknown idle strategy %q", name, bc.Idle)
		}
	}

	for id, signals := range b.Commands {
		for _, s := range signals {
			if s == "" {
				return errors.Errorf("command %s: empty signal name", id)
			}
		}
	}

	return nil
}

// Freq returns the clock frequency.
func (b *Bench) Freq() sim.Freq {
	return sim.Freq(b.ClockMHz) * sim.MHz
}

// Level returns the log level, defaulting to info.
func (b *Bench) Level() slog.Level {
	if l, found := logLevels[strings.ToLower(b.LogLevel)]; found {
		return l
	}

	return slog.LevelInfo
}

// ApplyKernel sets the clock and the cycle limit of a kernel builder.
func (b *Bench) ApplyKernel(kb kernel.Builder) kernel.Builder {
	return kb.WithFreq(b.Freq()).WithCycleLimit(b.CycleLimit)
}

// BusConfig returns the protocol options of a bus.
func (b *Bench) BusConfig(name string) bus.Config {
	c := bus.DefaultConfig()

	if bc, found := b.Buses[name]; found && bc.FirstSymbolInHighOrderBits != nil {
		c.FirstSymbolInHighOrderBits = *bc.FirstSymbolInHighOrderBits
	}

	return c
}

// Idle returns the name of the idle strategy of a bus.
func (b *Bench) Idle(name string) string {
	return b.Buses[name].Idle
}

// Width returns the declared data width of a bus, or 0 if not set.
func (b *Bench) Width(name string) int {
	return b.Buses[name].Width
}

// Words returns the transaction size of a bus, or 0 if not set.
func (b *Bench) Words(name string) int {
	return b.Buses[name].Words
}

// FailFast reports whether the scoreboard should stop the simulation at the
// first failure.
func (b *Bench) FailFast() bool {
	if b.FailImmediately == nil {
		return true
	}

	return *b.FailImmediately
}
