package kernel

import (
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
)

// Builder can create kernels.
type Builder struct {
	engine     sim.Engine
	freq       sim.Freq
	cycleLimit uint64
	logger     *slog.Logger
}

// MakeBuilder returns a builder with a 100 MHz clock.
func MakeBuilder() Builder {
	return Builder{
		freq: 100 * sim.MHz,
	}
}

// WithEngine sets the engine. A serial engine is created if none is given.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the clock frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithCycleLimit makes Run fail with ErrCycleLimit after n rising edges. Zero
// means no limit.
func (b Builder) WithCycleLimit(n uint64) Builder {
	b.cycleLimit = n
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a kernel.
func (b Builder) Build(name string) *Kernel {
	if b.freq <= 0 {
		panic("kernel frequency must be positive")
	}

	k := &Kernel{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		engine:       b.engine,
		freq:         b.freq,
		cycleLimit:   b.cycleLimit,
		logger:       b.logger,
		yield:        make(chan struct{}),
	}

	if k.engine == nil {
		k.engine = sim.NewSerialEngine()
	}

	if k.logger == nil {
		k.logger = slog.Default()
	}

	k.clk = newSignal(k, "clk", 1, Input)
	k.clk.defined = true

	return k
}
