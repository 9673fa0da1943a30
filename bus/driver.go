package bus

import (
	"encoding/hex"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hwtb/kernel"
)

// A Driver pushes words onto a bus, one per fire cycle.
type Driver struct {
	*sim.HookableBase

	name     string
	bus      Bus
	config   Config
	logger   *slog.Logger
	schedule idleSchedule
}

// DriverBuilder can create drivers.
type DriverBuilder struct {
	bus    Bus
	config Config
	idle   IdleGenerator
	logger *slog.Logger
}

// MakeDriverBuilder returns a builder with the default bus options.
func MakeDriverBuilder() DriverBuilder {
	return DriverBuilder{
		config: DefaultConfig(),
	}
}

// WithBus sets the bus to drive.
func (b DriverBuilder) WithBus(bus Bus) DriverBuilder {
	b.bus = bus
	return b
}

// WithConfig sets the bus options.
func (b DriverBuilder) WithConfig(config Config) DriverBuilder {
	b.config = config
	return b
}

// WithIdleGenerator sets the schedule of valid gaps.
func (b DriverBuilder) WithIdleGenerator(g IdleGenerator) DriverBuilder {
	b.idle = g
	return b
}

// WithLogger sets the logger.
func (b DriverBuilder) WithLogger(logger *slog.Logger) DriverBuilder {
	b.logger = logger
	return b
}

// Build creates a driver and drives valid low and data to "don't care".
func (b DriverBuilder) Build(name string) (*Driver, error) {
	if err := b.bus.validate(); err != nil {
		return nil, errors.Wrapf(err, "driver %s", name)
	}

	d := &Driver{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		bus:          b.bus,
		config:       b.config,
		logger:       b.logger,
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	d.schedule.owner = d
	d.schedule.logger = d.logger
	d.schedule.reset(b.idle)

	d.bus.Valid.Set(0)
	d.bus.Data.SetX()

	return d, nil
}

// Name returns the name of the driver.
func (d *Driver) Name() string {
	return d.name
}

// Bus returns the bus the driver writes to.
func (d *Driver) Bus() Bus {
	return d.bus
}

// SetIdleGenerator replaces the schedule of valid gaps. A nil generator
// removes all gaps.
func (d *Driver) SetIdleGenerator(g IdleGenerator) {
	d.schedule.reset(g)
}

// Send drives every word of payload and returns after the last one was
// accepted and valid was released. With sync unset, the first word is driven
// without waiting for a clock edge.
func (d *Driver) Send(t *kernel.Task, payload any, sync bool) error {
	words, err := d.words(payload)
	if err != nil {
		d.logger.Error("cannot send payload", "driver", d.name, "error", err)
		return err
	}

	if data, ok := payload.([]byte); ok {
		d.logger.Info("sending packet", "driver", d.name, "bytes", len(data))
		d.logger.Debug("packet dump", "driver", d.name, "hex", hex.Dump(data))
	}

	for i, w := range words {
		if sync || i > 0 {
			t.RisingEdge()
		}

		d.insertGap(t)
		d.schedule.consume()

		d.bus.Valid.Set(1)
		d.bus.Data.Set(uint64(w))

		kernel.Trace(d.logger, "word sent",
			"driver", d.name, "index", i, "data", uint64(w))
		d.InvokeHook(sim.HookCtx{
			Domain: d,
			Pos:    HookPosWordSent,
			Item:   w,
		})

		d.waitReady(t)
	}

	t.RisingEdge()
	d.bus.Valid.Set(0)
	d.bus.Data.SetX()

	return nil
}

func (d *Driver) insertGap(t *kernel.Task) {
	for d.schedule.needsGap() {
		d.bus.Valid.Set(0)

		if d.schedule.off > 0 {
			d.InvokeHook(sim.HookCtx{
				Domain: d,
				Pos:    HookPosIdleGap,
				Item:   d.schedule.off,
			})
		}

		for j := 0; j < d.schedule.off; j++ {
			t.RisingEdge()
		}

		d.schedule.next()
	}
}

// waitReady returns at the read-only point of the first cycle with ready
// asserted. The driven word stays on the bus the whole time.
func (d *Driver) waitReady(t *kernel.Task) {
	t.ReadOnly()

	for !d.bus.Ready.Bool() {
		t.RisingEdge()
		t.ReadOnly()
	}
}
