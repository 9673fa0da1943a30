// Package dut has behavioral models of the devices the benches verify. Every
// model runs as a kernel task that wakes at each rising edge, reads the
// values from before the edge, and drives its outputs like registers would.
package dut

import (
	"log/slog"

	"github.com/sarchlab/hwtb/kernel"
)

// A Device is a behavioral model with a port surface.
type Device interface {
	Name() string
	Module() *kernel.Module
	Start() *kernel.Task
}

// stream is the device side of a valid/ready interface.
type stream struct {
	data  *kernel.Signal
	valid *kernel.Signal
	ready *kernel.Signal
}

func (s stream) fired() bool {
	return s.valid.Bool() && s.ready.Bool()
}

// addSink adds the ports of a stream the device receives on.
func addSink(m *kernel.Module, name string, width int) stream {
	return stream{
		data:  m.AddPort("i_"+name+"_data", width, kernel.Input),
		valid: m.AddPort("i_"+name+"_valid", 1, kernel.Input),
		ready: m.AddPort("o_"+name+"_ready", 1, kernel.Output),
	}
}

// addSource adds the ports of a stream the device sends on.
func addSource(m *kernel.Module, name string, width int) stream {
	s := stream{
		data:  m.AddPort("o_"+name+"_data", width, kernel.Output),
		valid: m.AddPort("o_"+name+"_valid", 1, kernel.Output),
		ready: m.AddPort("i_"+name+"_ready", 1, kernel.Input),
	}
	s.valid.Set(0)
	s.data.SetX()

	return s
}

// base holds what every model shares.
type base struct {
	name   string
	k      *kernel.Kernel
	module *kernel.Module
	rst    *kernel.Signal
	logger *slog.Logger
	task   *kernel.Task
}

func newBase(k *kernel.Kernel, name string, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}

	m := k.NewModule(name)
	m.Bind(k.Clock())

	return base{
		name:   name,
		k:      k,
		module: m,
		rst:    m.AddPort("rst", 1, kernel.Input),
		logger: logger,
	}
}

// Name returns the name of the device.
func (b *base) Name() string {
	return b.name
}

// Module returns the port surface of the device.
func (b *base) Module() *kernel.Module {
	return b.module
}

func (b *base) inReset() bool {
	return b.rst.Bool()
}

func (b *base) start(step func()) *kernel.Task {
	if b.task != nil {
		return b.task
	}

	b.task = b.k.Fork(b.name, func(t *kernel.Task) error {
		for {
			t.RisingEdge()
			step()
		}
	})

	return b.task
}
