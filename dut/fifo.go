package dut

import (
	"log/slog"

	"github.com/sarchlab/hwtb/kernel"
)

// A Fifo passes words from din to dout in order, holding up to depth words.
type Fifo struct {
	base

	depth int
	din   stream
	dout  stream
	queue []uint64
}

// FifoBuilder can create FIFO models.
type FifoBuilder struct {
	k      *kernel.Kernel
	width  int
	depth  int
	logger *slog.Logger
}

// MakeFifoBuilder returns a builder for an 8-bit FIFO of depth 4.
func MakeFifoBuilder() FifoBuilder {
	return FifoBuilder{
		width: 8,
		depth: 4,
	}
}

// WithKernel sets the kernel.
func (b FifoBuilder) WithKernel(k *kernel.Kernel) FifoBuilder {
	b.k = k
	return b
}

// WithWidth sets the data width.
func (b FifoBuilder) WithWidth(width int) FifoBuilder {
	b.width = width
	return b
}

// WithDepth sets the number of words the FIFO holds.
func (b FifoBuilder) WithDepth(depth int) FifoBuilder {
	b.depth = depth
	return b
}

// WithLogger sets the logger.
func (b FifoBuilder) WithLogger(logger *slog.Logger) FifoBuilder {
	b.logger = logger
	return b
}

// Build creates the FIFO and its ports.
func (b FifoBuilder) Build(name string) *Fifo {
	if b.depth < 1 {
		panic("fifo depth must be positive")
	}

	f := &Fifo{
		base:  newBase(b.k, name, b.logger),
		depth: b.depth,
	}
	f.din = addSink(f.module, "din", b.width)
	f.dout = addSource(f.module, "dout", b.width)
	f.din.ready.Set(0)

	return f
}

// Start forks the model.
func (f *Fifo) Start() *kernel.Task {
	return f.start(f.step)
}

// Len returns the number of words held.
func (f *Fifo) Len() int {
	return len(f.queue)
}

func (f *Fifo) step() {
	if f.inReset() {
		f.queue = nil
		f.din.ready.Set(0)
		f.dout.valid.Set(0)
		f.dout.data.SetX()

		return
	}

	if f.dout.fired() {
		f.queue = f.queue[1:]
	}

	if f.din.fired() {
		f.queue = append(f.queue, f.din.data.Value())
	}

	f.din.ready.SetBool(len(f.queue) < f.depth)

	if len(f.queue) == 0 {
		f.dout.valid.Set(0)
		f.dout.data.SetX()

		return
	}

	f.dout.valid.Set(1)
	f.dout.data.Set(f.queue[0])
}
