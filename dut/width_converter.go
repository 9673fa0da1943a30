package dut

import (
	"log/slog"

	"github.com/sarchlab/hwtb/kernel"
)

// A WidthConverter regroups a bit stream from words of one width into words
// of another. Bits are consumed and produced least significant first.
type WidthConverter struct {
	base

	inWidth  int
	outWidth int
	din      stream
	dout     stream

	buf  uint64
	bits int
}

// WidthConverterBuilder can create width converters.
type WidthConverterBuilder struct {
	k        *kernel.Kernel
	inWidth  int
	outWidth int
	logger   *slog.Logger
}

// MakeWidthConverterBuilder returns a builder for an 8-to-12 converter.
func MakeWidthConverterBuilder() WidthConverterBuilder {
	return WidthConverterBuilder{
		inWidth:  8,
		outWidth: 12,
	}
}

// WithKernel sets the kernel.
func (b WidthConverterBuilder) WithKernel(k *kernel.Kernel) WidthConverterBuilder {
	b.k = k
	return b
}

// WithWidths sets the input and the output width.
func (b WidthConverterBuilder) WithWidths(in, out int) WidthConverterBuilder {
	b.inWidth = in
	b.outWidth = out

	return b
}

// WithLogger sets the logger.
func (b WidthConverterBuilder) WithLogger(logger *slog.Logger) WidthConverterBuilder {
	b.logger = logger
	return b
}

// Build creates the converter and its ports.
func (b WidthConverterBuilder) Build(name string) *WidthConverter {
	if b.inWidth < 1 || b.outWidth < 1 || b.inWidth+b.outWidth > kernel.MaxWidth {
		panic("width converter widths out of range")
	}

	c := &WidthConverter{
		base:     newBase(b.k, name, b.logger),
		inWidth:  b.inWidth,
		outWidth: b.outWidth,
	}
	c.din = addSink(c.module, "din", b.inWidth)
	c.dout = addSource(c.module, "dout", b.outWidth)
	c.din.ready.Set(0)

	return c
}

// Start forks the model.
func (c *WidthConverter) Start() *kernel.Task {
	return c.start(c.step)
}

func (c *WidthConverter) step() {
	if c.inReset() {
		c.buf = 0
		c.bits = 0
		c.din.ready.Set(0)
		c.dout.valid.Set(0)
		c.dout.data.SetX()

		return
	}

	if c.dout.fired() {
		c.buf >>= uint(c.outWidth)
		c.bits -= c.outWidth
	}

	if c.din.fired() {
		c.buf |= c.din.data.Value() << uint(c.bits)
		c.bits += c.inWidth
	}

	c.din.ready.SetBool(c.bits < c.outWidth)

	if c.bits < c.outWidth {
		c.dout.valid.Set(0)
		c.dout.data.SetX()

		return
	}

	c.dout.valid.Set(1)
	c.dout.data.Set(c.buf & kernel.WidthMask(c.outWidth))
}
