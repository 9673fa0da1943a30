package dut

import (
	"log/slog"
	"math/bits"

	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/kyber"
)

// CoeffWidth is the width of a coefficient on the output buses.
const CoeffWidth = 13

// A CBDSampler turns 4-bit nibbles into centered binomial coefficients. Two
// nibbles, low nibble first, make one coefficient a + Q - b, where a and b
// count the set bits of the low and the high nibble.
type CBDSampler struct {
	base

	din  stream
	dout stream

	low     uint64
	hasLow  bool
	pending []uint64
}

// CBDSamplerBuilder can create CBD samplers.
type CBDSamplerBuilder struct {
	k      *kernel.Kernel
	logger *slog.Logger
}

// MakeCBDSamplerBuilder returns a builder.
func MakeCBDSamplerBuilder() CBDSamplerBuilder {
	return CBDSamplerBuilder{}
}

// WithKernel sets the kernel.
func (b CBDSamplerBuilder) WithKernel(k *kernel.Kernel) CBDSamplerBuilder {
	b.k = k
	return b
}

// WithLogger sets the logger.
func (b CBDSamplerBuilder) WithLogger(logger *slog.Logger) CBDSamplerBuilder {
	b.logger = logger
	return b
}

// Build creates the sampler with a din nibble input and a coeffout output.
func (b CBDSamplerBuilder) Build(name string) *CBDSampler {
	s := &CBDSampler{
		base: newBase(b.k, name, b.logger),
	}
	s.din = addSink(s.module, "din", 4)
	s.dout = addSource(s.module, "coeffout", CoeffWidth)
	s.din.ready.Set(0)

	return s
}

// Start forks the model.
func (s *CBDSampler) Start() *kernel.Task {
	return s.start(s.step)
}

func (s *CBDSampler) step() {
	if s.inReset() {
		s.hasLow = false
		s.pending = nil
		s.din.ready.Set(0)
		s.dout.valid.Set(0)
		s.dout.data.SetX()

		return
	}

	if s.dout.fired() {
		s.pending = s.pending[1:]
	}

	if s.din.fired() {
		nibble := s.din.data.Value()

		if s.hasLow {
			a := uint64(bits.OnesCount64(s.low))
			b := uint64(bits.OnesCount64(nibble))
			s.pending = append(s.pending, a+kyber.Q-b)
			s.hasLow = false
		} else {
			s.low = nibble
			s.hasLow = true
		}
	}

	s.din.ready.SetBool(len(s.pending) < 2)

	if len(s.pending) == 0 {
		s.dout.valid.Set(0)
		s.dout.data.SetX()

		return
	}

	s.dout.valid.Set(1)
	s.dout.data.Set(s.pending[0])
}
