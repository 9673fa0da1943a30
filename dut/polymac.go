package dut

import (
	"log/slog"

	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/kyber"
)

type macState int

const (
	macIdle macState = iota
	macReceiving
	macComputing
	macSending
	macDone
)

// A PolyMAC computes r +/- <a, b> over polynomial vectors under the
// command/done protocol. The commands are i_recv_a, i_recv_b and i_recv_r to
// load operands from din, i_do_mac to compute, and i_send_r to stream r on
// dout. i_subtract selects subtraction. o_done rises when a command completes
// and falls once every command line is low again.
type PolyMAC struct {
	base

	din  stream
	dout stream

	recvA    *kernel.Signal
	recvB    *kernel.Signal
	recvR    *kernel.Signal
	doMAC    *kernel.Signal
	sendR    *kernel.Signal
	subtract *kernel.Signal
	done     *kernel.Signal

	a kyber.PolyVec
	b kyber.PolyVec
	r kyber.Poly

	state  macState
	buf    []uint16
	store  func(coeffs []uint16)
	count  int
	cycles int
	sub    bool
}

// PolyMACBuilder can create polynomial MAC units.
type PolyMACBuilder struct {
	k      *kernel.Kernel
	logger *slog.Logger
}

// MakePolyMACBuilder returns a builder.
func MakePolyMACBuilder() PolyMACBuilder {
	return PolyMACBuilder{}
}

// WithKernel sets the kernel.
func (b PolyMACBuilder) WithKernel(k *kernel.Kernel) PolyMACBuilder {
	b.k = k
	return b
}

// WithLogger sets the logger.
func (b PolyMACBuilder) WithLogger(logger *slog.Logger) PolyMACBuilder {
	b.logger = logger
	return b
}

// Build creates the unit and its ports.
func (b PolyMACBuilder) Build(name string) *PolyMAC {
	p := &PolyMAC{
		base: newBase(b.k, name, b.logger),
	}

	m := p.module
	p.din = addSink(m, "din", CoeffWidth)
	p.dout = addSource(m, "dout", CoeffWidth)
	p.recvA = m.AddPort("i_recv_a", 1, kernel.Input)
	p.recvB = m.AddPort("i_recv_b", 1, kernel.Input)
	p.recvR = m.AddPort("i_recv_r", 1, kernel.Input)
	p.doMAC = m.AddPort("i_do_mac", 1, kernel.Input)
	p.sendR = m.AddPort("i_send_r", 1, kernel.Input)
	p.subtract = m.AddPort("i_subtract", 1, kernel.Input)
	p.done = m.AddPort("o_done", 1, kernel.Output)

	p.din.ready.Set(0)
	p.done.Set(0)

	return p
}

// Start forks the model.
func (p *PolyMAC) Start() *kernel.Task {
	return p.start(p.step)
}

// R returns the accumulator polynomial.
func (p *PolyMAC) R() kyber.Poly {
	return p.r
}

func (p *PolyMAC) anyCommand() bool {
	return p.recvA.Bool() || p.recvB.Bool() || p.recvR.Bool() ||
		p.doMAC.Bool() || p.sendR.Bool()
}

func (p *PolyMAC) step() {
	if p.inReset() {
		p.state = macIdle
		p.din.ready.Set(0)
		p.dout.valid.Set(0)
		p.dout.data.SetX()
		p.done.Set(0)

		return
	}

	switch p.state {
	case macIdle:
		p.startCommand()
	case macReceiving:
		p.receive()
	case macComputing:
		p.compute()
	case macSending:
		p.send()
	case macDone:
		if !p.anyCommand() {
			p.done.Set(0)
			p.state = macIdle
		}
	}
}

func (p *PolyMAC) startCommand() {
	switch {
	case p.recvA.Bool():
		p.startReceive(kyber.K*kyber.N, func(c []uint16) { unflatten(&p.a, c) })
	case p.recvB.Bool():
		p.startReceive(kyber.K*kyber.N, func(c []uint16) { unflatten(&p.b, c) })
	case p.recvR.Bool():
		p.startReceive(kyber.N, func(c []uint16) { copy(p.r[:], c) })
	case p.doMAC.Bool():
		p.sub = p.subtract.Bool()
		p.cycles = kyber.N
		p.state = macComputing
	case p.sendR.Bool():
		p.count = 0
		p.state = macSending
		p.dout.valid.Set(1)
		p.dout.data.Set(uint64(p.r[0]))
	}
}

func unflatten(v *kyber.PolyVec, coeffs []uint16) {
	for k := range v {
		copy(v[k][:], coeffs[k*kyber.N:])
	}
}

func (p *PolyMAC) startReceive(n int, store func(coeffs []uint16)) {
	p.buf = make([]uint16, n)
	p.store = store
	p.count = 0
	p.state = macReceiving
	p.din.ready.Set(1)
}

func (p *PolyMAC) receive() {
	if !p.din.fired() {
		return
	}

	p.buf[p.count] = uint16(p.din.data.Value())
	p.count++

	if p.count == len(p.buf) {
		p.din.ready.Set(0)
		p.store(p.buf)
		p.finish()
	}
}

func (p *PolyMAC) compute() {
	p.cycles--
	if p.cycles > 0 {
		return
	}

	p.r = kyber.PolyVecNegaMAC(p.r, &p.a, &p.b, p.sub)
	p.finish()
}

func (p *PolyMAC) send() {
	if !p.dout.fired() {
		return
	}

	p.count++

	if p.count == kyber.N {
		p.dout.valid.Set(0)
		p.dout.data.SetX()
		p.finish()

		return
	}

	p.dout.data.Set(uint64(p.r[p.count]))
}

func (p *PolyMAC) finish() {
	p.logger.Debug("command complete", "device", p.name)
	p.done.Set(1)
	p.state = macDone
}
