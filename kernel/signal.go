package kernel

import "fmt"

// Direction is the declared direction of a signal, seen from the DUT.
type Direction int

const (
	Internal Direction = iota
	Input
	Output
	InOut
)

// String returns the name of the direction.
func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	case InOut:
		return "inout"
	default:
		return "internal"
	}
}

// MaxWidth is the widest signal the kernel can carry.
const MaxWidth = 64

// A Signal is a named wire or bus of up to 64 bits.
//
// Writes through Set and SetX are not visible immediately. They are applied
// by the kernel during the delta loop of the current time step, so every task
// resumed at a clock edge reads the values from before the edge.
type Signal struct {
	k     *Kernel
	name  string
	width int
	dir   Direction

	value   uint64
	defined bool

	next        uint64
	nextDefined bool
	hasPending  bool

	waiters []*Task
}

func newSignal(k *Kernel, name string, width int, dir Direction) *Signal {
	if width <= 0 || width > MaxWidth {
		panic(fmt.Sprintf("signal %s: width %d out of range", name, width))
	}

	return &Signal{
		k:     k,
		name:  name,
		width: width,
		dir:   dir,
	}
}

// Name returns the name of the signal.
func (s *Signal) Name() string {
	return s.name
}

// Width returns the number of bits of the signal.
func (s *Signal) Width() int {
	return s.width
}

// Direction returns the declared direction of the signal.
func (s *Signal) Direction() Direction {
	return s.dir
}

// Value returns the current value. Undefined bits read as 0.
func (s *Signal) Value() uint64 {
	return s.value
}

// Bool reports whether the signal currently holds a non-zero value.
func (s *Signal) Bool() bool {
	return s.defined && s.value != 0
}

// IsResolvable returns false while the signal holds "don't care".
func (s *Signal) IsResolvable() bool {
	return s.defined
}

// Mask returns the all-ones value for the width of the signal.
func (s *Signal) Mask() uint64 {
	return WidthMask(s.width)
}

// Set schedules v to be driven onto the signal. Bits above the width of the
// signal are dropped.
func (s *Signal) Set(v uint64) {
	s.schedule(v&s.Mask(), true)
}

// SetBool drives 1 for true and 0 for false.
func (s *Signal) SetBool(b bool) {
	if b {
		s.Set(1)
		return
	}

	s.Set(0)
}

// SetX schedules the "don't care" pattern onto the signal.
func (s *Signal) SetX() {
	s.schedule(0, false)
}

func (s *Signal) schedule(v uint64, defined bool) {
	s.next = v
	s.nextDefined = defined

	if !s.hasPending {
		s.hasPending = true
		s.k.pending = append(s.k.pending, s)
	}
}

// apply commits the pending write and reports whether the visible value
// changed.
func (s *Signal) apply() bool {
	s.hasPending = false

	if s.value == s.next && s.defined == s.nextDefined {
		return false
	}

	s.value = s.next
	s.defined = s.nextDefined

	return true
}

// String renders the signal as name=value, with x for "don't care".
func (s *Signal) String() string {
	if !s.defined {
		return s.name + "=x"
	}

	return fmt.Sprintf("%s=%#x", s.name, s.value)
}

// WidthMask returns a value with the low width bits set.
func WidthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << uint(width)) - 1
}
