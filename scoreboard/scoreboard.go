// Package scoreboard compares the transactions observed on buses with the
// transactions a test expects, in order.
package scoreboard

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hwtb/bus"
	"github.com/sarchlab/hwtb/kernel"
)

// HookPosMatch marks a received transaction equal to its expectation.
var HookPosMatch = &sim.HookPos{Name: "Scoreboard Match"}

// HookPosMismatch marks a recorded failure.
var HookPosMismatch = &sim.HookPos{Name: "Scoreboard Mismatch"}

// Expectations is a FIFO queue of expected transactions for one bus.
type Expectations struct {
	items []bus.Transaction
}

// NewExpectations creates an empty queue.
func NewExpectations() *Expectations {
	return &Expectations{}
}

// Push appends an expected transaction.
func (q *Expectations) Push(tr bus.Transaction) {
	q.items = append(q.items, tr)
}

// Len returns the number of expectations not yet matched.
func (q *Expectations) Len() int {
	return len(q.items)
}

func (q *Expectations) pop() (bus.Transaction, bool) {
	if len(q.items) == 0 {
		return nil, false
	}

	tr := q.items[0]
	q.items = q.items[1:]

	return tr, true
}

// A Source delivers completed transactions, like a bus monitor.
type Source interface {
	Name() string
	AddCallback(cb bus.Callback)
}

// MismatchKind tells what went wrong with a word.
type MismatchKind int

const (
	// KindValue is a word that differs from the expected one.
	KindValue MismatchKind = iota
	// KindMissing is an expected word the transaction did not carry.
	KindMissing
	// KindExtra is a word beyond the end of the expected transaction.
	KindExtra
	// KindUnexpected is a transaction that arrived with no expectation
	// queued.
	KindUnexpected
	// KindNotReceived is an expectation still queued when the result is
	// requested.
	KindNotReceived
)

func (k MismatchKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindMissing:
		return "missing"
	case KindExtra:
		return "extra"
	case KindUnexpected:
		return "unexpected"
	case KindNotReceived:
		return "not received"
	default:
		return "unknown"
	}
}

// A Mismatch is one recorded failure. Index is the word position, or -1 for
// failures about a whole transaction.
type Mismatch struct {
	Bus         string
	Transaction int
	Index       int
	Kind        MismatchKind
	Expected    bus.Word
	Actual      bus.Word
}

func (m Mismatch) String() string {
	switch m.Kind {
	case KindUnexpected:
		return fmt.Sprintf("%s: transaction %d was not expected",
			m.Bus, m.Transaction)
	case KindNotReceived:
		return fmt.Sprintf("%s: transaction %d was expected but not received",
			m.Bus, m.Transaction)
	case KindMissing:
		return fmt.Sprintf("%s: transaction %d word %d missing, expected %#x",
			m.Bus, m.Transaction, m.Index, uint64(m.Expected))
	case KindExtra:
		return fmt.Sprintf("%s: transaction %d word %d extra, got %#x",
			m.Bus, m.Transaction, m.Index, uint64(m.Actual))
	default:
		return fmt.Sprintf("%s: transaction %d word %d expected %#x, got %#x",
			m.Bus, m.Transaction, m.Index, uint64(m.Expected), uint64(m.Actual))
	}
}

// ResultError carries every failure of a scoreboard.
type ResultError struct {
	Mismatches []Mismatch
}

func (e *ResultError) Error() string {
	lines := make([]string, 0, len(e.Mismatches)+1)
	lines = append(lines, fmt.Sprintf("scoreboard: %d failures", len(e.Mismatches)))

	for _, m := range e.Mismatches {
		lines = append(lines, "  "+m.String())
	}

	return strings.Join(lines, "\n")
}

type iface struct {
	name     string
	queue    *Expectations
	received int
}

// A Scoreboard checks every transaction of its registered sources against
// the head of the matching expectation queue.
type Scoreboard struct {
	*sim.HookableBase

	name            string
	logger          *slog.Logger
	k               *kernel.Kernel
	failImmediately bool

	ifaces     []*iface
	matched    int
	mismatches []Mismatch
}

// Builder can create scoreboards.
type Builder struct {
	k               *kernel.Kernel
	failImmediately bool
	logger          *slog.Logger
}

// MakeBuilder returns a builder for a scoreboard that only accumulates.
func MakeBuilder() Builder {
	return Builder{}
}

// WithKernel sets the kernel to abort in fail-immediately mode.
func (b Builder) WithKernel(k *kernel.Kernel) Builder {
	b.k = k
	return b
}

// WithFailImmediately aborts the simulation at the first failure.
func (b Builder) WithFailImmediately(v bool) Builder {
	b.failImmediately = v
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a scoreboard.
func (b Builder) Build(name string) *Scoreboard {
	if b.failImmediately && b.k == nil {
		panic("a fail-immediately scoreboard needs a kernel")
	}

	s := &Scoreboard{
		HookableBase:    sim.NewHookableBase(),
		name:            name,
		logger:          b.logger,
		k:               b.k,
		failImmediately: b.failImmediately,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Name returns the name of the scoreboard.
func (s *Scoreboard) Name() string {
	return s.name
}

// AddInterface checks every transaction of src against queue.
func (s *Scoreboard) AddInterface(src Source, queue *Expectations) {
	i := &iface{
		name:  src.Name(),
		queue: queue,
	}
	s.ifaces = append(s.ifaces, i)

	src.AddCallback(func(tr bus.Transaction) {
		s.compare(i, tr)
	})
}

func (s *Scoreboard) compare(i *iface, actual bus.Transaction) {
	n := i.received
	i.received++

	expected, ok := i.queue.pop()
	if !ok {
		s.record(Mismatch{
			Bus:         i.name,
			Transaction: n,
			Index:       -1,
			Kind:        KindUnexpected,
		})
		s.abort(len(s.mismatches) - 1)

		return
	}

	first := len(s.mismatches)
	length := len(expected)
	if len(actual) > length {
		length = len(actual)
	}

	for idx := 0; idx < length; idx++ {
		m := Mismatch{Bus: i.name, Transaction: n, Index: idx}

		switch {
		case idx >= len(actual):
			m.Kind = KindMissing
			m.Expected = expected[idx]
		case idx >= len(expected):
			m.Kind = KindExtra
			m.Actual = actual[idx]
		case expected[idx] != actual[idx]:
			m.Kind = KindValue
			m.Expected = expected[idx]
			m.Actual = actual[idx]
		default:
			continue
		}

		s.record(m)
	}

	if len(s.mismatches) > first {
		s.abort(first)
		return
	}

	s.matched++
	s.logger.Debug("transaction matched",
		"scoreboard", s.name, "bus", i.name, "transaction", n)
	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    HookPosMatch,
		Item:   actual,
	})
}

func (s *Scoreboard) record(m Mismatch) {
	s.mismatches = append(s.mismatches, m)

	s.logger.Error("scoreboard mismatch",
		"scoreboard", s.name, "detail", m.String())
	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    HookPosMismatch,
		Item:   m,
	})
}

// abort stops the simulation in fail-immediately mode with the failures
// recorded from index first on.
func (s *Scoreboard) abort(first int) {
	if !s.failImmediately {
		return
	}

	failures := append([]Mismatch(nil), s.mismatches[first:]...)
	s.k.Abort(&ResultError{Mismatches: failures})
}

// Matched returns the number of transactions equal to their expectation.
func (s *Scoreboard) Matched() int {
	return s.matched
}

// Mismatches returns the failures recorded so far.
func (s *Scoreboard) Mismatches() []Mismatch {
	return s.mismatches
}

// Result returns nil if every transaction matched and every expectation was
// consumed. Otherwise it returns a *ResultError listing all failures.
func (s *Scoreboard) Result() error {
	failures := append([]Mismatch(nil), s.mismatches...)

	for _, i := range s.ifaces {
		for j := 0; j < i.queue.Len(); j++ {
			failures = append(failures, Mismatch{
				Bus:         i.name,
				Transaction: i.received + j,
				Index:       -1,
				Kind:        KindNotReceived,
			})
		}
	}

	if len(failures) == 0 {
		return nil
	}

	return &ResultError{Mismatches: failures}
}
