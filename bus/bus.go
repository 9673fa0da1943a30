// Package bus implements the valid/ready streaming protocol: word packing,
// idle and backpressure schedules, a driver that pushes words onto a bus, and
// a monitor that reassembles fixed-size transactions from it.
package bus

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hwtb/kernel"
)

// HookPosWordSent marks a word being offered on the bus by a driver.
var HookPosWordSent = &sim.HookPos{Name: "Bus Word Sent"}

// HookPosIdleGap marks the start of a run of idle cycles.
var HookPosIdleGap = &sim.HookPos{Name: "Bus Idle Gap"}

// HookPosIdleExhausted marks an idle generator running out of pairs.
var HookPosIdleExhausted = &sim.HookPos{Name: "Bus Idle Exhausted"}

// HookPosWordReceived marks a word captured by a monitor.
var HookPosWordReceived = &sim.HookPos{Name: "Bus Word Recv"}

// HookPosTransactionReceived marks a monitor completing a transaction.
var HookPosTransactionReceived = &sim.HookPos{Name: "Bus Transaction Recv"}

// A Word is the value transferred on one fire cycle.
type Word uint64

// A Transaction is an ordered group of words.
type Transaction []Word

// Equal reports whether two transactions carry the same words.
func (t Transaction) Equal(other Transaction) bool {
	if len(t) != len(other) {
		return false
	}

	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}

	return true
}

// Bus is the data, valid and ready triple of one valid/ready interface.
type Bus struct {
	Name  string
	Data  *kernel.Signal
	Valid *kernel.Signal
	Ready *kernel.Signal
}

// Width returns the width of the data signal.
func (b Bus) Width() int {
	return b.Data.Width()
}

// Fire reports whether valid and ready are both asserted.
func (b Bus) Fire() bool {
	return b.Valid.Bool() && b.Ready.Bool()
}

func (b Bus) validate() error {
	if b.Data == nil || b.Valid == nil || b.Ready == nil {
		return errors.Errorf("bus %s: data, valid and ready must all be set", b.Name)
	}

	return nil
}

// Config carries the per-bus protocol options.
type Config struct {
	// FirstSymbolInHighOrderBits puts the first byte of a byte payload in the
	// most significant byte of the word.
	FirstSymbolInHighOrderBits bool
}

// DefaultConfig returns the default bus options.
func DefaultConfig() Config {
	return Config{
		FirstSymbolInHighOrderBits: true,
	}
}

// A ProtocolError reports a payload or width the bus cannot carry.
type ProtocolError struct {
	Bus    string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Bus == "" {
		return "protocol error: " + e.Reason
	}

	return fmt.Sprintf("bus %s: protocol error: %s", e.Bus, e.Reason)
}

func protocolErrorf(bus, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Bus:    bus,
		Reason: fmt.Sprintf(format, args...),
	}
}
