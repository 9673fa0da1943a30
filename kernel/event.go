package kernel

import "github.com/sarchlab/akita/v4/sim"

type stepKind int

const (
	stepInit stepKind = iota
	stepRising
	stepFalling
)

// edgeEvent triggers one time step of the kernel.
type edgeEvent struct {
	*sim.EventBase

	kind stepKind
}

func newEdgeEvent(t sim.VTimeInSec, handler sim.Handler, kind stepKind) *edgeEvent {
	return &edgeEvent{
		EventBase: sim.NewEventBase(t, handler),
		kind:      kind,
	}
}
