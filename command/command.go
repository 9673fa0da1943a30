// Package command drives the command/done control protocol: raise one or
// more command lines, optionally stream input, wait for done, and lower the
// command lines again.
package command

import (
	"log/slog"
	"sort"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/port"
)

// HookPosStateChange marks the controller entering a new state.
var HookPosStateChange = &sim.HookPos{Name: "Command State Change"}

// State is the progress of the command being issued.
type State int

const (
	StateIdle State = iota
	StateAwaitingDoneClear
	StateAsserted
	StateStreaming
	StateAwaitingDoneSet
	StateDeasserting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingDoneClear:
		return "AwaitingDoneClear"
	case StateAsserted:
		return "Asserted"
	case StateStreaming:
		return "Streaming"
	case StateAwaitingDoneSet:
		return "AwaitingDoneSet"
	case StateDeasserting:
		return "Deasserting"
	default:
		return "Unknown"
	}
}

// A Sender streams a payload onto an input bus.
type Sender interface {
	Send(t *kernel.Task, payload any, sync bool) error
}

// A Controller issues commands to a device, one at a time.
type Controller struct {
	*sim.HookableBase

	name     string
	logger   *slog.Logger
	done     *kernel.Signal
	commands map[string][]*kernel.Signal
	sender   Sender

	state State
	busy  bool
}

// Builder can create controllers.
type Builder struct {
	dir      *port.Directory
	done     string
	commands map[string][]string
	sender   Sender
	logger   *slog.Logger
}

// MakeBuilder returns a builder that uses o_done as the done signal.
func MakeBuilder() Builder {
	return Builder{
		done: "o_done",
	}
}

// WithDirectory sets the ports the signals are looked up in.
func (b Builder) WithDirectory(dir *port.Directory) Builder {
	b.dir = dir
	return b
}

// WithDoneSignal sets the name of the done signal.
func (b Builder) WithDoneSignal(name string) Builder {
	b.done = name
	return b
}

// WithCommand names a command and the signals it raises.
func (b Builder) WithCommand(id string, signals ...string) Builder {
	commands := make(map[string][]string, len(b.commands)+1)
	for k, v := range b.commands {
		commands[k] = v
	}

	commands[id] = signals
	b.commands = commands

	return b
}

// WithSender sets the driver used to stream command input.
func (b Builder) WithSender(s Sender) Builder {
	b.sender = s
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a controller. It fails with a *port.ConfigError if the done
// signal or any command signal is not a port of the device.
func (b Builder) Build(name string) (*Controller, error) {
	if b.dir == nil {
		return nil, errors.Errorf("command controller %s: no port directory", name)
	}

	done, err := b.dir.ResolveSignal(b.done)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		logger:       b.logger,
		done:         done,
		commands:     make(map[string][]*kernel.Signal, len(b.commands)),
		sender:       b.sender,
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	for id, names := range b.commands {
		if len(names) == 0 {
			names = []string{id}
		}

		signals := make([]*kernel.Signal, 0, len(names))

		for _, n := range names {
			s, err := b.dir.ResolveSignal(n)
			if err != nil {
				return nil, err
			}

			signals = append(signals, s)
		}

		c.commands[id] = signals
	}

	return c, nil
}

// Name returns the name of the controller.
func (c *Controller) Name() string {
	return c.name
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Commands returns the sorted command ids.
func (c *Controller) Commands() []string {
	ids := make([]string, 0, len(c.commands))
	for id := range c.commands {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Done returns the done signal.
func (c *Controller) Done() *kernel.Signal {
	return c.done
}

// WaitForDone waits until the done signal holds v.
func (c *Controller) WaitForDone(t *kernel.Task, v uint64) {
	for !c.done.IsResolvable() || c.done.Value() != v {
		t.Edge(c.done)
	}
}

// Command issues the command registered under id. A non-nil input is
// streamed through the sender while the command lines are raised.
func (c *Controller) Command(t *kernel.Task, id string, input any) error {
	signals, found := c.commands[id]
	if !found {
		return &port.ConfigError{Name: id, Reason: "unknown command"}
	}

	return c.CommandSignals(t, signals, input)
}

// CommandSignals raises the given signals as one command. A call made while
// another command is in progress waits for it to finish first.
func (c *Controller) CommandSignals(t *kernel.Task, signals []*kernel.Signal, input any) error {
	if input != nil && c.sender == nil {
		return errors.Errorf("command controller %s: input given but no sender", c.name)
	}

	for c.busy {
		t.RisingEdge()
	}

	c.busy = true

	c.setState(StateAwaitingDoneClear)
	c.WaitForDone(t, 0)

	c.setState(StateAsserted)

	for _, s := range signals {
		c.logger.Info("command", "controller", c.name, "signal", s.Name())
		s.Set(1)
	}

	if input != nil {
		c.setState(StateStreaming)

		if err := c.sender.Send(t, input, true); err != nil {
			c.release(signals)
			return errors.Wrapf(err, "command controller %s", c.name)
		}
	}

	c.setState(StateAwaitingDoneSet)
	c.logger.Debug("waiting for done", "controller", c.name)
	c.WaitForDone(t, 1)
	c.logger.Debug("received done", "controller", c.name)

	c.setState(StateDeasserting)
	c.release(signals)
	t.RisingEdge()

	c.setState(StateIdle)
	c.busy = false

	return nil
}

func (c *Controller) release(signals []*kernel.Signal) {
	for _, s := range signals {
		s.Set(0)
	}

	if c.state != StateDeasserting {
		c.setState(StateIdle)
		c.busy = false
	}
}

func (c *Controller) setState(s State) {
	c.state = s

	kernel.Trace(c.logger, "command state", "controller", c.name, "state", s)
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosStateChange,
		Item:   s,
	})
}
