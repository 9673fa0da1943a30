// Package kernel provides the simulation runtime the verification components
// run on: a clock driven by an akita event engine, signals with delayed write
// visibility, and cooperatively scheduled tasks.
//
// Each clock edge is one time step:
//
//  1. writes left over from the previous read-only phase are applied;
//  2. the clock toggles and every task waiting on that edge resumes;
//  3. pending writes are applied and tasks waiting on changed signals resume,
//     until no write is pending;
//  4. tasks waiting on the read-only point resume.
//
// Tasks resumed at a clock edge therefore read the values from before the
// edge, and every write of a step is visible at its read-only point.
package kernel

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
)

// HookPosTaskFailed marks a task returning an error or the kernel aborting.
var HookPosTaskFailed = &sim.HookPos{Name: "Kernel Task Failed"}

// ErrCycleLimit is returned by Run when the cycle limit is reached before the
// main task returns.
var ErrCycleLimit = errors.New("cycle limit reached")

// ErrCombinationalLoop is returned by Run when writes keep triggering writes
// within a single time step.
var ErrCombinationalLoop = errors.New("combinational loop: delta cycle limit exceeded")

const maxDeltaCycles = 1000

// A Kernel runs tasks against a clock.
type Kernel struct {
	*sim.HookableBase

	name       string
	engine     sim.Engine
	freq       sim.Freq
	cycleLimit uint64
	logger     *slog.Logger

	clk       *Signal
	start     sim.VTimeInSec
	halfCycle uint64
	cycle     uint64

	ready    []*Task
	rising   []*Task
	falling  []*Task
	readOnly []*Task
	pending  []*Signal

	inReadOnly bool
	current    *Task

	yield chan struct{}
	tasks []*Task
	main  *Task
	wg    sync.WaitGroup

	started bool
	stopped bool
	err     error
}

// Name returns the name of the kernel.
func (k *Kernel) Name() string {
	return k.name
}

// Clock returns the clock signal.
func (k *Kernel) Clock() *Signal {
	return k.clk
}

// Freq returns the clock frequency.
func (k *Kernel) Freq() sim.Freq {
	return k.freq
}

// Cycle returns the number of rising edges so far.
func (k *Kernel) Cycle() uint64 {
	return k.cycle
}

// Now returns the current simulated time.
func (k *Kernel) Now() sim.VTimeInSec {
	return k.engine.CurrentTime()
}

// InReadOnly reports whether the read-only phase is running.
func (k *Kernel) InReadOnly() bool {
	return k.inReadOnly
}

// Logger returns the logger the kernel was built with.
func (k *Kernel) Logger() *slog.Logger {
	return k.logger
}

// NewSignal creates a signal that is not part of any module.
func (k *Kernel) NewSignal(name string, width int, dir Direction) *Signal {
	return newSignal(k, name, width, dir)
}

// Fork creates a task. Tasks forked before Run start in the first time step.
func (k *Kernel) Fork(name string, fn TaskFunc) *Task {
	t := &Task{
		k:      k,
		name:   name,
		fn:     fn,
		resume: make(chan struct{}),
		kill:   make(chan struct{}),
	}

	k.tasks = append(k.tasks, t)
	k.wg.Add(1)

	go k.runTask(t)

	k.ready = append(k.ready, t)

	return t
}

// Abort stops the simulation after the current time step. The first error
// passed to Abort is returned by Run.
func (k *Kernel) Abort(err error) {
	if k.err == nil && err != nil {
		k.err = err
		k.logger.Error("simulation aborted",
			"kernel", k.name, "cycle", k.cycle, "error", err)
		k.InvokeHook(sim.HookCtx{
			Domain: k,
			Pos:    HookPosTaskFailed,
			Item:   err,
		})
	}

	k.stopped = true
}

// Run forks main and runs the simulation until main returns, a task fails,
// Abort is called, or the cycle limit is reached. Background tasks still
// waiting at that point are abandoned.
func (k *Kernel) Run(main TaskFunc) error {
	if k.started {
		return errors.Errorf("kernel %s already ran", k.name)
	}

	k.started = true
	k.main = k.Fork("main", main)
	k.start = k.engine.CurrentTime()
	k.engine.Schedule(newEdgeEvent(k.start, k, stepInit))

	if err := k.engine.Run(); err != nil && k.err == nil {
		k.err = errors.Wrap(err, "engine")
	}

	k.shutdown()

	if k.err != nil {
		return k.err
	}

	if !k.main.done {
		return errors.Errorf("kernel %s stopped before main returned", k.name)
	}

	return k.main.err
}

// Handle runs one time step.
func (k *Kernel) Handle(e sim.Event) error {
	evt, ok := e.(*edgeEvent)
	if !ok {
		return errors.Errorf("kernel %s cannot handle %T", k.name, e)
	}

	k.applyPending()

	switch evt.kind {
	case stepRising:
		k.cycle++
		k.setClock(1)
		k.ready = append(k.ready, k.rising...)
		k.rising = nil
	case stepFalling:
		k.setClock(0)
		k.ready = append(k.ready, k.falling...)
		k.falling = nil
	}

	k.settle()
	k.runReadOnlyPhase()
	k.scheduleNext()

	return nil
}

func (k *Kernel) setClock(v uint64) {
	k.clk.value = v
	k.clk.defined = true
	k.ready = append(k.ready, k.clk.waiters...)
	k.clk.waiters = nil
}

func (k *Kernel) settle() {
	k.runReady()

	for delta := 0; len(k.pending) > 0; delta++ {
		if delta >= maxDeltaCycles {
			k.pending = nil
			k.Abort(errors.Wrapf(ErrCombinationalLoop, "cycle %d", k.cycle))

			return
		}

		k.applyPending()
		k.runReady()
	}
}

func (k *Kernel) applyPending() {
	pending := k.pending
	k.pending = nil

	for _, s := range pending {
		if s.apply() {
			k.ready = append(k.ready, s.waiters...)
			s.waiters = nil
		}
	}
}

func (k *Kernel) runReadOnlyPhase() {
	k.inReadOnly = true
	k.ready = append(k.ready, k.readOnly...)
	k.readOnly = nil
	k.runReady()
	k.inReadOnly = false
}

func (k *Kernel) runReady() {
	for len(k.ready) > 0 {
		t := k.ready[0]
		k.ready = k.ready[1:]

		if t.done {
			continue
		}

		k.current = t
		t.resume <- struct{}{}
		<-k.yield
		k.current = nil
	}
}

func (k *Kernel) scheduleNext() {
	if k.stopped || k.main.done {
		return
	}

	if k.cycleLimit > 0 && k.cycle >= k.cycleLimit {
		k.Abort(errors.Wrapf(ErrCycleLimit, "kernel %s at cycle %d", k.name, k.cycle))
		return
	}

	k.halfCycle++

	kind := stepFalling
	if k.halfCycle%2 == 1 {
		kind = stepRising
	}

	k.engine.Schedule(newEdgeEvent(k.timeOf(k.halfCycle), k, kind))
}

func (k *Kernel) timeOf(halfCycle uint64) sim.VTimeInSec {
	halfPeriod := float64(k.freq.Period()) / 2

	return k.start + sim.VTimeInSec(float64(halfCycle)*halfPeriod)
}

func (k *Kernel) shutdown() {
	for _, t := range k.tasks {
		if !t.done {
			close(t.kill)
		}
	}

	k.wg.Wait()
	k.ready = nil
	k.rising = nil
	k.falling = nil
	k.readOnly = nil
}
