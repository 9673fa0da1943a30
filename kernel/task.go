package kernel

import (
	"github.com/pkg/errors"
)

// A TaskFunc is the body of a task. Returning a non-nil error fails the
// simulation.
type TaskFunc func(t *Task) error

// A Task is a cooperatively scheduled thread of simulation. A task only runs
// while it holds the kernel baton and only gives it up at its await points.
type Task struct {
	k    *Kernel
	name string
	fn   TaskFunc

	resume chan struct{}
	kill   chan struct{}

	done    bool
	err     error
	joiners []*Task
}

type killSignal struct{}

// Name returns the name of the task.
func (t *Task) Name() string {
	return t.name
}

// Kernel returns the kernel the task runs on.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Done reports whether the task has returned.
func (t *Task) Done() bool {
	return t.done
}

// Err returns the error the task returned, if it is done.
func (t *Task) Err() error {
	return t.err
}

// Fork starts a new task. It first runs within the current phase of the
// current time step.
func (t *Task) Fork(name string, fn TaskFunc) *Task {
	return t.k.Fork(name, fn)
}

// RisingEdge suspends the task until the next rising edge of the clock.
func (t *Task) RisingEdge() {
	t.k.rising = append(t.k.rising, t)
	t.suspend()
}

// FallingEdge suspends the task until the next falling edge of the clock.
func (t *Task) FallingEdge() {
	t.k.falling = append(t.k.falling, t)
	t.suspend()
}

// ReadOnly suspends the task until the read-only point of the current time
// step, when every write of the step is visible. Called during the read-only
// phase, it waits for the read-only point of the next time step.
func (t *Task) ReadOnly() {
	t.k.readOnly = append(t.k.readOnly, t)
	t.suspend()
}

// Edge suspends the task until the value of s changes.
func (t *Task) Edge(s *Signal) {
	s.waiters = append(s.waiters, t)
	t.suspend()
}

// ClockCycles waits for n rising edges.
func (t *Task) ClockCycles(n int) {
	for i := 0; i < n; i++ {
		t.RisingEdge()
	}
}

// Join waits until other returns and passes its error through.
func (t *Task) Join(other *Task) error {
	if other == t {
		return errors.New("task cannot join itself")
	}

	if !other.done {
		other.joiners = append(other.joiners, t)
		t.suspend()
	}

	return other.err
}

func (t *Task) suspend() {
	t.k.yield <- struct{}{}

	select {
	case <-t.resume:
	case <-t.kill:
		panic(killSignal{})
	}
}

func (k *Kernel) runTask(t *Task) {
	defer k.wg.Done()

	select {
	case <-t.resume:
	case <-t.kill:
		return
	}

	killed, err := k.call(t)
	if killed {
		return
	}

	t.done = true
	t.err = err

	if err != nil && t != k.main {
		k.Abort(errors.Wrapf(err, "task %s", t.name))
	}

	k.ready = append(k.ready, t.joiners...)
	t.joiners = nil

	k.yield <- struct{}{}
}

func (k *Kernel) call(t *Task) (killed bool, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		if _, ok := r.(killSignal); ok {
			killed = true
			return
		}

		if e, ok := r.(error); ok {
			err = errors.Wrapf(e, "task %s panicked", t.name)
			return
		}

		err = errors.Errorf("task %s panicked: %v", t.name, r)
	}()

	return false, t.fn(t)
}
