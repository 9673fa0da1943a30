package bus

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hwtb/kernel"
)

// A Callback receives every completed transaction of a monitor.
type Callback func(tr Transaction)

// A Monitor samples a bus once per cycle at the read-only point and groups
// fired words into transactions of a fixed size.
type Monitor struct {
	*sim.HookableBase

	name   string
	bus    Bus
	config Config
	logger *slog.Logger

	wordCount  int
	driveReady bool
	schedule   idleSchedule

	reset          *kernel.Signal
	resetActiveLow bool

	callbacks []Callback
	words     Transaction
	task      *kernel.Task
}

// MonitorBuilder can create monitors.
type MonitorBuilder struct {
	bus            Bus
	config         Config
	wordCount      int
	idle           IdleGenerator
	driveReady     bool
	reset          *kernel.Signal
	resetActiveLow bool
	logger         *slog.Logger
}

// MakeMonitorBuilder returns a builder for single-word transactions that
// drives ready.
func MakeMonitorBuilder() MonitorBuilder {
	return MonitorBuilder{
		config:     DefaultConfig(),
		wordCount:  1,
		driveReady: true,
	}
}

// WithBus sets the bus to sample.
func (b MonitorBuilder) WithBus(bus Bus) MonitorBuilder {
	b.bus = bus
	return b
}

// WithConfig sets the bus options.
func (b MonitorBuilder) WithConfig(config Config) MonitorBuilder {
	b.config = config
	return b
}

// WithWordCount sets the number of words per transaction.
func (b MonitorBuilder) WithWordCount(n int) MonitorBuilder {
	b.wordCount = n
	return b
}

// WithIdleGenerator sets the schedule of ready gaps.
func (b MonitorBuilder) WithIdleGenerator(g IdleGenerator) MonitorBuilder {
	b.idle = g
	return b
}

// WithoutReadyDrive leaves the ready signal to someone else.
func (b MonitorBuilder) WithoutReadyDrive() MonitorBuilder {
	b.driveReady = false
	return b
}

// WithReset skips sampling while the reset signal is active.
func (b MonitorBuilder) WithReset(rst *kernel.Signal, activeLow bool) MonitorBuilder {
	b.reset = rst
	b.resetActiveLow = activeLow

	return b
}

// WithLogger sets the logger.
func (b MonitorBuilder) WithLogger(logger *slog.Logger) MonitorBuilder {
	b.logger = logger
	return b
}

// Build creates a monitor. Call Start to begin sampling.
func (b MonitorBuilder) Build(name string) (*Monitor, error) {
	if err := b.bus.validate(); err != nil {
		return nil, errors.Wrapf(err, "monitor %s", name)
	}

	if b.wordCount < 1 {
		return nil, errors.Errorf("monitor %s: word count %d must be positive",
			name, b.wordCount)
	}

	m := &Monitor{
		HookableBase:   sim.NewHookableBase(),
		name:           name,
		bus:            b.bus,
		config:         b.config,
		logger:         b.logger,
		wordCount:      b.wordCount,
		driveReady:     b.driveReady,
		reset:          b.reset,
		resetActiveLow: b.resetActiveLow,
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}

	m.schedule.owner = m
	m.schedule.logger = m.logger
	m.schedule.reset(b.idle)

	return m, nil
}

// Name returns the name of the monitor.
func (m *Monitor) Name() string {
	return m.name
}

// Bus returns the sampled bus.
func (m *Monitor) Bus() Bus {
	return m.bus
}

// Config returns the bus options of the monitor.
func (m *Monitor) Config() Config {
	return m.config
}

// WordCount returns the number of words per transaction.
func (m *Monitor) WordCount() int {
	return m.wordCount
}

// SetWordCount changes the number of words of the transactions that follow.
func (m *Monitor) SetWordCount(n int) {
	if n < 1 {
		panic("monitor word count must be positive")
	}

	m.wordCount = n
}

// SetIdleGenerator replaces the schedule of ready gaps.
func (m *Monitor) SetIdleGenerator(g IdleGenerator) {
	m.schedule.reset(g)
}

// AddCallback registers a receiver of completed transactions.
func (m *Monitor) AddCallback(cb Callback) {
	m.callbacks = append(m.callbacks, cb)
}

// Pending returns the number of words captured towards the next transaction.
func (m *Monitor) Pending() int {
	return len(m.words)
}

// Start forks the sampling loop. It runs until the simulation ends.
func (m *Monitor) Start(k *kernel.Kernel) *kernel.Task {
	if m.task != nil {
		return m.task
	}

	if m.driveReady {
		m.bus.Ready.SetBool(m.schedule.gen == nil)
	}

	m.task = k.Fork(m.name, m.run)

	return m.task
}

func (m *Monitor) run(t *kernel.Task) error {
	for {
		t.RisingEdge()

		if m.driveReady {
			m.driveReadyCycle(t)
		}

		t.ReadOnly()

		if m.inReset() {
			continue
		}

		if !m.bus.Fire() {
			continue
		}

		m.capture(Word(m.bus.Data.Value()))
	}
}

// driveReadyCycle applies the idle schedule to ready the way the driver
// applies it to valid.
func (m *Monitor) driveReadyCycle(t *kernel.Task) {
	for m.schedule.needsGap() {
		m.bus.Ready.Set(0)

		if m.schedule.off > 0 {
			m.InvokeHook(sim.HookCtx{
				Domain: m,
				Pos:    HookPosIdleGap,
				Item:   m.schedule.off,
			})
		}

		for j := 0; j < m.schedule.off; j++ {
			t.RisingEdge()
		}

		m.schedule.next()
	}

	m.bus.Ready.Set(1)
}

func (m *Monitor) capture(w Word) {
	if m.driveReady {
		m.schedule.consume()
	}

	m.words = append(m.words, w)

	kernel.Trace(m.logger, "word received",
		"monitor", m.name,
		"count", len(m.words),
		"of", m.wordCount,
		"data", uint64(w))
	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Pos:    HookPosWordReceived,
		Item:   w,
	})

	if len(m.words) < m.wordCount {
		return
	}

	tr := m.words
	m.words = nil

	m.logger.Debug("transaction received", "monitor", m.name, "words", len(tr))
	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Pos:    HookPosTransactionReceived,
		Item:   tr,
	})

	for _, cb := range m.callbacks {
		cb(tr)
	}
}

func (m *Monitor) inReset() bool {
	if m.reset == nil {
		return false
	}

	return m.reset.Bool() != m.resetActiveLow
}
