// Package tester wires a driver, a monitor, a scoreboard and an optional
// command controller around the ports of a device, which is what most benches
// need.
package tester

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sarchlab/hwtb/bus"
	"github.com/sarchlab/hwtb/command"
	"github.com/sarchlab/hwtb/config"
	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/port"
	"github.com/sarchlab/hwtb/scoreboard"
)

// A Model receives every transaction observed on the output bus.
type Model func(tr bus.Transaction)

// A Tester drives one input bus of a device and checks one output bus.
type Tester struct {
	name   string
	k      *kernel.Kernel
	logger *slog.Logger
	rng    *rand.Rand

	dir        *port.Directory
	rst        *kernel.Signal
	driver     *bus.Driver
	monitor    *bus.Monitor
	scoreboard *scoreboard.Scoreboard
	expected   *scoreboard.Expectations
	controller *command.Controller
}

// Builder can create testers.
type Builder struct {
	k         *kernel.Kernel
	ports     []*kernel.Signal
	templates []port.Template
	logger    *slog.Logger

	inputBus    string
	outputBus   string
	outputWords int
	inWidth     int
	outWidth    int
	inConfig    bus.Config
	outConfig   bus.Config

	validGen    bus.IdleGenerator
	readyGen    bus.IdleGenerator
	validIdle   string
	readyIdle   string
	randomReady bool
	seed        int64

	resetSignal     string
	doneSignal      string
	commands        map[string][]string
	withController  bool
	failImmediately bool
	models          []Model
}

// MakeBuilder returns a builder for a din to dout tester that resets through
// rst and stops at the first scoreboard failure.
func MakeBuilder() Builder {
	return Builder{
		inputBus:        "din",
		outputBus:       "dout",
		outputWords:     1,
		inConfig:        bus.DefaultConfig(),
		outConfig:       bus.DefaultConfig(),
		resetSignal:     "rst",
		doneSignal:      "o_done",
		failImmediately: true,
	}
}

// WithKernel sets the kernel.
func (b Builder) WithKernel(k *kernel.Kernel) Builder {
	b.k = k
	return b
}

// WithModule uses the ports of a module as the device surface.
func (b Builder) WithModule(m *kernel.Module) Builder {
	b.ports = m.Ports()
	return b
}

// WithPorts sets the device surface.
func (b Builder) WithPorts(ports []*kernel.Signal) Builder {
	b.ports = ports
	return b
}

// WithTemplates replaces the naming conventions used to find bus signals.
func (b Builder) WithTemplates(templates []port.Template) Builder {
	b.templates = templates
	return b
}

// WithInputBus sets the name of the bus the tester drives.
func (b Builder) WithInputBus(name string) Builder {
	b.inputBus = name
	return b
}

// WithOutputBus sets the name of the bus the tester checks.
func (b Builder) WithOutputBus(name string) Builder {
	b.outputBus = name
	return b
}

// WithOutputWords sets the initial number of words per output transaction.
func (b Builder) WithOutputWords(n int) Builder {
	b.outputWords = n
	return b
}

// WithBusConfig sets the protocol options of both buses.
func (b Builder) WithBusConfig(c bus.Config) Builder {
	b.inConfig = c
	b.outConfig = c

	return b
}

// WithValidGenerator sets the schedule of gaps on the input bus.
func (b Builder) WithValidGenerator(g bus.IdleGenerator) Builder {
	b.validGen = g
	return b
}

// WithReadyGenerator sets the schedule of backpressure on the output bus.
func (b Builder) WithReadyGenerator(g bus.IdleGenerator) Builder {
	b.readyGen = g
	return b
}

// WithRandomReady applies random backpressure drawn from the tester's random
// source to the output bus.
func (b Builder) WithRandomReady() Builder {
	b.randomReady = true
	return b
}

// WithSeed seeds the random source of the tester.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithResetSignal sets the reset port. An empty name disables Reset.
func (b Builder) WithResetSignal(name string) Builder {
	b.resetSignal = name
	return b
}

// WithDoneSignal sets the done port and enables the command controller.
func (b Builder) WithDoneSignal(name string) Builder {
	b.doneSignal = name
	b.withController = true

	return b
}

// WithCommand registers a command and enables the command controller.
func (b Builder) WithCommand(id string, signals ...string) Builder {
	commands := make(map[string][]string, len(b.commands)+1)
	for k, v := range b.commands {
		commands[k] = v
	}

	commands[id] = signals
	b.commands = commands
	b.withController = true

	return b
}

// WithModel registers a receiver of output transactions.
func (b Builder) WithModel(m Model) Builder {
	b.models = append(append([]Model(nil), b.models...), m)
	return b
}

// WithFailImmediately sets whether the first scoreboard failure aborts the
// simulation.
func (b Builder) WithFailImmediately(v bool) Builder {
	b.failImmediately = v
	return b
}

// WithBench applies a bench description.
func (b Builder) WithBench(bench *config.Bench) Builder {
	b.inputBus = bench.InputBus
	b.outputBus = bench.OutputBus
	b.inConfig = bench.BusConfig(bench.InputBus)
	b.outConfig = bench.BusConfig(bench.OutputBus)
	b.inWidth = bench.Width(bench.InputBus)
	b.outWidth = bench.Width(bench.OutputBus)
	b.validIdle = bench.Idle(bench.InputBus)
	b.readyIdle = bench.Idle(bench.OutputBus)
	b.seed = bench.Seed
	b.failImmediately = bench.FailFast()

	if n := bench.Words(bench.OutputBus); n > 0 {
		b.outputWords = n
	}

	if bench.DoneSignal != "" {
		b = b.WithDoneSignal(bench.DoneSignal)
	}

	for id, signals := range bench.Commands {
		b = b.WithCommand(id, signals...)
	}

	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// Build discovers the device ports, creates every component and starts the
// monitor. It fails without advancing time if a signal is missing.
func (b Builder) Build(name string) (*Tester, error) {
	if b.k == nil {
		return nil, errors.Errorf("tester %s: no kernel", name)
	}

	if len(b.ports) == 0 {
		return nil, errors.Errorf("tester %s: no device ports", name)
	}

	t := &Tester{
		name:     name,
		k:        b.k,
		logger:   b.logger,
		rng:      rand.New(rand.NewSource(b.seed)),
		expected: scoreboard.NewExpectations(),
	}

	if t.logger == nil {
		t.logger = slog.Default()
	}

	t.dir = port.Discover(b.ports, t.logger)
	if b.templates != nil {
		t.dir = t.dir.WithTemplates(b.templates)
	}

	if err := t.buildBuses(b); err != nil {
		return nil, err
	}

	if b.resetSignal != "" {
		rst, err := t.dir.ResolveSignal(b.resetSignal)
		if err != nil {
			return nil, err
		}

		t.rst = rst
	}

	if err := t.buildMonitor(b); err != nil {
		return nil, err
	}

	t.scoreboard = scoreboard.MakeBuilder().
		WithKernel(t.k).
		WithFailImmediately(b.failImmediately).
		WithLogger(t.logger).
		Build(name + ".Scoreboard")
	t.scoreboard.AddInterface(t.monitor, t.expected)

	for _, m := range b.models {
		t.monitor.AddCallback(bus.Callback(m))
	}

	if b.withController {
		if err := t.buildController(b); err != nil {
			return nil, err
		}
	}

	t.monitor.Start(t.k)

	return t, nil
}

func (t *Tester) buildBuses(b Builder) error {
	in, err := t.dir.ResolveBus(b.inputBus, port.RoleInput)
	if err != nil {
		return err
	}

	if err := checkWidth(in, b.inWidth); err != nil {
		return err
	}

	validGen := b.validGen
	if validGen == nil {
		validGen, err = bus.IdleStrategy(b.validIdle, t.rng)
		if err != nil {
			return errors.Wrapf(err, "tester %s", t.name)
		}
	}

	t.driver, err = bus.MakeDriverBuilder().
		WithBus(in).
		WithConfig(b.inConfig).
		WithIdleGenerator(validGen).
		WithLogger(t.logger).
		Build(t.name + ".Driver")

	return err
}

// checkWidth compares a declared width with the data port. Zero means the
// width was not declared.
func checkWidth(b bus.Bus, declared int) error {
	if declared == 0 || declared == b.Width() {
		return nil
	}

	return &port.ConfigError{
		Name: b.Name,
		Reason: fmt.Sprintf("declared width %d, data port is %d bits wide",
			declared, b.Width()),
	}
}

func (t *Tester) buildMonitor(b Builder) error {
	out, err := t.dir.ResolveBus(b.outputBus, port.RoleOutput)
	if err != nil {
		return err
	}

	if err := checkWidth(out, b.outWidth); err != nil {
		return err
	}

	readyGen := b.readyGen

	switch {
	case readyGen != nil:
	case b.randomReady:
		readyGen = bus.Random50Percent(t.rng, 10, 0)
	default:
		readyGen, err = bus.IdleStrategy(b.readyIdle, t.rng)
		if err != nil {
			return errors.Wrapf(err, "tester %s", t.name)
		}
	}

	mb := bus.MakeMonitorBuilder().
		WithBus(out).
		WithConfig(b.outConfig).
		WithWordCount(b.outputWords).
		WithIdleGenerator(readyGen).
		WithLogger(t.logger)

	if t.rst != nil {
		mb = mb.WithReset(t.rst, false)
	}

	t.monitor, err = mb.Build(t.name + ".Monitor")

	return err
}

func (t *Tester) buildController(b Builder) error {
	cb := command.MakeBuilder().
		WithDirectory(t.dir).
		WithDoneSignal(b.doneSignal).
		WithSender(t.driver).
		WithLogger(t.logger)

	for id, signals := range b.commands {
		cb = cb.WithCommand(id, signals...)
	}

	c, err := cb.Build(t.name + ".Controller")
	if err != nil {
		return err
	}

	t.controller = c

	return nil
}

// Name returns the name of the tester.
func (t *Tester) Name() string {
	return t.name
}

// Kernel returns the kernel the tester runs on.
func (t *Tester) Kernel() *kernel.Kernel {
	return t.k
}

// Rand returns the seeded random source of the tester.
func (t *Tester) Rand() *rand.Rand {
	return t.rng
}

// Directory returns the discovered device ports.
func (t *Tester) Directory() *port.Directory {
	return t.dir
}

// Driver returns the input bus driver.
func (t *Tester) Driver() *bus.Driver {
	return t.driver
}

// Monitor returns the output bus monitor.
func (t *Tester) Monitor() *bus.Monitor {
	return t.monitor
}

// Scoreboard returns the scoreboard.
func (t *Tester) Scoreboard() *scoreboard.Scoreboard {
	return t.scoreboard
}

// Controller returns the command controller, or nil if none was configured.
func (t *Tester) Controller() *command.Controller {
	return t.controller
}

// Reset holds reset for two rising edges and releases it at the following
// falling edge.
func (t *Tester) Reset(task *kernel.Task) error {
	if t.rst == nil {
		return errors.Errorf("tester %s: no reset signal", t.name)
	}

	t.logger.Debug("reset", "tester", t.name)

	t.rst.Set(1)
	task.ClockCycles(2)
	task.FallingEdge()
	t.rst.Set(0)

	return nil
}

// SetExpected queues a transaction the output bus must deliver next and
// sizes the monitor's transactions to it. The monitor never delivers an empty
// transaction, so an empty one is a programming error.
func (t *Tester) SetExpected(tr bus.Transaction) {
	if len(tr) == 0 {
		panic("expected transaction must not be empty")
	}

	t.monitor.SetWordCount(len(tr))
	t.expected.Push(tr)
}

// SetExpectedBytes packs data for the output bus and queues it.
func (t *Tester) SetExpectedBytes(data []byte) error {
	if len(data) == 0 {
		return errors.Errorf("tester %s: no expected bytes", t.name)
	}

	out := t.monitor.Bus()

	words, err := bus.Pack(data, out.Width(),
		t.monitor.Config().FirstSymbolInHighOrderBits)
	if err != nil {
		return err
	}

	t.SetExpected(bus.Transaction(words))

	return nil
}

// Pending returns the number of expectations not yet received.
func (t *Tester) Pending() int {
	return t.expected.Len()
}

// SendInput drives payload on the input bus.
func (t *Tester) SendInput(task *kernel.Task, payload any) error {
	return t.driver.Send(task, payload, true)
}

// WaitTransaction waits until every queued expectation was received.
func (t *Tester) WaitTransaction(task *kernel.Task) {
	for t.expected.Len() > 0 {
		task.RisingEdge()
	}
}

// Command issues a registered command.
func (t *Tester) Command(task *kernel.Task, id string, input any) error {
	if t.controller == nil {
		return errors.Errorf("tester %s: no command controller", t.name)
	}

	return t.controller.Command(task, id, input)
}

// Result returns the scoreboard result.
func (t *Tester) Result() error {
	return t.scoreboard.Result()
}

// Run runs the kernel with fn as the main task. The error of the run takes
// precedence over the scoreboard result, unless the scoreboard itself aborted
// the run, in which case every recorded failure is returned.
func (t *Tester) Run(fn kernel.TaskFunc) error {
	err := t.k.Run(fn)

	var result *scoreboard.ResultError
	if err == nil || errors.As(err, &result) {
		err = t.Result()
	}

	if err != nil {
		t.logger.Error("test failed", "tester", t.name, "error", err)
		return err
	}

	t.logger.Info("test passed",
		"tester", t.name,
		"transactions", t.scoreboard.Matched(),
		"cycles", t.k.Cycle())

	return nil
}
