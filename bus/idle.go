package bus

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
)

// AlwaysOn as the On count of an Idle means there are no more gaps.
const AlwaysOn = -1

// Idle is one activation run: On active cycles followed by Off idle cycles.
type Idle struct {
	On  int
	Off int
}

// An IdleGenerator produces activation runs. It returns false when it has no
// more runs, after which the bus stays active.
type IdleGenerator interface {
	Next() (Idle, bool)
}

// IdleFunc adapts a function to IdleGenerator.
type IdleFunc func() (Idle, bool)

// Next calls f.
func (f IdleFunc) Next() (Idle, bool) {
	return f()
}

// AlwaysOnIdle never inserts gaps.
func AlwaysOnIdle() IdleGenerator {
	return IdleFunc(func() (Idle, bool) {
		return Idle{On: AlwaysOn}, true
	})
}

// IntermittentSingleCycles toggles between one active and one idle cycle.
func IntermittentSingleCycles() IdleGenerator {
	return IdleFunc(func() (Idle, bool) {
		return Idle{On: 1, Off: 1}, true
	})
}

// Random50Percent draws run lengths from a normal distribution around mean and
// uses the same length for the active and the idle part, which keeps the duty
// cycle near one half. A non-positive sigma defaults to mean/4.
func Random50Percent(rng *rand.Rand, mean, sigma float64) IdleGenerator {
	if sigma <= 0 {
		sigma = mean / 4
	}

	return IdleFunc(func() (Idle, bool) {
		d := int(math.Abs(rng.NormFloat64()*sigma + mean))
		return Idle{On: d, Off: d}, true
	})
}

// Wave derives run lengths from two sampled sine waves, one for the active
// and one for the idle part. The pattern repeats and does not depend on any
// random source.
func Wave(onAmplitude float64, onPeriod int, offAmplitude float64, offPeriod int) IdleGenerator {
	i := 0

	return IdleFunc(func() (Idle, bool) {
		on := sineSample(onAmplitude, onPeriod, i)
		off := sineSample(offAmplitude, offPeriod, i)
		i++

		return Idle{On: on, Off: off}, true
	})
}

// DefaultWave is Wave with amplitudes 30 and 10 and periods 200 and 100.
func DefaultWave() IdleGenerator {
	return Wave(30, 200, 10, 100)
}

func sineSample(amplitude float64, period, i int) int {
	if period <= 0 {
		return 0
	}

	phase := float64(i%period) / float64(period)

	return int(math.Abs(amplitude * math.Sin(2*math.Pi*phase)))
}

// Finite replays the given runs once and is then exhausted.
func Finite(runs ...Idle) IdleGenerator {
	i := 0

	return IdleFunc(func() (Idle, bool) {
		if i >= len(runs) {
			return Idle{}, false
		}

		i++

		return runs[i-1], true
	})
}

// IdleStrategy resolves a strategy by the name used in bench configuration.
// The always-on strategies resolve to a nil generator.
func IdleStrategy(name string, rng *rand.Rand) (IdleGenerator, error) {
	switch name {
	case "", "none", "always_on":
		return nil, nil
	case "random_50_percent":
		if rng == nil {
			return nil, errors.New("random_50_percent needs a random source")
		}

		return Random50Percent(rng, 10, 0), nil
	case "intermittent_single_cycles":
		return IntermittentSingleCycles(), nil
	case "wave":
		return DefaultWave(), nil
	default:
		return nil, errors.Errorf("unknown idle strategy %q", name)
	}
}

type scheduleOwner interface {
	sim.Hookable
	Name() string
	InvokeHook(ctx sim.HookCtx)
}

// idleSchedule tracks the current activation run of a driver or a monitor.
type idleSchedule struct {
	owner  scheduleOwner
	logger *slog.Logger

	gen       IdleGenerator
	on        int
	off       int
	exhausted bool
}

func (s *idleSchedule) reset(gen IdleGenerator) {
	s.gen = gen
	s.on = 0
	s.off = 0
	s.exhausted = false
}

// needsGap reports whether the active part of the current run is used up.
func (s *idleSchedule) needsGap() bool {
	return s.on == 0
}

// consume uses one active cycle of the current run.
func (s *idleSchedule) consume() {
	if s.on > 0 {
		s.on--
	}
}

// next loads the next run. Runs without active cycles only contribute their
// idle part to the gap that is being inserted.
func (s *idleSchedule) next() {
	if s.gen == nil {
		s.on = AlwaysOn
		s.off = 0

		return
	}

	run, ok := s.gen.Next()
	if !ok {
		s.gen = nil
		s.on = AlwaysOn
		s.off = 0
		s.reportExhausted()

		return
	}

	s.on = run.On
	s.off = run.Off

	if s.off < 0 {
		s.off = 0
	}
}

func (s *idleSchedule) reportExhausted() {
	if s.exhausted {
		return
	}

	s.exhausted = true
	s.logger.Info("idle generator exhausted, no more idle cycles are inserted",
		"component", s.owner.Name())
	s.owner.InvokeHook(sim.HookCtx{
		Domain: s.owner,
		Pos:    HookPosIdleExhausted,
	})
}
