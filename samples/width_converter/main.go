// Command width_converter streams random bit strings through an asymmetric
// width converter and checks that the bits come out in order.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/hwtb/bus"
	"github.com/sarchlab/hwtb/config"
	"github.com/sarchlab/hwtb/dut"
	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/samples/runner"
	"github.com/sarchlab/hwtb/tester"
	"github.com/tebeka/atexit"
)

var (
	inWidth  = flag.Int("in", 8, "input width in bits")
	outWidth = flag.Int("out", 12, "output width in bits")
	packets  = flag.Int("packets", 8, "number of bit strings to send")
	words    = flag.Int("words", 16, "minimum output words per bit string")
)

func defaultBench() *config.Bench {
	b := config.Default()
	b.Name = "width_converter"
	b.Seed = 1
	b.CycleLimit = 100000
	b.Buses = map[string]config.Bus{
		"din":  {Idle: "wave"},
		"dout": {Idle: "random_50_percent"},
	}

	return b
}

func main() {
	opts := runner.ParseFlags()
	bench := opts.Bench(defaultBench())
	opts.ListSources(bench)
	logger := opts.Logger(bench.Level())
	k := opts.Kernel(bench.Name, bench, logger)

	conv := dut.MakeWidthConverterBuilder().
		WithKernel(k).
		WithWidths(*inWidth, *outWidth).
		WithLogger(logger).
		Build("Converter")
	conv.Start()

	tb, err := tester.MakeBuilder().
		WithKernel(k).
		WithModule(conv.Module()).
		WithBench(bench).
		WithLogger(logger).
		Build(bench.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(2)
	}

	runner.Trace(tb, logger)

	// A whole number of input and of output words.
	step := lcm(*inWidth, *outWidth)
	bits := step * ((*words * *outWidth + step - 1) / step)

	err = tb.Run(func(t *kernel.Task) error {
		if err := tb.Reset(t); err != nil {
			return err
		}

		for i := 0; i < *packets; i++ {
			s := randomBits(tb, bits)

			expected, err := bus.PackBits(s, *outWidth)
			if err != nil {
				return err
			}

			tb.SetExpected(bus.Transaction(expected))

			if err := tb.SendInput(t, bus.BitString(s)); err != nil {
				return err
			}

			tb.WaitTransaction(t)
		}

		return nil
	})

	opts.Finish(tb, err)
}

func randomBits(tb *tester.Tester, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('0' + tb.Rand().Intn(2)))
	}

	return sb.String()
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}
