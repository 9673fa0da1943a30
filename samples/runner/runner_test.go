package runner_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/sarchlab/hwtb/bus"
	"github.com/sarchlab/hwtb/dut"
	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/manifest"
	"github.com/sarchlab/hwtb/samples/runner"
	"github.com/sarchlab/hwtb/tester"
)

var _ = Describe("Runner", func() {
	var (
		logs bytes.Buffer
		tb   *tester.Tester
	)

	build := func(level slog.Level) *slog.Logger {
		logs.Reset()
		logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: level}))

		k := kernel.MakeBuilder().WithLogger(logger).Build("Kernel")
		fifo := dut.MakeFifoBuilder().WithKernel(k).WithLogger(logger).Build("Fifo")
		fifo.Start()

		var err error
		tb, err = tester.MakeBuilder().
			WithKernel(k).
			WithModule(fifo.Module()).
			WithLogger(logger).
			Build("fifo")
		Expect(err).NotTo(HaveOccurred())

		return logger
	}

	run := func() error {
		return tb.Run(func(t *kernel.Task) error {
			if err := tb.Reset(t); err != nil {
				return err
			}

			tb.SetExpected(bus.Transaction{1, 2})
			if err := tb.SendInput(t, []int{1, 2}); err != nil {
				return err
			}

			tb.WaitTransaction(t)

			return nil
		})
	}

	It("should forward component events at trace level", func() {
		logger := build(kernel.LevelTrace)
		runner.Trace(tb, logger)

		Expect(run()).To(Succeed())
		Expect(logs.String()).To(ContainSubstring("Bus Word Sent"))
		Expect(logs.String()).To(ContainSubstring("Scoreboard Match"))
	})

	It("should not trace above trace level", func() {
		logger := build(slog.LevelInfo)
		runner.Trace(tb, logger)

		Expect(run()).To(Succeed())
		Expect(logs.String()).NotTo(ContainSubstring("Bus Word Sent"))
	})

	It("should summarize a run", func() {
		build(slog.LevelInfo)
		Expect(run()).To(Succeed())

		var out bytes.Buffer
		runner.Summarize(&out, tb, nil)

		Expect(out.String()).To(ContainSubstring("PASS"))
		Expect(out.String()).To(ContainSubstring("SCOREBOARD REPORT: fifo.Scoreboard"))
		Expect(out.String()).To(ContainSubstring("1 transactions matched"))

		out.Reset()
		runner.Summarize(&out, tb, errors.New("device hung"))

		Expect(out.String()).To(ContainSubstring("FAIL"))
		Expect(out.String()).To(ContainSubstring("error: device hung"))
	})

	It("should list the sources of a device", func() {
		dir := GinkgoT().TempDir()
		for _, n := range []string{"pkg.vhdl", "fifo.vhdl"} {
			Expect(os.WriteFile(filepath.Join(dir, n), nil, 0o644)).To(Succeed())
		}

		m, err := manifest.Parse([]byte(`
modules:
  common:
    library: common_lib
    files: pkg.vhdl
  fifo:
    depends: common
    files: fifo.vhdl
`), dir)
		Expect(err).NotTo(HaveOccurred())

		var out bytes.Buffer
		Expect(runner.WriteSources(&out, m, "fifo")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Sources of fifo"))
		Expect(strings.Index(out.String(), "pkg.vhdl")).
			To(BeNumerically("<", strings.Index(out.String(), "fifo.vhdl")))
		Expect(out.String()).To(ContainSubstring("common_lib"))
		Expect(out.String()).To(ContainSubstring("work"))

		Expect(runner.WriteSources(&out, m, "cbd")).
			To(MatchError(ContainSubstring("unknown module")))
	})
})
