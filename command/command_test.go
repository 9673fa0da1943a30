package command_test

import (
	"io"
	"log/slog"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hwtb/command"
	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/port"
)

type fakeSender struct {
	payloads []any
}

func (f *fakeSender) Send(t *kernel.Task, payload any, sync bool) error {
	f.payloads = append(f.payloads, payload)
	t.ClockCycles(2)

	return nil
}

var _ = Describe("Controller", func() {
	var (
		mockCtrl *gomock.Controller
		logger   *slog.Logger
		k        *kernel.Kernel
		recvA    *kernel.Signal
		recvB    *kernel.Signal
		done     *kernel.Signal
		dir      *port.Directory
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		k = kernel.MakeBuilder().
			WithCycleLimit(1000).
			WithLogger(logger).
			Build("Kernel")

		m := k.NewModule("dut")
		recvA = m.AddPort("i_recv_a", 1, kernel.Input)
		recvB = m.AddPort("i_recv_b", 1, kernel.Input)
		done = m.AddPort("o_done", 1, kernel.Output)
		dir = port.Discover(m.Ports(), logger)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func(sender command.Sender) *command.Controller {
		b := command.MakeBuilder().
			WithDirectory(dir).
			WithCommand("recv_a", "i_recv_a").
			WithCommand("recv_b", "i_recv_b").
			WithLogger(logger)
		if sender != nil {
			b = b.WithSender(sender)
		}

		c, err := b.Build("Controller")
		Expect(err).NotTo(HaveOccurred())

		return c
	}

	// device raises done three cycles after any command line goes high and
	// lowers it once all command lines are low again.
	device := func(overlap *bool) kernel.TaskFunc {
		return func(t *kernel.Task) error {
			busyCycles := 0

			for {
				t.RisingEdge()

				if recvA.Bool() && recvB.Bool() {
					*overlap = true
				}

				anyCmd := recvA.Bool() || recvB.Bool()

				switch {
				case anyCmd && !done.Bool():
					busyCycles++
					if busyCycles == 3 {
						done.Set(1)
						busyCycles = 0
					}
				case !anyCmd && done.Bool():
					done.Set(0)
				}
			}
		}
	}

	It("should wait for done to clear before raising the command", func() {
		c := build(nil)
		done.Set(1)

		err := k.Run(func(t *kernel.Task) error {
			cmd := t.Fork("cmd", func(t *kernel.Task) error {
				return c.Command(t, "recv_a", nil)
			})

			t.ClockCycles(5)
			Expect(recvA.Value()).To(BeZero())
			Expect(c.State()).To(Equal(command.StateAwaitingDoneClear))

			done.Set(0)
			t.ReadOnly()
			Expect(recvA.Value()).To(Equal(uint64(1)))
			Expect(c.State()).To(Equal(command.StateAwaitingDoneSet))

			done.Set(1)
			if err := t.Join(cmd); err != nil {
				return err
			}

			Expect(recvA.Value()).To(BeZero())
			Expect(c.State()).To(Equal(command.StateIdle))

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
	})

	It("should run overlapping calls one after the other", func() {
		c := build(nil)
		done.Set(0)
		overlap := false
		k.Fork("device", device(&overlap))

		err := k.Run(func(t *kernel.Task) error {
			a := t.Fork("cmd_a", func(t *kernel.Task) error {
				return c.Command(t, "recv_a", nil)
			})
			b := t.Fork("cmd_b", func(t *kernel.Task) error {
				return c.Command(t, "recv_b", nil)
			})

			if err := t.Join(a); err != nil {
				return err
			}

			Expect(b.Done()).To(BeFalse())

			return t.Join(b)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(overlap).To(BeFalse())
		Expect(c.State()).To(Equal(command.StateIdle))
	})

	It("should stream input while the command is raised", func() {
		sender := &fakeSender{}
		c := build(sender)
		done.Set(0)
		overlap := false
		k.Fork("device", device(&overlap))

		hook := NewMockHook(mockCtrl)
		c.AcceptHook(hook)

		var states []command.State
		hook.EXPECT().Func(gomock.Any()).AnyTimes().
			Do(func(ctx sim.HookCtx) {
				states = append(states, ctx.Item.(command.State))
			})

		err := k.Run(func(t *kernel.Task) error {
			return c.Command(t, "recv_b", []uint16{1, 2, 3})
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(sender.payloads).To(Equal([]any{[]uint16{1, 2, 3}}))
		Expect(states).To(Equal([]command.State{
			command.StateAwaitingDoneClear,
			command.StateAsserted,
			command.StateStreaming,
			command.StateAwaitingDoneSet,
			command.StateDeasserting,
			command.StateIdle,
		}))
	})

	It("should refuse input without a sender", func() {
		c := build(nil)

		err := k.Run(func(t *kernel.Task) error {
			return c.Command(t, "recv_a", []byte{1})
		})

		Expect(err).To(MatchError(ContainSubstring("no sender")))
	})

	It("should reject unknown commands", func() {
		c := build(nil)

		err := k.Run(func(t *kernel.Task) error {
			return c.Command(t, "recv_c", nil)
		})

		var cfgErr *port.ConfigError
		Expect(err).To(BeAssignableToTypeOf(cfgErr))
	})

	It("should fail to build with a missing done signal", func() {
		_, err := command.MakeBuilder().
			WithDirectory(dir).
			WithDoneSignal("o_finished").
			Build("Controller")

		var cfgErr *port.ConfigError
		Expect(err).To(BeAssignableToTypeOf(cfgErr))
		Expect(k.Cycle()).To(BeZero())
	})

	It("should fail to build with a missing command signal", func() {
		_, err := command.MakeBuilder().
			WithDirectory(dir).
			WithCommand("do_mac", "i_do_mac").
			Build("Controller")

		Expect(err).To(MatchError(ContainSubstring("i_do_mac")))
	})

	It("should list its commands", func() {
		Expect(build(nil).Commands()).To(Equal([]string{"recv_a", "recv_b"}))
	})
})
