package port_test

import (
	"bytes"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/port"
)

var _ = Describe("Directory", func() {
	var (
		k    *kernel.Kernel
		m    *kernel.Module
		logs bytes.Buffer
		dir  *port.Directory
	)

	BeforeEach(func() {
		logs.Reset()
		k = kernel.MakeBuilder().Build("Kernel")
		m = k.NewModule("dut")
		m.Bind(k.Clock())
		m.AddPort("rst", 1, kernel.Input)
		m.AddPort("i_din_data", 8, kernel.Input)
		m.AddPort("i_din_valid", 1, kernel.Input)
		m.AddPort("o_din_ready", 1, kernel.Output)
		m.AddPort("dout_data_out", 16, kernel.Output)
		m.AddPort("dout_valid_out", 1, kernel.Output)
		m.AddPort("dout_ready_in", 1, kernel.Input)
		m.AddPort("o_done", 1, kernel.Output)
		m.AddPort("io_pad", 1, kernel.InOut)
		k.NewSignal("internal", 1, kernel.Internal)

		dir = port.Discover(m.Ports(), slog.New(slog.NewTextHandler(&logs, nil)))
	})

	It("should classify ports by direction", func() {
		Expect(dir.Names(kernel.Input)).To(Equal([]string{
			"clk", "dout_ready_in", "i_din_data", "i_din_valid", "rst",
		}))
		Expect(dir.Names(kernel.Output)).To(Equal([]string{
			"dout_data_out", "dout_valid_out", "o_din_ready", "o_done",
		}))
		Expect(dir.Names(kernel.InOut)).To(Equal([]string{"io_pad"}))
	})

	It("should log every port with its direction", func() {
		Expect(logs.String()).To(ContainSubstring("name=i_din_data dir=input"))
		Expect(logs.String()).To(ContainSubstring("name=o_done dir=output"))
		Expect(logs.String()).To(ContainSubstring("name=io_pad dir=inout"))
	})

	It("should resolve an input bus with ready in the opposite direction", func() {
		b, err := dir.ResolveBus("din", port.RoleInput)

		Expect(err).NotTo(HaveOccurred())
		Expect(b.Name).To(Equal("din"))
		Expect(b.Data.Name()).To(Equal("i_din_data"))
		Expect(b.Valid.Name()).To(Equal("i_din_valid"))
		Expect(b.Ready.Name()).To(Equal("o_din_ready"))
	})

	It("should resolve an output bus with suffixes", func() {
		b, err := dir.ResolveBus("dout", port.RoleOutput)

		Expect(err).NotTo(HaveOccurred())
		Expect(b.Data.Name()).To(Equal("dout_data_out"))
		Expect(b.Valid.Name()).To(Equal("dout_valid_out"))
		Expect(b.Ready.Name()).To(Equal("dout_ready_in"))
	})

	It("should fail when no convention resolves all three signals", func() {
		_, err := dir.ResolveBus("din", port.RoleOutput)

		var cfgErr *port.ConfigError
		Expect(err).To(BeAssignableToTypeOf(cfgErr))
		Expect(err.Error()).To(ContainSubstring("din"))
	})

	It("should use custom templates", func() {
		m.AddPort("src_tdata", 8, kernel.Input)
		m.AddPort("src_tvalid", 1, kernel.Input)
		m.AddPort("src_tready", 1, kernel.Output)

		custom := port.Discover(m.Ports(), nil).
			WithTemplates([]port.Template{{Pattern: "{name}_t{signal}"}})

		b, err := custom.ResolveBus("src", port.RoleInput)

		Expect(err).NotTo(HaveOccurred())
		Expect(b.Ready.Name()).To(Equal("src_tready"))
	})

	It("should resolve single signals", func() {
		s, err := dir.ResolveSignal("o_done")

		Expect(err).NotTo(HaveOccurred())
		Expect(s.Width()).To(Equal(1))

		_, err = dir.ResolveSignal("internal")
		Expect(err).To(HaveOccurred())
	})
})
