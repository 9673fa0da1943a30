package bus_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hwtb/bus"
)

func take(g bus.IdleGenerator, n int) []bus.Idle {
	var runs []bus.Idle

	for i := 0; i < n; i++ {
		run, ok := g.Next()
		if !ok {
			break
		}

		runs = append(runs, run)
	}

	return runs
}

var _ = Describe("Idle generators", func() {
	It("should toggle every cycle", func() {
		Expect(take(bus.IntermittentSingleCycles(), 3)).To(Equal([]bus.Idle{
			{On: 1, Off: 1}, {On: 1, Off: 1}, {On: 1, Off: 1},
		}))
	})

	It("should never stop being active", func() {
		run, ok := bus.AlwaysOnIdle().Next()

		Expect(ok).To(BeTrue())
		Expect(run.On).To(Equal(bus.AlwaysOn))
	})

	It("should draw equal active and idle runs", func() {
		g := bus.Random50Percent(rand.New(rand.NewSource(7)), 10, 0)

		for _, run := range take(g, 100) {
			Expect(run.On).To(Equal(run.Off))
			Expect(run.On).To(BeNumerically(">=", 0))
		}
	})

	It("should repeat the wave pattern", func() {
		runs := take(bus.DefaultWave(), 400)

		Expect(runs[0]).To(Equal(bus.Idle{On: 0, Off: 0}))
		Expect(runs[50].On).To(Equal(30))
		Expect(runs[25].Off).To(Equal(10))
		Expect(runs[200:]).To(Equal(runs[:200]))
	})

	It("should be exhausted after the finite runs", func() {
		g := bus.Finite(bus.Idle{On: 2, Off: 3})

		Expect(take(g, 5)).To(Equal([]bus.Idle{{On: 2, Off: 3}}))
	})

	It("should resolve strategies by name", func() {
		rng := rand.New(rand.NewSource(1))

		for _, name := range []string{"none", "always_on", ""} {
			g, err := bus.IdleStrategy(name, rng)
			Expect(err).NotTo(HaveOccurred())
			Expect(g).To(BeNil())
		}

		for _, name := range []string{
			"random_50_percent", "intermittent_single_cycles", "wave",
		} {
			g, err := bus.IdleStrategy(name, rng)
			Expect(err).NotTo(HaveOccurred())
			Expect(g).NotTo(BeNil())
		}

		_, err := bus.IdleStrategy("sometimes", rng)
		Expect(err).To(HaveOccurred())
	})
})
