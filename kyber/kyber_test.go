package kyber_test

import (
	"bytes"
	"math/bits"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hwtb/kyber"
)

// schoolbook computes r + sgn * <a, b> mod (x^N + 1) the long way.
func schoolbook(r kyber.Poly, a, b *kyber.PolyVec, subtract bool) kyber.Poly {
	var prod [2 * kyber.N]int

	for k := 0; k < kyber.K; k++ {
		for i := 0; i < kyber.N; i++ {
			for j := 0; j < kyber.N; j++ {
				prod[i+j] += int(a[k][i]) * int(b[k][j]) % kyber.Q
			}
		}
	}

	var out kyber.Poly

	for i := 0; i < kyber.N; i++ {
		v := (prod[i] - prod[i+kyber.N]) % kyber.Q
		if subtract {
			v = -v
		}

		v = (int(r[i]) + v) % kyber.Q
		if v < 0 {
			v += kyber.Q
		}

		out[i] = uint16(v)
	}

	return out
}

var _ = Describe("CBD", func() {
	It("should count the bits of each nibble", func() {
		rng := rand.New(rand.NewSource(5))
		buf := make([]byte, kyber.NoiseBytes)
		rng.Read(buf)

		p, err := kyber.CBD(buf)
		Expect(err).NotTo(HaveOccurred())

		for i, b := range buf {
			a := bits.OnesCount8(b & 0x0f)
			c := bits.OnesCount8(b >> 4)
			Expect(int(p[i])).To(Equal(a + kyber.Q - c))
		}
	})

	It("should keep coefficients unreduced", func() {
		p, err := kyber.CBD(bytes.Repeat([]byte{0x0f}, kyber.NoiseBytes))
		Expect(err).NotTo(HaveOccurred())
		Expect(p[0]).To(Equal(uint16(kyber.Q + 4)))

		p, err = kyber.CBD(bytes.Repeat([]byte{0xf0}, kyber.NoiseBytes))
		Expect(err).NotTo(HaveOccurred())
		Expect(p[kyber.N-1]).To(Equal(uint16(kyber.Q - 4)))
	})

	It("should reject short input", func() {
		_, err := kyber.CBD(make([]byte, 10))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("GetNoise", func() {
	It("should be deterministic in seed and nonce", func() {
		seed := bytes.Repeat([]byte{0x5a}, kyber.SymBytes)

		p1, err := kyber.GetNoise(seed, 0)
		Expect(err).NotTo(HaveOccurred())
		p2, err := kyber.GetNoise(seed, 0)
		Expect(err).NotTo(HaveOccurred())
		p3, err := kyber.GetNoise(seed, 1)
		Expect(err).NotTo(HaveOccurred())

		Expect(p1).To(Equal(p2))
		Expect(p1).NotTo(Equal(p3))

		for _, c := range p1 {
			Expect(int(c)).To(BeNumerically(">=", kyber.Q-kyber.Eta))
			Expect(int(c)).To(BeNumerically("<=", kyber.Q+kyber.Eta))
		}
	})

	It("should reject seeds of the wrong size", func() {
		_, err := kyber.GetNoise([]byte{1, 2, 3}, 0)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("PolyVecNegaMAC", func() {
	It("should wrap around with a negative sign", func() {
		var a, b kyber.PolyVec
		a[0][kyber.N-1] = 1
		b[0][1] = 1

		out := kyber.PolyVecNegaMAC(kyber.Poly{}, &a, &b, false)

		Expect(out[0]).To(Equal(uint16(kyber.Q - 1)))
		for i := 1; i < kyber.N; i++ {
			Expect(out[i]).To(BeZero())
		}
	})

	It("should match the schoolbook product", func() {
		rng := rand.New(rand.NewSource(11))

		for _, subtract := range []bool{false, true} {
			a := kyber.RandomPolyVec(rng)
			b := kyber.RandomPolyVec(rng)
			r := kyber.RandomPoly(rng)

			Expect(kyber.PolyVecNegaMAC(r, &a, &b, subtract)).
				To(Equal(schoolbook(r, &a, &b, subtract)))
		}
	})
})
