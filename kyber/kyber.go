// Package kyber holds the round-1 Kyber reference arithmetic the benches use
// to compute expected device outputs.
package kyber

import (
	"encoding/binary"
	"math/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

const (
	N        = 256
	Q        = 7681
	K        = 3
	Eta      = 4
	SymBytes = 32

	// NoiseBytes is the number of random bytes one noise polynomial needs.
	NoiseBytes = Eta * N / 4
)

// A Poly is a polynomial with N coefficients, lowest degree first.
type Poly [N]uint16

// A PolyVec is a vector of K polynomials.
type PolyVec [K]Poly

// Coeffs returns the coefficients as a slice.
func (p *Poly) Coeffs() []uint16 {
	return p[:]
}

// Coeffs returns the coefficients of all polynomials, first polynomial first.
func (v *PolyVec) Coeffs() [][]uint16 {
	out := make([][]uint16, K)
	for i := range v {
		out[i] = v[i].Coeffs()
	}

	return out
}

// RandomPoly draws every coefficient uniformly from [0, Q).
func RandomPoly(rng *rand.Rand) Poly {
	var p Poly
	for i := range p {
		p[i] = uint16(rng.Intn(Q))
	}

	return p
}

// RandomPolyVec draws K random polynomials.
func RandomPolyVec(rng *rand.Rand) PolyVec {
	var v PolyVec
	for i := range v {
		v[i] = RandomPoly(rng)
	}

	return v
}

// CBD samples a polynomial from a centered binomial distribution with
// parameter Eta. Each coefficient is a + Q - b where a and b count the set
// bits of the low and the high nibble of one input byte, so the result is
// not reduced.
func CBD(buf []byte) (Poly, error) {
	var p Poly

	if len(buf) < NoiseBytes {
		return p, errors.Errorf("cbd needs %d bytes, got %d", NoiseBytes, len(buf))
	}

	for i := 0; i < N/4; i++ {
		t := binary.LittleEndian.Uint32(buf[4*i:])

		var d uint32
		for j := 0; j < 4; j++ {
			d += (t >> j) & 0x11111111
		}

		for j := 0; j < 4; j++ {
			a := (d >> (8 * j)) & 0xf
			b := (d >> (8*j + 4)) & 0xf
			p[4*i+j] = uint16(a + Q - b)
		}
	}

	return p, nil
}

// NoiseSeed expands seed and nonce into the bytes CBD consumes, using
// SHAKE-256.
func NoiseSeed(seed []byte, nonce byte) ([]byte, error) {
	if len(seed) != SymBytes {
		return nil, errors.Errorf("noise seed must be %d bytes, got %d", SymBytes, len(seed))
	}

	ext := make([]byte, 0, SymBytes+1)
	ext = append(ext, seed...)
	ext = append(ext, nonce)

	buf := make([]byte, NoiseBytes)
	sha3.ShakeSum256(buf, ext)

	return buf, nil
}

// GetNoise returns the noise polynomial for seed and nonce.
func GetNoise(seed []byte, nonce byte) (Poly, error) {
	buf, err := NoiseSeed(seed, nonce)
	if err != nil {
		return Poly{}, err
	}

	return CBD(buf)
}

// PolyVecNegaMAC returns r + <a, b> in Z_Q[x]/(x^N + 1), or r - <a, b> with
// subtract set. Coefficients of the result are in [0, Q).
func PolyVecNegaMAC(r Poly, a, b *PolyVec, subtract bool) Poly {
	var out Poly

	for ri := 0; ri < N; ri++ {
		acc := int(r[ri])

		for k := 0; k < K; k++ {
			for bi := 0; bi < N; bi++ {
				ai := ri - bi
				sgn := 1

				if ai < 0 {
					ai += N
					sgn = -1
				}

				if subtract {
					sgn = -sgn
				}

				term := int(a[k][ai]) * int(b[k][bi]) % Q
				acc += sgn * term

				if acc < 0 {
					acc += Q
				} else if acc >= Q {
					acc -= Q
				}
			}
		}

		out[ri] = uint16(acc)
	}

	return out
}
