// Package prng implements the deterministic, seedable random primitives
// every simulation package routes through. Given identical seeds and
// call sequences, every Stream produces byte-identical output across
// processes and architectures — no use of math/rand's global
// source or crypto/rand is permitted anywhere in the simulation path.
package prng

import "math"

// Stream is a splitmix64-class integer generator: small state, fast,
// good avalanche behavior, and trivially reproducible from a single
// uint64 seed.
type Stream struct {
	state uint64
}

// NewStream creates a Stream from a raw seed.
func NewStream(seed uint64) Stream {
	return Stream{state: seed}
}

// RoomSeed derives a per-call stream from a room seed, the current tick,
// and an arbitrary salt (typically a position hash), so independent
// simulation decisions within the same tick don't share state yet remain
// fully reproducible from (seed, tick, salt) alone.
func RoomSeed(roomSeed int64, tick int64, salt uint64) Stream {
	mixed := uint64(roomSeed)*0x9E3779B97F4A7C15 ^ uint64(tick)*0xBF58476D1CE4E5B9 ^ salt
	return NewStream(mixed)
}

// NextUint64 advances the stream and returns the next raw 64-bit value.
func (s *Stream) NextUint64() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBFF58476D1CE4E5B
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// NextInt returns a pseudo-random integer in [lo, hi] (inclusive).
// Returns lo when hi <= lo.
func (s *Stream) NextInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	span := uint64(hi-lo) + 1
	return lo + int(s.NextUint64()%span)
}

// NextFloat returns a pseudo-random float64 in [lo, hi).
func (s *Stream) NextFloat(lo, hi float64) float64 {
	frac := float64(s.NextUint64()>>11) / float64(1<<53)
	return lo + frac*(hi-lo)
}

// Chance returns true with probability p (p clamped to [0,1]).
func (s *Stream) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.NextFloat(0, 1) < p
}

// Perlin is a classic Perlin noise field over a seeded 256-entry
// permutation table, doubled for wraparound-free lookups.
type Perlin struct {
	perm [512]int
}

// NewPerlin builds a Perlin field from a seed using a Fisher-Yates
// shuffle driven by the same splitmix64 Stream used elsewhere, so noise
// fields and simulation randomness share one reproducibility guarantee.
func NewPerlin(seed int64) *Perlin {
	p := &Perlin{}
	var base [256]int
	for i := range base {
		base[i] = i
	}
	s := NewStream(uint64(seed))
	for i := 255; i > 0; i-- {
		j := s.NextInt(0, i)
		base[i], base[j] = base[j], base[i]
	}
	for i := 0; i < 256; i++ {
		p.perm[i] = base[i]
		p.perm[i+256] = base[i]
	}
	return p
}

func fade(t float64) float64 { return t * t * t * (t*(t*6-15) + 10) }

func lerp(t, a, b float64) float64 { return a + t*(b-a) }

func grad2D(hash int, x, y float64) float64 {
	switch hash & 3 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	default:
		return -x - y
	}
}

func grad3D(hash int, x, y, z float64) float64 {
	h := hash & 15
	u := x
	if h >= 8 {
		u = y
	}
	v := y
	if h >= 4 {
		if h == 12 || h == 14 {
			v = x
		} else {
			v = z
		}
	}
	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}

// Noise2D returns 2D Perlin noise at (x, y), roughly in [-1, 1].
func (p *Perlin) Noise2D(x, y float64) float64 {
	xi := int(math.Floor(x)) & 255
	yi := int(math.Floor(y)) & 255
	xf := x - math.Floor(x)
	yf := y - math.Floor(y)
	u := fade(xf)
	v := fade(yf)

	aa := p.perm[p.perm[xi]+yi]
	ab := p.perm[p.perm[xi]+yi+1]
	ba := p.perm[p.perm[xi+1]+yi]
	bb := p.perm[p.perm[xi+1]+yi+1]

	x1 := lerp(u, grad2D(aa, xf, yf), grad2D(ba, xf-1, yf))
	x2 := lerp(u, grad2D(ab, xf, yf-1), grad2D(bb, xf-1, yf-1))
	return lerp(v, x1, x2)
}

// Noise3D returns 3D Perlin noise at (x, y, z), roughly in [-1, 1].
func (p *Perlin) Noise3D(x, y, z float64) float64 {
	xi := int(math.Floor(x)) & 255
	yi := int(math.Floor(y)) & 255
	zi := int(math.Floor(z)) & 255
	xf := x - math.Floor(x)
	yf := y - math.Floor(y)
	zf := z - math.Floor(z)
	u := fade(xf)
	v := fade(yf)
	w := fade(zf)

	aaa := p.perm[p.perm[p.perm[xi]+yi]+zi]
	aba := p.perm[p.perm[p.perm[xi]+yi+1]+zi]
	aab := p.perm[p.perm[p.perm[xi]+yi]+zi+1]
	abb := p.perm[p.perm[p.perm[xi]+yi+1]+zi+1]
	baa := p.perm[p.perm[p.perm[xi+1]+yi]+zi]
	bba := p.perm[p.perm[p.perm[xi+1]+yi+1]+zi]
	bab := p.perm[p.perm[p.perm[xi+1]+yi]+zi+1]
	bbb := p.perm[p.perm[p.perm[xi+1]+yi+1]+zi+1]

	x1 := lerp(u, grad3D(aaa, xf, yf, zf), grad3D(baa, xf-1, yf, zf))
	x2 := lerp(u, grad3D(aba, xf, yf-1, zf), grad3D(bba, xf-1, yf-1, zf))
	y1 := lerp(v, x1, x2)

	x1 = lerp(u, grad3D(aab, xf, yf, zf-1), grad3D(bab, xf-1, yf, zf-1))
	x2 = lerp(u, grad3D(abb, xf, yf-1, zf-1), grad3D(bbb, xf-1, yf-1, zf-1))
	y2 := lerp(v, x1, x2)

	return lerp(w, y1, y2)
}

// FBM2D sums octaves of 2D noise (fractal Brownian motion).
func (p *Perlin) FBM2D(x, y float64, octaves int, lacunarity, gain float64) float64 {
	var total, amplitude, frequency, maxAmp float64 = 0, 1, 1, 0
	for i := 0; i < octaves; i++ {
		total += p.Noise2D(x*frequency, y*frequency) * amplitude
		maxAmp += amplitude
		amplitude *= gain
		frequency *= lacunarity
	}
	if maxAmp == 0 {
		return 0
	}
	return total / maxAmp
}

// FBM3D sums octaves of 3D noise (fractal Brownian motion).
func (p *Perlin) FBM3D(x, y, z float64, octaves int, lacunarity, gain float64) float64 {
	var total, amplitude, frequency, maxAmp float64 = 0, 1, 1, 0
	for i := 0; i < octaves; i++ {
		total += p.Noise3D(x*frequency, y*frequency, z*frequency) * amplitude
		maxAmp += amplitude
		amplitude *= gain
		frequency *= lacunarity
	}
	if maxAmp == 0 {
		return 0
	}
	return total / maxAmp
}
