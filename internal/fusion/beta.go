package fusion

import (
	"math"
	"math/rand/v2"
)

// betaDist is a Beta(α,β) distribution sampled via two gamma draws.
// The pack carries no statistics library, so sampling is implemented
// directly: Marsaglia–Tsang for gamma, X/(X+Y) for beta.
type betaDist struct {
	alpha float64
	beta  float64
}

// betaFromMeanConf maps a branch's (probability, confidence) pair to a
// Beta distribution. The mean is clamped away from 0 and 1 to keep the
// parameterization non-degenerate; confidence sets the concentration, so
// a confident branch yields a narrow, peaked distribution and an unsure
// one spreads out.
func betaFromMeanConf(mean, conf float64) betaDist {
	mean = clamp(mean, 1e-4, 1-1e-4)
	conf = clamp(conf, 0.0, 1.0)

	total := 2.0 + conf*50.0
	return betaDist{
		alpha: mean * total,
		beta:  (1.0 - mean) * total,
	}
}

// sample draws one value from the distribution.
func (d betaDist) sample(rng *rand.Rand) float64 {
	x := sampleGamma(rng, d.alpha)
	y := sampleGamma(rng, d.beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) using Marsaglia–Tsang (2000).
// Shapes below 1 use the standard boost: G(a) = G(a+1) · U^(1/a).
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)

	for {
		x := rng.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v

		u := rng.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// percentile returns the p-th percentile (0..100) of sorted values using
// linear interpolation between order statistics.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	pos := p / 100.0 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
