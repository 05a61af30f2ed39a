// Package tensor holds the dense vector helpers shared by the layers.
// Matrices are row-major [][]float64 with W[out][in].
package tensor

import (
	"math"
	"math/rand"
)

// L2Epsilon floors the squared norm in L2Normalize
const L2Epsilon = 1e-12

// MatVec computes W·x
func MatVec(w [][]float64, x []float64) []float64 {
	out := make([]float64, len(w))
	for i, row := range w {
		sum := 0.0
		for j, v := range row {
			sum += v * x[j]
		}
		out[i] = sum
	}
	return out
}

// Dot returns a·b
func Dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Add returns a+b
func Add(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// AddInPlace adds b into a
func AddInPlace(a, b []float64) {
	for i := range a {
		a[i] += b[i]
	}
}

// Scale returns v*s
func Scale(v []float64, s float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

// Concat joins vectors end to end
func Concat(vs ...[]float64) []float64 {
	n := 0
	for _, v := range vs {
		n += len(v)
	}
	out := make([]float64, 0, n)
	for _, v := range vs {
		out = append(out, v...)
	}
	return out
}

// Norm is the L2 norm of v
func Norm(v []float64) float64 {
	return math.Sqrt(Dot(v, v))
}

// L2Normalize returns v / sqrt(max(|v|², ε))
func L2Normalize(v []float64) []float64 {
	sq := Dot(v, v)
	if sq < L2Epsilon {
		sq = L2Epsilon
	}
	return Scale(v, 1/math.Sqrt(sq))
}

// Softmax normalises scores over positions where mask is true. Masked
// positions get weight 0; an all-false mask yields all zeros.
func Softmax(scores []float64, mask []bool) []float64 {
	out := make([]float64, len(scores))
	hi := math.Inf(-1)
	for i, s := range scores {
		if mask[i] && s > hi {
			hi = s
		}
	}
	if math.IsInf(hi, -1) {
		return out
	}
	sum := 0.0
	for i, s := range scores {
		if mask[i] {
			out[i] = math.Exp(s - hi)
			sum += out[i]
		}
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// LogSumExp is a numerically stable log(Σ exp(x))
func LogSumExp(xs []float64) float64 {
	hi := math.Inf(-1)
	for _, x := range xs {
		if x > hi {
			hi = x
		}
	}
	if math.IsInf(hi, -1) {
		return hi
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - hi)
	}
	return hi + math.Log(sum)
}

// LengthMask marks the first length of n positions
func LengthMask(n int, length int64) []bool {
	mask := make([]bool, n)
	for i := 0; i < n && int64(i) < length; i++ {
		mask[i] = true
	}
	return mask
}

// NonZeroMask marks positions holding a non-padding id
func NonZeroMask(ids []int64) []bool {
	mask := make([]bool, len(ids))
	for i, id := range ids {
		mask[i] = id != 0
	}
	return mask
}

// Glorot returns an out×in matrix drawn from the Glorot uniform initializer
func Glorot(rng *rand.Rand, in, out int) [][]float64 {
	limit := math.Sqrt(6.0 / float64(in+out))
	w := make([][]float64, out)
	for i := range w {
		w[i] = make([]float64, in)
		for j := range w[i] {
			w[i][j] = (rng.Float64()*2 - 1) * limit
		}
	}
	return w
}

// Dropout zeroes values with probability Rate and rescales survivors.
// A nil *Dropout is the inference-time identity.
type Dropout struct {
	Rate float64
	Rng  *rand.Rand
}

// Apply drops values of v in place
func (d *Dropout) Apply(v []float64) {
	if d == nil || d.Rate <= 0 {
		return
	}
	keep := 1 - d.Rate
	for i := range v {
		if d.Rng.Float64() < d.Rate {
			v[i] = 0
		} else {
			v[i] /= keep
		}
	}
}

// WithRate returns a dropout sharing d's generator at another rate
func (d *Dropout) WithRate(rate float64) *Dropout {
	if d == nil {
		return nil
	}
	return &Dropout{Rate: rate, Rng: d.Rng}
}
