package layers

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/cnclabs/sdm/pkg/tensor"
)

const layerNormEpsilon = 1e-8

// AttentionSequencePooling weights the keys of a sequence by a small MLP
// over [q, k, q-k, q*k] and sums them (DIN local activation unit).
type AttentionSequencePooling struct {
	Hidden []*Dense
	Score  *Dense
	// WeightNormalization softmaxes the scores over valid steps; otherwise
	// raw scores are used and padded steps weigh 0.
	WeightNormalization bool
}

// NewAttentionSequencePooling builds the unit for keys of width dim
func NewAttentionSequencePooling(name string, dim int, hidden []int, activation string, weightNormalization bool, rng *rand.Rand) (*AttentionSequencePooling, error) {
	a := &AttentionSequencePooling{WeightNormalization: weightNormalization}
	in := 4 * dim
	for i, units := range hidden {
		d, err := NewDense(name+"_hidden", in, units, activation, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "attention hidden layer %d", i)
		}
		a.Hidden = append(a.Hidden, d)
		in = units
	}
	score, err := NewDense(name+"_score", in, 1, "linear", rng)
	if err != nil {
		return nil, err
	}
	a.Score = score
	return a, nil
}

// Forward pools keys against query
func (a *AttentionSequencePooling) Forward(query []float64, keys [][]float64, mask []bool) []float64 {
	scores := make([]float64, len(keys))
	diff := make([]float64, len(query))
	prod := make([]float64, len(query))
	for t, k := range keys {
		if !mask[t] {
			continue
		}
		for d := range query {
			diff[d] = query[d] - k[d]
			prod[d] = query[d] * k[d]
		}
		h := tensor.Concat(query, k, diff, prod)
		for _, layer := range a.Hidden {
			h = layer.Forward(h)
		}
		scores[t] = a.Score.Forward(h)[0]
	}

	weights := scores
	if a.WeightNormalization {
		weights = tensor.Softmax(scores, mask)
	}

	out := make([]float64, len(query))
	for t, k := range keys {
		if !mask[t] {
			continue
		}
		for d := range out {
			out[d] += weights[t] * k[d]
		}
	}
	return out
}

// SelfMultiHeadAttention is scaled dot-product self attention over a
// length-masked sequence. With FutureBinding step i only sees steps j <= i.
type SelfMultiHeadAttention struct {
	Units         int
	Heads         int
	DropoutRate   float64
	FutureBinding bool
	UseLayerNorm  bool
	UseResidual   bool
	UsePosEncode  bool

	Q, K, V [][]float64 // [units x in]
	Gamma   []float64
	Beta    []float64
}

// NewSelfMultiHeadAttention builds the layer for inputs of width in
func NewSelfMultiHeadAttention(in, units, heads int, dropoutRate float64, futureBinding, useLayerNorm, useResidual, usePosEncode bool, rng *rand.Rand) (*SelfMultiHeadAttention, error) {
	if heads < 1 || units%heads != 0 {
		return nil, errors.Errorf("units %d not divisible by %d heads", units, heads)
	}
	if useResidual && in != units {
		return nil, errors.Errorf("residual attention needs input dim %d to equal units %d", in, units)
	}
	s := &SelfMultiHeadAttention{
		Units:         units,
		Heads:         heads,
		DropoutRate:   dropoutRate,
		FutureBinding: futureBinding,
		UseLayerNorm:  useLayerNorm,
		UseResidual:   useResidual,
		UsePosEncode:  usePosEncode,
		Q:             tensor.Glorot(rng, in, units),
		K:             tensor.Glorot(rng, in, units),
		V:             tensor.Glorot(rng, in, units),
		Gamma:         make([]float64, units),
		Beta:          make([]float64, units),
	}
	for i := range s.Gamma {
		s.Gamma[i] = 1
	}
	return s, nil
}

// positionalEncoding is the sinusoidal encoding of position pos
func positionalEncoding(pos, dim int) []float64 {
	pe := make([]float64, dim)
	for d := 0; d < dim; d++ {
		if d%2 == 0 {
			pe[d] = math.Sin(float64(pos) / math.Pow(10000, float64(d)/float64(dim)))
		} else {
			pe[d] = math.Cos(float64(pos) / math.Pow(10000, float64(d-1)/float64(dim)))
		}
	}
	return pe
}

// Forward attends over the first length steps of seq
func (s *SelfMultiHeadAttention) Forward(seq [][]float64, length int64, drop *tensor.Dropout) [][]float64 {
	n := len(seq)
	inputs := seq
	if s.UsePosEncode {
		inputs = make([][]float64, n)
		for t, x := range seq {
			inputs[t] = tensor.Add(x, positionalEncoding(t, len(x)))
		}
	}

	q := make([][]float64, n)
	k := make([][]float64, n)
	v := make([][]float64, n)
	for t, x := range inputs {
		q[t] = tensor.MatVec(s.Q, x)
		k[t] = tensor.MatVec(s.K, x)
		v[t] = tensor.MatVec(s.V, x)
	}

	attnDrop := drop.WithRate(s.DropoutRate)

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, s.Units)
		// steps past the length keep a zero attention output
		if int64(i) < length {
			s.attend(i, length, q, k, v, out[i], attnDrop)
		}
		if s.UseResidual {
			tensor.AddInPlace(out[i], inputs[i])
		}
		if s.UseLayerNorm {
			out[i] = s.layerNorm(out[i])
		}
	}
	return out
}

// attend accumulates every head's attention for query step i into out
func (s *SelfMultiHeadAttention) attend(i int, length int64, q, k, v [][]float64, out []float64, drop *tensor.Dropout) {
	n := len(k)
	headDim := s.Units / s.Heads
	scale := 1 / math.Sqrt(float64(headDim))

	mask := make([]bool, n)
	for j := 0; j < n; j++ {
		mask[j] = int64(j) < length && (!s.FutureBinding || j <= i)
	}
	for h := 0; h < s.Heads; h++ {
		lo, hi := h*headDim, (h+1)*headDim
		scores := make([]float64, n)
		for j := 0; j < n; j++ {
			if mask[j] {
				scores[j] = tensor.Dot(q[i][lo:hi], k[j][lo:hi]) * scale
			}
		}
		weights := tensor.Softmax(scores, mask)
		drop.Apply(weights)
		for j := 0; j < n; j++ {
			if weights[j] == 0 {
				continue
			}
			for d := lo; d < hi; d++ {
				out[d] += weights[j] * v[j][d]
			}
		}
	}
}

func (s *SelfMultiHeadAttention) layerNorm(x []float64) []float64 {
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	variance := 0.0
	for _, v := range x {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(x))
	std := math.Sqrt(variance + layerNormEpsilon)

	out := make([]float64, len(x))
	for d, v := range x {
		out[d] = s.Gamma[d]*(v-mean)/std + s.Beta[d]
	}
	return out
}

// UserAttention attends over a sequence with a query derived from the
// user profile vector.
type UserAttention struct {
	Query       *Dense
	UseResidual bool
}

// NewUserAttention builds the layer for a profile of width in
func NewUserAttention(in, units int, activation string, useResidual bool, rng *rand.Rand) (*UserAttention, error) {
	q, err := NewDense("user_attention_query", in, units, activation, rng)
	if err != nil {
		return nil, err
	}
	return &UserAttention{Query: q, UseResidual: useResidual}, nil
}

// Forward returns Σ softmax(q·k)·k over valid steps, plus q when UseResidual
func (u *UserAttention) Forward(user []float64, keys [][]float64, mask []bool) []float64 {
	q := u.Query.Forward(user)
	scores := make([]float64, len(keys))
	for t, k := range keys {
		if mask[t] {
			scores[t] = tensor.Dot(q, k)
		}
	}
	weights := tensor.Softmax(scores, mask)

	out := make([]float64, len(q))
	for t, k := range keys {
		if weights[t] == 0 {
			continue
		}
		for d := range out {
			out[d] += weights[t] * k[d]
		}
	}
	if u.UseResidual {
		tensor.AddInPlace(out, q)
	}
	return out
}
