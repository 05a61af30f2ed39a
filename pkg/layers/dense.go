// Package layers implements the forward pass of the SDM building blocks
// over single samples.
package layers

import (
	"math/rand"

	"github.com/cnclabs/sdm/pkg/tensor"
)

// Dense is a fully connected layer: act(W·x + b)
type Dense struct {
	Name       string
	W          [][]float64 // [out x in]
	B          []float64
	Activation string

	act tensor.Activation
}

// NewDense creates a Dense layer with Glorot weights and zero bias
func NewDense(name string, in, out int, activation string, rng *rand.Rand) (*Dense, error) {
	act, err := tensor.ParseActivation(activation)
	if err != nil {
		return nil, err
	}
	return &Dense{
		Name:       name,
		W:          tensor.Glorot(rng, in, out),
		B:          make([]float64, out),
		Activation: activation,
		act:        act,
	}, nil
}

// In is the input width
func (d *Dense) In() int { return len(d.W[0]) }

// Out is the output width
func (d *Dense) Out() int { return len(d.W) }

// NumParams counts weights and biases
func (d *Dense) NumParams() int {
	return d.In()*d.Out() + d.Out()
}

// Forward computes activation(Wx + b)
func (d *Dense) Forward(x []float64) []float64 {
	out := tensor.MatVec(d.W, x)
	for i := range out {
		out[i] = d.act(out[i] + d.B[i])
	}
	return out
}

// ForwardSeq applies the layer to every step
func (d *Dense) ForwardSeq(seq [][]float64) [][]float64 {
	out := make([][]float64, len(seq))
	for t, x := range seq {
		out[t] = d.Forward(x)
	}
	return out
}
