package rnn

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/cnclabs/sdm/pkg/tensor"
)

// MultiRNN stacks recurrent layers over a length-masked sequence and keeps
// the output of every step. The last NumResidual layers add their input to
// their output.
type MultiRNN struct {
	Layers      []Cell
	NumResidual int
	DropoutRate float64
}

// NewMultiRNN builds numLayers cells of width units
func NewMultiRNN(kind string, inputDim, units, numLayers, numResidual int, dropoutRate float64, rng *rand.Rand) (*MultiRNN, error) {
	if numLayers < 1 {
		return nil, errors.Errorf("rnn needs at least one layer, got %d", numLayers)
	}
	if numResidual < 0 || numResidual > numLayers {
		return nil, errors.Errorf("rnn residual layers %d outside [0, %d]", numResidual, numLayers)
	}
	if numResidual == numLayers && inputDim != units {
		return nil, errors.Errorf("residual first layer needs input dim %d to equal units %d", inputDim, units)
	}

	m := &MultiRNN{NumResidual: numResidual, DropoutRate: dropoutRate}
	in := inputDim
	for l := 0; l < numLayers; l++ {
		cell, err := NewCell(kind, in, units, rng)
		if err != nil {
			return nil, err
		}
		m.Layers = append(m.Layers, cell)
		in = units
	}
	return m, nil
}

// Units is the output width
func (m *MultiRNN) Units() int {
	return m.Layers[len(m.Layers)-1].HiddenDim()
}

func (m *MultiRNN) residual(layer int) bool {
	return layer >= len(m.Layers)-m.NumResidual
}

// Forward runs every layer over seq. Steps at or beyond length output zeros
// and leave the state untouched. drop is nil at inference time.
func (m *MultiRNN) Forward(seq [][]float64, length int64, drop *tensor.Dropout) [][]float64 {
	cur := seq
	for l, cell := range m.Layers {
		state := cell.ZeroState()
		out := make([][]float64, len(cur))
		for t, x := range cur {
			if int64(t) >= length {
				out[t] = make([]float64, cell.HiddenDim())
				continue
			}
			state = cell.Forward(state, x)
			h := make([]float64, len(state.H))
			copy(h, state.H)
			drop.WithRate(m.DropoutRate).Apply(h)
			if m.residual(l) {
				tensor.AddInPlace(h, x)
			}
			out[t] = h
		}
		cur = out
	}
	return cur
}
