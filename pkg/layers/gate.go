package layers

import (
	"math/rand"

	"github.com/cnclabs/sdm/pkg/tensor"
)

// Gate fuses the long-term and short-term representations:
// g = sigmoid(W·[long, short, user] + b), out = g*short + (1-g)*long
type Gate struct {
	Dense *Dense
}

// NewGate builds a gate over three vectors of width units
func NewGate(units int, rng *rand.Rand) (*Gate, error) {
	d, err := NewDense("gate", 3*units, units, "sigmoid", rng)
	if err != nil {
		return nil, err
	}
	return &Gate{Dense: d}, nil
}

func (g *Gate) Forward(long, short, user []float64) []float64 {
	gate := g.Dense.Forward(tensor.Concat(long, short, user))
	out := make([]float64, len(gate))
	for d, v := range gate {
		out[d] = v*short[d] + (1-v)*long[d]
	}
	return out
}
