package layers

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/cnclabs/sdm/pkg/feature"
)

// Embedding is a learned lookup table [vocab x dim]
type Embedding struct {
	Name string
	W    [][]float64
	L2   float64
}

// NewEmbedding initialises the table the way the SMORe models do
func NewEmbedding(name string, vocab, dim int, l2 float64, rng *rand.Rand) *Embedding {
	w := make([][]float64, vocab)
	for i := range w {
		w[i] = make([]float64, dim)
		for d := range w[i] {
			w[i][d] = (rng.Float64() - 0.5) / float64(dim)
		}
	}
	return &Embedding{Name: name, W: w, L2: l2}
}

// Vocab is the number of rows
func (e *Embedding) Vocab() int { return len(e.W) }

// Dim is the row width
func (e *Embedding) Dim() int { return len(e.W[0]) }

// Lookup returns the row of id. The row is shared; callers must not modify it.
func (e *Embedding) Lookup(id int64) ([]float64, error) {
	if id < 0 || id >= int64(len(e.W)) {
		return nil, errors.Wrapf(feature.ErrInvalidBatch, "id %d outside vocabulary of %q (%d)", id, e.Name, len(e.W))
	}
	return e.W[id], nil
}

// LookupSeq looks up every id of a sequence
func (e *Embedding) LookupSeq(ids []int64) ([][]float64, error) {
	out := make([][]float64, len(ids))
	for t, id := range ids {
		row, err := e.Lookup(id)
		if err != nil {
			return nil, err
		}
		out[t] = row
	}
	return out, nil
}

// Penalty is the L2 regularisation term L2 * Σ w²
func (e *Embedding) Penalty() float64 {
	if e.L2 == 0 {
		return 0
	}
	sum := 0.0
	for _, row := range e.W {
		for _, v := range row {
			sum += v * v
		}
	}
	return e.L2 * sum
}
