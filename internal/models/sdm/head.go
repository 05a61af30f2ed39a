package sdm

import (
	"context"

	"github.com/cnclabs/sdm/pkg/feature"
)

// Head is a named sub-output of the model, evaluated on the inputs of one
// tower.
type Head struct {
	name   string
	dim    int
	inputs []feature.Input
	eval   func(ctx context.Context, batch feature.Batch, size int) ([][]float64, error)
}

// Name is the output name, user_embedding or item_embedding
func (h *Head) Name() string { return h.name }

// Dim is the size of the last axis of the output
func (h *Head) Dim() int { return h.dim }

// Inputs are the placeholders the head reads
func (h *Head) Inputs() []feature.Input { return h.inputs }

// Eval computes the head for every sample, shaped [batch x Dim]
func (h *Head) Eval(ctx context.Context, batch feature.Batch) ([][]float64, error) {
	size, err := batch.Validate(h.inputs)
	if err != nil {
		return nil, err
	}
	return h.eval(ctx, batch, size)
}

func (m *Model) userHead() *Head {
	return &Head{
		name:   "user_embedding",
		dim:    m.params.Units,
		inputs: m.userInputs,
		eval: func(ctx context.Context, batch feature.Batch, size int) ([][]float64, error) {
			return m.userEmbeddings(ctx, batch, size, nil)
		},
	}
}

func (m *Model) itemHead() *Head {
	return &Head{
		name:   "item_embedding",
		dim:    m.item.EmbeddingDim,
		inputs: m.itemInputs,
		eval: func(_ context.Context, batch feature.Batch, size int) ([][]float64, error) {
			labels, err := m.labels(batch, size)
			if err != nil {
				return nil, err
			}
			items := m.ItemMatrix()
			out := make([][]float64, size)
			for i, id := range labels {
				out[i] = items[id]
			}
			return out, nil
		},
	}
}
