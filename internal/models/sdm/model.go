package sdm

import (
	"context"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cnclabs/sdm/pkg/feature"
	"github.com/cnclabs/sdm/pkg/layers"
	"github.com/cnclabs/sdm/pkg/rnn"
	"github.com/cnclabs/sdm/pkg/sampler"
	"github.com/cnclabs/sdm/pkg/tensor"
)

// Model is the assembled SDM network. It is read-only after Build apart
// from the sampler state and the seed stream used in training mode.
type Model struct {
	params  Params
	workers int

	userInputs []feature.Input
	itemInputs []feature.Input
	item       feature.Column

	static    []feature.Column
	sequence  []feature.Column
	longTerm  []feature.Column
	shortTerm []feature.Column

	preferLength string
	shortLength  string

	tables     map[string]*layers.Embedding
	tableOrder []string

	userProfile        *layers.Dense
	preferAttention    []*layers.AttentionSequencePooling
	preferOutput       *layers.Dense
	shortInput         *layers.Dense
	shortRNN           *rnn.MultiRNN
	shortSelfAttention *layers.SelfMultiHeadAttention
	shortUserAttention *layers.UserAttention
	gate               *layers.Gate
	softmax            layers.SampledSoftmax

	sampler sampler.Sampler

	mu  sync.Mutex
	rng *rand.Rand
}

// Params returns the hyperparameters the model was built with
func (m *Model) Params() Params { return m.params }

// Inputs returns the declared inputs: user inputs then item inputs
func (m *Model) Inputs() []feature.Input {
	out := make([]feature.Input, 0, len(m.userInputs)+len(m.itemInputs))
	out = append(out, m.userInputs...)
	return append(out, m.itemInputs...)
}

// Table returns the embedding table registered under name, or nil
func (m *Model) Table(name string) *layers.Embedding {
	return m.tables[name]
}

// TableNames lists the embedding tables in creation order
func (m *Model) TableNames() []string {
	out := make([]string, len(m.tableOrder))
	copy(out, m.tableOrder)
	return out
}

// RegularizationLoss sums the L2 penalties of every embedding table
func (m *Model) RegularizationLoss() float64 {
	sum := 0.0
	for _, name := range m.tableOrder {
		sum += m.tables[name].Penalty()
	}
	return sum
}

// ItemMatrix returns the L2-normalised embedding of every item id
func (m *Model) ItemMatrix() [][]float64 {
	table := m.tables[m.item.Table()]
	out := make([][]float64, m.item.VocabularySize)
	for id := range out {
		// pooling over the single item feature is the identity
		out[id] = tensor.L2Normalize(table.W[id])
	}
	return out
}

// Forward evaluates the sampled softmax loss of every sample, shaped
// [batch x 1]. In training mode dropout is active and the sampler observes
// the labels.
func (m *Model) Forward(ctx context.Context, batch feature.Batch, training bool) ([][]float64, error) {
	size, err := batch.Validate(m.Inputs())
	if err != nil {
		return nil, err
	}
	labels, err := m.labels(batch, size)
	if err != nil {
		return nil, err
	}
	items := m.ItemMatrix()

	m.mu.Lock()
	cand := m.sampler.Sample(labels, m.rng)
	var seeds []int64
	if training {
		seeds = make([]int64, size)
		for i := range seeds {
			seeds[i] = m.rng.Int63()
		}
	}
	m.mu.Unlock()

	users, err := m.userEmbeddings(ctx, batch, size, seeds)
	if err != nil {
		return nil, err
	}

	out := make([][]float64, size)
	for i := range out {
		out[i] = []float64{m.softmax.Loss(items, users[i], labels[i], cand)}
	}
	if training {
		m.sampler.Observe(labels)
	}
	return out, nil
}

func (m *Model) labels(batch feature.Batch, size int) ([]int64, error) {
	labels := make([]int64, size)
	for i := range labels {
		id := batch.Scalar(m.item.Name, i)
		if id < 0 || id >= int64(m.item.VocabularySize) {
			return nil, errors.Wrapf(feature.ErrInvalidBatch, "item id %d outside vocabulary %d", id, m.item.VocabularySize)
		}
		labels[i] = id
	}
	return labels, nil
}

// userEmbeddings evaluates the user tower for every sample in parallel.
// seeds enable dropout; nil means inference.
func (m *Model) userEmbeddings(ctx context.Context, batch feature.Batch, size int, seeds []int64) ([][]float64, error) {
	out := make([][]float64, size)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i := 0; i < size; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var drop *tensor.Dropout
			if seeds != nil {
				drop = &tensor.Dropout{Rng: rand.New(rand.NewSource(seeds[i]))}
			}
			u, err := m.userVector(batch, i, drop)
			if err != nil {
				return errors.Wrapf(err, "sample %d", i)
			}
			out[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// userVector runs the user tower for sample i
func (m *Model) userVector(batch feature.Batch, i int, drop *tensor.Dropout) ([]float64, error) {
	profile, err := m.profile(batch, i)
	if err != nil {
		return nil, err
	}
	prefer, err := m.preferPath(batch, i, profile)
	if err != nil {
		return nil, err
	}
	short, err := m.shortPath(batch, i, profile, drop)
	if err != nil {
		return nil, err
	}
	return tensor.L2Normalize(m.gate.Forward(prefer, short, profile)), nil
}

// profile is the projected concatenation of static and pooled sequence embeddings
func (m *Model) profile(batch feature.Batch, i int) ([]float64, error) {
	parts := make([][]float64, 0, len(m.static)+len(m.sequence))
	for _, c := range m.static {
		row, err := m.tables[c.Table()].Lookup(batch.Scalar(c.Name, i))
		if err != nil {
			return nil, err
		}
		parts = append(parts, row)
	}
	for _, c := range m.sequence {
		ids := batch[c.Name][i]
		seq, err := m.tables[c.Table()].LookupSeq(ids)
		if err != nil {
			return nil, err
		}
		mask := tensor.NonZeroMask(ids)
		if c.LengthName != "" {
			mask = tensor.LengthMask(len(ids), batch.Scalar(c.LengthName, i))
		}
		combiner := c.Combiner
		if !combiner.Valid() {
			combiner = feature.CombinerMean
		}
		parts = append(parts, layers.Pool(seq, mask, combiner))
	}
	return m.userProfile.Forward(tensor.Concat(parts...)), nil
}

func (m *Model) preferPath(batch feature.Batch, i int, profile []float64) ([]float64, error) {
	length := batch.Scalar(m.preferLength, i)
	parts := make([][]float64, 0, len(m.longTerm))
	for k, c := range m.longTerm {
		keys, err := m.tables[c.Table()].LookupSeq(batch[c.Name][i])
		if err != nil {
			return nil, err
		}
		parts = append(parts, m.preferAttention[k].Forward(profile, keys, tensor.LengthMask(len(keys), length)))
	}
	return m.preferOutput.Forward(tensor.Concat(parts...)), nil
}

func (m *Model) shortPath(batch feature.Batch, i int, profile []float64, drop *tensor.Dropout) ([]float64, error) {
	length := batch.Scalar(m.shortLength, i)
	steps := m.shortTerm[0].MaxLen
	seqs := make([][][]float64, len(m.shortTerm))
	for k, c := range m.shortTerm {
		seq, err := m.tables[c.Table()].LookupSeq(batch[c.Name][i])
		if err != nil {
			return nil, err
		}
		seqs[k] = seq
	}
	concat := make([][]float64, steps)
	for t := 0; t < steps; t++ {
		parts := make([][]float64, len(seqs))
		for k := range seqs {
			parts[k] = seqs[k][t]
		}
		concat[t] = tensor.Concat(parts...)
	}

	hidden := m.shortRNN.Forward(m.shortInput.ForwardSeq(concat), length, drop)
	attended := m.shortSelfAttention.Forward(hidden, length, drop)
	return m.shortUserAttention.Forward(profile, attended, tensor.LengthMask(steps, length)), nil
}
