// Package sampler draws negative candidates for sampled softmax.
package sampler

import (
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned for an unusable sampler configuration
var ErrInvalidConfig = errors.New("invalid sampler config")

// Kind names a candidate sampler
type Kind string

const (
	Uniform   Kind = "uniform"
	Frequency Kind = "frequency"
	Adaptive  Kind = "adaptive"
	InBatch   Kind = "inbatch"
)

const (
	// maxTriesFactor bounds rejection sampling at NumSampled*maxTriesFactor draws
	maxTriesFactor = 1000
	// minProb floors sampling probabilities before taking logs
	minProb = 1e-12
)

// Config is the negative sampling configuration
type Config struct {
	Kind       Kind      `yaml:"kind"`
	NumSampled int       `yaml:"num_sampled"`
	ItemCount  []float64 `yaml:"item_count"`
	Distortion float64   `yaml:"distortion"`
}

// Candidates is the outcome of one sampling round for a batch
type Candidates struct {
	// IDs are unique sampled item ids
	IDs []int64
	// LogQ[k] is the log expected count of IDs[k]
	LogQ []float64
	// trueLogQ returns the log expected count of a label
	trueLogQ func(id int64) float64
}

// TrueLogQ returns the log expected count of label id under the same draw
func (c Candidates) TrueLogQ(id int64) float64 {
	return c.trueLogQ(id)
}

// Sampler draws candidates for a batch of labels
type Sampler interface {
	Kind() Kind
	Sample(labels []int64, rng *rand.Rand) Candidates
	// Observe feeds labels seen in training back into the sampler
	Observe(labels []int64)
}

// New validates cfg and builds the sampler over numItems ids
func New(cfg Config, numItems int) (Sampler, error) {
	if numItems < 2 {
		return nil, errors.Wrapf(ErrInvalidConfig, "need at least 2 items, got %d", numItems)
	}
	if cfg.Kind != InBatch {
		if cfg.NumSampled <= 0 || cfg.NumSampled >= numItems {
			return nil, errors.Wrapf(ErrInvalidConfig, "num_sampled %d must be in [1, %d)", cfg.NumSampled, numItems)
		}
	}
	distortion := cfg.Distortion
	if distortion == 0 {
		distortion = 1.0
	}
	if distortion < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "negative distortion %g", distortion)
	}
	if len(cfg.ItemCount) != 0 && len(cfg.ItemCount) != numItems {
		return nil, errors.Wrapf(ErrInvalidConfig, "item_count has %d entries, want %d", len(cfg.ItemCount), numItems)
	}

	switch cfg.Kind {
	case Uniform, "":
		return &uniform{numItems: numItems, numSampled: cfg.NumSampled}, nil
	case Frequency:
		if len(cfg.ItemCount) == 0 {
			return nil, errors.Wrap(ErrInvalidConfig, "frequency sampler needs item_count")
		}
		table := newUnigramTable(cfg.ItemCount, distortion)
		positive := 0
		for _, p := range table.probs {
			if p > 0 {
				positive++
			}
		}
		if positive <= cfg.NumSampled {
			return nil, errors.Wrapf(ErrInvalidConfig, "only %d items have a positive count, need more than %d", positive, cfg.NumSampled)
		}
		return &unigram{kind: Frequency, numSampled: cfg.NumSampled, table: table}, nil
	case Adaptive:
		counts := make([]float64, numItems)
		for i := range counts {
			counts[i] = 1
		}
		a := &adaptive{numSampled: cfg.NumSampled, counts: counts}
		a.rebuild()
		return a, nil
	case InBatch:
		counts := cfg.ItemCount
		if len(counts) == 0 {
			counts = make([]float64, numItems)
		}
		return &inBatch{probs: distort(counts, distortion)}, nil
	}
	return nil, errors.Wrapf(ErrInvalidConfig, "unknown sampler %q", cfg.Kind)
}

// expectedLogCount is log(-expm1(tries*log1p(-p))), the log probability an
// id shows up at least once in tries draws.
func expectedLogCount(p float64, tries int) float64 {
	if p < minProb {
		p = minProb
	}
	if p >= 1 {
		return 0
	}
	return math.Log(-math.Expm1(float64(tries) * math.Log1p(-p)))
}

// drawUnique draws n distinct ids and returns them with the number of draws.
func drawUnique(n int, draw func() int64) ([]int64, int) {
	ids := make([]int64, 0, n)
	seen := make(map[int64]bool, n)
	tries := 0
	for len(ids) < n && tries < n*maxTriesFactor {
		id := draw()
		tries++
		if id < 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, tries
}

type uniform struct {
	numItems   int
	numSampled int
}

func (u *uniform) Kind() Kind { return Uniform }

func (u *uniform) Sample(_ []int64, rng *rand.Rand) Candidates {
	p := 1.0 / float64(u.numItems)
	ids, tries := drawUnique(u.numSampled, func() int64 { return rng.Int63n(int64(u.numItems)) })
	logQ := make([]float64, len(ids))
	q := expectedLogCount(p, tries)
	for k := range ids {
		logQ[k] = q
	}
	return Candidates{IDs: ids, LogQ: logQ, trueLogQ: func(int64) float64 { return q }}
}

func (u *uniform) Observe([]int64) {}

type unigram struct {
	kind       Kind
	numSampled int
	table      *unigramTable
}

func (s *unigram) Kind() Kind { return s.kind }

func (s *unigram) Sample(_ []int64, rng *rand.Rand) Candidates {
	return s.table.candidates(s.numSampled, rng)
}

func (s *unigram) Observe([]int64) {}

// adaptive learns a unigram distribution from the labels it observes
type adaptive struct {
	numSampled int

	mu     sync.Mutex
	counts []float64
	table  *unigramTable
	dirty  bool
}

func (a *adaptive) Kind() Kind { return Adaptive }

func (a *adaptive) rebuild() {
	a.table = newUnigramTable(a.counts, 1.0)
	a.dirty = false
}

func (a *adaptive) Sample(_ []int64, rng *rand.Rand) Candidates {
	a.mu.Lock()
	if a.dirty {
		a.rebuild()
	}
	table := a.table
	a.mu.Unlock()
	return table.candidates(a.numSampled, rng)
}

func (a *adaptive) Observe(labels []int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range labels {
		if id >= 0 && int(id) < len(a.counts) {
			a.counts[id]++
			a.dirty = true
		}
	}
}

// Counts returns a copy of the learned counts
func (a *adaptive) Counts() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]float64, len(a.counts))
	copy(out, a.counts)
	return out
}

// inBatch uses the distinct labels of the batch as candidates
type inBatch struct {
	probs []float64
}

func (b *inBatch) Kind() Kind { return InBatch }

func (b *inBatch) Sample(labels []int64, _ *rand.Rand) Candidates {
	seen := make(map[int64]bool, len(labels))
	ids := make([]int64, 0, len(labels))
	for _, id := range labels {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	logQ := make([]float64, len(ids))
	for k, id := range ids {
		logQ[k] = math.Log(math.Max(b.probs[id], minProb))
	}
	return Candidates{
		IDs:  ids,
		LogQ: logQ,
		trueLogQ: func(id int64) float64 {
			return math.Log(math.Max(b.probs[id], minProb))
		},
	}
}

func (b *inBatch) Observe([]int64) {}
