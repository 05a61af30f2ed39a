package sampler

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasMatchesDistribution(t *testing.T) {
	table := newUnigramTable([]float64{1, 0, 3}, 1.0)
	assert.InDeltaSlice(t, []float64{0.25, 0, 0.75}, table.probs, 1e-9)

	rng := rand.New(rand.NewSource(7))
	hits := make([]int, 3)
	const n = 40000
	for i := 0; i < n; i++ {
		hits[table.draw(rng)]++
	}
	assert.Zero(t, hits[1])
	assert.InDelta(t, 0.75, float64(hits[2])/n, 0.02)
}

func TestAliasPower(t *testing.T) {
	probs := distort([]float64{1, 4}, 0.5)
	assert.InDelta(t, 1.0/3.0, probs[0], 1e-9)
	assert.Equal(t, []float64{0.5, 0.5}, distort([]float64{0, 0}, 1))
}

func TestUniformUniqueCandidates(t *testing.T) {
	s, err := New(Config{Kind: Uniform, NumSampled: 10}, 20)
	require.NoError(t, err)
	c := s.Sample(nil, rand.New(rand.NewSource(1)))
	require.Len(t, c.IDs, 10)
	seen := map[int64]bool{}
	for k, id := range c.IDs {
		assert.False(t, seen[id])
		seen[id] = true
		assert.True(t, id >= 0 && id < 20)
		assert.LessOrEqual(t, c.LogQ[k], 0.0)
	}
	assert.Equal(t, c.LogQ[0], c.TrueLogQ(3))
}

func TestExpectedLogCount(t *testing.T) {
	assert.InDelta(t, math.Log(0.1), expectedLogCount(0.1, 1), 1e-12)
	assert.InDelta(t, math.Log(1-0.9*0.9), expectedLogCount(0.1, 2), 1e-12)
	assert.Equal(t, 0.0, expectedLogCount(1, 3))
	assert.False(t, math.IsInf(expectedLogCount(0, 3), 0))
}

func TestFrequencySamplerSkipsZeroCounts(t *testing.T) {
	s, err := New(Config{Kind: Frequency, NumSampled: 2, ItemCount: []float64{5, 0, 5, 5}}, 4)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		for _, id := range s.Sample(nil, rng).IDs {
			assert.NotEqual(t, int64(1), id)
		}
	}
}

func TestAdaptiveObserve(t *testing.T) {
	s, err := New(Config{Kind: Adaptive, NumSampled: 1}, 3)
	require.NoError(t, err)
	s.Observe([]int64{2, 2, 2, 7})
	a := s.(*adaptive)
	assert.Equal(t, []float64{1, 1, 4}, a.Counts())

	rng := rand.New(rand.NewSource(11))
	hits := 0
	for i := 0; i < 3000; i++ {
		if s.Sample(nil, rng).IDs[0] == 2 {
			hits++
		}
	}
	assert.InDelta(t, 4.0/6.0, float64(hits)/3000, 0.05)
}

func TestInBatchCandidates(t *testing.T) {
	s, err := New(Config{Kind: InBatch}, 5)
	require.NoError(t, err)
	c := s.Sample([]int64{3, 1, 3, 4}, nil)
	assert.Equal(t, []int64{3, 1, 4}, c.IDs)
	assert.InDelta(t, math.Log(0.2), c.LogQ[0], 1e-12)
	assert.InDelta(t, math.Log(0.2), c.TrueLogQ(1), 1e-12)
}

func TestInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		n    int
	}{
		{"too few items", Config{Kind: Uniform, NumSampled: 1}, 1},
		{"no negatives", Config{Kind: Uniform}, 10},
		{"too many negatives", Config{Kind: Uniform, NumSampled: 10}, 10},
		{"frequency without counts", Config{Kind: Frequency, NumSampled: 2}, 10},
		{"count length", Config{Kind: Frequency, NumSampled: 2, ItemCount: []float64{1, 2}}, 10},
		{"sparse counts", Config{Kind: Frequency, NumSampled: 2, ItemCount: []float64{1, 0, 1}}, 3},
		{"negative distortion", Config{Kind: Uniform, NumSampled: 2, Distortion: -1}, 10},
		{"unknown", Config{Kind: "bogus", NumSampled: 2}, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg, tc.n)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}
