package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL2Normalize(t *testing.T) {
	v := L2Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-12)
	assert.InDelta(t, 1.0, Norm(v), 1e-12)

	zero := L2Normalize([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, zero)
}

func TestSoftmaxMask(t *testing.T) {
	w := Softmax([]float64{1, 2, 100}, []bool{true, true, false})
	assert.InDelta(t, 1.0, w[0]+w[1], 1e-12)
	assert.Zero(t, w[2])
	assert.Greater(t, w[1], w[0])

	assert.Equal(t, []float64{0, 0}, Softmax([]float64{1, 2}, []bool{false, false}))
}

func TestLogSumExp(t *testing.T) {
	assert.InDelta(t, math.Log(math.Exp(1)+math.Exp(2)), LogSumExp([]float64{1, 2}), 1e-12)
	assert.InDelta(t, 1000+math.Log(2), LogSumExp([]float64{1000, 1000}), 1e-9)
}

func TestMasks(t *testing.T) {
	assert.Equal(t, []bool{true, true, false}, LengthMask(3, 2))
	assert.Equal(t, []bool{false, false}, LengthMask(2, 0))
	assert.Equal(t, []bool{true, false, true}, NonZeroMask([]int64{4, 0, 1}))
}

func TestMatVecAndConcat(t *testing.T) {
	w := [][]float64{{1, 2}, {3, 4}, {0, 1}}
	assert.Equal(t, []float64{5, 11, 2}, MatVec(w, []float64{1, 2}))
	assert.Equal(t, []float64{1, 2, 3}, Concat([]float64{1}, nil, []float64{2, 3}))
}

func TestGlorotShapeAndBound(t *testing.T) {
	w := Glorot(rand.New(rand.NewSource(1)), 4, 6)
	require.Len(t, w, 6)
	limit := math.Sqrt(6.0 / 10.0)
	for _, row := range w {
		require.Len(t, row, 4)
		for _, v := range row {
			assert.LessOrEqual(t, math.Abs(v), limit)
		}
	}
}

func TestDropout(t *testing.T) {
	var none *Dropout
	v := []float64{1, 1}
	none.Apply(v)
	assert.Equal(t, []float64{1, 1}, v)
	assert.Nil(t, none.WithRate(0.5))

	d := &Dropout{Rate: 0.5, Rng: rand.New(rand.NewSource(2))}
	v = make([]float64, 1000)
	for i := range v {
		v[i] = 1
	}
	d.Apply(v)
	for _, x := range v {
		assert.True(t, x == 0 || x == 2)
	}
}

func TestParseActivation(t *testing.T) {
	act, err := ParseActivation("sigmoid")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, act(0), 1e-12)
	assert.InDelta(t, 1.0, act(800), 1e-12)
	assert.InDelta(t, 0.0, act(-800), 1e-12)

	_, err = ParseActivation("dice")
	assert.Error(t, err)
}
