package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/sdm/internal/models/sdm"
	"github.com/cnclabs/sdm/pkg/feature"
	"github.com/cnclabs/sdm/pkg/sampler"
)

const movielens = `
features:
  history: [movie_id, genres]
  user:
    - {name: user_id, vocabulary_size: 10, embedding_dim: 16}
    - {name: gender, vocabulary_size: 3, embedding_dim: 8}
    - {name: short_movie_id, kind: varlen, vocabulary_size: 100, embedding_dim: 32, embedding_name: movie_id, maxlen: 5, length_name: short_sess_length}
    - {name: prefer_movie_id, kind: varlen, vocabulary_size: 100, embedding_dim: 32, embedding_name: movie_id, maxlen: 3, length_name: prefer_sess_length}
    - {name: recent_genres, kind: varlen, vocabulary_size: 20, embedding_dim: 32, maxlen: 5, combiner: sum, length_name: short_sess_length, role: short_term, base: genres}
  item:
    - {name: movie_id, vocabulary_size: 100, embedding_dim: 32}
model:
  units: 32
  num_head: 2
  sampler:
    kind: frequency
    num_sampled: 3
    distortion: 0.75
    item_count: [1, 2, 3]
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(movielens))
	require.NoError(t, err)

	assert.Equal(t, []string{"movie_id", "genres"}, f.Features.History)
	assert.Equal(t, 32, f.Model.Units)
	assert.Equal(t, 2, f.Model.NumHead)
	// unset fields keep their defaults
	def := sdm.DefaultParams()
	assert.Equal(t, def.RNNLayers, f.Model.RNNLayers)
	assert.Equal(t, def.Temperature, f.Model.Temperature)
	assert.Equal(t, def.Activation, f.Model.Activation)
	assert.Equal(t, sampler.Frequency, f.Model.Sampler.Kind)
	assert.Equal(t, 3, f.Model.Sampler.NumSampled)
	assert.Equal(t, []float64{1, 2, 3}, f.Model.Sampler.ItemCount)

	user, item, err := f.Columns()
	require.NoError(t, err)
	require.Len(t, user, 5)
	require.Len(t, item, 1)

	assert.Equal(t, feature.KindSparse, user[0].Kind)
	assert.Equal(t, feature.KindVarLenSparse, user[2].Kind)
	assert.Equal(t, "movie_id", user[2].Table())
	assert.Equal(t, feature.CombinerMean, user[2].Combiner)
	assert.Equal(t, 5, user[2].MaxLen)
	assert.Equal(t, feature.RoleShortTerm, user[4].Role)
	assert.Equal(t, "genres", user[4].Base)
	assert.Equal(t, feature.CombinerSum, user[4].Combiner)
	assert.Equal(t, "movie_id", item[0].Table())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("model:\n  unitz: 3\n"))
	assert.Error(t, err)
}

func TestColumnsErrors(t *testing.T) {
	cases := map[string]string{
		"kind":     "features:\n  user:\n    - {name: a, kind: tensor}\n",
		"role":     "features:\n  user:\n    - {name: a, role: maybe}\n",
		"combiner": "features:\n  user:\n    - {name: a, kind: varlen, maxlen: 2, combiner: median}\n",
		"maxlen":   "features:\n  user:\n    - {name: a, kind: varlen}\n",
		"name":     "features:\n  item:\n    - {vocabulary_size: 3}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := Parse([]byte(doc))
			require.NoError(t, err)
			_, _, err = f.Columns()
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(movielens), 0o644))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Features.User, 5)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
