package feature

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(cols []Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Name)
	}
	return out
}

func TestRouteByPrefix(t *testing.T) {
	cols := []Column{
		Sparse("user_id", 10, 8),
		VarLen(Sparse("short_movie_id", 100, 8), 5, CombinerMean, "short_sess_length").WithEmbeddingName("movie_id"),
		VarLen(Sparse("prefer_movie_id", 100, 8), 3, CombinerMean, "prefer_sess_length").WithEmbeddingName("movie_id"),
		VarLen(Sparse("short_genres", 20, 8), 5, CombinerMean, "short_sess_length"),
		VarLen(Sparse("tags", 30, 8), 4, CombinerSum, ""),
		VarLen(Sparse("short_unknown", 30, 8), 4, CombinerSum, ""),
	}

	b := Route(cols, []string{"movie_id", "genres"})
	assert.Equal(t, []string{"user_id"}, names(b.Static))
	assert.Equal(t, []string{"prefer_movie_id"}, names(b.LongTerm))
	assert.Equal(t, []string{"short_movie_id", "short_genres"}, names(b.ShortTerm))
	assert.Equal(t, []string{"tags", "short_unknown"}, names(b.Sequence))
	assert.Equal(t, []string{"short_unknown"}, b.Misrouted)
	assert.Equal(t, "movie_id", b.LongTerm[0].Base)
	assert.Equal(t, "genres", b.ShortTerm[1].Base)
	assert.Empty(t, b.Dense)
}

func TestRouteExplicitRoleWins(t *testing.T) {
	cols := []Column{
		VarLen(Sparse("recent_items", 50, 4), 5, CombinerMean, "recent_len").WithRole(RoleShortTerm, "item"),
		VarLen(Sparse("prefer_item", 50, 4), 5, CombinerMean, "prefer_len").WithRole(RoleSequence, ""),
		VarLen(Sparse("long_items", 50, 4), 5, CombinerMean, "long_len").WithRole(RoleLongTerm, ""),
	}
	b := Route(cols, []string{"item"})
	assert.Equal(t, []string{"recent_items"}, names(b.ShortTerm))
	assert.Equal(t, []string{"prefer_item"}, names(b.Sequence))
	assert.Equal(t, []string{"long_items"}, names(b.LongTerm))
	assert.Equal(t, "long_items", b.LongTerm[0].Base)
	assert.Empty(t, b.Misrouted)
}

func TestRouteDense(t *testing.T) {
	cols := []Column{
		Dense("age", 1),
		Dense("income", 1).WithRole(RoleStatic, ""),
		Dense("score", 4).WithRole(RoleSequence, ""),
	}
	b := Route(cols, nil)
	assert.Equal(t, []string{"age", "income", "score"}, names(b.Dense))
	assert.Empty(t, b.Static)
	assert.Empty(t, b.Sequence)
}

func TestBuildInputsOrderAndDedup(t *testing.T) {
	cols := []Column{
		Sparse("user_id", 10, 8),
		VarLen(Sparse("short_movie_id", 100, 8), 5, CombinerMean, "short_sess_length"),
		VarLen(Sparse("short_genres", 20, 8), 5, CombinerMean, "short_sess_length"),
		Sparse("user_id", 10, 8),
	}
	inputs := BuildInputs(cols, SideUser)
	require.Len(t, inputs, 4)
	assert.Equal(t, "user_id", inputs[0].Name)
	assert.Equal(t, "short_movie_id", inputs[1].Name)
	assert.Equal(t, 5, inputs[1].Length)
	assert.Equal(t, "short_sess_length", inputs[2].Name)
	assert.Equal(t, int64(5), inputs[2].MaxValue)
	assert.Equal(t, "short_genres", inputs[3].Name)
}

func TestBatchValidate(t *testing.T) {
	inputs := BuildInputs([]Column{
		Sparse("user_id", 10, 8),
		VarLen(Sparse("hist", 10, 8), 3, CombinerMean, "hist_len"),
	}, SideUser)

	b := Batch{
		"user_id":  {{1}, {2}},
		"hist":     {{1, 2, 0}, {3, 0, 0}},
		"hist_len": {{2}, {1}},
	}
	n, err := b.Validate(inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), b.Scalar("user_id", 1))

	missing := Batch{"user_id": {{1}}}
	_, err = missing.Validate(inputs)
	assert.True(t, errors.Is(err, ErrInvalidBatch))

	ragged := Batch{"user_id": {{1}}, "hist": {{1, 2}}, "hist_len": {{2}}}
	_, err = ragged.Validate(inputs)
	assert.True(t, errors.Is(err, ErrInvalidBatch))

	tooLong := Batch{"user_id": {{1}}, "hist": {{1, 2, 3}}, "hist_len": {{4}}}
	_, err = tooLong.Validate(inputs)
	assert.True(t, errors.Is(err, ErrInvalidBatch))
}

func TestParseRoleAndKind(t *testing.T) {
	r, err := ParseRole("short")
	require.NoError(t, err)
	assert.Equal(t, RoleShortTerm, r)
	_, err = ParseRole("bogus")
	assert.Error(t, err)

	k, err := ParseKind("varlen")
	require.NoError(t, err)
	assert.Equal(t, KindVarLenSparse, k)
	assert.Equal(t, "varlen", k.String())
}
