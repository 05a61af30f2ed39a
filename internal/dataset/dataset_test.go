package dataset

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/sdm/pkg/feature"
)

var inputs = []feature.Input{
	{Name: "user_id", Length: 1},
	{Name: "hist", Length: 3},
}

func TestRead(t *testing.T) {
	data := `{"user_id": 4, "hist": [1, 2]}

{"user_id": [5], "hist": [3, 4, 5], "ignored": "x"}
`
	batch, err := Read(strings.NewReader(data), inputs)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{4}, {5}}, batch["user_id"])
	assert.Equal(t, [][]int64{{1, 2, 0}, {3, 4, 5}}, batch["hist"])
	assert.Equal(t, 2, batch.Size())
}

func TestReadErrors(t *testing.T) {
	cases := map[string]string{
		"missing":  `{"user_id": 4}`,
		"too long": `{"user_id": 4, "hist": [1, 2, 3, 4]}`,
		"float":    `{"user_id": 4.5, "hist": []}`,
		"string":   `{"user_id": "abc", "hist": []}`,
		"json":     `{"user_id": `,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(line), inputs)
			assert.Error(t, err)
		})
	}

	_, err := Read(strings.NewReader(`{"user_id": 1}`), inputs)
	assert.True(t, errors.Is(err, feature.ErrInvalidBatch))
}
