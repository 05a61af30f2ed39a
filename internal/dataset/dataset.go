// Package dataset reads samples stored as JSON lines, one object per
// sample mapping an input name to a number or an array of numbers.
package dataset

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/cnclabs/sdm/pkg/feature"
)

// maxLineSize bounds one JSON line
const maxLineSize = 16 << 20

// Load reads the samples of path
func Load(path string, inputs []feature.Input) (feature.Batch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open samples %s", path)
	}
	defer file.Close()
	return Read(file, inputs)
}

// Read decodes every line of r into a batch holding the given inputs.
// Sequences shorter than the input length are right-padded with 0.
func Read(r io.Reader, inputs []feature.Input) (feature.Batch, error) {
	batch := make(feature.Batch, len(inputs))
	for _, in := range inputs {
		batch[in.Name] = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var sample map[string]json.RawMessage
		if err := json.Unmarshal(raw, &sample); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		for _, in := range inputs {
			field, ok := sample[in.Name]
			if !ok {
				return nil, errors.Wrapf(feature.ErrInvalidBatch, "line %d: missing %q", line, in.Name)
			}
			values, err := decodeValues(field)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: %q", line, in.Name)
			}
			if len(values) > in.Length {
				return nil, errors.Wrapf(feature.ErrInvalidBatch, "line %d: %q has %d values, max %d", line, in.Name, len(values), in.Length)
			}
			row := make([]int64, in.Length)
			copy(row, values)
			batch[in.Name] = append(batch[in.Name], row)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read samples")
	}
	return batch, nil
}

// decodeValues accepts a number or an array of numbers
func decodeValues(raw json.RawMessage) ([]int64, error) {
	var list []json.Number
	if err := json.Unmarshal(raw, &list); err == nil {
		return toInts(list)
	}
	var one json.Number
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, errors.Wrap(err, "want a number or an array of numbers")
	}
	return toInts([]json.Number{one})
}

func toInts(nums []json.Number) ([]int64, error) {
	out := make([]int64, len(nums))
	for i, n := range nums {
		v, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "value %s is not an integer id", n)
		}
		out[i] = v
	}
	return out, nil
}
