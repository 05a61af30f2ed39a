package feature

import (
	"github.com/pkg/errors"
)

// ErrInvalidBatch is returned when a batch does not match the declared inputs
var ErrInvalidBatch = errors.New("invalid batch")

// Side tells which tower an input belongs to
type Side int

const (
	SideUser Side = iota
	SideItem
)

func (s Side) String() string {
	if s == SideItem {
		return "item"
	}
	return "user"
}

// Input is a named model placeholder. Length is the number of values per
// sample: 1 for sparse and length inputs, MaxLen for sequences.
type Input struct {
	Name   string
	Length int
	Side   Side
	// MaxValue bounds sequence length inputs; 0 means unbounded
	MaxValue int64
}

// BuildInputs declares the inputs of columns in insertion order, skipping
// names already declared. A varlen column with a LengthName declares its
// length input right after itself.
func BuildInputs(columns []Column, side Side) []Input {
	seen := make(map[string]bool, len(columns))
	inputs := make([]Input, 0, len(columns))
	add := func(in Input) {
		if seen[in.Name] {
			return
		}
		seen[in.Name] = true
		inputs = append(inputs, in)
	}
	for _, c := range columns {
		add(Input{Name: c.Name, Length: c.Width(), Side: side})
		if c.Kind == KindVarLenSparse && c.LengthName != "" {
			add(Input{Name: c.LengthName, Length: 1, Side: side, MaxValue: int64(c.MaxLen)})
		}
	}
	return inputs
}

// Batch maps an input name to one value slice per sample
type Batch map[string][][]int64

// Size returns the number of samples, or 0 for an empty batch
func (b Batch) Size() int {
	for _, v := range b {
		return len(v)
	}
	return 0
}

// Validate checks that every input is present with a consistent batch size
// and per-sample width.
func (b Batch) Validate(inputs []Input) (int, error) {
	size := -1
	for _, in := range inputs {
		rows, ok := b[in.Name]
		if !ok {
			return 0, errors.Wrapf(ErrInvalidBatch, "missing input %q", in.Name)
		}
		if size < 0 {
			size = len(rows)
		} else if len(rows) != size {
			return 0, errors.Wrapf(ErrInvalidBatch, "input %q has %d samples, want %d", in.Name, len(rows), size)
		}
		for i, row := range rows {
			if len(row) != in.Length {
				return 0, errors.Wrapf(ErrInvalidBatch, "input %q sample %d has width %d, want %d", in.Name, i, len(row), in.Length)
			}
			if in.MaxValue > 0 && (row[0] < 0 || row[0] > in.MaxValue) {
				return 0, errors.Wrapf(ErrInvalidBatch, "input %q sample %d length %d outside [0, %d]", in.Name, i, row[0], in.MaxValue)
			}
		}
	}
	if size <= 0 {
		return 0, errors.Wrap(ErrInvalidBatch, "empty batch")
	}
	return size, nil
}

// Scalar returns the single value of input name for sample i
func (b Batch) Scalar(name string, i int) int64 {
	return b[name][i][0]
}
