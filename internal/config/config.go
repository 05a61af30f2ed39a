// Package config loads an SDM model definition from YAML.
package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cnclabs/sdm/internal/models/sdm"
	"github.com/cnclabs/sdm/pkg/feature"
)

// Column is the YAML form of a feature column
type Column struct {
	Name           string `yaml:"name"`
	Kind           string `yaml:"kind"`
	VocabularySize int    `yaml:"vocabulary_size"`
	EmbeddingDim   int    `yaml:"embedding_dim"`
	EmbeddingName  string `yaml:"embedding_name"`
	Dimension      int    `yaml:"dimension"`
	MaxLen         int    `yaml:"maxlen"`
	Combiner       string `yaml:"combiner"`
	LengthName     string `yaml:"length_name"`
	Role           string `yaml:"role"`
	Base           string `yaml:"base"`
}

// File is a model definition
type File struct {
	Features struct {
		User    []Column `yaml:"user"`
		Item    []Column `yaml:"item"`
		History []string `yaml:"history"`
	} `yaml:"features"`
	Model sdm.Params `yaml:"model"`
}

// Load reads and parses the file at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes a model definition. Model fields left out keep the
// sdm.DefaultParams values.
func Parse(data []byte) (*File, error) {
	f := &File{Model: sdm.DefaultParams()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return f, nil
}

// Columns converts the user and item sections
func (f *File) Columns() (user, item []feature.Column, err error) {
	if user, err = convert(f.Features.User); err != nil {
		return nil, nil, errors.Wrap(err, "user features")
	}
	if item, err = convert(f.Features.Item); err != nil {
		return nil, nil, errors.Wrap(err, "item features")
	}
	return user, item, nil
}

func convert(cols []Column) ([]feature.Column, error) {
	out := make([]feature.Column, 0, len(cols))
	for _, c := range cols {
		if c.Name == "" {
			return nil, errors.New("feature without a name")
		}
		kind, err := feature.ParseKind(c.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %q", c.Name)
		}
		role, err := feature.ParseRole(c.Role)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %q", c.Name)
		}

		var col feature.Column
		switch kind {
		case feature.KindDense:
			col = feature.Dense(c.Name, c.Dimension)
		case feature.KindVarLenSparse:
			combiner := feature.Combiner(c.Combiner)
			if c.Combiner == "" {
				combiner = feature.CombinerMean
			}
			if !combiner.Valid() {
				return nil, errors.Errorf("feature %q: unknown combiner %q", c.Name, c.Combiner)
			}
			if c.MaxLen < 1 {
				return nil, errors.Errorf("feature %q: maxlen must be positive", c.Name)
			}
			col = feature.VarLen(feature.Sparse(c.Name, c.VocabularySize, c.EmbeddingDim), c.MaxLen, combiner, c.LengthName)
		default:
			col = feature.Sparse(c.Name, c.VocabularySize, c.EmbeddingDim)
		}
		col.EmbeddingName = c.EmbeddingName
		col.Role = role
		col.Base = c.Base
		out = append(out, col)
	}
	return out, nil
}
