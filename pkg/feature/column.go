package feature

import (
	"fmt"
	"strings"
)

// Kind is the input type of a feature column
type Kind int

const (
	KindSparse Kind = iota
	KindDense
	KindVarLenSparse
)

func (k Kind) String() string {
	switch k {
	case KindSparse:
		return "sparse"
	case KindDense:
		return "dense"
	case KindVarLenSparse:
		return "varlen"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses the config spelling of a kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "sparse", "":
		return KindSparse, nil
	case "dense":
		return KindDense, nil
	case "varlen", "varlen_sparse":
		return KindVarLenSparse, nil
	}
	return 0, fmt.Errorf("unknown feature kind %q", s)
}

// Combiner reduces a sequence of embeddings to one vector
type Combiner string

const (
	CombinerSum  Combiner = "sum"
	CombinerMean Combiner = "mean"
	CombinerMax  Combiner = "max"
)

// Valid reports whether c is a known combiner
func (c Combiner) Valid() bool {
	switch c {
	case CombinerSum, CombinerMean, CombinerMax:
		return true
	}
	return false
}

// Role tells the router which path a user column feeds.
// RoleAuto infers the role from the prefer_/short_ naming convention.
type Role int

const (
	RoleAuto Role = iota
	RoleStatic
	RoleLongTerm
	RoleShortTerm
	RoleSequence
)

func (r Role) String() string {
	switch r {
	case RoleAuto:
		return "auto"
	case RoleStatic:
		return "static"
	case RoleLongTerm:
		return "long_term"
	case RoleShortTerm:
		return "short_term"
	case RoleSequence:
		return "sequence"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// ParseRole parses the config spelling of a role
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return RoleAuto, nil
	case "static":
		return RoleStatic, nil
	case "long_term", "prefer":
		return RoleLongTerm, nil
	case "short_term", "short":
		return RoleShortTerm, nil
	case "sequence":
		return RoleSequence, nil
	}
	return 0, fmt.Errorf("unknown feature role %q", s)
}

// Column describes one named model input field
type Column struct {
	Name           string
	Kind           Kind
	VocabularySize int
	EmbeddingDim   int
	// EmbeddingName selects the embedding table; columns with the same
	// EmbeddingName share one table. Empty means Name.
	EmbeddingName string

	// Dense only
	Dimension int

	// VarLenSparse only
	MaxLen     int
	Combiner   Combiner
	LengthName string

	Role Role
	// Base is the history feature this column observes, e.g. "movie_id"
	// for "prefer_movie_id". Set by the router when empty.
	Base string
}

// Sparse returns a categorical column with one id per sample
func Sparse(name string, vocabularySize, embeddingDim int) Column {
	return Column{
		Name:           name,
		Kind:           KindSparse,
		VocabularySize: vocabularySize,
		EmbeddingDim:   embeddingDim,
	}
}

// Dense returns a numeric column
func Dense(name string, dimension int) Column {
	return Column{Name: name, Kind: KindDense, Dimension: dimension}
}

// VarLen turns a sparse column into a right-padded id sequence.
// lengthName may be empty when the sequence has no length input.
func VarLen(sparse Column, maxLen int, combiner Combiner, lengthName string) Column {
	c := sparse
	c.Kind = KindVarLenSparse
	c.MaxLen = maxLen
	c.Combiner = combiner
	c.LengthName = lengthName
	return c
}

// WithEmbeddingName returns a copy of c backed by the named table
func (c Column) WithEmbeddingName(name string) Column {
	c.EmbeddingName = name
	return c
}

// WithRole returns a copy of c with an explicit role and base name
func (c Column) WithRole(role Role, base string) Column {
	c.Role = role
	c.Base = base
	return c
}

// Table returns the embedding table name of c
func (c Column) Table() string {
	if c.EmbeddingName != "" {
		return c.EmbeddingName
	}
	return c.Name
}

// Width is the number of values one sample carries for c
func (c Column) Width() int {
	switch c.Kind {
	case KindVarLenSparse:
		return c.MaxLen
	case KindDense:
		return c.Dimension
	}
	return 1
}
