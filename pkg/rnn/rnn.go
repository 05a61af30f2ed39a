package rnn

import (
	"math"
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/cnclabs/sdm/pkg/tensor"
)

// State is the recurrent state of a cell. C is nil for cells without a
// separate memory.
type State struct {
	H []float64
	C []float64
}

// Cell advances a recurrent state by one input step
type Cell interface {
	InputDim() int
	HiddenDim() int
	ZeroState() State
	Forward(state State, input []float64) State
}

// NewCell builds a cell by kind: "lstm", "gru" or "simple"
func NewCell(kind string, inputDim, hiddenDim int, rng *rand.Rand) (Cell, error) {
	switch strings.ToLower(kind) {
	case "lstm", "":
		return NewLSTMCell(inputDim, hiddenDim, rng), nil
	case "gru":
		return NewGRUCell(inputDim, hiddenDim, rng), nil
	case "simple", "rnn":
		return NewRNNCell(inputDim, hiddenDim, rng), nil
	}
	return nil, errors.Errorf("unknown rnn type %q", kind)
}

// gate holds the input and recurrent weights of one gate
type gate struct {
	Wx [][]float64 // [hiddenDim x inputDim]
	Wh [][]float64 // [hiddenDim x hiddenDim]
	B  []float64
}

func newGate(inputDim, hiddenDim int, rng *rand.Rand, bias float64) gate {
	g := gate{
		Wx: tensor.Glorot(rng, inputDim, hiddenDim),
		Wh: tensor.Glorot(rng, hiddenDim, hiddenDim),
		B:  make([]float64, hiddenDim),
	}
	for i := range g.B {
		g.B[i] = bias
	}
	return g
}

// preact computes Wx·x + Wh·h + b
func (g gate) preact(h, x []float64) []float64 {
	out := tensor.MatVec(g.Wx, x)
	tensor.AddInPlace(out, tensor.MatVec(g.Wh, h))
	tensor.AddInPlace(out, g.B)
	return out
}

// RNNCell is a simple tanh recurrent cell
type RNNCell struct {
	inputDim  int
	hiddenDim int
	g         gate
}

// NewRNNCell creates a new RNN cell
func NewRNNCell(inputDim, hiddenDim int, rng *rand.Rand) *RNNCell {
	return &RNNCell{inputDim: inputDim, hiddenDim: hiddenDim, g: newGate(inputDim, hiddenDim, rng, 0)}
}

func (c *RNNCell) InputDim() int  { return c.inputDim }
func (c *RNNCell) HiddenDim() int { return c.hiddenDim }
func (c *RNNCell) ZeroState() State {
	return State{H: make([]float64, c.hiddenDim)}
}

// Forward computes h_new = tanh(Wh * h_old + Wx * x + b)
func (c *RNNCell) Forward(state State, input []float64) State {
	h := c.g.preact(state.H, input)
	for i := range h {
		h[i] = math.Tanh(h[i])
	}
	return State{H: h}
}

// LSTMCell is a long short-term memory cell with forget bias 1
type LSTMCell struct {
	inputDim  int
	hiddenDim int

	input, forget, cell, output gate
}

// NewLSTMCell creates a new LSTM cell
func NewLSTMCell(inputDim, hiddenDim int, rng *rand.Rand) *LSTMCell {
	return &LSTMCell{
		inputDim:  inputDim,
		hiddenDim: hiddenDim,
		input:     newGate(inputDim, hiddenDim, rng, 0),
		forget:    newGate(inputDim, hiddenDim, rng, 1),
		cell:      newGate(inputDim, hiddenDim, rng, 0),
		output:    newGate(inputDim, hiddenDim, rng, 0),
	}
}

func (c *LSTMCell) InputDim() int  { return c.inputDim }
func (c *LSTMCell) HiddenDim() int { return c.hiddenDim }
func (c *LSTMCell) ZeroState() State {
	return State{H: make([]float64, c.hiddenDim), C: make([]float64, c.hiddenDim)}
}

// Forward runs one LSTM step: input, forget, cell and output gates
func (c *LSTMCell) Forward(state State, x []float64) State {
	i := c.input.preact(state.H, x)
	f := c.forget.preact(state.H, x)
	g := c.cell.preact(state.H, x)
	o := c.output.preact(state.H, x)

	next := State{H: make([]float64, c.hiddenDim), C: make([]float64, c.hiddenDim)}
	for d := 0; d < c.hiddenDim; d++ {
		next.C[d] = tensor.Sigmoid(f[d])*state.C[d] + tensor.Sigmoid(i[d])*math.Tanh(g[d])
		next.H[d] = tensor.Sigmoid(o[d]) * math.Tanh(next.C[d])
	}
	return next
}

// GRUCell is a gated recurrent unit
type GRUCell struct {
	inputDim  int
	hiddenDim int

	update, reset, cand gate
}

// NewGRUCell creates a new GRU cell
func NewGRUCell(inputDim, hiddenDim int, rng *rand.Rand) *GRUCell {
	return &GRUCell{
		inputDim:  inputDim,
		hiddenDim: hiddenDim,
		update:    newGate(inputDim, hiddenDim, rng, 0),
		reset:     newGate(inputDim, hiddenDim, rng, 0),
		cand:      newGate(inputDim, hiddenDim, rng, 0),
	}
}

func (c *GRUCell) InputDim() int  { return c.inputDim }
func (c *GRUCell) HiddenDim() int { return c.hiddenDim }
func (c *GRUCell) ZeroState() State {
	return State{H: make([]float64, c.hiddenDim)}
}

// Forward runs one GRU step with update and reset gates
func (c *GRUCell) Forward(state State, x []float64) State {
	z := c.update.preact(state.H, x)
	r := c.reset.preact(state.H, x)

	gated := make([]float64, c.hiddenDim)
	for d := range gated {
		gated[d] = tensor.Sigmoid(r[d]) * state.H[d]
	}
	n := c.cand.preact(gated, x)

	h := make([]float64, c.hiddenDim)
	for d := range h {
		zd := tensor.Sigmoid(z[d])
		h[d] = zd*state.H[d] + (1-zd)*math.Tanh(n[d])
	}
	return State{H: h}
}
