package tensor

import (
	"math"

	"github.com/pkg/errors"
)

// Activation is an element-wise non-linearity
type Activation func(float64) float64

func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func relu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func linear(x float64) float64 { return x }

// ParseActivation resolves an activation by its Keras name
func ParseActivation(name string) (Activation, error) {
	switch name {
	case "tanh":
		return math.Tanh, nil
	case "sigmoid":
		return Sigmoid, nil
	case "relu":
		return relu, nil
	case "linear", "":
		return linear, nil
	}
	return nil, errors.Errorf("unknown activation %q", name)
}
