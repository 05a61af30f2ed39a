package sdm

import (
	"github.com/pkg/errors"

	"github.com/cnclabs/sdm/pkg/sampler"
	"github.com/cnclabs/sdm/pkg/tensor"
)

var (
	// ErrMultipleItemFeatures is returned when more than one item column is given
	ErrMultipleItemFeatures = errors.New("SDM supports only one item feature like item_id")
	// ErrDenseUserFeature is returned when a user column is dense
	ErrDenseUserFeature = errors.New("SDM does not support dense user features")
	// ErrInvalidConfig wraps every other structural configuration problem
	ErrInvalidConfig = errors.New("invalid SDM config")
)

// Params are the SDM hyperparameters
type Params struct {
	Units          int            `yaml:"units"`
	RNNLayers      int            `yaml:"rnn_layers"`
	RNNNumRes      int            `yaml:"rnn_num_res"`
	RNNType        string         `yaml:"rnn_type"`
	DropoutRate    float64        `yaml:"dropout_rate"`
	NumHead        int            `yaml:"num_head"`
	L2RegEmbedding float64        `yaml:"l2_reg_embedding"`
	Activation     string         `yaml:"dnn_activation"`
	Temperature    float64        `yaml:"temperature"`
	Sampler        sampler.Config `yaml:"sampler"`
	Seed           int64          `yaml:"seed"`
	// AttentionHiddenUnits sizes the long-term attention pooling MLP
	AttentionHiddenUnits []int `yaml:"att_hidden_units"`
	// PositionalEncoding adds sinusoidal positions before short-term self-attention
	PositionalEncoding bool `yaml:"positional_encoding"`
	// Workers bounds the goroutines evaluating a batch; <= 0 means NumCPU
	Workers int `yaml:"workers"`
}

// DefaultParams returns the reference SDM setting
func DefaultParams() Params {
	return Params{
		Units:                64,
		RNNLayers:            2,
		RNNNumRes:            1,
		RNNType:              "lstm",
		DropoutRate:          0.2,
		NumHead:              4,
		L2RegEmbedding:       1e-6,
		Activation:           "tanh",
		Temperature:          0.05,
		Sampler:              sampler.Config{Kind: sampler.Uniform, NumSampled: 5},
		Seed:                 1024,
		AttentionHiddenUnits: []int{80, 40},
	}
}

func (p Params) validate() error {
	if p.Units < 1 {
		return errors.Wrapf(ErrInvalidConfig, "units must be positive, got %d", p.Units)
	}
	if p.RNNLayers < 1 {
		return errors.Wrapf(ErrInvalidConfig, "rnn_layers must be positive, got %d", p.RNNLayers)
	}
	if p.RNNNumRes < 0 || p.RNNNumRes > p.RNNLayers {
		return errors.Wrapf(ErrInvalidConfig, "rnn_num_res %d outside [0, %d]", p.RNNNumRes, p.RNNLayers)
	}
	if p.NumHead < 1 || p.Units%p.NumHead != 0 {
		return errors.Wrapf(ErrInvalidConfig, "units %d not divisible by num_head %d", p.Units, p.NumHead)
	}
	if p.DropoutRate < 0 || p.DropoutRate >= 1 {
		return errors.Wrapf(ErrInvalidConfig, "dropout_rate %g outside [0, 1)", p.DropoutRate)
	}
	if p.L2RegEmbedding < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative l2_reg_embedding %g", p.L2RegEmbedding)
	}
	if p.Temperature <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "temperature must be positive, got %g", p.Temperature)
	}
	if _, err := tensor.ParseActivation(p.Activation); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	for _, u := range p.AttentionHiddenUnits {
		if u < 1 {
			return errors.Wrapf(ErrInvalidConfig, "att_hidden_units must be positive, got %v", p.AttentionHiddenUnits)
		}
	}
	return nil
}
