// Package sdm assembles the Sequential Deep Matching model (Lv et al.,
// "SDM: Sequential Deep Matching Model for Online Large-scale Recommender
// System", CIKM 2019).
package sdm

import (
	"math/rand"
	"runtime"

	"github.com/pkg/errors"

	"github.com/cnclabs/sdm/pkg/feature"
	"github.com/cnclabs/sdm/pkg/layers"
	"github.com/cnclabs/sdm/pkg/logger"
	"github.com/cnclabs/sdm/pkg/rnn"
	"github.com/cnclabs/sdm/pkg/sampler"
)

// Result is the assembled model with the handles needed to build a
// retrieval index after training.
type Result struct {
	Model         *Model
	UserInputs    []feature.Input
	ItemInputs    []feature.Input
	UserEmbedding *Head
	ItemEmbedding *Head
}

// Build validates the feature columns, routes the user columns and wires
// the SDM towers.
func Build(userColumns, itemColumns []feature.Column, history []string, params Params, log *logger.Logger) (*Result, error) {
	log = logger.OrNop(log)

	if len(itemColumns) > 1 {
		return nil, errors.Wrapf(ErrMultipleItemFeatures, "got %d item features", len(itemColumns))
	}
	if len(itemColumns) == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "no item feature")
	}
	buckets := feature.Route(userColumns, history)
	if len(buckets.Dense) != 0 {
		return nil, errors.Wrapf(ErrDenseUserFeature, "dense column %q", buckets.Dense[0].Name)
	}
	if err := validateRoles(buckets); err != nil {
		return nil, err
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	item := itemColumns[0]
	if err := validateItem(item, params.Units); err != nil {
		return nil, err
	}
	preferLength, err := validateHistory(buckets.LongTerm, "long-term", true, params.Units)
	if err != nil {
		return nil, err
	}
	shortLength, err := validateHistory(buckets.ShortTerm, "short-term", false, params.Units)
	if err != nil {
		return nil, err
	}
	if len(buckets.Static)+len(buckets.Sequence) == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "no static or sequence user feature for the user profile")
	}
	for _, name := range buckets.Misrouted {
		log.Warn("history-prefixed feature not in history list, pooled as a plain sequence", "feature", name, "history", history)
	}

	userInputs := feature.BuildInputs(userColumns, feature.SideUser)
	itemInputs := feature.BuildInputs(itemColumns, feature.SideItem)
	declared := make(map[string]bool, len(userInputs))
	for _, in := range userInputs {
		declared[in.Name] = true
	}
	for _, in := range itemInputs {
		if declared[in.Name] {
			return nil, errors.Wrapf(ErrInvalidConfig, "input %q declared by both user and item features", in.Name)
		}
	}

	workers := params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	rng := rand.New(rand.NewSource(params.Seed))
	m := &Model{
		params:       params,
		workers:      workers,
		userInputs:   userInputs,
		itemInputs:   itemInputs,
		item:         item,
		static:       buckets.Static,
		sequence:     buckets.Sequence,
		longTerm:     buckets.LongTerm,
		shortTerm:    buckets.ShortTerm,
		preferLength: preferLength,
		shortLength:  shortLength,
		softmax:      layers.SampledSoftmax{Temperature: params.Temperature},
		rng:          rng,
	}

	if err := m.buildTables(append(append([]feature.Column{}, userColumns...), item), rng); err != nil {
		return nil, err
	}
	if err := m.buildLayers(rng); err != nil {
		return nil, err
	}
	smp, err := sampler.New(params.Sampler, item.VocabularySize)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	m.sampler = smp

	log.Info("Model Setting",
		"units", params.Units,
		"rnn_type", params.RNNType,
		"rnn_layers", params.RNNLayers,
		"rnn_num_res", params.RNNNumRes,
		"num_head", params.NumHead,
		"dropout_rate", params.DropoutRate,
		"l2_reg_embedding", params.L2RegEmbedding,
		"dnn_activation", params.Activation,
		"temperature", params.Temperature,
		"positional_encoding", params.PositionalEncoding,
		"sampler", string(smp.Kind()),
		"num_sampled", params.Sampler.NumSampled,
		"seed", params.Seed,
	)
	log.Info("Feature Routing",
		"static", columnNames(buckets.Static),
		"sequence", columnNames(buckets.Sequence),
		"prefer", columnNames(buckets.LongTerm),
		"short", columnNames(buckets.ShortTerm),
		"item", item.Name,
		"tables", len(m.tables),
	)

	return &Result{
		Model:         m,
		UserInputs:    userInputs,
		ItemInputs:    itemInputs,
		UserEmbedding: m.userHead(),
		ItemEmbedding: m.itemHead(),
	}, nil
}

func validateItem(item feature.Column, units int) error {
	if item.Kind != feature.KindSparse {
		return errors.Wrapf(ErrInvalidConfig, "item feature %q must be sparse, got %s", item.Name, item.Kind)
	}
	if item.VocabularySize < 2 {
		return errors.Wrapf(ErrInvalidConfig, "item feature %q needs a vocabulary of at least 2, got %d", item.Name, item.VocabularySize)
	}
	if item.EmbeddingDim != units {
		return errors.Wrapf(ErrInvalidConfig, "item embedding dim %d must equal units %d", item.EmbeddingDim, units)
	}
	return nil
}

// validateRoles checks that explicitly routed columns fit their bucket:
// static columns are single ids, pooled sequence columns are varlen.
func validateRoles(b feature.Buckets) error {
	for _, c := range b.Static {
		if c.Kind != feature.KindSparse {
			return errors.Wrapf(ErrInvalidConfig, "static feature %q must be sparse, got %s", c.Name, c.Kind)
		}
	}
	for _, c := range b.Sequence {
		if c.Kind != feature.KindVarLenSparse {
			return errors.Wrapf(ErrInvalidConfig, "sequence feature %q must be varlen, got %s", c.Name, c.Kind)
		}
	}
	return nil
}

// validateHistory checks one history bucket and returns its length input
func validateHistory(cols []feature.Column, label string, matchUnits bool, units int) (string, error) {
	if len(cols) == 0 {
		return "", errors.Wrapf(ErrInvalidConfig, "no %s history feature", label)
	}
	first := cols[0]
	for _, c := range cols {
		if c.Kind != feature.KindVarLenSparse {
			return "", errors.Wrapf(ErrInvalidConfig, "%s feature %q must be a sequence", label, c.Name)
		}
		if c.LengthName == "" {
			return "", errors.Wrapf(ErrInvalidConfig, "%s feature %q has no length input", label, c.Name)
		}
		if c.LengthName != first.LengthName || c.MaxLen != first.MaxLen {
			return "", errors.Wrapf(ErrInvalidConfig, "%s features %q and %q disagree on length input or max length", label, first.Name, c.Name)
		}
		if matchUnits && c.EmbeddingDim != units {
			return "", errors.Wrapf(ErrInvalidConfig, "%s feature %q embedding dim %d must equal units %d", label, c.Name, c.EmbeddingDim, units)
		}
	}
	return first.LengthName, nil
}

// buildTables creates one embedding table per embedding name
func (m *Model) buildTables(cols []feature.Column, rng *rand.Rand) error {
	m.tables = make(map[string]*layers.Embedding)
	owner := make(map[string]feature.Column)
	for _, c := range cols {
		if c.Kind == feature.KindDense {
			continue
		}
		if c.VocabularySize < 1 || c.EmbeddingDim < 1 {
			return errors.Wrapf(ErrInvalidConfig, "feature %q needs positive vocabulary size and embedding dim", c.Name)
		}
		name := c.Table()
		if prev, ok := owner[name]; ok {
			if prev.VocabularySize != c.VocabularySize || prev.EmbeddingDim != c.EmbeddingDim {
				return errors.Wrapf(ErrInvalidConfig, "features %q and %q share table %q with different shapes", prev.Name, c.Name, name)
			}
			continue
		}
		owner[name] = c
		m.tableOrder = append(m.tableOrder, name)
		m.tables[name] = layers.NewEmbedding(name, c.VocabularySize, c.EmbeddingDim, m.params.L2RegEmbedding, rng)
	}
	return nil
}

func (m *Model) buildLayers(rng *rand.Rand) error {
	p := m.params
	var err error

	profileDim := 0
	for _, c := range m.static {
		profileDim += c.EmbeddingDim
	}
	for _, c := range m.sequence {
		profileDim += c.EmbeddingDim
	}
	if m.userProfile, err = layers.NewDense("user_emb_output", profileDim, p.Units, p.Activation, rng); err != nil {
		return err
	}

	for _, c := range m.longTerm {
		att, err := layers.NewAttentionSequencePooling("prefer_"+c.Base, c.EmbeddingDim, p.AttentionHiddenUnits, "sigmoid", false, rng)
		if err != nil {
			return err
		}
		m.preferAttention = append(m.preferAttention, att)
	}
	if m.preferOutput, err = layers.NewDense("prefer_output", len(m.longTerm)*p.Units, p.Units, p.Activation, rng); err != nil {
		return err
	}

	shortDim := 0
	for _, c := range m.shortTerm {
		shortDim += c.EmbeddingDim
	}
	if m.shortInput, err = layers.NewDense("short_emb_input", shortDim, p.Units, p.Activation, rng); err != nil {
		return err
	}
	if m.shortRNN, err = rnn.NewMultiRNN(p.RNNType, p.Units, p.Units, p.RNNLayers, p.RNNNumRes, p.DropoutRate, rng); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if m.shortSelfAttention, err = layers.NewSelfMultiHeadAttention(p.Units, p.Units, p.NumHead, p.DropoutRate, true, true, true, p.PositionalEncoding, rng); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if m.shortUserAttention, err = layers.NewUserAttention(p.Units, p.Units, p.Activation, true, rng); err != nil {
		return err
	}
	m.gate, err = layers.NewGate(p.Units, rng)
	return err
}

func columnNames(cols []feature.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
