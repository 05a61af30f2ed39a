package layers

import (
	"github.com/cnclabs/sdm/pkg/sampler"
	"github.com/cnclabs/sdm/pkg/tensor"
)

// SampledSoftmax scores a user embedding against its true item and a set
// of sampled negatives, log-Q corrected, and returns the cross entropy.
type SampledSoftmax struct {
	Temperature float64
}

// Loss computes the loss of one sample. Candidates equal to the label are
// removed as accidental hits.
func (s SampledSoftmax) Loss(items [][]float64, user []float64, label int64, cand sampler.Candidates) float64 {
	logits := make([]float64, 0, len(cand.IDs)+1)
	trueLogit := tensor.Dot(user, items[label])/s.Temperature - cand.TrueLogQ(label)
	logits = append(logits, trueLogit)
	for k, id := range cand.IDs {
		if id == label {
			continue
		}
		logits = append(logits, tensor.Dot(user, items[id])/s.Temperature-cand.LogQ[k])
	}
	return tensor.LogSumExp(logits) - trueLogit
}
