package layers

import (
	"math"

	"github.com/cnclabs/sdm/pkg/feature"
)

// Pool reduces the masked steps of seq with combiner. No valid step
// yields a zero vector.
func Pool(seq [][]float64, mask []bool, combiner feature.Combiner) []float64 {
	if len(seq) == 0 {
		return nil
	}
	dim := len(seq[0])
	out := make([]float64, dim)
	count := 0
	if combiner == feature.CombinerMax {
		for d := range out {
			out[d] = math.Inf(-1)
		}
	}
	for t, x := range seq {
		if !mask[t] {
			continue
		}
		count++
		for d, v := range x {
			if combiner == feature.CombinerMax {
				out[d] = math.Max(out[d], v)
			} else {
				out[d] += v
			}
		}
	}
	if count == 0 {
		return make([]float64, dim)
	}
	if combiner == feature.CombinerMean {
		for d := range out {
			out[d] /= float64(count)
		}
	}
	return out
}
