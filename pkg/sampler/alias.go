package sampler

import (
	"math"
	"math/rand"
)

// distort returns counts^power normalised to a distribution. Zero or missing
// counts get probability 0; all-zero counts fall back to uniform.
func distort(counts []float64, power float64) []float64 {
	probs := make([]float64, len(counts))
	sum := 0.0
	for id, c := range counts {
		if c > 0 {
			probs[id] = math.Pow(c, power)
			sum += probs[id]
		}
	}
	for id := range probs {
		if sum == 0 {
			probs[id] = 1 / float64(len(probs))
		} else {
			probs[id] /= sum
		}
	}
	return probs
}

// unigramTable draws item ids from a fixed distribution in O(1) with
// Vose's alias method.
type unigramTable struct {
	probs  []float64
	accept []float64 // chance of keeping the slot id rather than its alias
	alias  []int64
}

func newUnigramTable(counts []float64, power float64) *unigramTable {
	probs := distort(counts, power)
	n := len(probs)
	t := &unigramTable{probs: probs, accept: make([]float64, n), alias: make([]int64, n)}

	// scaled mass per slot; slots under 1 borrow from slots over 1
	mass := make([]float64, n)
	var under, over []int64
	for id, p := range probs {
		mass[id] = p * float64(n)
		t.alias[id] = int64(id)
		if mass[id] < 1 {
			under = append(under, int64(id))
		} else {
			over = append(over, int64(id))
		}
	}
	for len(under) > 0 && len(over) > 0 {
		lo, hi := under[len(under)-1], over[len(over)-1]
		under, over = under[:len(under)-1], over[:len(over)-1]
		t.accept[lo], t.alias[lo] = mass[lo], hi
		mass[hi] -= 1 - mass[lo]
		if mass[hi] < 1 {
			under = append(under, hi)
		} else {
			over = append(over, hi)
		}
	}
	// leftovers are full slots up to rounding
	for _, id := range append(under, over...) {
		t.accept[id] = 1
	}
	return t
}

func (t *unigramTable) draw(rng *rand.Rand) int64 {
	slot := rng.Intn(len(t.accept))
	if rng.Float64() < t.accept[slot] {
		return int64(slot)
	}
	return t.alias[slot]
}

// candidates draws n distinct ids. Their LogQ is the log probability each
// shows up in the draws actually made.
func (t *unigramTable) candidates(n int, rng *rand.Rand) Candidates {
	ids, tries := drawUnique(n, func() int64 { return t.draw(rng) })
	logQ := make([]float64, len(ids))
	for k, id := range ids {
		logQ[k] = expectedLogCount(t.probs[id], tries)
	}
	probs := t.probs
	return Candidates{
		IDs:  ids,
		LogQ: logQ,
		trueLogQ: func(id int64) float64 {
			return expectedLogCount(probs[id], tries)
		},
	}
}
