package markov

import (
	"math"
	"testing"
)

// fixedRand replays a fixed sequence of values, wrapping around at the end.
type fixedRand struct {
	values []float64
	next   int
}

func (f *fixedRand) Float64() float64 {
	if len(f.values) == 0 {
		return 0
	}
	v := f.values[f.next%len(f.values)]
	f.next++
	return v
}

func assertNear(t *testing.T, name string, got, want, delta float64) {
	t.Helper()
	if math.Abs(got-want) > delta {
		t.Errorf("%s = %v, want %v (±%v)", name, got, want, delta)
	}
}

// sampleFraction draws n items from v and returns the fraction equal to item.
func sampleFraction[T comparable](v *WeightedVector[T], item T, n int, rng Rand) float64 {
	count := 0
	for i := 0; i < n; i++ {
		if got, ok := v.SampleWith(rng); ok && got == item {
			count++
		}
	}
	return float64(count) / float64(n)
}

// newHealthModel builds the two-state health model from the Viterbi article
// on Wikipedia.
func newHealthModel() *HiddenMarkovModel[string, string] {
	states := []string{"healthy", "sick"}
	initial := NewWeightedVector(states, 0.6, 0.4)

	transitions := NewChainFromTable(NewTableFromRows(
		Row[string, string]{Key: From("healthy"), Vector: NewWeightedVector(states, 0.7, 0.3)},
		Row[string, string]{Key: From("sick"), Vector: NewWeightedVector(states, 0.4, 0.6)},
	))

	symptoms := []string{"normal", "cold", "dizzy"}
	emissions := NewTableFromRows(
		Row[string, string]{Key: From("healthy"), Vector: NewWeightedVector(symptoms, 0.5, 0.4, 0.1)},
		Row[string, string]{Key: From("sick"), Vector: NewWeightedVector(symptoms, 0.1, 0.3, 0.6)},
	)

	return NewHiddenMarkovModel(states, initial, transitions, emissions)
}
