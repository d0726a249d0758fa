package markov

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// WeightedVector maps a finite, insertion-ordered set of items to weights and
// supports weighted random draws. Raw weights are kept as assigned; the
// normalized view is recomputed lazily on the first read after a mutation.
//
// The zero value is an empty vector ready for use.
type WeightedVector[T comparable] struct {
	items   []T
	index   map[T]int
	weights []float64

	// Normalization cache, valid while dirty is false.
	dirty      bool
	total      float64
	normalized []float64
	cumulative []float64
}

// NewWeightedVector creates a vector over items. Weights are matched to items
// by position; items without a corresponding weight get the uniform default
// 1/len(items). A repeated item keeps its first position and its last weight.
func NewWeightedVector[T comparable](items []T, weights ...float64) *WeightedVector[T] {
	v := &WeightedVector[T]{}
	if len(items) == 0 {
		return v
	}
	defaultWeight := 1.0 / float64(len(items))
	for i, item := range items {
		w := defaultWeight
		if i < len(weights) {
			w = weights[i]
		}
		v.SetWeight(item, w)
	}
	return v
}

// NewWeightedVectorFromCSV creates a vector over items with weights taken
// positionally from a single line of comma-separated numbers. See ParseWeights
// for how tokens are read.
func NewWeightedVectorFromCSV[T comparable](items []T, line string) *WeightedVector[T] {
	return NewWeightedVector(items, ParseWeights(line)...)
}

// ParseWeights splits a line of comma-separated numeric tokens. Surrounding
// whitespace is ignored and a token that is not a number reads as 0.
func ParseWeights(line string) []float64 {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	tokens := strings.Split(line, ",")
	weights := make([]float64, len(tokens))
	for i, token := range tokens {
		w, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
		if err != nil {
			continue
		}
		weights[i] = w
	}
	return weights
}

// SetWeight assigns the raw weight of item, appending it if it is new.
// Weights are not validated; negative or non-finite values are the caller's
// responsibility.
func (v *WeightedVector[T]) SetWeight(item T, w float64) {
	if v.index == nil {
		v.index = make(map[T]int)
	}
	if i, ok := v.index[item]; ok {
		v.weights[i] = w
	} else {
		v.index[item] = len(v.items)
		v.items = append(v.items, item)
		v.weights = append(v.weights, w)
	}
	v.dirty = true
}

// Probability returns the normalized weight of item, or 0 if item is unknown.
func (v *WeightedVector[T]) Probability(item T) float64 {
	i, ok := v.index[item]
	if !ok {
		return 0
	}
	v.normalizeIfNeeded()
	return v.normalized[i]
}

// Weight returns the raw weight assigned to item, or 0 if item is unknown.
func (v *WeightedVector[T]) Weight(item T) float64 {
	if i, ok := v.index[item]; ok {
		return v.weights[i]
	}
	return 0
}

// Total returns the sum of the raw weights.
func (v *WeightedVector[T]) Total() float64 {
	v.normalizeIfNeeded()
	return v.total
}

// Len returns the number of known items.
func (v *WeightedVector[T]) Len() int {
	return len(v.items)
}

// Items returns a copy of the known items in insertion order.
func (v *WeightedVector[T]) Items() []T {
	items := make([]T, len(v.items))
	copy(items, v.items)
	return items
}

// Sample draws an item using DefaultRand. See SampleWith.
func (v *WeightedVector[T]) Sample() (T, bool) {
	return v.SampleWith(DefaultRand)
}

// SampleWith draws a value r from rng and returns the first item, in insertion
// order, whose cumulative normalized weight strictly exceeds r. When rounding
// leaves every cumulative sum at or below r the last item is returned.
//
// The second result is false when the vector has no items, or when its raw
// weights sum to zero: such a vector has no distribution to draw from.
func (v *WeightedVector[T]) SampleWith(rng Rand) (T, bool) {
	var zero T
	if len(v.items) == 0 {
		return zero, false
	}
	v.normalizeIfNeeded()
	if v.total == 0 {
		return zero, false
	}
	if rng == nil {
		rng = DefaultRand
	}
	r := rng.Float64()
	for i, sum := range v.cumulative {
		if sum > r {
			return v.items[i], true
		}
	}
	return v.items[len(v.items)-1], true
}

func (v *WeightedVector[T]) normalizeIfNeeded() {
	if v.dirty || len(v.normalized) != len(v.weights) {
		v.normalize()
		v.dirty = false
	}
}

// normalize scales the raw weights by 1/total. A zero total scales by 0, which
// collapses every normalized weight to 0.
func (v *WeightedVector[T]) normalize() {
	v.total = floats.Sum(v.weights)
	var normalizer float64
	if v.total != 0 {
		normalizer = 1 / v.total
	}
	v.normalized = resize(v.normalized, len(v.weights))
	floats.ScaleTo(v.normalized, normalizer, v.weights)
	v.cumulative = resize(v.cumulative, len(v.weights))
	floats.CumSum(v.cumulative, v.normalized)
}

func resize(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}
