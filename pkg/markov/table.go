package markov

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShape is returned when bulk construction input does not line up with the
// supplied state lists.
var ErrShape = errors.New("markov: weight matrix does not match states")

// Key identifies a row of a Table: either the initial row, used when there is
// no known predecessor, or the row of a concrete source state.
type Key[S comparable] struct {
	state    S
	concrete bool
}

// Initial returns the key of the initial row.
func Initial[S comparable]() Key[S] {
	return Key[S]{}
}

// From returns the key of the row for source state s.
func From[S comparable](s S) Key[S] {
	return Key[S]{state: s, concrete: true}
}

// State returns the source state and true, or false for the initial key.
func (k Key[S]) State() (S, bool) {
	return k.state, k.concrete
}

// IsInitial reports whether k is the initial key.
func (k Key[S]) IsInitial() bool {
	return !k.concrete
}

func (k Key[S]) String() string {
	if !k.concrete {
		return "<initial>"
	}
	return fmt.Sprint(k.state)
}

// Row pairs a Key with its vector for bulk construction with NewTableFromRows.
type Row[S, D comparable] struct {
	Key    Key[S]
	Vector *WeightedVector[D]
}

// Table holds one WeightedVector of destinations per source state, plus an
// initial row for transitions with no predecessor. A source that was never set
// has no row, which is distinct from having an empty one.
type Table[S, D comparable] struct {
	initial *WeightedVector[D]
	rows    map[S]*WeightedVector[D]
	sources []S
	rng     Rand
}

// NewTable returns an empty table.
func NewTable[S, D comparable]() *Table[S, D] {
	return &Table[S, D]{
		rows: make(map[S]*WeightedVector[D]),
		rng:  DefaultRand,
	}
}

// NewTableFromRows builds a table by setting each row in order.
func NewTableFromRows[S, D comparable](rows ...Row[S, D]) *Table[S, D] {
	t := NewTable[S, D]()
	for _, row := range rows {
		t.SetRow(row.Key, row.Vector)
	}
	return t
}

// NewTableFromMatrix builds a table from a weight matrix. rows[0] is the
// initial row; rows[i] for i >= 1 is the row of sources[i-1]. Every row is
// matched positionally against dests, with missing trailing weights taking the
// uniform default. Sources beyond the end of the matrix get no row.
func NewTableFromMatrix[S, D comparable](sources []S, dests []D, rows [][]float64) (*Table[S, D], error) {
	if len(rows) > len(sources)+1 {
		return nil, fmt.Errorf("%w: %d rows for %d source states plus the initial row", ErrShape, len(rows), len(sources))
	}
	for i, row := range rows {
		if len(row) > len(dests) {
			return nil, fmt.Errorf("%w: row %d has %d weights for %d destination states", ErrShape, i, len(row), len(dests))
		}
	}

	t := NewTable[S, D]()
	for i, row := range rows {
		vector := NewWeightedVector(dests, row...)
		if i == 0 {
			t.SetRow(Initial[S](), vector)
			continue
		}
		t.SetRow(From(sources[i-1]), vector)
	}
	return t, nil
}

// NewTableFromCSV builds a table from comma-separated text, one line per
// matrix row, using the layout of NewTableFromMatrix. Trailing blank lines are
// ignored.
func NewTableFromCSV[S, D comparable](sources []S, dests []D, text string) (*Table[S, D], error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	rows := make([][]float64, len(lines))
	for i, line := range lines {
		rows[i] = ParseWeights(line)
	}
	t, err := NewTableFromMatrix(sources, dests, rows)
	if err != nil {
		return nil, fmt.Errorf("could not build table from csv: %w", err)
	}
	return t, nil
}

// Row returns the vector for key, or false if that row has never been set.
func (t *Table[S, D]) Row(key Key[S]) (*WeightedVector[D], bool) {
	state, ok := key.State()
	if !ok {
		return t.initial, t.initial != nil
	}
	row, ok := t.rows[state]
	return row, ok
}

// SetRow replaces the row for key. A nil vector removes the row.
func (t *Table[S, D]) SetRow(key Key[S], vector *WeightedVector[D]) {
	if t.rows == nil {
		t.rows = make(map[S]*WeightedVector[D])
	}
	state, ok := key.State()
	if !ok {
		t.initial = vector
		return
	}
	if vector == nil {
		if _, exists := t.rows[state]; exists {
			delete(t.rows, state)
			t.sources = removeFirst(t.sources, state)
		}
		return
	}
	if _, exists := t.rows[state]; !exists {
		t.sources = append(t.sources, state)
	}
	t.rows[state] = vector
}

// Probability returns the probability of moving to dest from key, or 0 when
// the row is absent.
func (t *Table[S, D]) Probability(dest D, key Key[S]) float64 {
	row, ok := t.Row(key)
	if !ok {
		return 0
	}
	return row.Probability(dest)
}

// Transition samples a destination from the row for key. It returns false when
// the row is absent or has nothing to draw.
func (t *Table[S, D]) Transition(key Key[S]) (D, bool) {
	row, ok := t.Row(key)
	if !ok {
		var zero D
		return zero, false
	}
	return row.SampleWith(t.rng)
}

// SetRand sets the source of randomness used by Transition. A nil Rand
// restores DefaultRand.
func (t *Table[S, D]) SetRand(r Rand) {
	if r == nil {
		r = DefaultRand
	}
	t.rng = r
}

// Sources returns the source states that have a row, in the order their rows
// were first set. The initial row is not included.
func (t *Table[S, D]) Sources() []S {
	sources := make([]S, len(t.sources))
	copy(sources, t.sources)
	return sources
}

func removeFirst[S comparable](s []S, v S) []S {
	for i := range s {
		if s[i] == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
