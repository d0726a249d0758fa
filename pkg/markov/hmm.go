package markov

import (
	"io"
	"log/slog"

	"gonum.org/v1/gonum/floats"
)

// HiddenMarkovModel decodes observation sequences into the hidden-state
// sequences most likely to have produced them.
//
// The state list fixes both the universe of states considered during decoding
// and the order they are visited in, which decides ties. States referenced by
// the tables but missing from the list are ignored.
type HiddenMarkovModel[S, O comparable] struct {
	states      []S
	initial     *WeightedVector[S]
	transitions *Chain[S]
	emissions   *Table[S, O]
	logger      *slog.Logger
}

// Result is the outcome of a Viterbi decode.
type Result[S comparable] struct {
	// Path holds one hidden state per observation.
	Path []S
	// Next is the state the best path moves to after the last observation.
	// It is the zero value when no observations were decoded.
	Next S
	// Probability is the joint probability of the best path.
	Probability float64
	// Likelihood is the total probability of the observations over all paths.
	Likelihood float64
}

// NewHiddenMarkovModel creates a decoder. Nil components behave as empty ones,
// assigning probability 0 everywhere. The state list is copied.
func NewHiddenMarkovModel[S, O comparable](states []S, initial *WeightedVector[S], transitions *Chain[S], emissions *Table[S, O]) *HiddenMarkovModel[S, O] {
	if initial == nil {
		initial = &WeightedVector[S]{}
	}
	if transitions == nil {
		transitions = NewChain[S]()
	}
	if emissions == nil {
		emissions = NewTable[S, O]()
	}
	s := make([]S, len(states))
	copy(s, states)
	return &HiddenMarkovModel[S, O]{
		states:      s,
		initial:     initial,
		transitions: transitions,
		emissions:   emissions,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the model. By default, all logs are discarded.
func (h *HiddenMarkovModel[S, O]) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// States returns a copy of the model's ordered state list.
func (h *HiddenMarkovModel[S, O]) States() []S {
	s := make([]S, len(h.states))
	copy(s, h.states)
	return s
}

// Initial returns the prior distribution over states.
func (h *HiddenMarkovModel[S, O]) Initial() *WeightedVector[S] { return h.initial }

// Transitions returns the state transition chain.
func (h *HiddenMarkovModel[S, O]) Transitions() *Chain[S] { return h.transitions }

// Emissions returns the table of observation probabilities per state.
func (h *HiddenMarkovModel[S, O]) Emissions() *Table[S, O] { return h.emissions }

// Decode returns the most probable hidden-state sequence for observations,
// one state per observation. See Viterbi.
func (h *HiddenMarkovModel[S, O]) Decode(observations []O) []S {
	return h.Viterbi(observations).Path
}

// viterbiRecord is the per-state working record of the Viterbi recurrence.
type viterbiRecord[S comparable] struct {
	total float64 // marginal probability of reaching the state
	path  []S     // best path ending in the state
	best  float64 // probability of path
}

// Viterbi runs the Viterbi algorithm over observations.
//
// Each record starts at the prior probability of its state. For every
// observation o, the record of each candidate state s is rebuilt from every
// predecessor p with the step weight
//
//	emission(o | p) * transition(s | p)
//
// keeping the predecessor with the greatest path probability. Only a strictly
// greater probability displaces an earlier predecessor, so ties go to the
// first state in the state list, and so does the final pick. All records of a
// step are computed from the previous step's records.
//
// The recurrence leaves one state beyond the last observation on every path.
// It is reported as Result.Next and trimmed from Result.Path.
//
// Probabilities are plain products and underflow towards zero on long
// sequences. Decoding never fails: observations no state can emit give a path
// of probability 0.
func (h *HiddenMarkovModel[S, O]) Viterbi(observations []O) Result[S] {
	n := len(h.states)
	if n == 0 {
		return Result[S]{}
	}

	records := make([]viterbiRecord[S], n)
	for i, s := range h.states {
		p := h.initial.Probability(s)
		records[i] = viterbiRecord[S]{total: p, path: []S{s}, best: p}
	}

	emitted := make([]float64, n)
	candidates := make([]float64, n)
	for _, o := range observations {
		for i, p := range h.states {
			emitted[i] = h.emissions.Probability(o, From(p))
		}

		next := make([]viterbiRecord[S], n)
		for j, s := range h.states {
			var total float64
			for i, p := range h.states {
				w := emitted[i] * h.transitions.Probability(s, From(p))
				total += records[i].total * w
				candidates[i] = records[i].best * w
			}
			argmax := floats.MaxIdx(candidates)
			prev := records[argmax].path
			path := make([]S, len(prev)+1)
			copy(path, prev)
			path[len(prev)] = s
			next[j] = viterbiRecord[S]{total: total, path: path, best: candidates[argmax]}
		}
		records = next
	}

	totals := make([]float64, n)
	for i, r := range records {
		candidates[i] = r.best
		totals[i] = r.total
	}
	best := records[floats.MaxIdx(candidates)]

	result := Result[S]{
		Path:        best.path[:len(best.path)-1],
		Probability: best.best,
		Likelihood:  floats.Sum(totals),
	}
	if len(observations) > 0 {
		result.Next = best.path[len(best.path)-1]
	}

	h.logger.Debug("Decode completed",
		slog.Int("observations", len(observations)),
		slog.Int("states", n),
		slog.Float64("path_probability", result.Probability),
		slog.Float64("likelihood", result.Likelihood),
	)
	return result
}
