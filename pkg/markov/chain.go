package markov

import (
	"io"
	"log/slog"
)

// Chain is a Markov chain: a Table whose destinations are drawn from the same
// state space as its sources.
type Chain[S comparable] struct {
	*Table[S, S]
	logger *slog.Logger
}

// NewChain returns a chain with no rows.
func NewChain[S comparable]() *Chain[S] {
	return NewChainFromTable(NewTable[S, S]())
}

// NewChainFromTable wraps an existing table. The chain shares the table's
// rows; it does not copy them.
func NewChainFromTable[S comparable](t *Table[S, S]) *Chain[S] {
	if t == nil {
		t = NewTable[S, S]()
	}
	return &Chain[S]{
		Table:  t,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// NewChainFromMatrix builds a chain over states from a weight matrix laid out
// as for NewTableFromMatrix, with states serving as both sources and
// destinations.
func NewChainFromMatrix[S comparable](states []S, rows [][]float64) (*Chain[S], error) {
	t, err := NewTableFromMatrix(states, states, rows)
	if err != nil {
		return nil, err
	}
	return NewChainFromTable(t), nil
}

// SetLogger sets the logger for the Chain. By default, all logs are discarded.
func (c *Chain[S]) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// generateOptions holds the optional parameters of Generate.
type generateOptions[S comparable] struct {
	start    S
	hasStart bool
	stop     func([]S) bool
}

// GenerateOption configures a call to Generate.
type GenerateOption[S comparable] func(*generateOptions[S])

// WithStart makes s the first state of the generated chain. Without it the
// first state is drawn from the initial row.
func WithStart[S comparable](s S) GenerateOption[S] {
	return func(o *generateOptions[S]) {
		o.start = s
		o.hasStart = true
	}
}

// WithStopCondition ends generation as soon as stop reports true for the
// chain built so far. It is checked before every draw, including the first.
func WithStopCondition[S comparable](stop func([]S) bool) GenerateOption[S] {
	return func(o *generateOptions[S]) { o.stop = stop }
}

// Generate walks the chain, returning at most maxLength states unless a start
// state alone already exceeds it. Each step draws the next state from the row
// of the last state, or from the initial row while the chain is empty. A
// missing row ends the walk.
func (c *Chain[S]) Generate(maxLength int, opts ...GenerateOption[S]) []S {
	options := &generateOptions[S]{}
	for _, opt := range opts {
		opt(options)
	}

	var result []S
	if options.hasStart {
		result = append(result, options.start)
	}

	for {
		if options.stop != nil && options.stop(result) {
			c.logger.Debug("Generation terminated by stop condition",
				slog.Int("generated_length", len(result)),
			)
			break
		}
		if len(result) >= maxLength {
			c.logger.Debug("Generation terminated by reaching maxLength",
				slog.Int("max_length", maxLength),
				slog.Int("generated_length", len(result)),
			)
			break
		}

		key := Initial[S]()
		if len(result) > 0 {
			key = From(result[len(result)-1])
		}
		next, ok := c.Transition(key)
		if !ok {
			c.logger.Debug("Generation terminated due to dead-end",
				slog.String("last_key", key.String()),
				slog.Int("generated_length", len(result)),
			)
			break
		}
		result = append(result, next)
	}

	return result
}
