/*
Package markov provides small, generic building blocks for discrete
probabilistic models in Go.

A WeightedVector is a distribution over a finite set of items that normalizes
itself lazily and supports weighted random draws. A Table maps each source
state, plus an initial "no predecessor" row, to a WeightedVector of
destinations. A Chain is a Table over a single state space that can generate
random walks, and a HiddenMarkovModel combines a Chain with an emission Table
to decode observation sequences with the Viterbi algorithm.

Sampling draws from a Rand, which defaults to the process-wide math/rand/v2
generator and can be replaced for deterministic runs.

None of the types are safe for concurrent mutation.
*/
package markov
