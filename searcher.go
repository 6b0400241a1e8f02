package zen

import (
	"fmt"
	"math/rand"
)

// Searcher represents a strategy for choosing the next path state to explore.
type Searcher interface {
	// Returns the next state to explore. Returns nil when exhausted.
	SelectState() *PathState

	// Adds a state to the current searcher.
	AddState(state *PathState)
}

// Searcher names used in configuration.
const (
	SearcherDFS    = "dfs"
	SearcherBFS    = "bfs"
	SearcherRandom = "random"
)

// NewSearcher returns a searcher by name. The seed is only used by the
// random searcher.
func NewSearcher(name string, seed int64) (Searcher, error) {
	switch name {
	case "", SearcherDFS:
		return NewDFSSearcher(), nil
	case SearcherBFS:
		return NewBFSSearcher(), nil
	case SearcherRandom:
		return NewRandomSearcher(rand.New(rand.NewSource(seed))), nil
	default:
		return nil, fmt.Errorf("unknown searcher: %q", name)
	}
}

// DFSSearcher represents a searcher with a depth-first search strategy.
type DFSSearcher struct {
	states []*PathState
}

// NewDFSSearcher returns a new instance of DFSSearcher.
func NewDFSSearcher() *DFSSearcher {
	return &DFSSearcher{}
}

// SelectState returns the most recently added state.
func (s *DFSSearcher) SelectState() *PathState {
	if len(s.states) == 0 {
		return nil
	}
	state := s.states[len(s.states)-1]
	s.states = s.states[:len(s.states)-1]
	return state
}

// AddState adds a new state to the searcher.
func (s *DFSSearcher) AddState(state *PathState) {
	s.states = append(s.states, state)
}

// BFSSearcher represents a searcher with a breadth-first search strategy.
type BFSSearcher struct {
	states []*PathState
}

// NewBFSSearcher returns a new instance of BFSSearcher.
func NewBFSSearcher() *BFSSearcher {
	return &BFSSearcher{}
}

// SelectState returns the least recently added state.
func (s *BFSSearcher) SelectState() *PathState {
	if len(s.states) == 0 {
		return nil
	}
	state := s.states[0]
	s.states[0] = nil
	s.states = s.states[1:]
	return state
}

// AddState adds a new state to the searcher.
func (s *BFSSearcher) AddState(state *PathState) {
	s.states = append(s.states, state)
}

// RandomSearcher selects states uniformly at random.
type RandomSearcher struct {
	states []*PathState
	rand   *rand.Rand
}

// NewRandomSearcher returns a new instance of RandomSearcher.
func NewRandomSearcher(rand *rand.Rand) *RandomSearcher {
	return &RandomSearcher{
		rand: rand,
	}
}

// SelectState returns a random state to explore.
func (s *RandomSearcher) SelectState() *PathState {
	if len(s.states) == 0 {
		return nil
	}
	i := s.rand.Intn(len(s.states))
	state := s.states[i]
	s.states = append(s.states[:i], s.states[i+1:]...)
	return state
}

// AddState adds a new state to the searcher.
func (s *RandomSearcher) AddState(state *PathState) {
	s.states = append(s.states, state)
}
