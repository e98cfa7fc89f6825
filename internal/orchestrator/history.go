package orchestrator

import (
	"sync"

	"inferd/internal/provider"
)

const defaultHistoryPairs = 10

// History is a bounded FIFO of conversation turns. It holds at most maxPairs
// (user, assistant) pairs and drops the oldest pair first. Safe for
// concurrent use; a pair is always appended atomically.
type History struct {
	mu       sync.Mutex
	turns    []provider.Turn
	maxPairs int
}

// NewHistory returns an empty history. maxPairs <= 0 selects the default.
func NewHistory(maxPairs int) *History {
	if maxPairs <= 0 {
		maxPairs = defaultHistoryPairs
	}
	return &History{maxPairs: maxPairs, turns: make([]provider.Turn, 0, 2*maxPairs)}
}

// Append records one exchange.
func (h *History) Append(input, reply string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.turns) >= 2*h.maxPairs {
		n := copy(h.turns, h.turns[2:])
		h.turns = h.turns[:n]
	}
	h.turns = append(h.turns,
		provider.Turn{Role: provider.RoleUser, Content: input},
		provider.Turn{Role: provider.RoleAssistant, Content: reply},
	)
}

// Snapshot returns a copy of the turns, oldest first.
func (h *History) Snapshot() []provider.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]provider.Turn(nil), h.turns...)
}

// Len returns the number of turns (twice the number of pairs).
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Clear() {
	h.mu.Lock()
	h.turns = h.turns[:0]
	h.mu.Unlock()
}
