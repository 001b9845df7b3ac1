package session

import "github.com/voicelink-ai/voicelink/pkg/types"

// DefaultHistoryLimit is the number of turns kept when no limit is configured.
const DefaultHistoryLimit = 6

// History is an ordered, bounded conversation record. When a new turn would
// exceed the limit the oldest turn is evicted, so the length never exceeds
// the limit after any mutation.
//
// History is owned by exactly one Session and is not safe for concurrent use
// on its own; the owning session serialises access.
type History struct {
	limit int
	turns []types.Turn
}

// NewHistory creates a History bounded to limit turns. A non-positive limit
// falls back to DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Append adds a turn to the end of the history, evicting the oldest turn
// when the bound is reached.
func (h *History) Append(t types.Turn) {
	if len(h.turns) >= h.limit {
		n := copy(h.turns, h.turns[len(h.turns)-h.limit+1:])
		h.turns = h.turns[:n]
	}
	h.turns = append(h.turns, t)
}

// Turns returns a copy of the recorded turns in chronological order.
func (h *History) Turns() []types.Turn {
	out := make([]types.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of recorded turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Limit returns the capacity bound.
func (h *History) Limit() int {
	return h.limit
}
