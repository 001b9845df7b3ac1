package transcriptlog

import (
	"context"
	"sync"

	"github.com/voicelink-ai/voicelink/pkg/types"
)

// Compile-time assertion that Memory implements Store.
var _ Store = (*Memory)(nil)

// Memory is an in-memory Store for tests and runs without a database DSN.
// Safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	turns map[string][]types.Turn
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{turns: make(map[string][]types.Turn)}
}

// WriteTurn implements Store.
func (m *Memory) WriteTurn(_ context.Context, sessionID string, turn types.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return nil
}

// RecentTurns implements Store.
func (m *Memory) RecentTurns(_ context.Context, sessionID string, limit int) ([]types.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.turns[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]types.Turn, len(all))
	copy(out, all)
	return out, nil
}

// Close implements Store. It is a no-op.
func (m *Memory) Close() error {
	return nil
}
