// Package transcriptlog persists completed conversation turns.
//
// The session layer writes turns best-effort: a store failure is logged and
// counted but never blocks or fails the reply. Two implementations exist, an
// in-memory store for tests and DSN-less runs and a PostgreSQL store for
// durable transcripts.
package transcriptlog

import (
	"context"

	"github.com/voicelink-ai/voicelink/pkg/types"
)

// Store is the abstraction over a transcript sink.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// WriteTurn appends one turn to the transcript of sessionID.
	WriteTurn(ctx context.Context, sessionID string, turn types.Turn) error

	// RecentTurns returns up to limit most recent turns for sessionID in
	// chronological order (oldest first). A non-positive limit returns all
	// recorded turns.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error)

	// Close releases any resources held by the store.
	Close() error
}
