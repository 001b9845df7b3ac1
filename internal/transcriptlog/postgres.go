package transcriptlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voicelink-ai/voicelink/pkg/types"
)

// Compile-time assertion that Postgres implements Store.
var _ Store = (*Postgres)(nil)

// ddlTranscriptTurns is idempotent and run on every connect.
const ddlTranscriptTurns = `
CREATE TABLE IF NOT EXISTS transcript_turns (
    id         BIGSERIAL    PRIMARY KEY,
    session_id TEXT         NOT NULL,
    role       TEXT         NOT NULL,
    content    TEXT         NOT NULL,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcript_turns_session
    ON transcript_turns (session_id, id);
`

// Postgres is a Store backed by a PostgreSQL transcript_turns table. It holds
// a single [pgxpool.Pool]; all methods are safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store, establishes a connection pool to the
// database at dsn, and bootstraps the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("transcriptlog: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("transcriptlog: connect: %w", err)
	}

	if _, err := pool.Exec(ctx, ddlTranscriptTurns); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcriptlog: bootstrap schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// WriteTurn implements Store. Turns are append-only.
func (p *Postgres) WriteTurn(ctx context.Context, sessionID string, turn types.Turn) error {
	const q = `
		INSERT INTO transcript_turns (session_id, role, content)
		VALUES ($1, $2, $3)`

	if _, err := p.pool.Exec(ctx, q, sessionID, string(turn.Role), turn.Content); err != nil {
		return fmt.Errorf("transcriptlog: write turn: %w", err)
	}
	return nil
}

// RecentTurns implements Store.
func (p *Postgres) RecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	q := `
		SELECT role, content
		FROM   transcript_turns
		WHERE  session_id = $1
		ORDER  BY id DESC`
	args := []any{sessionID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("transcriptlog: recent turns: %w", err)
	}

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Turn, error) {
		var t types.Turn
		var role string
		if err := row.Scan(&role, &t.Content); err != nil {
			return types.Turn{}, err
		}
		t.Role = types.Role(role)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcriptlog: scan turns: %w", err)
	}

	// Newest-first from the query; reverse to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
