// Package postgres provides a PostgreSQL-backed implementation of the
// coaching prompt history [history.Store].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Append(ctx, rec)
//	records, _ := store.List(ctx, history.QueryOpts{SessionID: id})
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/pkg/history"
)

var _ history.Store = (*Store)(nil)

const ddlPromptHistory = `
CREATE TABLE IF NOT EXISTS prompt_history (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    prompt_id   TEXT         NOT NULL,
    prompt_type TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    reason      TEXT         NOT NULL DEFAULT '',
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    response    TEXT         NOT NULL,
    offset_ns   BIGINT       NOT NULL DEFAULT 0,
    resolved_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_prompt_history_session_id
    ON prompt_history (session_id);

CREATE INDEX IF NOT EXISTS idx_prompt_history_resolved_at
    ON prompt_history (resolved_at);

CREATE INDEX IF NOT EXISTS idx_prompt_history_session_resolved
    ON prompt_history (session_id, resolved_at);
`

// Store is a PostgreSQL-backed prompt history store holding a single
// [pgxpool.Pool]. All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn
// and runs [Migrate] to ensure the prompt_history table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the prompt_history table and its indexes if they do not
// exist. It is idempotent and safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlPromptHistory); err != nil {
		return fmt.Errorf("history store: apply schema: %w", err)
	}
	return nil
}

// Append implements [history.Store].
func (s *Store) Append(ctx context.Context, rec history.Record) error {
	const q = `
		INSERT INTO prompt_history
		    (session_id, prompt_id, prompt_type, text, reason, confidence, response, offset_ns, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, q,
		rec.SessionID,
		rec.PromptID,
		rec.Type.String(),
		rec.Text,
		rec.Reason,
		rec.Confidence,
		string(rec.Response),
		rec.Offset.Nanoseconds(),
		rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("history store: append: %w", err)
	}
	return nil
}

// List implements [history.Store]. Optional filters from opts are applied as
// AND conditions.
func (s *Store) List(ctx context.Context, opts history.QueryOpts) ([]history.Record, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"TRUE"}
	if opts.SessionID != "" {
		conditions = append(conditions, "session_id = "+next(opts.SessionID))
	}
	if opts.Response != "" {
		conditions = append(conditions, "response = "+next(string(opts.Response)))
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "resolved_at > "+next(opts.After))
	}
	if !opts.Before.IsZero() {
		conditions = append(conditions, "resolved_at < "+next(opts.Before))
	}

	q := "SELECT session_id, prompt_id, prompt_type, text, reason, confidence, response, offset_ns, resolved_at\n" +
		"FROM   prompt_history\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY resolved_at"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history store: list: %w", err)
	}
	return collectRecords(rows)
}

// Summarize implements [history.Store].
func (s *Store) Summarize(ctx context.Context, sessionID string) (history.Summary, error) {
	const q = `
		SELECT response, count(*)
		FROM   prompt_history
		WHERE  session_id = $1
		GROUP  BY response`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return history.Summary{}, fmt.Errorf("history store: summarize: %w", err)
	}
	defer rows.Close()

	var sum history.Summary
	for rows.Next() {
		var (
			response string
			count    int
		)
		if err := rows.Scan(&response, &count); err != nil {
			return history.Summary{}, fmt.Errorf("history store: scan summary row: %w", err)
		}
		sum.Total += count
		switch coach.Response(response) {
		case coach.ResponseAccepted:
			sum.Accepted = count
		case coach.ResponseDismissed:
			sum.Dismissed = count
		case coach.ResponseAutoDismissed:
			sum.AutoDismissed = count
		case coach.ResponseSnoozed:
			sum.Snoozed = count
		}
	}
	if err := rows.Err(); err != nil {
		return history.Summary{}, fmt.Errorf("history store: summarize: %w", err)
	}
	return sum, nil
}

// Close implements [history.Store]. It releases all connections held by the
// underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// collectRecords drains rows into history records.
func collectRecords(rows pgx.Rows) ([]history.Record, error) {
	defer rows.Close()

	var out []history.Record
	for rows.Next() {
		var (
			rec        history.Record
			promptType string
			response   string
			offsetNS   int64
		)
		if err := rows.Scan(
			&rec.SessionID,
			&rec.PromptID,
			&promptType,
			&rec.Text,
			&rec.Reason,
			&rec.Confidence,
			&response,
			&offsetNS,
			&rec.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("history store: scan row: %w", err)
		}
		if t, ok := coach.PromptTypeFromString(promptType); ok {
			rec.Type = t
		}
		rec.Response = coach.Response(response)
		rec.Offset = time.Duration(offsetNS)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history store: iterate rows: %w", err)
	}
	return out, nil
}
