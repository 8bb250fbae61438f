// Package history defines persistence for resolved coaching prompts.
//
// The engine keeps per-session history in memory and drops it when a new
// session starts; a history [Store] is the durable record used for
// post-interview review and acceptance analytics. The interfaces are public
// so external packages can supply alternative backends (Postgres, in-memory,
// …) without depending on cuecard internals.
//
// Every implementation must be safe for concurrent use.
package history

import (
	"context"
	"time"

	"github.com/cuecardhq/cuecard/internal/coach"
)

// Record is one resolved prompt: what was shown, how it left the screen,
// and when.
type Record struct {
	// SessionID identifies the interview session.
	SessionID string

	// PromptID is the engine-assigned prompt identifier.
	PromptID string

	// Type is the prompt classification.
	Type coach.PromptType

	// Text and Reason are the displayed content.
	Text   string
	Reason string

	// Confidence is the suggestion source's score.
	Confidence float64

	// Response records how the prompt was resolved.
	Response coach.Response

	// Offset is the session-relative time the prompt was generated for.
	Offset time.Duration

	// ResolvedAt is when the response happened.
	ResolvedAt time.Time
}

// QueryOpts narrows a List call. All non-zero fields are applied as AND
// conditions.
type QueryOpts struct {
	// SessionID restricts results to a single session.
	// An empty string matches all sessions.
	SessionID string

	// Response restricts results to one resolution kind.
	Response coach.Response

	// After filters records resolved after this instant (exclusive).
	// A zero Time disables the lower bound.
	After time.Time

	// Before filters records resolved before this instant (exclusive).
	// A zero Time disables the upper bound.
	Before time.Time

	// Limit caps the number of results returned.
	// A value of 0 means no limit.
	Limit int
}

// Summary aggregates a session's resolved prompts per response kind.
type Summary struct {
	Total         int
	Accepted      int
	Dismissed     int
	AutoDismissed int
	Snoozed       int
}

func (s *Summary) add(r coach.Response) {
	s.Total++
	switch r {
	case coach.ResponseAccepted:
		s.Accepted++
	case coach.ResponseDismissed:
		s.Dismissed++
	case coach.ResponseAutoDismissed:
		s.AutoDismissed++
	case coach.ResponseSnoozed:
		s.Snoozed++
	}
}

// Store persists resolved coaching prompts.
type Store interface {
	// Append adds one record. Records are immutable once written.
	Append(ctx context.Context, rec Record) error

	// List returns records matching opts, ordered by resolution time
	// (oldest first).
	List(ctx context.Context, opts QueryOpts) ([]Record, error)

	// Summarize aggregates the response counts for one session.
	Summarize(ctx context.Context, sessionID string) (Summary, error)

	// Close releases any underlying resources.
	Close() error
}
