// Package suggest defines the AI suggestion source abstraction: components
// that read a live interview transcript window and emit coaching prompt
// candidates as function-call style events.
package suggest

import (
	"context"
	"time"

	"github.com/cuecardhq/cuecard/internal/coach"
)

// Role identifies who produced a transcript utterance.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleParticipant Role = "participant"
)

// IsValid reports whether r is a recognised speaker role.
func (r Role) IsValid() bool {
	return r == RoleInterviewer || r == RoleParticipant
}

// Utterance is one transcribed turn of the conversation.
type Utterance struct {
	// Speaker identifies the utterance's origin.
	Speaker Role

	// Text is the transcribed content.
	Text string

	// Start is the session-relative start time of the utterance.
	Start time.Duration
}

// Request is the analysis window handed to a suggestion source.
type Request struct {
	// Transcript is the recent conversation window, oldest first.
	Transcript []Utterance

	// PlannedTopics lists interview topics the interviewer intended to
	// cover; sources use it for uncovered-topic reminders.
	PlannedTopics []string

	// CoveredTopics lists planned topics already marked as covered.
	CoveredTopics []string

	// Culture shapes the register and pacing of generated suggestions
	// (formality, explanation visibility, bias alerts).
	Culture coach.CulturalContext

	// Sensitivity is a global multiplier the source may apply to its own
	// scoring before emitting candidates.
	Sensitivity float64

	// Offset is the session-relative time of the analysis, stamped onto
	// emitted candidates.
	Offset time.Duration
}

// Source produces coaching prompt candidates from conversation context.
// Implementations are expected to be safe for concurrent use.
type Source interface {
	// Analyze inspects the request window and returns zero or more
	// candidate events. An empty result with a nil error means the source
	// saw nothing worth suggesting.
	Analyze(ctx context.Context, req Request) ([]coach.RawSuggestion, error)

	// Name identifies the source implementation for logs and metrics.
	Name() string

	// Close releases any underlying client resources.
	Close() error
}
