// Package coach implements the coaching prompt delivery engine: the component
// that decides, from a stream of candidate AI suggestions, whether, when, and
// how a coaching prompt actually reaches the interviewer.
//
// The engine is a pure in-memory decision component. It consumes candidate
// suggestion events and speech notifications, applies confidence, cooldown,
// and cultural-context gating, and exposes at most one "currently displayed"
// prompt at a time. It performs no I/O of its own; transcription, the AI
// suggestion source, and rendering are external collaborators.
package coach

import "time"

// PromptType classifies a coaching prompt. The declaration order doubles as
// the priority rank: lower values are shown first when prompts are queued.
type PromptType int

const (
	// PromptUncoveredTopic reminds the interviewer of a planned topic that
	// has not been touched yet.
	PromptUncoveredTopic PromptType = iota

	// PromptPivot suggests redirecting the conversation.
	PromptPivot

	// PromptFollowUp suggests a follow-up question to the last answer.
	PromptFollowUp

	// PromptDeeperExploration suggests digging further into the current topic.
	PromptDeeperExploration

	// PromptEncouragement nudges the interviewer to acknowledge the
	// participant.
	PromptEncouragement

	// PromptGeneralTip is a generic interviewing tip.
	PromptGeneralTip
)

// Rank returns the priority rank of the prompt type. Lower ranks are
// promoted first from the pending and pull queues.
func (t PromptType) Rank() int { return int(t) }

// String returns the canonical name of the prompt type.
func (t PromptType) String() string {
	switch t {
	case PromptUncoveredTopic:
		return "uncovered_topic"
	case PromptPivot:
		return "pivot"
	case PromptFollowUp:
		return "follow_up"
	case PromptDeeperExploration:
		return "deeper_exploration"
	case PromptEncouragement:
		return "encouragement"
	case PromptGeneralTip:
		return "general_tip"
	default:
		return "unknown"
	}
}

// IsValid reports whether t is a recognised prompt type.
func (t PromptType) IsValid() bool {
	return t >= PromptUncoveredTopic && t <= PromptGeneralTip
}

// PromptTypeFromString maps a canonical name back to its prompt type. Used
// when reading persisted prompts.
func PromptTypeFromString(s string) (PromptType, bool) {
	for t := PromptUncoveredTopic; t <= PromptGeneralTip; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Prompt is a single coaching suggestion instance. Prompts are immutable
// once created; the engine never mutates a Prompt after it has been
// submitted.
type Prompt struct {
	// ID is an opaque identifier. The engine assigns one when a submitted
	// prompt carries an empty ID.
	ID string

	// Type classifies the prompt and determines its queue priority.
	Type PromptType

	// Text is the display text shown to the interviewer.
	Text string

	// Reason explains why the suggestion was generated. Shown only when the
	// cultural context enables explanations; pass-through for the engine.
	Reason string

	// Confidence is the suggestion source's confidence score (0.0–1.0).
	Confidence float64

	// Offset is the session-relative timestamp the prompt was generated for.
	Offset time.Duration

	// CreatedAt is the wall-clock creation time. The engine fills it from
	// its clock when zero.
	CreatedAt time.Time
}

// Response records how a displayed prompt left the screen.
type Response string

const (
	// ResponseAccepted means the interviewer acted on the prompt.
	ResponseAccepted Response = "accepted"

	// ResponseDismissed means the interviewer dismissed the prompt, or the
	// engine dismissed it implicitly (coaching disabled mid-display).
	ResponseDismissed Response = "dismissed"

	// ResponseAutoDismissed means the auto-dismiss timer fired.
	ResponseAutoDismissed Response = "auto_dismissed"

	// ResponseSnoozed means the prompt was re-queued for later.
	ResponseSnoozed Response = "snoozed"
)

// Outcome is one entry of the per-session prompt history: which prompt was
// displayed, how it was resolved, and when.
type Outcome struct {
	Prompt   Prompt
	Response Response
	At       time.Time
}

// RawSuggestion is a function-call-style event from the AI suggestion
// source: a free-form name, string key/value arguments, and the
// session-relative timestamp the suggestion refers to.
type RawSuggestion struct {
	Name      string
	Arguments map[string]string
	Timestamp time.Duration
}
