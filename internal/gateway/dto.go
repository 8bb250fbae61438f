package gateway

import (
	"time"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/pkg/history"
)

// promptPayload is the JSON wire form of a coaching prompt. Durations are
// expressed in milliseconds.
type promptPayload struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Text       string    `json:"text"`
	Reason     string    `json:"reason,omitempty"`
	Confidence float64   `json:"confidence"`
	OffsetMS   int64     `json:"offset_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func toPromptPayload(p coach.Prompt) *promptPayload {
	return &promptPayload{
		ID:         p.ID,
		Type:       p.Type.String(),
		Text:       p.Text,
		Reason:     p.Reason,
		Confidence: p.Confidence,
		OffsetMS:   p.Offset.Milliseconds(),
		CreatedAt:  p.CreatedAt,
	}
}

func toPromptPayloads(ps []coach.Prompt) []promptPayload {
	out := make([]promptPayload, len(ps))
	for i, p := range ps {
		out[i] = *toPromptPayload(p)
	}
	return out
}

// statePayload is the read-only engine snapshot returned by GET /api/state.
type statePayload struct {
	SessionID           string         `json:"session_id,omitempty"`
	State               string         `json:"state"`
	Enabled             bool           `json:"enabled"`
	ShownCount          int            `json:"shown_count"`
	DeliveryMode        string         `json:"delivery_mode"`
	AutoDismissPreset   string         `json:"auto_dismiss_preset"`
	CulturalPreset      string         `json:"cultural_preset"`
	CooldownRemainingMS int64          `json:"cooldown_remaining_ms"`
	Current             *promptPayload `json:"current,omitempty"`
	PendingCount        int            `json:"pending_count"`
	PullQueueCount      int            `json:"pull_queue_count"`
}

// settingsPayload is the full adjustable configuration returned by
// GET /api/settings.
type settingsPayload struct {
	DeliveryMode      string            `json:"delivery_mode"`
	AutoDismissPreset string            `json:"auto_dismiss_preset"`
	Culture           culturePayload    `json:"culture"`
	Thresholds        thresholdsPayload `json:"thresholds"`
}

type culturePayload struct {
	Preset                  string  `json:"preset"`
	SilenceTolerance        float64 `json:"silence_tolerance_seconds"`
	QuestionPacing          float64 `json:"question_pacing"`
	InterruptionSensitivity float64 `json:"interruption_sensitivity"`
	Formality               string  `json:"formality"`
	ShowExplanations        bool    `json:"show_explanations"`
	BiasAlerts              bool    `json:"bias_alerts"`
}

func toCulturePayload(c coach.CulturalContext) culturePayload {
	return culturePayload{
		Preset:                  string(c.Preset),
		SilenceTolerance:        c.SilenceTolerance,
		QuestionPacing:          c.QuestionPacing,
		InterruptionSensitivity: c.InterruptionSensitivity,
		Formality:               string(c.Formality),
		ShowExplanations:        c.ShowExplanations,
		BiasAlerts:              c.BiasAlerts,
	}
}

type thresholdsPayload struct {
	MinConfidence         float64 `json:"min_confidence"`
	CooldownSeconds       float64 `json:"cooldown_seconds"`
	SpeechCooldownSeconds float64 `json:"speech_cooldown_seconds"`
	MaxPromptsPerSession  int     `json:"max_prompts_per_session"`
	AutoDismissSeconds    float64 `json:"auto_dismiss_seconds"`
	FadeInMillis          int64   `json:"fade_in_millis"`
	FadeOutMillis         int64   `json:"fade_out_millis"`
	Sensitivity           float64 `json:"sensitivity"`
}

func toThresholdsPayload(t coach.Thresholds) thresholdsPayload {
	return thresholdsPayload{
		MinConfidence:         t.MinConfidence,
		CooldownSeconds:       t.Cooldown.Seconds(),
		SpeechCooldownSeconds: t.SpeechCooldown.Seconds(),
		MaxPromptsPerSession:  t.MaxPromptsPerSession,
		AutoDismissSeconds:    t.AutoDismiss.Seconds(),
		FadeInMillis:          t.FadeIn.Milliseconds(),
		FadeOutMillis:         t.FadeOut.Milliseconds(),
		Sensitivity:           t.Sensitivity,
	}
}

// outcomePayload is one entry of the in-session resolved-prompt history.
type outcomePayload struct {
	Prompt   promptPayload `json:"prompt"`
	Response string        `json:"response"`
	At       time.Time     `json:"at"`
}

func toOutcomePayloads(os []coach.Outcome) []outcomePayload {
	out := make([]outcomePayload, len(os))
	for i, o := range os {
		out[i] = outcomePayload{
			Prompt:   *toPromptPayload(o.Prompt),
			Response: string(o.Response),
			At:       o.At,
		}
	}
	return out
}

// recordPayload is one durable history record from the history store.
type recordPayload struct {
	SessionID  string    `json:"session_id"`
	PromptID   string    `json:"prompt_id"`
	Type       string    `json:"type"`
	Text       string    `json:"text"`
	Reason     string    `json:"reason,omitempty"`
	Confidence float64   `json:"confidence"`
	Response   string    `json:"response"`
	OffsetMS   int64     `json:"offset_ms"`
	ResolvedAt time.Time `json:"resolved_at"`
}

func toRecordPayloads(rs []history.Record) []recordPayload {
	out := make([]recordPayload, len(rs))
	for i, r := range rs {
		out[i] = recordPayload{
			SessionID:  r.SessionID,
			PromptID:   r.PromptID,
			Type:       r.Type.String(),
			Text:       r.Text,
			Reason:     r.Reason,
			Confidence: r.Confidence,
			Response:   string(r.Response),
			OffsetMS:   r.Offset.Milliseconds(),
			ResolvedAt: r.ResolvedAt,
		}
	}
	return out
}

// ── Request bodies ──────────────────────────────────────────────────────────

// startSessionRequest is the body for POST /api/session/start. A nil Enabled
// carries the previous session's coaching flag over. PlannedTopics seed the
// uncovered-topic analysis for this session.
type startSessionRequest struct {
	Enabled       *bool    `json:"enabled"`
	PlannedTopics []string `json:"planned_topics"`
}

// transcriptRequest is the body for POST /api/transcript: one finalised
// utterance from the host's transcription pipeline.
type transcriptRequest struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMS int64  `json:"start_ms"`
}

// candidateRequest is the body for POST /api/candidates: a raw
// suggestion-source event to be parsed and gated.
type candidateRequest struct {
	Name        string            `json:"name"`
	Arguments   map[string]string `json:"arguments"`
	TimestampMS int64             `json:"timestamp_ms"`
}

// speechRequest is the body for POST /api/speech. A zero At means "now".
type speechRequest struct {
	At time.Time `json:"at"`
}

// deliveryModeRequest is the body for PUT /api/settings/delivery-mode.
type deliveryModeRequest struct {
	Mode string `json:"mode"`
}

// autoDismissRequest is the body for PUT /api/settings/auto-dismiss.
type autoDismissRequest struct {
	Preset string `json:"preset"`
}

// cultureRequest is the body for PUT /api/settings/culture. Dial overrides
// are honoured only with the custom preset; otherwise the preset's canonical
// dials win.
type cultureRequest struct {
	Preset                  string   `json:"preset"`
	SilenceTolerance        *float64 `json:"silence_tolerance_seconds"`
	QuestionPacing          *float64 `json:"question_pacing"`
	InterruptionSensitivity *float64 `json:"interruption_sensitivity"`
	Formality               string   `json:"formality"`
	ShowExplanations        *bool    `json:"show_explanations"`
	BiasAlerts              *bool    `json:"bias_alerts"`
}

// thresholdsRequest is the body for PUT /api/settings/thresholds. Unset
// fields keep their current value.
type thresholdsRequest struct {
	MinConfidence         *float64 `json:"min_confidence"`
	CooldownSeconds       *float64 `json:"cooldown_seconds"`
	SpeechCooldownSeconds *float64 `json:"speech_cooldown_seconds"`
	MaxPromptsPerSession  *int     `json:"max_prompts_per_session"`
	AutoDismissSeconds    *float64 `json:"auto_dismiss_seconds"`
	FadeInMillis          *int64   `json:"fade_in_millis"`
	FadeOutMillis         *int64   `json:"fade_out_millis"`
	Sensitivity           *float64 `json:"sensitivity"`
}
