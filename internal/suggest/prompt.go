package suggest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuecardhq/cuecard/internal/coach"
)

// ToolDefinition describes one callable coaching function offered to the
// model. All sources share the same tool surface so their output is
// interchangeable at the engine boundary.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolDefinitions returns the coaching function schemas, one per prompt
// type. The names match the engine parser's canonical names exactly.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		toolDef("remind_uncovered_topic", "Remind the interviewer of a planned topic that has not been discussed yet."),
		toolDef("suggest_pivot", "Suggest redirecting the conversation to a more productive direction."),
		toolDef("suggest_follow_up", "Suggest a follow-up question to the participant's last answer."),
		toolDef("suggest_deeper_exploration", "Suggest digging further into the topic currently being discussed."),
		toolDef("give_encouragement", "Nudge the interviewer to acknowledge or encourage the participant."),
		toolDef("share_general_tip", "Share a general interviewing technique tip relevant right now."),
	}
}

// toolDef builds the shared parameter schema: every coaching function takes
// a display text, an optional reason, and an optional confidence score.
func toolDef(name, description string) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "The coaching suggestion shown to the interviewer. One or two short sentences.",
				},
				"reason": map[string]any{
					"type":        "string",
					"description": "Why this suggestion was generated, phrased for the interviewer.",
				},
				"confidence": map[string]any{
					"type":        "number",
					"description": "How confident you are that this suggestion is helpful right now, from 0.0 to 1.0.",
				},
			},
			"required": []string{"text"},
		},
	}
}

// BuildSystemPrompt renders the coaching persona, adapted to the request's
// cultural context.
func BuildSystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a silent interview coach observing a live interview. ")
	b.WriteString("You never speak to the participant; you only emit coaching function calls for the interviewer. ")
	b.WriteString("Only call a function when you have something genuinely useful; silence is the correct default.\n")

	switch req.Culture.Formality {
	case coach.FormalityFormal:
		b.WriteString("Phrase suggestions in a formal, respectful register.\n")
	case coach.FormalityCasual:
		b.WriteString("Phrase suggestions casually and conversationally.\n")
	}
	if req.Culture.SilenceTolerance > 0 {
		fmt.Fprintf(&b, "Pauses up to %.0f seconds are normal in this conversation; do not treat them as problems.\n",
			req.Culture.SilenceTolerance)
	}
	if req.Culture.ShowExplanations {
		b.WriteString("Always include a reason argument explaining the suggestion.\n")
	}
	if req.Culture.BiasAlerts {
		b.WriteString("Watch for leading or biased questions and use suggest_pivot to flag them.\n")
	}
	if req.Sensitivity > 0 && req.Sensitivity != 1.0 {
		fmt.Fprintf(&b, "Scale your confidence scores by a factor of %.2f before reporting them.\n", req.Sensitivity)
	}

	if len(req.PlannedTopics) > 0 {
		b.WriteString("\nPlanned interview topics: ")
		b.WriteString(strings.Join(req.PlannedTopics, "; "))
		b.WriteString(".\n")
	}
	if len(req.CoveredTopics) > 0 {
		b.WriteString("Already covered: ")
		b.WriteString(strings.Join(req.CoveredTopics, "; "))
		b.WriteString(".\n")
	}
	return b.String()
}

// BuildUserMessage renders the transcript window for the model, oldest
// utterance first.
func BuildUserMessage(req Request) string {
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, u := range req.Transcript {
		fmt.Fprintf(&b, "[%s] %s: %s\n", formatOffset(u.Start), u.Speaker, u.Text)
	}
	return b.String()
}

// FromToolCall converts a model tool call into the engine's raw candidate
// form. Arguments must be a JSON object; scalar values are stringified so
// the engine parser sees uniform string arguments.
func FromToolCall(name, argumentsJSON string, offset time.Duration) (coach.RawSuggestion, error) {
	args := map[string]string{}
	if strings.TrimSpace(argumentsJSON) != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(argumentsJSON), &decoded); err != nil {
			return coach.RawSuggestion{}, fmt.Errorf("suggest: decode %s arguments: %w", name, err)
		}
		for k, v := range decoded {
			args[k] = stringify(v)
		}
	}
	return coach.RawSuggestion{
		Name:      name,
		Arguments: args,
		Timestamp: offset,
	}, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}

func formatOffset(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
