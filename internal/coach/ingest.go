package coach

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/antzucaro/matchr"
)

// defaultConfidence is assumed when a candidate event carries no parsable
// confidence argument.
const defaultConfidence = 0.85

// defaultFuzzyThreshold is the minimum Jaro-Winkler similarity between an
// unrecognised suggestion name and a canonical name before the candidate is
// accepted via fuzzy matching.
const defaultFuzzyThreshold = 0.90

// exactNames maps canonical suggestion-source function names to prompt
// types. Names are compared after normalisation (lower case, separators
// collapsed to underscores).
var exactNames = map[string]PromptType{
	"suggest_follow_up":          PromptFollowUp,
	"suggest_deeper_exploration": PromptDeeperExploration,
	"remind_uncovered_topic":     PromptUncoveredTopic,
	"suggest_pivot":              PromptPivot,
	"give_encouragement":         PromptEncouragement,
	"share_general_tip":          PromptGeneralTip,
}

// keywordRule maps a keyword set to a prompt type. Rules are evaluated in
// order and the first rule with any matching keyword wins, so the table is
// the single, reproducible source of truth for fuzzy name inference.
type keywordRule struct {
	keywords   []string
	promptType PromptType
}

// keywordRules is the ordered fallback for suggestion names that are not in
// exactNames.
var keywordRules = []keywordRule{
	{[]string{"follow", "question"}, PromptFollowUp},
	{[]string{"pivot", "redirect"}, PromptPivot},
	{[]string{"deep", "explore"}, PromptDeeperExploration},
	{[]string{"topic", "uncovered"}, PromptUncoveredTopic},
	{[]string{"encourage", "good"}, PromptEncouragement},
	{[]string{"tip", "hint"}, PromptGeneralTip},
}

// ParserOption configures a [Parser].
type ParserOption func(*Parser)

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the final
// fuzzy-name fallback. Default: 0.90.
func WithFuzzyThreshold(threshold float64) ParserOption {
	return func(p *Parser) { p.fuzzyThreshold = threshold }
}

// Parser turns raw suggestion-source events into typed prompts. It is safe
// for concurrent use; the only mutable state is the ID counter.
type Parser struct {
	fuzzyThreshold float64
	seq            atomic.Int64
}

// NewParser returns a Parser with the supplied options applied.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{fuzzyThreshold: defaultFuzzyThreshold}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse maps a raw candidate event to a typed prompt.
//
// Type inference runs in three stages: the exact-name map, the ordered
// keyword rules (substring match against the normalised name), and finally
// Jaro-Winkler similarity against the canonical names. A candidate whose
// name survives none of the stages, or whose arguments yield no display
// text, is dropped — ok is false and no error is reported, by policy.
func (p *Parser) Parse(raw RawSuggestion) (Prompt, bool) {
	promptType, ok := inferType(raw.Name, p.fuzzyThreshold)
	if !ok {
		return Prompt{}, false
	}

	text := firstArg(raw.Arguments, "text", "prompt", "message")
	if text == "" {
		return Prompt{}, false
	}

	confidence := defaultConfidence
	if s, ok := raw.Arguments["confidence"]; ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			confidence = v
		}
	}

	return Prompt{
		ID:         fmt.Sprintf("prompt-%d", p.seq.Add(1)),
		Type:       promptType,
		Text:       text,
		Reason:     firstArg(raw.Arguments, "reason", "context"),
		Confidence: confidence,
		Offset:     raw.Timestamp,
	}, true
}

// inferType resolves a suggestion name to a prompt type.
func inferType(name string, fuzzyThreshold float64) (PromptType, bool) {
	normalised := normaliseName(name)
	if normalised == "" {
		return 0, false
	}

	if t, ok := exactNames[normalised]; ok {
		return t, true
	}

	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(normalised, kw) {
				return rule.promptType, true
			}
		}
	}

	// Last resort: the name may be a misspelling of a canonical name.
	var (
		best      PromptType
		bestScore float64
	)
	for canonical, t := range exactNames {
		if score := matchr.JaroWinkler(normalised, canonical, false); score > bestScore {
			best, bestScore = t, score
		}
	}
	if bestScore >= fuzzyThreshold {
		return best, true
	}
	return 0, false
}

// normaliseName lowercases a suggestion name and collapses separator runs
// to single underscores so "Suggest-Follow Up" and "suggest_follow_up"
// compare equal.
func normaliseName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	prevSep := false
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			if !prevSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			prevSep = true
		default:
			b.WriteRune(r)
			prevSep = false
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// firstArg returns the first non-empty value among the named argument keys.
func firstArg(args map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(args[k]); v != "" {
			return v
		}
	}
	return ""
}
