package coach

import "time"

// westernSilenceTolerance is the baseline silence tolerance (seconds) that
// the speech-cooldown scaling formula is normalised against.
const westernSilenceTolerance = 5.0

// Thresholds is the immutable set of tunable gating parameters for a
// session. All durations must be ≥ 0, MinConfidence must lie in [0, 1], and
// MaxPromptsPerSession must be ≥ 0; the engine trusts its caller and does
// not re-validate (the config layer rejects out-of-range values at load
// time).
type Thresholds struct {
	// MinConfidence is the confidence floor below which candidate prompts
	// are silently dropped at validation.
	MinConfidence float64

	// Cooldown is the minimum time between two consecutively displayed
	// prompts, before cultural scaling.
	Cooldown time.Duration

	// SpeechCooldown is the minimum delay after the last detected speech
	// before a prompt may be shown, before cultural scaling.
	SpeechCooldown time.Duration

	// MaxPromptsPerSession caps how many prompts may be shown (not merely
	// submitted) in one session. Zero means no prompts are ever shown.
	MaxPromptsPerSession int

	// AutoDismiss is the base auto-dismiss duration, used when no
	// auto-dismiss preset is selected.
	AutoDismiss time.Duration

	// FadeIn and FadeOut are presentation-only animation timings, passed
	// through to the UI untouched.
	FadeIn  time.Duration
	FadeOut time.Duration

	// Sensitivity is a global multiplier the suggestion source may apply to
	// its own scoring; the engine passes it through unchanged.
	Sensitivity float64
}

// DefaultThresholds returns the stock gating parameters.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence:        0.7,
		Cooldown:             120 * time.Second,
		SpeechCooldown:       5 * time.Second,
		MaxPromptsPerSession: 5,
		AutoDismiss:          8 * time.Second,
		FadeIn:               300 * time.Millisecond,
		FadeOut:              200 * time.Millisecond,
		Sensitivity:          1.0,
	}
}

// EffectiveThresholds are the gating parameters after cultural-context
// adjustment. They are derived on demand by [ComputeEffective] and never
// cached beyond a single gating check.
type EffectiveThresholds struct {
	MinConfidence        float64
	Cooldown             time.Duration
	SpeechCooldown       time.Duration
	MaxPromptsPerSession int
	AutoDismiss          time.Duration
}

// ComputeEffective derives the effective gating parameters from base
// thresholds and a cultural context:
//
//	effectiveCooldown       = Cooldown × QuestionPacing
//	effectiveSpeechCooldown = SpeechCooldown × (SilenceTolerance / 5.0)
//
// where 5.0 is the Western baseline silence tolerance. All other fields pass
// through unchanged. Out-of-range inputs are the caller's responsibility.
func ComputeEffective(t Thresholds, c CulturalContext) EffectiveThresholds {
	return EffectiveThresholds{
		MinConfidence:        t.MinConfidence,
		Cooldown:             time.Duration(float64(t.Cooldown) * c.QuestionPacing),
		SpeechCooldown:       time.Duration(float64(t.SpeechCooldown) * (c.SilenceTolerance / westernSilenceTolerance)),
		MaxPromptsPerSession: t.MaxPromptsPerSession,
		AutoDismiss:          t.AutoDismiss,
	}
}
