package coach

// Preset names a cultural communication-style profile. Each non-custom
// preset carries a fixed canonical dial assignment returned by [PresetDials].
type Preset string

const (
	PresetWestern       Preset = "western"
	PresetEastAsian     Preset = "east-asian"
	PresetLatinAmerican Preset = "latin-american"
	PresetMiddleEastern Preset = "middle-eastern"

	// PresetCustom starts from the Western baseline and is freely editable;
	// the tag distinguishes manual edits from a pristine preset.
	PresetCustom Preset = "custom"
)

// IsValid reports whether p is a recognised preset.
func (p Preset) IsValid() bool {
	switch p {
	case PresetWestern, PresetEastAsian, PresetLatinAmerican, PresetMiddleEastern, PresetCustom:
		return true
	}
	return false
}

// Formality is the expected register of coaching suggestions.
type Formality string

const (
	FormalityCasual  Formality = "casual"
	FormalityNeutral Formality = "neutral"
	FormalityFormal  Formality = "formal"
)

// IsValid reports whether f is a recognised formality level.
func (f Formality) IsValid() bool {
	return f == FormalityCasual || f == FormalityNeutral || f == FormalityFormal
}

// CulturalContext bundles the gating dials that approximate a communication
// style's tolerance for silence, pacing, and interruption. It is created
// once per session (or per settings save) and is read-only during gating
// computations.
type CulturalContext struct {
	// Preset is the selected profile this context was derived from.
	Preset Preset

	// SilenceTolerance is the comfortable silence duration in seconds.
	// It scales the speech-adjacency delay relative to the Western
	// baseline of 5 seconds.
	SilenceTolerance float64

	// QuestionPacing multiplies the prompt cooldown; values above 1 slow
	// the suggestion cadence down.
	QuestionPacing float64

	// InterruptionSensitivity (0.0–1.0) expresses how disruptive an
	// on-screen prompt is considered while someone is speaking. Passed
	// through to the suggestion source.
	InterruptionSensitivity float64

	// Formality is the expected register of suggestion texts.
	Formality Formality

	// ShowExplanations controls whether prompt reasons are surfaced.
	ShowExplanations bool

	// BiasAlerts enables bias-awareness suggestions from the source.
	BiasAlerts bool
}

// PresetDials returns the canonical dial assignment for a preset. It is
// total over all presets: unknown values and [PresetCustom] yield the
// Western baseline, with Custom keeping its own tag so later manual edits
// remain distinguishable.
func PresetDials(p Preset) CulturalContext {
	switch p {
	case PresetEastAsian:
		return CulturalContext{
			Preset:                  PresetEastAsian,
			SilenceTolerance:        12.0,
			QuestionPacing:          1.5,
			InterruptionSensitivity: 0.3,
			Formality:               FormalityFormal,
			ShowExplanations:        true,
			BiasAlerts:              true,
		}
	case PresetLatinAmerican:
		return CulturalContext{
			Preset:                  PresetLatinAmerican,
			SilenceTolerance:        3.0,
			QuestionPacing:          0.9,
			InterruptionSensitivity: 0.8,
			Formality:               FormalityCasual,
			ShowExplanations:        true,
			BiasAlerts:              false,
		}
	case PresetMiddleEastern:
		return CulturalContext{
			Preset:                  PresetMiddleEastern,
			SilenceTolerance:        7.0,
			QuestionPacing:          1.2,
			InterruptionSensitivity: 0.5,
			Formality:               FormalityFormal,
			ShowExplanations:        true,
			BiasAlerts:              true,
		}
	case PresetCustom:
		ctx := westernDials()
		ctx.Preset = PresetCustom
		return ctx
	default:
		return westernDials()
	}
}

// westernDials is the baseline dial assignment all relative scaling is
// anchored to.
func westernDials() CulturalContext {
	return CulturalContext{
		Preset:                  PresetWestern,
		SilenceTolerance:        westernSilenceTolerance,
		QuestionPacing:          1.0,
		InterruptionSensitivity: 0.6,
		Formality:               FormalityNeutral,
		ShowExplanations:        true,
		BiasAlerts:              false,
	}
}
