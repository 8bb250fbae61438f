package coach_test

import (
	"testing"
	"time"

	"github.com/cuecardhq/cuecard/internal/coach"
)

func TestComputeEffective(t *testing.T) {
	t.Parallel()

	base := coach.DefaultThresholds()

	tests := []struct {
		name       string
		preset     coach.Preset
		wantCool   time.Duration
		wantSpeech time.Duration
	}{
		{"western is identity", coach.PresetWestern, 120 * time.Second, 5 * time.Second},
		{"east-asian stretches both", coach.PresetEastAsian, 180 * time.Second, 12 * time.Second},
		{"latin-american tightens both", coach.PresetLatinAmerican, 108 * time.Second, 3 * time.Second},
		{"middle-eastern", coach.PresetMiddleEastern, 144 * time.Second, 7 * time.Second},
		{"custom matches western", coach.PresetCustom, 120 * time.Second, 5 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			eff := coach.ComputeEffective(base, coach.PresetDials(tc.preset))
			if eff.Cooldown != tc.wantCool {
				t.Errorf("Cooldown=%v, want %v", eff.Cooldown, tc.wantCool)
			}
			if eff.SpeechCooldown != tc.wantSpeech {
				t.Errorf("SpeechCooldown=%v, want %v", eff.SpeechCooldown, tc.wantSpeech)
			}
			// Non-scaled fields pass through untouched.
			if eff.MinConfidence != base.MinConfidence {
				t.Errorf("MinConfidence=%v, want %v", eff.MinConfidence, base.MinConfidence)
			}
			if eff.MaxPromptsPerSession != base.MaxPromptsPerSession {
				t.Errorf("MaxPromptsPerSession=%v, want %v", eff.MaxPromptsPerSession, base.MaxPromptsPerSession)
			}
			if eff.AutoDismiss != base.AutoDismiss {
				t.Errorf("AutoDismiss=%v, want %v", eff.AutoDismiss, base.AutoDismiss)
			}
		})
	}
}

func TestDefaultThresholds(t *testing.T) {
	t.Parallel()

	d := coach.DefaultThresholds()
	if d.MinConfidence != 0.7 {
		t.Errorf("MinConfidence=%v, want 0.7", d.MinConfidence)
	}
	if d.Cooldown != 120*time.Second {
		t.Errorf("Cooldown=%v, want 2m", d.Cooldown)
	}
	if d.SpeechCooldown != 5*time.Second {
		t.Errorf("SpeechCooldown=%v, want 5s", d.SpeechCooldown)
	}
	if d.MaxPromptsPerSession != 5 {
		t.Errorf("MaxPromptsPerSession=%v, want 5", d.MaxPromptsPerSession)
	}
}
