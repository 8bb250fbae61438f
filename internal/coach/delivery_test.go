package coach_test

import (
	"testing"
	"time"

	"github.com/cuecardhq/cuecard/internal/coach"
)

func TestAutoDismissPresetDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		preset coach.AutoDismissPreset
		want   time.Duration
		wantOK bool
	}{
		{coach.DismissQuick, 5 * time.Second, true},
		{coach.DismissStandard, 8 * time.Second, true},
		{coach.DismissRelaxed, 15 * time.Second, true},
		{coach.DismissExtended, 30 * time.Second, true},
		{coach.DismissManual, 0, false},
		{coach.AutoDismissPreset("bogus"), 0, false},
	}
	for _, tc := range tests {
		d, ok := tc.preset.Duration()
		if d != tc.want || ok != tc.wantOK {
			t.Errorf("Duration(%q)=%v,%v, want %v,%v", tc.preset, d, ok, tc.want, tc.wantOK)
		}
	}
}

func TestDeliveryModeIsValid(t *testing.T) {
	t.Parallel()

	for _, m := range []coach.DeliveryMode{coach.DeliveryImmediate, coach.DeliveryPull, coach.DeliveryPreview} {
		if !m.IsValid() {
			t.Errorf("IsValid(%q)=false, want true", m)
		}
	}
	if coach.DeliveryMode("push").IsValid() {
		t.Error("IsValid(\"push\")=true, want false")
	}
}
