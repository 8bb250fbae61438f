package coach

import "time"

// DeliveryMode selects where validated prompts go: straight to the display
// path, into a queue the interviewer pulls from manually, or into a silent
// audit log.
type DeliveryMode string

const (
	// DeliveryImmediate shows validated prompts as soon as gating allows.
	// This is the default.
	DeliveryImmediate DeliveryMode = "immediate"

	// DeliveryPull appends validated prompts to an independent
	// priority-sorted queue; nothing is displayed until PullNext is called.
	DeliveryPull DeliveryMode = "pull"

	// DeliveryPreview appends validated prompts to an append-only log and
	// never displays them. Used to audit what would have fired.
	DeliveryPreview DeliveryMode = "preview"
)

// IsValid reports whether m is a recognised delivery mode.
func (m DeliveryMode) IsValid() bool {
	return m == DeliveryImmediate || m == DeliveryPull || m == DeliveryPreview
}

// AutoDismissPreset names an auto-dismiss duration. [DismissManual] is the
// sentinel for "no automatic dismissal": the presentation layer must
// dismiss explicitly.
type AutoDismissPreset string

const (
	DismissQuick    AutoDismissPreset = "quick"
	DismissStandard AutoDismissPreset = "standard"
	DismissRelaxed  AutoDismissPreset = "relaxed"
	DismissExtended AutoDismissPreset = "extended"
	DismissManual   AutoDismissPreset = "manual"
)

// IsValid reports whether p is a recognised auto-dismiss preset.
func (p AutoDismissPreset) IsValid() bool {
	switch p {
	case DismissQuick, DismissStandard, DismissRelaxed, DismissExtended, DismissManual:
		return true
	}
	return false
}

// Duration returns the preset's auto-dismiss duration. ok is false for
// [DismissManual] and for unrecognised presets, meaning no timer should be
// started.
func (p AutoDismissPreset) Duration() (d time.Duration, ok bool) {
	switch p {
	case DismissQuick:
		return 5 * time.Second, true
	case DismissStandard:
		return 8 * time.Second, true
	case DismissRelaxed:
		return 15 * time.Second, true
	case DismissExtended:
		return 30 * time.Second, true
	default:
		return 0, false
	}
}
