package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CoachingChanged is true when any of the per-field flags below is set.
	CoachingChanged bool

	DeliveryModeChanged      bool
	AutoDismissPresetChanged bool
	CultureChanged           bool
	ThresholdsChanged        bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: the server
// address, TLS material, provider selection, and history backend all require
// a restart and are deliberately not diffed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Coaching.DeliveryMode != new.Coaching.DeliveryMode {
		d.DeliveryModeChanged = true
	}
	if old.Coaching.AutoDismissPreset != new.Coaching.AutoDismissPreset {
		d.AutoDismissPresetChanged = true
	}
	if old.Coaching.EngineCulture() != new.Coaching.EngineCulture() {
		d.CultureChanged = true
	}
	if old.Coaching.EngineThresholds() != new.Coaching.EngineThresholds() {
		d.ThresholdsChanged = true
	}
	d.CoachingChanged = d.DeliveryModeChanged || d.AutoDismissPresetChanged ||
		d.CultureChanged || d.ThresholdsChanged

	return d
}
