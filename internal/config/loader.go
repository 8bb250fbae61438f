package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/cuecardhq/cuecard/internal/coach"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"suggestions": {
		"openai", "anthropic", "gemini", "ollama",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile", "mock",
	},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("suggestions", cfg.Providers.Suggestions.Name)
	if cfg.Providers.Suggestions.Name == "" {
		slog.Warn("no suggestion provider configured; sessions will receive no coaching prompts")
	}

	// Coaching enums
	co := cfg.Coaching
	if co.DeliveryMode != "" && !co.DeliveryMode.IsValid() {
		errs = append(errs, fmt.Errorf("coaching.delivery_mode %q is invalid; valid values: immediate, pull, preview", co.DeliveryMode))
	}
	if co.AutoDismissPreset != "" && !co.AutoDismissPreset.IsValid() {
		errs = append(errs, fmt.Errorf("coaching.auto_dismiss_preset %q is invalid; valid values: quick, standard, relaxed, extended, manual", co.AutoDismissPreset))
	}
	if co.CulturalPreset != "" && !co.CulturalPreset.IsValid() {
		errs = append(errs, fmt.Errorf("coaching.cultural_preset %q is invalid; valid values: western, east-asian, latin-american, middle-eastern, custom", co.CulturalPreset))
	}

	// Custom culture dials
	if co.Culture != nil {
		if co.CulturalPreset != "" && co.CulturalPreset.IsValid() && co.CulturalPreset != coach.PresetCustom {
			slog.Warn("coaching.culture is set but the cultural preset is not custom; the preset's canonical dials win",
				"preset", co.CulturalPreset,
			)
		}
		cu := co.Culture
		if cu.SilenceToleranceSeconds != nil && *cu.SilenceToleranceSeconds <= 0 {
			errs = append(errs, fmt.Errorf("coaching.culture.silence_tolerance_seconds %.2f must be > 0", *cu.SilenceToleranceSeconds))
		}
		if cu.QuestionPacing != nil && *cu.QuestionPacing <= 0 {
			errs = append(errs, fmt.Errorf("coaching.culture.question_pacing %.2f must be > 0", *cu.QuestionPacing))
		}
		if cu.InterruptionSensitivity != nil {
			if v := *cu.InterruptionSensitivity; v < 0 || v > 1 {
				errs = append(errs, fmt.Errorf("coaching.culture.interruption_sensitivity %.2f is out of range [0, 1]", v))
			}
		}
		if cu.Formality != "" && !cu.Formality.IsValid() {
			errs = append(errs, fmt.Errorf("coaching.culture.formality %q is invalid; valid values: casual, neutral, formal", cu.Formality))
		}
	}

	// Thresholds
	th := co.Thresholds
	if th.MinConfidence != nil {
		if v := *th.MinConfidence; v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("coaching.thresholds.min_confidence %.2f is out of range [0, 1]", v))
		}
	}
	if th.CooldownSeconds != nil && *th.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("coaching.thresholds.cooldown_seconds %.2f must be >= 0", *th.CooldownSeconds))
	}
	if th.SpeechCooldownSeconds != nil && *th.SpeechCooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("coaching.thresholds.speech_cooldown_seconds %.2f must be >= 0", *th.SpeechCooldownSeconds))
	}
	if th.MaxPromptsPerSession != nil && *th.MaxPromptsPerSession < 0 {
		errs = append(errs, fmt.Errorf("coaching.thresholds.max_prompts_per_session %d must be >= 0", *th.MaxPromptsPerSession))
	}
	if th.AutoDismissSeconds != nil && *th.AutoDismissSeconds < 0 {
		errs = append(errs, fmt.Errorf("coaching.thresholds.auto_dismiss_seconds %.2f must be >= 0", *th.AutoDismissSeconds))
	}
	if th.FadeInMillis != nil && *th.FadeInMillis < 0 {
		errs = append(errs, fmt.Errorf("coaching.thresholds.fade_in_millis %d must be >= 0", *th.FadeInMillis))
	}
	if th.FadeOutMillis != nil && *th.FadeOutMillis < 0 {
		errs = append(errs, fmt.Errorf("coaching.thresholds.fade_out_millis %d must be >= 0", *th.FadeOutMillis))
	}
	if th.Sensitivity != nil && *th.Sensitivity <= 0 {
		errs = append(errs, fmt.Errorf("coaching.thresholds.sensitivity %.2f must be > 0", *th.Sensitivity))
	}

	// History
	if cfg.History.Backend != "" && !cfg.History.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("history.backend %q is invalid; valid values: memory, postgres", cfg.History.Backend))
	}
	if cfg.History.Backend == HistoryPostgres && cfg.History.PostgresDSN == "" {
		errs = append(errs, errors.New("history.postgres_dsn is required when history.backend is postgres"))
	}
	if cfg.History.Backend != HistoryPostgres && cfg.History.PostgresDSN != "" {
		slog.Warn("history.postgres_dsn is set but the backend is not postgres; the DSN is ignored",
			"backend", cfg.History.Backend,
		)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
