// Command cuecard is the main entry point for the cuecard interview
// coaching server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/cuecardhq/cuecard/internal/app"
	"github.com/cuecardhq/cuecard/internal/config"
	"github.com/cuecardhq/cuecard/internal/observe"
	"github.com/cuecardhq/cuecard/internal/resilience"
	"github.com/cuecardhq/cuecard/internal/suggest"
	"github.com/cuecardhq/cuecard/internal/suggest/anyllm"
	suggestmock "github.com/cuecardhq/cuecard/internal/suggest/mock"
	"github.com/cuecardhq/cuecard/internal/suggest/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "cuecard: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cuecard: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("cuecard starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetryShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "cuecard",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithLogLevelVar(level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, application.ApplyConfig)
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmProviders lists the backends reachable through the any-llm wrapper.
var anyllmProviders = []string{
	"anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in suggestion source factories
// into reg. Each factory receives a config.ProviderEntry and constructs the
// source from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// openai goes through the native SDK for full tool-call support.
	reg.RegisterSuggestions("openai", func(entry config.ProviderEntry) (suggest.Source, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends share the any-llm pattern: optional APIKey +
	// optional BaseURL.
	for _, providerName := range anyllmProviders {
		reg.RegisterSuggestions(providerName, func(entry config.ProviderEntry) (suggest.Source, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
		slog.Debug("registered provider", "kind", "suggestions", "name", providerName)
	}

	// mock emits nothing; useful for driving the server from the candidate
	// ingestion endpoint alone.
	reg.RegisterSuggestions("mock", func(entry config.ProviderEntry) (suggest.Source, error) {
		return &suggestmock.Source{SourceName: "mock"}, nil
	})
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to
// consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.Suggestions.Name; name != "" {
		p, err := reg.CreateSuggestions(cfg.Providers.Suggestions)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "suggestions", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create suggestions provider %q: %w", name, err)
		} else {
			ps.Suggestions = wrapSuggestions(cfg, reg, p, name)
			slog.Info("provider created", "kind", "suggestions", "name", name)
		}
	}

	return ps, nil
}

// wrapSuggestions puts the source behind a circuit breaker, optionally with a
// second backend named by options.fallback. The fallback inherits no
// credentials; any-llm backends read their API keys from the environment.
func wrapSuggestions(cfg *config.Config, reg *config.Registry, primary suggest.Source, name string) suggest.Source {
	group := resilience.NewSourceFallback(primary, name, resilience.FallbackConfig{})

	entry := cfg.Providers.Suggestions
	if fbName := optString(entry.Options, "fallback"); fbName != "" {
		fb, err := reg.CreateSuggestions(config.ProviderEntry{
			Name:  fbName,
			Model: optString(entry.Options, "fallback_model"),
		})
		if err != nil {
			slog.Warn("fallback suggestion provider unavailable", "name", fbName, "err", err)
		} else {
			group.AddFallback(fbName, fb)
			slog.Info("fallback provider registered", "kind", "suggestions", "name", fbName)
		}
	}
	return group
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         cuecard — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Suggestions", providerValue(cfg.Providers.Suggestions))
	printRow("History", historyValue(cfg.History))
	printRow("Coaching", coachingValue(cfg.Coaching))
	printRow("Culture", presetValue(cfg.Coaching))
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-13s   : %-19s ║\n", kind, value)
}

func providerValue(entry config.ProviderEntry) string {
	if entry.Name == "" {
		return "(not configured)"
	}
	if entry.Model != "" {
		return entry.Name + " / " + entry.Model
	}
	return entry.Name
}

func historyValue(h config.HistoryConfig) string {
	if h.Backend == "" {
		return string(config.HistoryMemory)
	}
	return string(h.Backend)
}

func coachingValue(c config.CoachingConfig) string {
	state := "off by default"
	if c.EnabledByDefault {
		state = "on by default"
	}
	if c.DeliveryMode != "" {
		state = string(c.DeliveryMode) + ", " + state
	}
	return state
}

func presetValue(c config.CoachingConfig) string {
	if c.CulturalPreset == "" {
		return "western"
	}
	return string(c.CulturalPreset)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
