// Package app wires all cuecard subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects the
// history store, coaching engine, suggestion analysis loop, and HTTP
// gateway; Run serves until the context is cancelled; Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithHistoryStore,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/internal/config"
	"github.com/cuecardhq/cuecard/internal/gateway"
	"github.com/cuecardhq/cuecard/internal/health"
	"github.com/cuecardhq/cuecard/internal/observe"
	"github.com/cuecardhq/cuecard/internal/suggest"
	"github.com/cuecardhq/cuecard/pkg/history"
	"github.com/cuecardhq/cuecard/pkg/history/postgres"
)

// defaultAnalysisInterval is how often the analysis loop hands the
// transcript window to the suggestion source.
const defaultAnalysisInterval = 5 * time.Second

// historyWriteTimeout bounds each history append done from an engine
// listener, so a slow store cannot stall prompt resolution.
const historyWriteTimeout = 5 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	Suggestions suggest.Source
}

// App owns all subsystem lifetimes and serves the cuecard coaching API.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	metrics  *observe.Metrics
	store    history.Store
	engine   *coach.Engine
	hub      *gateway.Hub
	gw       *gateway.Gateway
	analysis *analyzer
	server   *http.Server

	interval time.Duration
	level    *slog.LevelVar

	mu        sync.Mutex
	sessionID string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistoryStore injects a history store instead of creating one from
// config.
func WithHistoryStore(s history.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metrics instruments.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithAnalysisInterval overrides the suggestion analysis cadence. Tests use
// a short interval to avoid wall-clock waits.
func WithAnalysisInterval(d time.Duration) Option {
	return func(a *App) { a.interval = d }
}

// WithLogLevelVar hands the app the level var backing the process logger so
// config reloads can adjust verbosity.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		interval:  defaultAnalysisInterval,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. History store ─────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 2. Engine + event hub ────────────────────────────────────────────
	a.hub = gateway.NewHub()
	a.initEngine()

	// ── 3. Suggestion analysis loop ──────────────────────────────────────
	if providers.Suggestions != nil {
		a.analysis = newAnalyzer(providers.Suggestions, a.engine, a.metrics, a.interval)
		a.closers = append(a.closers, providers.Suggestions.Close)
	}

	// ── 4. Gateway + HTTP server ─────────────────────────────────────────
	a.initGateway()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initHistory sets up the configured history backend or uses an injected
// store.
func (a *App) initHistory(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	switch a.cfg.History.Backend {
	case config.HistoryMemory, "":
		a.store = history.NewMemStore()
	case config.HistoryPostgres:
		dsn := a.cfg.History.PostgresDSN
		if dsn == "" {
			return fmt.Errorf("history.postgres_dsn is required for the postgres backend")
		}
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return err
		}
		a.store = store
	default:
		return fmt.Errorf("unknown history backend %q", a.cfg.History.Backend)
	}

	a.closers = append(a.closers, a.store.Close)
	return nil
}

// initEngine builds the coaching engine from the configured thresholds,
// culture, and delivery settings, with listeners fanning out to the event
// hub, the metrics instruments, and the history store.
func (a *App) initEngine() {
	opts := []coach.Option{
		coach.WithThresholds(a.cfg.Coaching.EngineThresholds()),
		coach.WithCulture(a.cfg.Coaching.EngineCulture()),
		coach.WithListeners(a.engineListeners()),
		coach.WithDropObserver(func(reason string) {
			a.metrics.RecordPromptDropped(context.Background(), reason)
		}),
	}
	if m := a.cfg.Coaching.DeliveryMode; m != "" {
		opts = append(opts, coach.WithDeliveryMode(m))
	}
	if p := a.cfg.Coaching.AutoDismissPreset; p != "" {
		opts = append(opts, coach.WithAutoDismissPreset(p))
	}

	a.engine = coach.NewEngine(opts...)
	if a.cfg.Coaching.EnabledByDefault {
		// Seed the coaching flag so sessions started without an explicit
		// choice come up enabled.
		a.engine.Enable()
	}
}

// engineListeners composes the hub broadcast listeners with metrics and
// history recording. Listener callbacks run outside the engine lock.
func (a *App) engineListeners() coach.Listeners {
	hub := gateway.EngineListeners(a.hub)
	ctx := context.Background()
	return coach.Listeners{
		OnPromptShown: func(p coach.Prompt) {
			hub.OnPromptShown(p)
			a.metrics.RecordPromptShown(ctx, p.Type.String())
		},
		OnPromptDismissed: func(p coach.Prompt, r coach.Response) {
			hub.OnPromptDismissed(p, r)
			a.metrics.RecordPromptResponse(ctx, p.Type.String(), string(r))
			a.recordOutcome(p, r)
		},
		OnPromptAutoDismissed: func(p coach.Prompt) {
			hub.OnPromptAutoDismissed(p)
			a.metrics.RecordPromptResponse(ctx, p.Type.String(), string(coach.ResponseAutoDismissed))
			a.recordOutcome(p, coach.ResponseAutoDismissed)
		},
		OnCoachingEnabled:  hub.OnCoachingEnabled,
		OnCoachingDisabled: hub.OnCoachingDisabled,
	}
}

// recordOutcome appends one resolved prompt to the durable history store,
// scoped to the active session.
func (a *App) recordOutcome(p coach.Prompt, r coach.Response) {
	a.mu.Lock()
	sessionID := a.sessionID
	a.mu.Unlock()
	if sessionID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	err := a.store.Append(ctx, history.Record{
		SessionID:  sessionID,
		PromptID:   p.ID,
		Type:       p.Type,
		Text:       p.Text,
		Reason:     p.Reason,
		Confidence: p.Confidence,
		Response:   r,
		Offset:     p.Offset,
		ResolvedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("history append failed", "session", sessionID, "prompt", p.ID, "err", err)
	}
}

// initGateway builds the HTTP surface and the server around it.
func (a *App) initGateway() {
	gwOpts := []gateway.Option{
		gateway.WithHub(a.hub),
		gateway.WithMetrics(a.metrics),
		gateway.WithHistoryStore(a.store),
		gateway.WithHealth(health.New(a.healthCheckers()...)),
		gateway.WithHooks(gateway.Hooks{
			OnSessionStart: a.onSessionStart,
			OnSessionEnd:   a.onSessionEnd,
		}),
	}
	if a.analysis != nil {
		gwOpts = append(gwOpts,
			gateway.WithTranscriptSink(a.analysis.Add),
			gateway.WithCoveredTopicSink(a.analysis.MarkCovered),
		)
	}
	a.gw = gateway.New(a.engine, gwOpts...)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// healthCheckers builds the readiness checks exposed on /readyz.
func (a *App) healthCheckers() []health.Checker {
	return []health.Checker{
		{Name: "history", Check: func(ctx context.Context) error {
			_, err := a.store.List(ctx, history.QueryOpts{Limit: 1})
			return err
		}},
		{Name: "suggestions", Check: func(_ context.Context) error {
			if a.providers.Suggestions == nil {
				return errors.New("no suggestion source configured")
			}
			return nil
		}},
	}
}

func (a *App) onSessionStart(sessionID string, plannedTopics []string) {
	a.mu.Lock()
	a.sessionID = sessionID
	a.mu.Unlock()

	a.metrics.ActiveSessions.Add(context.Background(), 1)
	if a.analysis != nil {
		a.analysis.Reset(plannedTopics)
	}
	slog.Info("session started", "session", sessionID, "topics", len(plannedTopics))
}

func (a *App) onSessionEnd(sessionID string) {
	a.mu.Lock()
	if a.sessionID == sessionID {
		a.sessionID = ""
	}
	a.mu.Unlock()

	a.metrics.ActiveSessions.Add(context.Background(), -1)
	slog.Info("session ended", "session", sessionID)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Handler exposes the gateway's HTTP handler, mainly for tests that drive
// the app through httptest instead of a listening socket.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves the coaching API and drives the suggestion analysis loop until
// ctx is cancelled, then drains the server gracefully.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", a.server.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	if a.analysis != nil {
		g.Go(func() error { return a.analysis.run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(drainCtx)
	})

	return g.Wait()
}

// ─── Config reload ───────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable differences between two configs to
// the running app: log level, delivery mode, auto-dismiss preset, cultural
// context, and thresholds. Changes requiring a restart (listen address, TLS,
// provider selection, history backend) are ignored by design of
// [config.Diff].
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if !d.CoachingChanged {
		return
	}
	if d.DeliveryModeChanged {
		if err := a.engine.SetDeliveryMode(new.Coaching.DeliveryMode); err != nil {
			slog.Warn("config reload: delivery mode rejected", "err", err)
		}
	}
	if d.AutoDismissPresetChanged {
		if err := a.engine.SetAutoDismissPreset(new.Coaching.AutoDismissPreset); err != nil {
			slog.Warn("config reload: auto-dismiss preset rejected", "err", err)
		}
	}
	if d.CultureChanged {
		a.engine.SetCulture(new.Coaching.EngineCulture())
	}
	if d.ThresholdsChanged {
		a.engine.SetThresholds(new.Coaching.EngineThresholds())
	}
	slog.Info("coaching config reloaded",
		"mode", d.DeliveryModeChanged, "preset", d.AutoDismissPresetChanged,
		"culture", d.CultureChanged, "thresholds", d.ThresholdsChanged)
}

// slogLevel maps a config log level onto slog's scale. Unknown values fall
// back to info.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
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

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
