// Package gateway is the HTTP and WebSocket surface of the cuecard server.
//
// It exposes session control, prompt responses, settings mutations, speech
// and candidate ingestion, and read-only engine state as JSON endpoints, plus
// a WebSocket event stream for the coaching UI. Operational endpoints
// (/healthz, /readyz, /metrics) are mounted on the same handler.
//
// The gateway holds no coaching state of its own beyond the current session
// identifier; every decision is delegated to the [coach.Engine].
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/internal/health"
	"github.com/cuecardhq/cuecard/internal/observe"
	"github.com/cuecardhq/cuecard/internal/suggest"
	"github.com/cuecardhq/cuecard/pkg/history"
)

// Hooks notify the host application of session boundary events so it can
// scope history records, analysis, and metrics to the right session.
type Hooks struct {
	// OnSessionStart fires after a new session began, with its identifier
	// and the interviewer's planned topics.
	OnSessionStart func(sessionID string, plannedTopics []string)

	// OnSessionEnd fires after the session ended.
	OnSessionEnd func(sessionID string)
}

// Option configures a [Gateway] during construction.
type Option func(*Gateway)

// WithHistoryStore mounts the durable history read endpoints on the given
// store. Without it, GET /api/history returns 404.
func WithHistoryStore(s history.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithHealth installs the health handler serving /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(g *Gateway) { g.health = h }
}

// WithMetrics injects the metrics instruments used by the HTTP middleware.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithHooks registers session boundary callbacks.
func WithHooks(h Hooks) Option {
	return func(g *Gateway) { g.hooks = h }
}

// WithHub attaches a pre-built event hub, typically one already wired into
// the engine via [EngineListeners]. Default: a fresh hub.
func WithHub(h *Hub) Option {
	return func(g *Gateway) { g.hub = h }
}

// WithTranscriptSink registers the consumer of ingested transcript
// utterances, typically the suggestion analysis loop. Without it,
// POST /api/transcript returns 404.
func WithTranscriptSink(sink func(suggest.Utterance)) Option {
	return func(g *Gateway) { g.transcript = sink }
}

// WithCoveredTopicSink registers the consumer of covered-topic marks.
// Without it, POST /api/topics/covered returns 404.
func WithCoveredTopicSink(sink func(topic string)) Option {
	return func(g *Gateway) { g.covered = sink }
}

// Gateway serves the coaching API for a single engine instance.
type Gateway struct {
	engine     *coach.Engine
	store      history.Store
	health     *health.Handler
	metrics    *observe.Metrics
	hub        *Hub
	hooks      Hooks
	transcript func(suggest.Utterance)
	covered    func(topic string)

	mu        sync.Mutex
	sessionID string
	seq       int64
}

// New creates a gateway for the given engine.
func New(engine *coach.Engine, opts ...Option) *Gateway {
	g := &Gateway{
		engine: engine,
	}
	for _, o := range opts {
		o(g)
	}
	if g.hub == nil {
		g.hub = NewHub()
	}
	if g.health == nil {
		g.health = health.New()
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Hub returns the WebSocket event hub, for broadcasting outside the standard
// engine listeners.
func (g *Gateway) Hub() *Hub { return g.hub }

// SessionID returns the identifier of the active session, or "" when none is
// active.
func (g *Gateway) SessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID
}

// Handler builds the full route table, wrapped in the observability
// middleware.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	// Session lifecycle.
	mux.HandleFunc("POST /api/session/start", g.handleStartSession)
	mux.HandleFunc("POST /api/session/end", g.handleEndSession)
	mux.HandleFunc("POST /api/coaching/enable", g.handleEnable)
	mux.HandleFunc("POST /api/coaching/disable", g.handleDisable)

	// Ingestion.
	mux.HandleFunc("POST /api/candidates", g.handleCandidate)
	mux.HandleFunc("POST /api/speech", g.handleSpeech)
	mux.HandleFunc("POST /api/transcript", g.handleTranscript)
	mux.HandleFunc("POST /api/topics/covered", g.handleCoveredTopic)

	// User responses and pull mode.
	mux.HandleFunc("POST /api/prompts/pull", g.handlePullNext)
	mux.HandleFunc("POST /api/prompts/{id}/accept", g.handleRespond(g.engine.Accept))
	mux.HandleFunc("POST /api/prompts/{id}/dismiss", g.handleRespond(g.engine.Dismiss))
	mux.HandleFunc("POST /api/prompts/{id}/snooze", g.handleRespond(g.engine.Snooze))
	mux.HandleFunc("DELETE /api/prompts/pull", g.handleClearPull)
	mux.HandleFunc("DELETE /api/prompts/preview", g.handleClearPreview)

	// Read-only views.
	mux.HandleFunc("GET /api/state", g.handleState)
	mux.HandleFunc("GET /api/prompts/pending", g.handlePending)
	mux.HandleFunc("GET /api/prompts/queue", g.handlePullQueue)
	mux.HandleFunc("GET /api/prompts/preview", g.handlePreview)
	mux.HandleFunc("GET /api/session/history", g.handleSessionHistory)
	mux.HandleFunc("GET /api/history", g.handleHistory)
	mux.HandleFunc("GET /api/history/summary", g.handleHistorySummary)

	// Settings.
	mux.HandleFunc("GET /api/settings", g.handleGetSettings)
	mux.HandleFunc("PUT /api/settings/delivery-mode", g.handleSetDeliveryMode)
	mux.HandleFunc("PUT /api/settings/auto-dismiss", g.handleSetAutoDismiss)
	mux.HandleFunc("PUT /api/settings/culture", g.handleSetCulture)
	mux.HandleFunc("PUT /api/settings/thresholds", g.handleSetThresholds)

	// Event stream.
	mux.HandleFunc("GET /ws", g.handleWS)

	// Operational endpoints.
	g.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(g.metrics)(mux)
}

// ── Session lifecycle ───────────────────────────────────────────────────────

func (g *Gateway) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	g.mu.Lock()
	if prev := g.sessionID; prev != "" && g.hooks.OnSessionEnd != nil {
		defer g.hooks.OnSessionEnd(prev)
	}
	g.seq++
	g.sessionID = fmt.Sprintf("session-%d-%d", time.Now().Unix(), g.seq)
	id := g.sessionID
	g.mu.Unlock()

	var opts []coach.SessionOption
	if req.Enabled != nil {
		opts = append(opts, coach.WithCoachingEnabled(*req.Enabled))
	}
	g.engine.StartSession(opts...)

	if g.hooks.OnSessionStart != nil {
		g.hooks.OnSessionStart(id, req.PlannedTopics)
	}
	g.hub.Broadcast(Event{Type: "session_started"})

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"enabled":    g.engine.Enabled(),
		"state":      g.engine.State().String(),
	})
}

func (g *Gateway) handleEndSession(w http.ResponseWriter, _ *http.Request) {
	g.mu.Lock()
	id := g.sessionID
	g.sessionID = ""
	g.mu.Unlock()

	if id == "" {
		http.Error(w, "no active session", http.StatusConflict)
		return
	}

	g.engine.EndSession()
	if g.hooks.OnSessionEnd != nil {
		g.hooks.OnSessionEnd(id)
	}
	g.hub.Broadcast(Event{Type: "session_ended"})
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleEnable(w http.ResponseWriter, _ *http.Request) {
	g.engine.Enable()
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleDisable(w http.ResponseWriter, _ *http.Request) {
	g.engine.Disable()
	w.WriteHeader(http.StatusNoContent)
}

// ── Ingestion ───────────────────────────────────────────────────────────────

func (g *Gateway) handleCandidate(w http.ResponseWriter, r *http.Request) {
	var req candidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	g.engine.ProcessCandidate(coach.RawSuggestion{
		Name:      req.Name,
		Arguments: req.Arguments,
		Timestamp: time.Duration(req.TimestampMS) * time.Millisecond,
	})
	// Drops are policy, not faults, so intake always answers 202.
	w.WriteHeader(http.StatusAccepted)
}

func (g *Gateway) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	g.engine.NotifySpeechDetected(req.At)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if g.transcript == nil {
		http.Error(w, "transcript ingestion not configured", http.StatusNotFound)
		return
	}
	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	role := suggest.Role(req.Speaker)
	if !role.IsValid() {
		http.Error(w, fmt.Sprintf("unknown speaker role %q", req.Speaker), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	g.transcript(suggest.Utterance{
		Speaker: role,
		Text:    req.Text,
		Start:   time.Duration(req.StartMS) * time.Millisecond,
	})

	// Participant speech also feeds the speech-adjacency gate.
	if role == suggest.RoleParticipant {
		g.engine.NotifySpeechDetected(time.Time{})
	}
	w.WriteHeader(http.StatusAccepted)
}

func (g *Gateway) handleCoveredTopic(w http.ResponseWriter, r *http.Request) {
	if g.covered == nil {
		http.Error(w, "topic tracking not configured", http.StatusNotFound)
		return
	}
	var req struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}
	g.covered(req.Topic)
	w.WriteHeader(http.StatusNoContent)
}

// ── Responses and pull mode ─────────────────────────────────────────────────

// handleRespond adapts an engine response method into a handler. A stale or
// mismatched prompt id is a silent no-op in the engine, so the endpoint
// answers 204 either way.
func (g *Gateway) handleRespond(respond func(id string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			http.Error(w, "prompt id is required", http.StatusBadRequest)
			return
		}
		respond(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (g *Gateway) handlePullNext(w http.ResponseWriter, _ *http.Request) {
	p, ok := g.engine.PullNext()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toPromptPayload(p))
}

func (g *Gateway) handleClearPull(w http.ResponseWriter, _ *http.Request) {
	g.engine.ClearPullQueue()
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleClearPreview(w http.ResponseWriter, _ *http.Request) {
	g.engine.ClearPreviewLog()
	w.WriteHeader(http.StatusNoContent)
}

// ── Read-only views ─────────────────────────────────────────────────────────

func (g *Gateway) handleState(w http.ResponseWriter, _ *http.Request) {
	st := statePayload{
		SessionID:           g.SessionID(),
		State:               g.engine.State().String(),
		Enabled:             g.engine.Enabled(),
		ShownCount:          g.engine.ShownCount(),
		DeliveryMode:        string(g.engine.DeliveryMode()),
		AutoDismissPreset:   string(g.engine.AutoDismissPreset()),
		CulturalPreset:      string(g.engine.Culture().Preset),
		CooldownRemainingMS: g.engine.CooldownRemaining().Milliseconds(),
		PendingCount:        len(g.engine.Pending()),
		PullQueueCount:      len(g.engine.PullQueue()),
	}
	if p, ok := g.engine.CurrentPrompt(); ok {
		st.Current = toPromptPayload(p)
	}
	writeJSON(w, http.StatusOK, st)
}

func (g *Gateway) handlePending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toPromptPayloads(g.engine.Pending()))
}

func (g *Gateway) handlePullQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toPromptPayloads(g.engine.PullQueue()))
}

func (g *Gateway) handlePreview(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toPromptPayloads(g.engine.PreviewLog()))
}

func (g *Gateway) handleSessionHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toOutcomePayloads(g.engine.History()))
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		http.Error(w, "history store not configured", http.StatusNotFound)
		return
	}
	opts := history.QueryOpts{
		SessionID: r.URL.Query().Get("session_id"),
		Response:  coach.Response(r.URL.Query().Get("response")),
	}
	records, err := g.store.List(r.Context(), opts)
	if err != nil {
		observe.Logger(r.Context()).Error("history list failed", "err", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toRecordPayloads(records))
}

func (g *Gateway) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		http.Error(w, "history store not configured", http.StatusNotFound)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = g.SessionID()
	}
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	sum, err := g.store.Summarize(r.Context(), sessionID)
	if err != nil {
		observe.Logger(r.Context()).Error("history summary failed", "err", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":     sessionID,
		"total":          sum.Total,
		"accepted":       sum.Accepted,
		"dismissed":      sum.Dismissed,
		"auto_dismissed": sum.AutoDismissed,
		"snoozed":        sum.Snoozed,
	})
}

// ── Settings ────────────────────────────────────────────────────────────────

func (g *Gateway) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, settingsPayload{
		DeliveryMode:      string(g.engine.DeliveryMode()),
		AutoDismissPreset: string(g.engine.AutoDismissPreset()),
		Culture:           toCulturePayload(g.engine.Culture()),
		Thresholds:        toThresholdsPayload(g.engine.Thresholds()),
	})
}

func (g *Gateway) handleSetDeliveryMode(w http.ResponseWriter, r *http.Request) {
	var req deliveryModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := g.engine.SetDeliveryMode(coach.DeliveryMode(req.Mode)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleSetAutoDismiss(w http.ResponseWriter, r *http.Request) {
	var req autoDismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := g.engine.SetAutoDismissPreset(coach.AutoDismissPreset(req.Preset)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleSetCulture(w http.ResponseWriter, r *http.Request) {
	var req cultureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	preset := coach.Preset(req.Preset)
	if !preset.IsValid() {
		http.Error(w, fmt.Sprintf("unknown cultural preset %q", req.Preset), http.StatusBadRequest)
		return
	}

	dials := coach.PresetDials(preset)
	if preset == coach.PresetCustom {
		if req.SilenceTolerance != nil {
			if *req.SilenceTolerance <= 0 {
				http.Error(w, "silence_tolerance_seconds must be positive", http.StatusBadRequest)
				return
			}
			dials.SilenceTolerance = *req.SilenceTolerance
		}
		if req.QuestionPacing != nil {
			if *req.QuestionPacing <= 0 {
				http.Error(w, "question_pacing must be positive", http.StatusBadRequest)
				return
			}
			dials.QuestionPacing = *req.QuestionPacing
		}
		if req.InterruptionSensitivity != nil {
			if *req.InterruptionSensitivity < 0 || *req.InterruptionSensitivity > 1 {
				http.Error(w, "interruption_sensitivity must be in [0, 1]", http.StatusBadRequest)
				return
			}
			dials.InterruptionSensitivity = *req.InterruptionSensitivity
		}
		if req.Formality != "" {
			f := coach.Formality(req.Formality)
			if !f.IsValid() {
				http.Error(w, fmt.Sprintf("unknown formality %q", req.Formality), http.StatusBadRequest)
				return
			}
			dials.Formality = f
		}
		if req.ShowExplanations != nil {
			dials.ShowExplanations = *req.ShowExplanations
		}
		if req.BiasAlerts != nil {
			dials.BiasAlerts = *req.BiasAlerts
		}
	}

	g.engine.SetCulture(dials)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t := g.engine.Thresholds()
	if req.MinConfidence != nil {
		if *req.MinConfidence < 0 || *req.MinConfidence > 1 {
			http.Error(w, "min_confidence must be in [0, 1]", http.StatusBadRequest)
			return
		}
		t.MinConfidence = *req.MinConfidence
	}
	if req.CooldownSeconds != nil {
		if *req.CooldownSeconds < 0 {
			http.Error(w, "cooldown_seconds must not be negative", http.StatusBadRequest)
			return
		}
		t.Cooldown = time.Duration(*req.CooldownSeconds * float64(time.Second))
	}
	if req.SpeechCooldownSeconds != nil {
		if *req.SpeechCooldownSeconds < 0 {
			http.Error(w, "speech_cooldown_seconds must not be negative", http.StatusBadRequest)
			return
		}
		t.SpeechCooldown = time.Duration(*req.SpeechCooldownSeconds * float64(time.Second))
	}
	if req.MaxPromptsPerSession != nil {
		if *req.MaxPromptsPerSession < 0 {
			http.Error(w, "max_prompts_per_session must not be negative", http.StatusBadRequest)
			return
		}
		t.MaxPromptsPerSession = *req.MaxPromptsPerSession
	}
	if req.AutoDismissSeconds != nil {
		t.AutoDismiss = time.Duration(*req.AutoDismissSeconds * float64(time.Second))
	}
	if req.FadeInMillis != nil {
		t.FadeIn = time.Duration(*req.FadeInMillis) * time.Millisecond
	}
	if req.FadeOutMillis != nil {
		t.FadeOut = time.Duration(*req.FadeOutMillis) * time.Millisecond
	}
	if req.Sensitivity != nil {
		t.Sensitivity = *req.Sensitivity
	}

	g.engine.SetThresholds(t)
	w.WriteHeader(http.StatusNoContent)
}

// ── Helpers ─────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
