package coach

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// settleDelay is the fixed pause between resolving a displayed prompt and
// attempting to promote the next pending one. It exists so prompts do not
// visually stack with zero gap.
const settleDelay = 500 * time.Millisecond

// State is the session lifecycle state of the engine.
type State int

const (
	// StateDisabled means a session is active but coaching is switched off.
	StateDisabled State = iota

	// StateIdle means coaching is enabled and nothing is displayed.
	StateIdle

	// StateDisplaying means one prompt is visible, possibly with a running
	// auto-dismiss timer.
	StateDisplaying

	// StateEnded means no session is active. Terminal until StartSession.
	StateEnded
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateIdle:
		return "idle"
	case StateDisplaying:
		return "displaying"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Listeners are the presentation-layer hooks. All callbacks are invoked
// outside the engine's lock, so a listener may safely call back into the
// engine. Nil callbacks are skipped.
type Listeners struct {
	// OnPromptShown fires when a prompt is promoted to the display slot.
	OnPromptShown func(Prompt)

	// OnPromptDismissed fires when a displayed prompt is resolved by the
	// user or by an implicit dismiss (accepted, dismissed, or snoozed).
	OnPromptDismissed func(Prompt, Response)

	// OnPromptAutoDismissed fires when the auto-dismiss timer resolves a
	// displayed prompt.
	OnPromptAutoDismissed func(Prompt)

	// OnCoachingEnabled and OnCoachingDisabled fire on flag transitions
	// during an active session.
	OnCoachingEnabled  func()
	OnCoachingDisabled func()
}

// Option configures an [Engine] during construction.
type Option func(*Engine)

// WithScheduler injects the clock/timer source. Tests use a fake scheduler
// to drive gating without wall-clock waits.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithParser injects the candidate parser used by ProcessCandidate.
func WithParser(p *Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithListeners registers the presentation-layer hooks.
func WithListeners(l Listeners) Option {
	return func(e *Engine) { e.listeners = l }
}

// WithThresholds overrides the default gating thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithCulture overrides the default (Western) cultural context.
func WithCulture(c CulturalContext) Option {
	return func(e *Engine) { e.culture = c }
}

// WithDeliveryMode sets the initial delivery mode. Default: immediate.
func WithDeliveryMode(m DeliveryMode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithAutoDismissPreset sets the initial auto-dismiss preset.
// Default: standard (8s).
func WithAutoDismissPreset(p AutoDismissPreset) Option {
	return func(e *Engine) { e.preset = p }
}

// WithDropObserver registers a callback invoked with a reason label every
// time a candidate or prompt is dropped by policy. The observer may run with
// the engine lock held and must not call back into the engine.
func WithDropObserver(fn func(reason string)) Option {
	return func(e *Engine) { e.onDrop = fn }
}

// SessionOption configures a StartSession call.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	enabled *bool
}

// WithCoachingEnabled sets the coaching flag for the new session. When not
// supplied, the flag carries over from the previous session; a fresh engine
// starts with coaching off — coaching is opt-in per session.
func WithCoachingEnabled(enabled bool) SessionOption {
	return func(o *sessionOptions) { o.enabled = &enabled }
}

// Engine is the coaching prompt state machine for a single interview
// session. One session owns one engine instance; there is no cross-session
// shared state.
//
// All exported methods are safe for concurrent use. Listener callbacks and
// scheduled timer callbacks are serialised through the same mutex, and every
// timer callback re-checks the engine state before acting, so a callback
// firing after cancellation is a no-op.
type Engine struct {
	mu     sync.Mutex
	sched  Scheduler
	parser *Parser

	listeners Listeners
	onDrop    func(reason string)

	thresholds Thresholds
	culture    CulturalContext
	mode       DeliveryMode
	preset     AutoDismissPreset

	state      State
	enabled    bool
	shownCount int
	lastShown  time.Time
	lastSpeech time.Time
	sessionAt  time.Time

	pending promptQueue
	pull    promptQueue
	preview []Prompt
	current *Prompt
	history []Outcome

	dismissTimer Handle
	promoteTimer Handle

	seq int64
}

// NewEngine creates an engine with no active session. Call StartSession
// before submitting prompts; anything submitted before then is dropped.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		sched:      NewScheduler(),
		parser:     NewParser(),
		thresholds: DefaultThresholds(),
		culture:    PresetDials(PresetWestern),
		mode:       DeliveryImmediate,
		preset:     DismissStandard,
		state:      StateEnded,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ─── Session lifecycle ───────────────────────────────────────────────────────

// StartSession resets all counters, queues, logs, and history for a fresh
// session. The coaching flag defaults to its previous value unless
// [WithCoachingEnabled] is supplied; the initial state is Idle when enabled
// and Disabled otherwise.
func (e *Engine) StartSession(opts ...SessionOption) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelTimersLocked()
	e.shownCount = 0
	e.lastShown = time.Time{}
	e.lastSpeech = time.Time{}
	e.pending.clear()
	e.pull.clear()
	e.preview = nil
	e.history = nil
	e.current = nil
	e.sessionAt = e.sched.Now()

	if o.enabled != nil {
		e.enabled = *o.enabled
	}
	if e.enabled {
		e.state = StateIdle
	} else {
		e.state = StateDisabled
	}

	slog.Info("coaching session started", "enabled", e.enabled, "mode", e.mode)
}

// EndSession tears the session down: outstanding timers are cancelled and
// the queue and displayed prompt are dropped without recording a response.
// No further listener events are emitted until the next StartSession.
func (e *Engine) EndSession() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateEnded {
		return
	}
	e.cancelTimersLocked()
	e.pending.clear()
	e.current = nil
	e.state = StateEnded

	slog.Info("coaching session ended", "shown", e.shownCount)
}

// Enable switches coaching on. If prompts are already pending, the engine
// immediately attempts to promote the next eligible one.
func (e *Engine) Enable() {
	e.mu.Lock()
	was := e.enabled
	e.enabled = true
	var cbs []func()
	if e.state == StateDisabled {
		e.state = StateIdle
		if !was && e.listeners.OnCoachingEnabled != nil {
			cbs = append(cbs, e.listeners.OnCoachingEnabled)
		}
		cbs = append(cbs, e.promoteLocked()...)
	}
	e.mu.Unlock()
	run(cbs)
}

// Disable switches coaching off. A displayed prompt is implicitly dismissed
// (response "dismissed") and the pending queue is cleared; no prompt is
// shown again until Enable.
func (e *Engine) Disable() {
	e.mu.Lock()
	was := e.enabled
	e.enabled = false
	var cbs []func()
	if e.state == StateDisplaying {
		cbs = e.finishLocked(ResponseDismissed)
	}
	e.pending.clear()
	e.cancelPromoteLocked()
	if e.state == StateIdle {
		e.state = StateDisabled
	}
	if was && e.listeners.OnCoachingDisabled != nil {
		cbs = append(cbs, e.listeners.OnCoachingDisabled)
	}
	e.mu.Unlock()
	run(cbs)
}

// ─── Prompt intake ───────────────────────────────────────────────────────────

// ProcessCandidate parses a raw suggestion-source event and submits the
// resulting prompt. Unparsable candidates are silently dropped, by policy.
func (e *Engine) ProcessCandidate(raw RawSuggestion) {
	p, ok := e.parser.Parse(raw)
	if !ok {
		slog.Debug("candidate dropped: unparsable", "name", raw.Name)
		e.dropped("unparsable")
		return
	}
	e.SubmitPrompt(p)
}

// SubmitPrompt validates a prompt and routes it according to the active
// delivery mode. Prompts are dropped — silently, these are policy
// rejections rather than faults — when no session is active, coaching is
// disabled, the session cap has been reached, or the confidence floor is
// not met.
func (e *Engine) SubmitPrompt(p Prompt) {
	e.mu.Lock()
	cbs := e.submitLocked(p)
	e.mu.Unlock()
	run(cbs)
}

func (e *Engine) submitLocked(p Prompt) []func() {
	if e.state == StateEnded {
		return nil
	}
	if !e.enabled {
		slog.Debug("prompt dropped: coaching disabled", "type", p.Type)
		e.dropped("disabled")
		return nil
	}
	eff := e.effectiveLocked()
	if e.shownCount >= eff.MaxPromptsPerSession {
		slog.Debug("prompt dropped: session cap reached", "type", p.Type, "cap", eff.MaxPromptsPerSession)
		e.dropped("session_cap")
		return nil
	}
	if p.Confidence < eff.MinConfidence {
		slog.Debug("prompt dropped: below confidence floor",
			"type", p.Type, "confidence", p.Confidence, "floor", eff.MinConfidence)
		e.dropped("low_confidence")
		return nil
	}

	if p.ID == "" {
		e.seq++
		p.ID = fmt.Sprintf("prompt-%d", e.seq)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = e.sched.Now()
	}

	switch e.mode {
	case DeliveryPreview:
		e.preview = append(e.preview, p)
		return nil
	case DeliveryPull:
		e.pull.insert(p)
		return nil
	default:
		if e.canShowNowLocked(eff) {
			return e.showLocked(p)
		}
		e.pending.insert(p)
		e.scheduleRetryLocked(eff)
		return nil
	}
}

// NotifySpeechDetected records the most recent speech time for future
// gating checks; it never affects the currently displayed prompt. A zero at
// means "now".
func (e *Engine) NotifySpeechDetected(at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if at.IsZero() {
		at = e.sched.Now()
	}
	if at.After(e.lastSpeech) {
		e.lastSpeech = at
	}
	if e.state == StateIdle && e.pending.len() > 0 {
		e.scheduleRetryLocked(e.effectiveLocked())
	}
}

// ─── User responses ──────────────────────────────────────────────────────────

// Accept resolves the displayed prompt as acted upon. A stale or mismatched
// id is ignored rather than applied to whatever happens to be displayed.
func (e *Engine) Accept(id string) { e.respond(id, ResponseAccepted) }

// Dismiss resolves the displayed prompt as rejected.
func (e *Engine) Dismiss(id string) { e.respond(id, ResponseDismissed) }

// Snooze resolves the displayed prompt but re-inserts it at the front of
// the pending queue and returns its slot under the session cap; cooldown
// still applies before it can reappear.
func (e *Engine) Snooze(id string) { e.respond(id, ResponseSnoozed) }

func (e *Engine) respond(id string, r Response) {
	e.mu.Lock()
	var cbs []func()
	if e.state == StateDisplaying && e.current != nil && e.current.ID == id {
		cbs = e.finishLocked(r)
	}
	e.mu.Unlock()
	run(cbs)
}

// autoDismiss is the auto-dismiss timer callback. The id guard makes a late
// firing after cancellation or replacement a no-op.
func (e *Engine) autoDismiss(id string) {
	e.mu.Lock()
	var cbs []func()
	if e.state == StateDisplaying && e.current != nil && e.current.ID == id {
		cbs = e.finishLocked(ResponseAutoDismissed)
	}
	e.mu.Unlock()
	run(cbs)
}

// finishLocked ends the Displaying state for the current prompt: cancels
// the timer, records the outcome, clears the slot, applies snooze
// bookkeeping, and schedules the settle-delayed promotion attempt.
func (e *Engine) finishLocked(r Response) []func() {
	p := *e.current
	if e.dismissTimer != nil {
		e.dismissTimer.Cancel()
		e.dismissTimer = nil
	}
	e.history = append(e.history, Outcome{Prompt: p, Response: r, At: e.sched.Now()})
	e.current = nil
	e.state = StateIdle

	if r == ResponseSnoozed {
		// A snoozed prompt does not count against the session cap until it
		// is actually shown again. lastShown is left as-is, so the full
		// cooldown still gates its reappearance.
		e.shownCount--
		e.pending.pushFront(p)
	}

	e.cancelPromoteLocked()
	e.promoteTimer = e.sched.AfterFunc(settleDelay, e.promote)

	slog.Debug("prompt resolved", "id", p.ID, "response", r)

	var cbs []func()
	if r == ResponseAutoDismissed {
		if e.listeners.OnPromptAutoDismissed != nil {
			cbs = append(cbs, func() { e.listeners.OnPromptAutoDismissed(p) })
		}
	} else if e.listeners.OnPromptDismissed != nil {
		cbs = append(cbs, func() { e.listeners.OnPromptDismissed(p, r) })
	}
	return cbs
}

// ─── Display path ────────────────────────────────────────────────────────────

// canShowNowLocked is the three-way display gate: nothing currently
// displayed, the prompt cooldown elapsed, and the speech-adjacency delay
// elapsed.
func (e *Engine) canShowNowLocked(eff EffectiveThresholds) bool {
	if e.current != nil {
		return false
	}
	now := e.sched.Now()
	if !e.lastShown.IsZero() && now.Sub(e.lastShown) < eff.Cooldown {
		return false
	}
	if !e.lastSpeech.IsZero() && now.Sub(e.lastSpeech) < eff.SpeechCooldown {
		return false
	}
	return true
}

// showLocked promotes p to the display slot and starts the auto-dismiss
// timer unless the manual preset is active.
func (e *Engine) showLocked(p Prompt) []func() {
	e.shownCount++
	e.lastShown = e.sched.Now()
	shown := p
	e.current = &shown
	e.state = StateDisplaying

	if d, ok := e.resolveAutoDismissLocked(); ok {
		id := p.ID
		e.dismissTimer = e.sched.AfterFunc(d, func() { e.autoDismiss(id) })
	}

	slog.Debug("prompt shown", "id", p.ID, "type", p.Type, "shown_count", e.shownCount)

	if e.listeners.OnPromptShown != nil {
		return []func(){func() { e.listeners.OnPromptShown(shown) }}
	}
	return nil
}

// resolveAutoDismissLocked returns the auto-dismiss duration for the next
// shown prompt. The preset wins when it names a duration; the manual preset
// suppresses the timer entirely; otherwise the base threshold applies.
func (e *Engine) resolveAutoDismissLocked() (time.Duration, bool) {
	if d, ok := e.preset.Duration(); ok {
		return d, true
	}
	if e.preset == DismissManual {
		return 0, false
	}
	if e.thresholds.AutoDismiss > 0 {
		return e.thresholds.AutoDismiss, true
	}
	return 0, false
}

// promote is the settle-timer callback: it re-runs full gating and
// validation, since conditions may have changed, and shows the first
// eligible pending prompt. Prompts failing re-validation are skipped and
// the next one tried.
func (e *Engine) promote() {
	e.mu.Lock()
	cbs := e.promoteLocked()
	e.mu.Unlock()
	run(cbs)
}

func (e *Engine) promoteLocked() []func() {
	if e.state != StateIdle || !e.enabled || e.pending.len() == 0 {
		return nil
	}
	eff := e.effectiveLocked()
	if e.shownCount >= eff.MaxPromptsPerSession {
		// Pending prompts stay queued; a snooze may free a slot later.
		return nil
	}
	if !e.canShowNowLocked(eff) {
		e.scheduleRetryLocked(eff)
		return nil
	}
	for {
		p, ok := e.pending.popFront()
		if !ok {
			return nil
		}
		if p.Confidence < eff.MinConfidence {
			slog.Debug("pending prompt skipped: below confidence floor", "id", p.ID)
			continue
		}
		return e.showLocked(p)
	}
}

// scheduleRetryLocked arms the promote timer for the moment the time-based
// gates clear. Harmless to call when nothing is pending.
func (e *Engine) scheduleRetryLocked(eff EffectiveThresholds) {
	if e.state != StateIdle || e.pending.len() == 0 {
		return
	}
	now := e.sched.Now()
	wait := settleDelay
	if !e.lastShown.IsZero() {
		if r := eff.Cooldown - now.Sub(e.lastShown); r > wait {
			wait = r
		}
	}
	if !e.lastSpeech.IsZero() {
		if r := eff.SpeechCooldown - now.Sub(e.lastSpeech); r > wait {
			wait = r
		}
	}
	e.cancelPromoteLocked()
	e.promoteTimer = e.sched.AfterFunc(wait, e.promote)
}

// ─── Pull mode ───────────────────────────────────────────────────────────────

// PullNext pops the highest-priority pull-queue entry and feeds it through
// the normal display path. It is a no-op returning ok=false outside pull
// mode, with an empty queue, while something is displayed, within a
// cooldown window, or once the session cap is reached.
func (e *Engine) PullNext() (Prompt, bool) {
	e.mu.Lock()
	var (
		res Prompt
		ok  bool
		cbs []func()
	)
	if e.mode == DeliveryPull && e.state == StateIdle && e.enabled {
		eff := e.effectiveLocked()
		if e.shownCount < eff.MaxPromptsPerSession && e.canShowNowLocked(eff) {
			for {
				p, found := e.pull.popFront()
				if !found {
					break
				}
				if p.Confidence < eff.MinConfidence {
					continue
				}
				cbs = e.showLocked(p)
				res, ok = p, true
				break
			}
		}
	}
	e.mu.Unlock()
	run(cbs)
	return res, ok
}

// ClearPullQueue drops all pull-mode entries. Queues are mode-scoped;
// switching delivery mode never migrates or drops them implicitly, so a
// clean switch requires an explicit clear.
func (e *Engine) ClearPullQueue() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pull.clear()
}

// ClearPreviewLog drops the preview audit log.
func (e *Engine) ClearPreviewLog() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preview = nil
}

// ─── Settings ────────────────────────────────────────────────────────────────

// SetThresholds replaces the base gating thresholds. Effective values are
// recomputed on every gating check, so the change applies immediately.
func (e *Engine) SetThresholds(t Thresholds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = t
}

// SetCulture replaces the cultural context.
func (e *Engine) SetCulture(c CulturalContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.culture = c
}

// SetCulturePreset replaces the cultural context with a preset's canonical
// dial assignment.
func (e *Engine) SetCulturePreset(p Preset) error {
	if !p.IsValid() {
		return fmt.Errorf("coach: unknown cultural preset %q", p)
	}
	e.SetCulture(PresetDials(p))
	return nil
}

// SetDeliveryMode switches the delivery strategy for prompts submitted from
// now on. Prompts already sitting in another mode's container stay there.
func (e *Engine) SetDeliveryMode(m DeliveryMode) error {
	if !m.IsValid() {
		return fmt.Errorf("coach: unknown delivery mode %q", m)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = m
	return nil
}

// SetAutoDismissPreset selects the auto-dismiss timing for the next prompt
// shown; a timer already running is not altered.
func (e *Engine) SetAutoDismissPreset(p AutoDismissPreset) error {
	if !p.IsValid() {
		return fmt.Errorf("coach: unknown auto-dismiss preset %q", p)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preset = p
	return nil
}

// ─── Read-only views ─────────────────────────────────────────────────────────

// CurrentPrompt returns the displayed prompt, if any.
func (e *Engine) CurrentPrompt() (Prompt, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return Prompt{}, false
	}
	return *e.current, true
}

// State returns the session lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Enabled reports the coaching flag.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// ShownCount returns how many prompts count against the session cap.
func (e *Engine) ShownCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shownCount
}

// Pending returns the immediate-mode pending queue in dequeue order.
func (e *Engine) Pending() []Prompt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.snapshot()
}

// PullQueue returns the pull-mode queue in dequeue order.
func (e *Engine) PullQueue() []Prompt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pull.snapshot()
}

// PreviewLog returns the preview-mode audit log in arrival order.
func (e *Engine) PreviewLog() []Prompt {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Prompt, len(e.preview))
	copy(out, e.preview)
	return out
}

// History returns the session's resolved-prompt history in order.
func (e *Engine) History() []Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Outcome, len(e.history))
	copy(out, e.history)
	return out
}

// CooldownRemaining returns how long the time-based gates (prompt cooldown
// and speech-adjacency delay, whichever clears later) still block a new
// prompt. Zero means a prompt could be shown now, display slot and cap
// permitting.
func (e *Engine) CooldownRemaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	eff := e.effectiveLocked()
	now := e.sched.Now()
	var wait time.Duration
	if !e.lastShown.IsZero() {
		if r := eff.Cooldown - now.Sub(e.lastShown); r > wait {
			wait = r
		}
	}
	if !e.lastSpeech.IsZero() {
		if r := eff.SpeechCooldown - now.Sub(e.lastSpeech); r > wait {
			wait = r
		}
	}
	return wait
}

// DeliveryMode returns the active delivery mode.
func (e *Engine) DeliveryMode() DeliveryMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// AutoDismissPreset returns the active auto-dismiss preset.
func (e *Engine) AutoDismissPreset() AutoDismissPreset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preset
}

// Thresholds returns the base gating thresholds.
func (e *Engine) Thresholds() Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds
}

// Culture returns the active cultural context.
func (e *Engine) Culture() CulturalContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.culture
}

// Effective returns the current culturally-adjusted gating parameters.
func (e *Engine) Effective() EffectiveThresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effectiveLocked()
}

// ─── Internals ───────────────────────────────────────────────────────────────

func (e *Engine) effectiveLocked() EffectiveThresholds {
	return ComputeEffective(e.thresholds, e.culture)
}

func (e *Engine) cancelTimersLocked() {
	if e.dismissTimer != nil {
		e.dismissTimer.Cancel()
		e.dismissTimer = nil
	}
	e.cancelPromoteLocked()
}

func (e *Engine) cancelPromoteLocked() {
	if e.promoteTimer != nil {
		e.promoteTimer.Cancel()
		e.promoteTimer = nil
	}
}

// dropped notifies the drop observer, if any.
func (e *Engine) dropped(reason string) {
	if e.onDrop != nil {
		e.onDrop(reason)
	}
}

// run invokes collected listener callbacks outside the engine lock.
func run(cbs []func()) {
	for _, cb := range cbs {
		cb()
	}
}
