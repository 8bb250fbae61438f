package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/cuecardhq/cuecard/internal/coach"
)

// writeTimeout bounds a single WebSocket write. A client that cannot keep up
// is disconnected rather than allowed to stall the hub.
const writeTimeout = 5 * time.Second

// subscriberBuffer is the per-subscriber event buffer. Events beyond it are
// dropped for that subscriber; the HTTP state endpoints remain the source of
// truth.
const subscriberBuffer = 32

// Event is one engine notification pushed over the WebSocket stream.
type Event struct {
	// Type is one of: prompt_shown, prompt_dismissed, prompt_auto_dismissed,
	// coaching_enabled, coaching_disabled, session_started, session_ended.
	Type string `json:"type"`

	// Prompt carries the affected prompt for the prompt_* events.
	Prompt *promptPayload `json:"prompt,omitempty"`

	// Response carries the resolution kind for prompt_dismissed.
	Response string `json:"response,omitempty"`
}

// Hub fans engine events out to connected WebSocket clients. Safe for
// concurrent use.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Broadcast delivers ev to every subscriber. Sends never block; a subscriber
// whose buffer is full misses the event.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// SubscriberCount returns the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handleWS upgrades the request to a WebSocket and streams hub events until
// the client disconnects or the server shuts down.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The coaching UI is typically served from a different origin than
		// the engine process during development.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}

	ch := g.hub.subscribe()
	defer g.hub.unsubscribe(ch)

	// CloseRead drains and discards client frames; its context ends when the
	// client closes the connection.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// EngineListeners returns engine hooks that forward prompt lifecycle events
// to the hub. The hub can be created before the engine, so these hooks can be
// passed to [coach.NewEngine] at construction; callers composing additional
// hooks (history recording, metrics) should chain these rather than replace
// them.
func EngineListeners(h *Hub) coach.Listeners {
	return coach.Listeners{
		OnPromptShown: func(p coach.Prompt) {
			h.Broadcast(Event{Type: "prompt_shown", Prompt: toPromptPayload(p)})
		},
		OnPromptDismissed: func(p coach.Prompt, r coach.Response) {
			h.Broadcast(Event{Type: "prompt_dismissed", Prompt: toPromptPayload(p), Response: string(r)})
		},
		OnPromptAutoDismissed: func(p coach.Prompt) {
			h.Broadcast(Event{Type: "prompt_auto_dismissed", Prompt: toPromptPayload(p)})
		},
		OnCoachingEnabled: func() {
			h.Broadcast(Event{Type: "coaching_enabled"})
		},
		OnCoachingDisabled: func() {
			h.Broadcast(Event{Type: "coaching_disabled"})
		},
	}
}
