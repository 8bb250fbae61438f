package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuecardhq/cuecard/internal/coach"
	"github.com/cuecardhq/cuecard/pkg/history"
)

func record(session, id string, resp coach.Response, at time.Time) history.Record {
	return history.Record{
		SessionID:  session,
		PromptID:   id,
		Type:       coach.PromptFollowUp,
		Text:       "ask about the rollback plan",
		Confidence: 0.8,
		Response:   resp,
		ResolvedAt: at,
	}
}

func TestMemStore_AppendAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := history.NewMemStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i, rec := range []history.Record{
		record("s1", "p1", coach.ResponseAccepted, base),
		record("s1", "p2", coach.ResponseDismissed, base.Add(time.Minute)),
		record("s2", "p3", coach.ResponseAccepted, base.Add(2*time.Minute)),
	} {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append[%d]: %v", i, err)
		}
	}

	all, err := store.List(ctx, history.QueryOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List returned %d records, want 3", len(all))
	}

	s1, err := store.List(ctx, history.QueryOpts{SessionID: "s1"})
	if err != nil {
		t.Fatalf("List(s1): %v", err)
	}
	if len(s1) != 2 || s1[0].PromptID != "p1" || s1[1].PromptID != "p2" {
		t.Errorf("List(s1)=%v, want [p1 p2] in resolution order", s1)
	}
}

func TestMemStore_Filters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := history.NewMemStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_ = store.Append(ctx, record("s1", "p1", coach.ResponseAccepted, base))
	_ = store.Append(ctx, record("s1", "p2", coach.ResponseDismissed, base.Add(time.Minute)))
	_ = store.Append(ctx, record("s1", "p3", coach.ResponseAccepted, base.Add(2*time.Minute)))

	accepted, err := store.List(ctx, history.QueryOpts{Response: coach.ResponseAccepted})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(accepted) != 2 {
		t.Errorf("accepted=%d, want 2", len(accepted))
	}

	windowed, err := store.List(ctx, history.QueryOpts{
		After:  base,
		Before: base.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(windowed) != 1 || windowed[0].PromptID != "p2" {
		t.Errorf("windowed=%v, want [p2] (bounds are exclusive)", windowed)
	}

	limited, err := store.List(ctx, history.QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited=%d, want 2", len(limited))
	}
}

func TestMemStore_Summarize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := history.NewMemStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_ = store.Append(ctx, record("s1", "p1", coach.ResponseAccepted, base))
	_ = store.Append(ctx, record("s1", "p2", coach.ResponseAccepted, base))
	_ = store.Append(ctx, record("s1", "p3", coach.ResponseAutoDismissed, base))
	_ = store.Append(ctx, record("s1", "p4", coach.ResponseSnoozed, base))
	_ = store.Append(ctx, record("other", "p5", coach.ResponseDismissed, base))

	sum, err := store.Summarize(ctx, "s1")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := history.Summary{Total: 4, Accepted: 2, AutoDismissed: 1, Snoozed: 1}
	if sum != want {
		t.Errorf("Summarize=%+v, want %+v", sum, want)
	}

	empty, err := store.Summarize(ctx, "missing")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if empty != (history.Summary{}) {
		t.Errorf("Summarize(missing)=%+v, want zero", empty)
	}
}
