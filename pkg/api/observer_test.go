package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

//
// Helpers
//

// testObserver is a simple Observer implementation used to verify fan-out behavior.
type testObserver struct {
	mu sync.Mutex

	refreshes int
	pages     int
	failures  int
	resets    int

	lastRefresh QueryEvent
	lastPage    struct {
		Event QueryEvent
		Added int
	}
	lastFailure struct {
		View    string
		Project string
		Err     error
	}
	lastReset ChangeEvent
}

func (o *testObserver) OnRefresh(ctx context.Context, ev QueryEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refreshes++
	o.lastRefresh = ev
}

func (o *testObserver) OnPageFetched(ctx context.Context, ev QueryEvent, added int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pages++
	o.lastPage.Event = ev
	o.lastPage.Added = added
}

func (o *testObserver) OnQueryFailed(ctx context.Context, view, project string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
	o.lastFailure.View = view
	o.lastFailure.Project = project
	o.lastFailure.Err = err
}

func (o *testObserver) OnSiteReset(ctx context.Context, ev ChangeEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resets++
	o.lastReset = ev
}

// recordingHandler is a minimal slog.Handler that just records log records.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Copy to avoid reuse issues.
	cpy := slog.Record{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		cpy.AddAttrs(a)
		return true
	})
	h.records = append(h.records, cpy)
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return h
}

func attrsToMap(r slog.Record) map[string]any {
	m := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value.Any()
		return true
	})
	return m
}

func newTestEvent() QueryEvent {
	return QueryEvent{
		View:     "summary",
		Project:  "test-project",
		Skip:     19,
		Limit:    19,
		Rows:     38,
		Total:    40,
		Duration: 3 * time.Millisecond,
	}
}

//
// NoopObserver
//

func TestNoopObserver_DoesNotPanic(t *testing.T) {
	ctx := context.Background()
	var o Observer = NoopObserver{}

	o.OnRefresh(ctx, newTestEvent())
	o.OnPageFetched(ctx, newTestEvent(), 19)
	o.OnQueryFailed(ctx, "summary", "p", errors.New("boom"))
	o.OnSiteReset(ctx, ChangeEvent{Project: "p"})
}

//
// CompositeObserver
//

func TestNewCompositeObserver_EmptyReturnsNoop(t *testing.T) {
	o := NewCompositeObserver()
	if _, ok := o.(NoopObserver); !ok {
		t.Fatalf("expected NewCompositeObserver() to return NoopObserver, got %T", o)
	}
}

func TestNewCompositeObserver_SingleReturnsThatObserver(t *testing.T) {
	single := &testObserver{}
	o := NewCompositeObserver(single, nil) // include a nil to ensure it is filtered

	if got, ok := o.(*testObserver); !ok || got != single {
		t.Fatalf("expected the single non-nil observer to be returned, got %T (%p)", o, o)
	}
}

func TestCompositeObserver_ForwardsAllEvents(t *testing.T) {
	ctx := context.Background()

	o1 := &testObserver{}
	o2 := &testObserver{}
	co, ok := NewCompositeObserver(o1, o2).(*CompositeObserver)
	if !ok {
		t.Fatalf("expected *CompositeObserver")
	}

	err := errors.New("store down")
	ev := newTestEvent()
	reset := ChangeEvent{Project: "p", RepresentationID: "r1", FileID: "f1", Site: "studio"}
	co.OnRefresh(ctx, ev)
	co.OnPageFetched(ctx, ev, 2)
	co.OnQueryFailed(ctx, "detail", "p", err)
	co.OnSiteReset(ctx, reset)

	for i, o := range []*testObserver{o1, o2} {
		if o.refreshes != 1 || o.pages != 1 || o.failures != 1 || o.resets != 1 {
			t.Fatalf("observer %d did not receive all calls: %+v", i+1, o)
		}
		if o.lastRefresh != ev || o.lastPage.Event != ev || o.lastPage.Added != 2 {
			t.Fatalf("observer %d event mismatch", i+1)
		}
		if o.lastFailure.Err != err || o.lastFailure.View != "detail" {
			t.Fatalf("observer %d failure mismatch: %+v", i+1, o.lastFailure)
		}
		if o.lastReset != reset {
			t.Fatalf("observer %d reset mismatch: %+v", i+1, o.lastReset)
		}
	}
}

//
// LoggingObserver
//

func TestNewLoggingObserver_NilLoggerUsesDefault(t *testing.T) {
	o := NewLoggingObserver(nil)
	lo, ok := o.(*LoggingObserver)
	if !ok {
		t.Fatalf("expected *LoggingObserver, got %T", o)
	}
	if lo.Logger == nil {
		t.Fatalf("expected non-nil Logger when created with nil")
	}
}

func TestLoggingObserver_OnRefresh_EmitsDebugLog(t *testing.T) {
	h := &recordingHandler{}
	o := NewLoggingObserver(slog.New(h))

	o.OnRefresh(context.Background(), newTestEvent())

	if len(h.records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(h.records))
	}
	rec := h.records[0]
	if rec.Level != slog.LevelDebug || rec.Message != "sync_refresh" {
		t.Fatalf("unexpected record %v %q", rec.Level, rec.Message)
	}
	attrs := attrsToMap(rec)
	if attrs["project"] != "test-project" || attrs["view"] != "summary" {
		t.Fatalf("unexpected attrs %v", attrs)
	}
	if attrs["rows"] != int64(38) {
		t.Fatalf("expected rows=38, got %v", attrs["rows"])
	}
}

func TestLoggingObserver_OnQueryFailed_EmitsError(t *testing.T) {
	h := &recordingHandler{}
	o := NewLoggingObserver(slog.New(h))

	o.OnQueryFailed(context.Background(), "summary", "p", errors.New("boom"))

	if len(h.records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(h.records))
	}
	if h.records[0].Level != slog.LevelError {
		t.Fatalf("expected LevelError, got %v", h.records[0].Level)
	}
	if attrsToMap(h.records[0])["error"] == nil {
		t.Fatalf("expected error attribute")
	}
}

//
// BasicMetrics
//

func TestBasicMetrics_CountersAndAverage(t *testing.T) {
	var m BasicMetrics
	ctx := context.Background()

	ev := newTestEvent()
	ev.Duration = 1 * time.Second
	m.OnRefresh(ctx, ev)
	ev.Duration = 3 * time.Second
	m.OnPageFetched(ctx, ev, 5)
	m.OnQueryFailed(ctx, "summary", "p", errors.New("fail"))
	m.OnSiteReset(ctx, ChangeEvent{})

	snap := m.Snapshot()
	if snap.Refreshes != 1 || snap.PagesFetched != 1 || snap.RowsAppended != 5 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.QueriesFailed != 1 || snap.Resets != 1 {
		t.Fatalf("unexpected failure/reset counters: %+v", snap)
	}
	if snap.AvgQueryDuration != 2*time.Second {
		t.Fatalf("AvgQueryDuration=%v, want 2s", snap.AvgQueryDuration)
	}
}

func TestBasicMetrics_SnapshotZeroQueriesHasZeroAverage(t *testing.T) {
	var m BasicMetrics
	if snap := m.Snapshot(); snap.AvgQueryDuration != 0 {
		t.Fatalf("AvgQueryDuration=%v, want 0", snap.AvgQueryDuration)
	}
}
