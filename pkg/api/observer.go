package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// QueryEvent describes a completed model query.
type QueryEvent struct {
	// View is "summary" or "detail".
	View    string
	Project string
	Skip    int
	Limit   int
	// Rows is the number of rows materialized after the query.
	Rows     int
	Total    int
	Duration time.Duration
}

// Observer receives callbacks from the sync models for logging and metrics.
//
// Implementations should be fast and non-blocking; they run on the model's
// event loop.
type Observer interface {
	// OnRefresh is called after the materialized rows were replaced.
	OnRefresh(ctx context.Context, ev QueryEvent)

	// OnPageFetched is called after a page was appended.
	OnPageFetched(ctx context.Context, ev QueryEvent, added int)

	// OnQueryFailed is called when the store returned an error.
	OnQueryFailed(ctx context.Context, view, project string, err error)

	// OnSiteReset is called after a file was reset on a site.
	OnSiteReset(ctx context.Context, ev ChangeEvent)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnRefresh(ctx context.Context, ev QueryEvent)                       {}
func (NoopObserver) OnPageFetched(ctx context.Context, ev QueryEvent, added int)        {}
func (NoopObserver) OnQueryFailed(ctx context.Context, view, project string, err error) {}
func (NoopObserver) OnSiteReset(ctx context.Context, ev ChangeEvent)                    {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRefresh(ctx context.Context, ev QueryEvent) {
	for _, o := range c.observers {
		o.OnRefresh(ctx, ev)
	}
}

func (c *CompositeObserver) OnPageFetched(ctx context.Context, ev QueryEvent, added int) {
	for _, o := range c.observers {
		o.OnPageFetched(ctx, ev, added)
	}
}

func (c *CompositeObserver) OnQueryFailed(ctx context.Context, view, project string, err error) {
	for _, o := range c.observers {
		o.OnQueryFailed(ctx, view, project, err)
	}
}

func (c *CompositeObserver) OnSiteReset(ctx context.Context, ev ChangeEvent) {
	for _, o := range c.observers {
		o.OnSiteReset(ctx, ev)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs model events using the
// provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRefresh(ctx context.Context, ev QueryEvent) {
	o.Logger.DebugContext(ctx, "sync_refresh",
		slog.String("view", ev.View),
		slog.String("project", ev.Project),
		slog.Int("limit", ev.Limit),
		slog.Int("rows", ev.Rows),
		slog.Int("total", ev.Total),
		slog.Duration("duration", ev.Duration),
	)
}

func (o *LoggingObserver) OnPageFetched(ctx context.Context, ev QueryEvent, added int) {
	o.Logger.DebugContext(ctx, "sync_fetch_more",
		slog.String("view", ev.View),
		slog.String("project", ev.Project),
		slog.Int("skip", ev.Skip),
		slog.Int("added", added),
		slog.Int("rows", ev.Rows),
		slog.Int("total", ev.Total),
		slog.Duration("duration", ev.Duration),
	)
}

func (o *LoggingObserver) OnQueryFailed(ctx context.Context, view, project string, err error) {
	o.Logger.ErrorContext(ctx, "sync_query_failed",
		slog.String("view", view),
		slog.String("project", project),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnSiteReset(ctx context.Context, ev ChangeEvent) {
	o.Logger.InfoContext(ctx, "sync_site_reset",
		slog.String("project", ev.Project),
		slog.String("representation_id", ev.RepresentationID),
		slog.String("file_id", ev.FileID),
		slog.String("site", ev.Site),
	)
}

// BasicMetrics collects simple counters and aggregate query durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	refreshes         atomic.Int64
	pagesFetched      atomic.Int64
	rowsAppended      atomic.Int64
	queriesFailed     atomic.Int64
	resets            atomic.Int64
	queries           atomic.Int64
	totalQueryLatency atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	Refreshes     int64
	PagesFetched  int64
	RowsAppended  int64
	QueriesFailed int64
	Resets        int64

	AvgQueryDuration time.Duration
}

func (m *BasicMetrics) OnRefresh(ctx context.Context, ev QueryEvent) {
	m.refreshes.Add(1)
	m.queries.Add(1)
	m.totalQueryLatency.Add(ev.Duration.Nanoseconds())
}

func (m *BasicMetrics) OnPageFetched(ctx context.Context, ev QueryEvent, added int) {
	m.pagesFetched.Add(1)
	m.rowsAppended.Add(int64(added))
	m.queries.Add(1)
	m.totalQueryLatency.Add(ev.Duration.Nanoseconds())
}

func (m *BasicMetrics) OnQueryFailed(ctx context.Context, view, project string, err error) {
	m.queriesFailed.Add(1)
}

func (m *BasicMetrics) OnSiteReset(ctx context.Context, ev ChangeEvent) {
	m.resets.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	queries := m.queries.Load()
	totalNs := m.totalQueryLatency.Load()

	var avg time.Duration
	if queries > 0 {
		avg = time.Duration(totalNs / queries)
	}

	return BasicMetricsSnapshot{
		Refreshes:        m.refreshes.Load(),
		PagesFetched:     m.pagesFetched.Load(),
		RowsAppended:     m.rowsAppended.Load(),
		QueriesFailed:    m.queriesFailed.Load(),
		Resets:           m.resets.Load(),
		AvgQueryDuration: avg,
	}
}
