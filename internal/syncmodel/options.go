package syncmodel

import (
	"log/slog"
	"time"

	"github.com/petrijr/sitesync/pkg/api"
)

const (
	// DefaultPageSize is the number of summary rows fetched per page.
	DefaultPageSize = 19
	// DefaultDetailPageSize is the number of file rows fetched per page.
	DefaultDetailPageSize = 30
	// DefaultRefreshInterval is the period of Run's background refresh.
	DefaultRefreshInterval = 5 * time.Second
)

// Listener is told about changes of the materialized rows. It is called
// after the model's data lock is released; it may read the model but must
// not call methods that query the store.
type Listener interface {
	// ModelReset is called after all rows were replaced.
	ModelReset()
	// RowsInserted is called after count rows were appended at first.
	RowsInserted(first, count int)
}

type config struct {
	pageSize int
	interval time.Duration
	observer api.Observer
	listener Listener
	notifier api.Notifier
	logger   *slog.Logger
	filter   string
	sortCol  int
	order    Order
}

// Option configures a Model or DetailModel.
type Option func(*config)

// WithPageSize overrides the page size. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRefreshInterval overrides the Run refresh period.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithObserver sets the observer receiving query events.
func WithObserver(o api.Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithListener sets the listener receiving row change notifications.
func WithListener(l Listener) Option {
	return func(c *config) { c.listener = l }
}

// WithNotifier makes Run refresh on change events and ResetFile publish
// them.
func WithNotifier(n api.Notifier) Option {
	return func(c *config) { c.notifier = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithFilter sets the initial filter text.
func WithFilter(text string) Option {
	return func(c *config) { c.filter = text }
}

// WithSort sets the initial sort column and order.
func WithSort(col int, order Order) Option {
	return func(c *config) {
		c.sortCol = col
		c.order = order
	}
}

func newConfig(pageSize, sortCol int, order Order, opts []Option) config {
	c := config{
		pageSize: pageSize,
		interval: DefaultRefreshInterval,
		sortCol:  sortCol,
		order:    order,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.observer == nil {
		c.observer = api.NoopObserver{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}
