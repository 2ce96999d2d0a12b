package sitesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Refresher is a view with a background refresh loop. *Model and
// *DetailModel implement it.
type Refresher interface {
	Run(ctx context.Context) error
}

// Watcher runs the refresh loops of several views and stops them together.
//
// It is useful for headless processes that keep views current, for example
// to feed metrics or to log sync progress.
type Watcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	errs    []error
}

// NewWatcher returns a stopped Watcher. A nil logger selects slog.Default.
func NewWatcher(logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{logger: logger}
}

// Start runs every view's loop in its own goroutine until Stop is called or
// ctx is done. A loop that fails is logged and not restarted; its error is
// returned by Stop.
//
// If Start is called more than once without Stop, it returns an error.
func (w *Watcher) Start(ctx context.Context, views ...Refresher) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("sitesync: watcher already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.errs = nil

	w.wg.Add(len(views))
	for _, v := range views {
		go func() {
			defer w.wg.Done()

			err := v.Run(ctx)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.ErrorContext(ctx, "sync_watch_failed", "error", err)
			w.mu.Lock()
			w.errs = append(w.errs, err)
			w.mu.Unlock()
		}()
	}

	return nil
}

// Stop cancels all loops started by Start, waits for them to exit and
// returns the errors of loops that failed.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(w.errs...)
}
