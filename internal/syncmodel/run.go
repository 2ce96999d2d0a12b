package syncmodel

import (
	"context"
	"log/slog"
	"time"

	"github.com/petrijr/sitesync/pkg/api"
)

// run refreshes every interval and on every change event of the current
// project until ctx is done or a refresh fails. The subscription follows
// project changes.
func run(
	ctx context.Context,
	interval time.Duration,
	notifier api.Notifier,
	project func() string,
	refresh func(context.Context) error,
	logger *slog.Logger,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		changes    <-chan api.ChangeEvent
		subscribed string
		cancelSub  context.CancelFunc = func() {}
	)
	defer func() { cancelSub() }()

	subscribe := func() error {
		if notifier == nil {
			return nil
		}
		p := project()
		if p == subscribed && changes != nil {
			return nil
		}
		cancelSub()
		subCtx, cancel := context.WithCancel(ctx)
		ch, err := notifier.Subscribe(subCtx, p)
		if err != nil {
			cancel()
			return err
		}
		changes, subscribed, cancelSub = ch, p, cancel
		logger.Debug("sync_subscribed", "project", p)
		return nil
	}

	if err := subscribe(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
		}
		if err := refresh(ctx); err != nil {
			return err
		}
		if err := subscribe(); err != nil {
			return err
		}
	}
}
