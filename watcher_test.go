package sitesync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopFunc func(ctx context.Context) error

func (f loopFunc) Run(ctx context.Context) error { return f(ctx) }

func TestWatcher_StartStop(t *testing.T) {
	var running atomic.Int32
	loop := loopFunc(func(ctx context.Context) error {
		running.Add(1)
		defer running.Add(-1)
		<-ctx.Done()
		return ctx.Err()
	})

	w := NewWatcher(nil)
	require.NoError(t, w.Start(context.Background(), loop, loop))
	assert.Error(t, w.Start(context.Background(), loop), "second Start must fail")

	assert.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)

	assert.NoError(t, w.Stop())
	assert.Equal(t, int32(0), running.Load())

	// Stop is idempotent and the watcher can be restarted.
	assert.NoError(t, w.Stop())
	require.NoError(t, w.Start(context.Background(), loop))
	assert.NoError(t, w.Stop())
}

func TestWatcher_StopReportsFailedLoops(t *testing.T) {
	boom := errors.New("store disconnected")
	failing := loopFunc(func(ctx context.Context) error { return boom })
	idle := loopFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	w := NewWatcher(nil)
	require.NoError(t, w.Start(context.Background(), failing, idle))
	err := w.Stop()
	assert.ErrorIs(t, err, boom)
}

func TestWatcher_RunsModelLoops(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBundle(demoSites)

	metrics := &BasicMetrics{}
	m, err := b.Model(ctx, "demo", WithObserver(metrics), WithRefreshInterval(10*time.Millisecond))
	require.NoError(t, err)

	w := NewWatcher(nil)
	require.NoError(t, w.Start(ctx, m))
	assert.Eventually(t, func() bool { return metrics.Snapshot().Refreshes >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, w.Stop())
}
