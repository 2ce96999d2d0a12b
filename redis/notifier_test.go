package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/sitesync/internal/testutil"
	"github.com/petrijr/sitesync/pkg/api"
)

func TestNotifier_PublishSubscribe(t *testing.T) {
	addr := testutil.GetRedisAddress(t)
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() {
		_ = client.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(client, "test:", nil)
	events, err := n.Subscribe(ctx, "demo")
	require.NoError(t, err)

	ev := api.ChangeEvent{Project: "demo", RepresentationID: "r1", FileID: "f1", Site: "gdrive"}
	require.NoError(t, n.Publish(ctx, ev))
	require.NoError(t, n.Publish(ctx, api.ChangeEvent{Project: "other"}))

	select {
	case got := <-events:
		assert.Equal(t, ev, got)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}

	// Garbage on the channel is skipped.
	require.NoError(t, client.Publish(ctx, "test:changes:demo", "junk").Err())
	require.NoError(t, n.Publish(ctx, ev))
	select {
	case got := <-events:
		assert.Equal(t, ev, got)
	case <-time.After(5 * time.Second):
		t.Fatal("event after junk not received")
	}

	cancel()
	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestNotifier_DefaultPrefix(t *testing.T) {
	n := NewNotifier(nil, "", nil)
	assert.Equal(t, "sitesync:changes:demo", n.channel("demo"))
}
