package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/sitesync/internal/notify"
	"github.com/petrijr/sitesync/pkg/api"
)

// Notifier is an api.Notifier over Redis pub/sub. Events of a project are
// published on the channel <prefix>changes:<project> as gob payloads.
type Notifier struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ api.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier. An empty prefix selects "sitesync:".
func NewNotifier(client *redis.Client, prefix string, logger *slog.Logger) *Notifier {
	if prefix == "" {
		prefix = "sitesync:"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, prefix: prefix, logger: logger}
}

func (n *Notifier) channel(project string) string {
	return n.prefix + "changes:" + project
}

func (n *Notifier) Publish(ctx context.Context, ev api.ChangeEvent) error {
	payload, err := notify.EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel(ev.Project), payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning, so
// events published after it returns are not lost.
func (n *Notifier) Subscribe(ctx context.Context, project string) (<-chan api.ChangeEvent, error) {
	ps := n.client.Subscribe(ctx, n.channel(project))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe changes: %w", err)
	}

	in := ps.Channel()
	out := make(chan api.ChangeEvent, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				ev, err := notify.DecodeEvent([]byte(msg.Payload))
				if err != nil {
					n.logger.Warn("sync_change_dropped", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()
	return out, nil
}
