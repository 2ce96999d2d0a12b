// Package notify distributes sync change events between the code that
// modifies site state and the views displaying it.
package notify

import (
	"context"
	"sync"

	"github.com/petrijr/sitesync/pkg/api"
)

// subscriberBuffer bounds undelivered events per subscriber. Views refresh
// wholesale, so dropping events beyond it loses nothing.
const subscriberBuffer = 16

// Hub is an in-process api.Notifier.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan api.ChangeEvent]struct{}
}

var _ api.Notifier = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan api.ChangeEvent]struct{})}
}

// Publish delivers ev to every subscriber of ev.Project without blocking.
func (h *Hub) Publish(ctx context.Context, ev api.ChangeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[ev.Project] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, project string) (<-chan api.ChangeEvent, error) {
	ch := make(chan api.ChangeEvent, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[project]
	if !ok {
		set = make(map[chan api.ChangeEvent]struct{})
		h.subs[project] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[project], ch)
		if len(h.subs[project]) == 0 {
			delete(h.subs, project)
		}
		close(ch)
	}()

	return ch, nil
}
