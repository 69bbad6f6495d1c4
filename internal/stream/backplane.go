package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/YibinLong/ZapStream/internal/domain/event"
)

const channelPrefix = "zapstream:events:"

// Backplane fans events out across API instances over Redis pub/sub. When it
// is wired in, ingestion publishes to Redis only and every instance's local
// hub is fed by Run, so subscribers on any instance see each event exactly
// once.
type Backplane struct {
	client *redis.Client
	hub    *Hub
}

func NewBackplane(client *redis.Client, hub *Hub) *Backplane {
	return &Backplane{client: client, hub: hub}
}

// Publish sends ev to the tenant's channel. Best-effort: a Redis failure is
// logged and the event is handed to the local hub directly so subscribers on
// this instance are not starved.
func (b *Backplane) Publish(ctx context.Context, ev *event.Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		slog.Error("backplane marshal failed", "event_id", ev.ID, "error", err)
		return
	}

	if err := b.client.Publish(ctx, channelPrefix+ev.TenantID, value).Err(); err != nil {
		slog.Error("backplane publish failed", "event_id", ev.ID, "error", err)
		b.hub.Publish(ctx, ev)
	}
}

// Run subscribes to every tenant channel and feeds received events into the
// local hub. Blocks until ctx is cancelled.
func (b *Backplane) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			ev := &event.Event{}
			if err := json.Unmarshal([]byte(msg.Payload), ev); err != nil {
				slog.Error("backplane received malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			if ev.TenantID == "" {
				ev.TenantID = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			b.hub.Publish(ctx, ev)
		}
	}
}
