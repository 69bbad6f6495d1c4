// Package relay mirrors ingested events to a Kafka topic for downstream
// archival. The mirror is strictly best-effort: a full queue or a broker
// outage drops frames and never slows down ingestion or delivery.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"github.com/YibinLong/ZapStream/internal/domain/event"
)

var (
	eventsMirrored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_events_mirrored_total",
		Help: "The total number of events mirrored to Kafka",
	})
	mirrorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_mirror_errors_total",
		Help: "The total number of failed mirror attempts",
	})
	mirrorDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_events_dropped_total",
		Help: "Events dropped because the relay queue was full",
	})
)

type Config struct {
	Brokers []string
	Topic   string
}

type Relay struct {
	writer *kafka.Writer
	queue  chan *event.Event
}

func New(cfg Config) *Relay {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &Relay{
		writer: w,
		queue:  make(chan *event.Event, 256),
	}
}

// Publish enqueues ev for mirroring without blocking the caller.
func (r *Relay) Publish(ctx context.Context, ev *event.Event) {
	select {
	case r.queue <- ev:
	default:
		mirrorDropped.Inc()
	}
}

// Run drains the queue until ctx is cancelled. Messages are keyed by tenant
// so per-tenant ordering survives partitioning.
func (r *Relay) Run(ctx context.Context) error {
	defer r.writer.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.queue:
			value, err := json.Marshal(ev)
			if err != nil {
				slog.Error("relay marshal failed", "event_id", ev.ID, "error", err)
				mirrorErrors.Inc()
				continue
			}

			sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = r.writer.WriteMessages(sendCtx, kafka.Message{
				Key:   []byte(ev.TenantID),
				Value: value,
			})
			cancel()

			if err != nil {
				slog.Error("relay mirror failed", "event_id", ev.ID, "error", err)
				mirrorErrors.Inc()
				continue
			}
			eventsMirrored.Inc()
		}
	}
}
