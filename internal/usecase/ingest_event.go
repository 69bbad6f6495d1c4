package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/domain/event"
	"github.com/YibinLong/ZapStream/internal/ratelimit"
	"github.com/YibinLong/ZapStream/internal/store"
	"github.com/YibinLong/ZapStream/internal/stream"
)

var (
	eventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_events_total",
		Help: "The total number of newly created events",
	})
	ingestReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_replays_total",
		Help: "Ingestions resolved to an existing event by idempotency key",
	})
	ingestRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rate_limited_total",
		Help: "Ingestions rejected by the rate limiter",
	})
)

type IngestEvent struct {
	store           store.Store
	limiter         *ratelimit.Limiter
	fanout          stream.Publisher
	maxPayloadBytes int
}

func NewIngestEvent(st store.Store, limiter *ratelimit.Limiter, fanout stream.Publisher, maxPayloadBytes int) *IngestEvent {
	return &IngestEvent{
		store:           st,
		limiter:         limiter,
		fanout:          fanout,
		maxPayloadBytes: maxPayloadBytes,
	}
}

type IngestParams struct {
	TenantID string
	// Credential is the raw API key, the rate limiter's bucket key.
	Credential     string
	Draft          event.Draft
	IdempotencyKey string
}

// Execute runs the ingestion gates in order: payload validation, rate limit,
// idempotent insert, fan-out publish. The returned bool reports whether this
// call created the event (false on an idempotency-key replay).
func (uc *IngestEvent) Execute(ctx context.Context, p IngestParams) (*event.Event, bool, error) {
	if err := uc.validatePayload(p.Draft.Payload); err != nil {
		return nil, false, err
	}

	if retryAfter, ok := uc.limiter.Admit(p.Credential, time.Now()); !ok {
		ingestRateLimited.Inc()
		return nil, false, apperr.RateLimited(retryAfter)
	}

	now := time.Now().UTC()
	ev := &event.Event{
		ID:             event.NewID(),
		TenantID:       p.TenantID,
		Source:         p.Draft.Source,
		Type:           p.Draft.Type,
		Topic:          p.Draft.Topic,
		Payload:        p.Draft.Payload,
		Status:         event.StatusPending,
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if p.IdempotencyKey != "" {
		stored, created, err := uc.store.InsertIfAbsent(ctx, ev)
		if err != nil {
			return nil, false, apperr.Wrap(apperr.CodeInternal, "store event", err)
		}
		if !created {
			ingestReplays.Inc()
			return stored, false, nil
		}
		ev = stored
	} else {
		if err := uc.store.Put(ctx, ev); err != nil {
			return nil, false, apperr.Wrap(apperr.CodeInternal, "store event", err)
		}
	}

	eventsIngested.Inc()
	uc.fanout.Publish(ctx, ev)
	return ev, true, nil
}

func (uc *IngestEvent) validatePayload(payload json.RawMessage) error {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(payload) {
		return apperr.New(apperr.CodeInvalidPayload, "payload must be a JSON object")
	}
	if len(payload) > uc.maxPayloadBytes {
		return apperr.Newf(apperr.CodeInvalidPayload, "payload exceeds %d bytes", uc.maxPayloadBytes)
	}
	return nil
}
