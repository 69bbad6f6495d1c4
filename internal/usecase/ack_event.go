package usecase

import (
	"context"
	"errors"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/domain/event"
	"github.com/YibinLong/ZapStream/internal/store"
)

type AckEvent struct {
	store store.Store
}

func NewAckEvent(st store.Store) *AckEvent {
	return &AckEvent{store: st}
}

// Execute transitions the event to acknowledged. Acking an already
// acknowledged event is an idempotent success; acking a deleted event is an
// invalid transition. Foreign-tenant and unknown ids are indistinguishable
// (NotFound) so existence never leaks across tenants.
func (uc *AckEvent) Execute(ctx context.Context, tenantID, id string) error {
	ev, err := uc.store.Get(ctx, tenantID, id)
	if err != nil {
		return mapStoreErr(err, "load event")
	}

	switch ev.Status {
	case event.StatusAcknowledged:
		return nil
	case event.StatusDeleted:
		return apperr.New(apperr.CodeInvalidTransition, "cannot acknowledge deleted event")
	}

	err = uc.store.UpdateStatus(ctx, tenantID, id, event.StatusPending, event.StatusAcknowledged)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return mapStoreErr(err, "acknowledge event")
	}

	// Lost the race against a concurrent transition; the re-read decides the
	// terminal outcome.
	ev, rerr := uc.store.Get(ctx, tenantID, id)
	if rerr != nil {
		return mapStoreErr(rerr, "reload event")
	}
	switch ev.Status {
	case event.StatusAcknowledged:
		return nil
	case event.StatusDeleted:
		return apperr.New(apperr.CodeInvalidTransition, "cannot acknowledge deleted event")
	}
	return apperr.Wrap(apperr.CodeInternal, "acknowledge event", err)
}

func mapStoreErr(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.CodeNotFound, "event not found")
	}
	return apperr.Wrap(apperr.CodeInternal, op, err)
}
