package usecase

import (
	"context"

	"github.com/YibinLong/ZapStream/internal/domain/event"
	"github.com/YibinLong/ZapStream/internal/store"
)

type DeleteEvent struct {
	store store.Store
}

func NewDeleteEvent(st store.Store) *DeleteEvent {
	return &DeleteEvent{store: st}
}

// Execute tombstones the event. Deleting from any live status succeeds, and
// re-deleting an already deleted event is an idempotent no-op; pending and
// previously acknowledged events are not distinguished in the response.
func (uc *DeleteEvent) Execute(ctx context.Context, tenantID, id string) error {
	ev, err := uc.store.Get(ctx, tenantID, id)
	if err != nil {
		return mapStoreErr(err, "load event")
	}
	if ev.Status == event.StatusDeleted {
		return nil
	}

	if err := uc.store.Delete(ctx, tenantID, id); err != nil {
		return mapStoreErr(err, "delete event")
	}
	return nil
}
