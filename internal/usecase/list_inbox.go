package usecase

import (
	"context"
	"time"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/domain/event"
	"github.com/YibinLong/ZapStream/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type ListInbox struct {
	store store.Store
}

func NewListInbox(st store.Store) *ListInbox {
	return &ListInbox{store: st}
}

type ListParams struct {
	TenantID string
	// Limit of 0 means "not supplied" and falls back to the default.
	// Out-of-range values are a validation error, not clamped.
	Limit  int
	Since  time.Time
	Topic  string
	Type   string
	Cursor string
}

type ListResult struct {
	Events     []*event.Event
	NextCursor string
}

// Execute lists pending events in stable (created_at, id) order. The result
// is a pure function of store state; the cursor carries the whole position.
func (uc *ListInbox) Execute(ctx context.Context, p ListParams) (*ListResult, error) {
	limit := p.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit < 1 || limit > maxListLimit {
		return nil, apperr.Newf(apperr.CodeInvalidParams, "limit must be between 1 and %d", maxListLimit)
	}

	q := store.Query{
		Since: p.Since,
		Topic: p.Topic,
		Type:  p.Type,
		// One extra row tells us whether another page exists.
		Limit: limit + 1,
	}

	if p.Cursor != "" {
		after, err := decodeCursor(p.Cursor)
		if err != nil {
			return nil, err
		}
		q.After = after
	}

	events, err := uc.store.QueryPending(ctx, p.TenantID, q)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "query pending events", err)
	}

	result := &ListResult{Events: events}
	if len(events) > limit {
		result.Events = events[:limit]
		last := result.Events[limit-1]
		result.NextCursor = encodeCursor(store.Position{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}
