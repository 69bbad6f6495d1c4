// Package store defines the event store contract the core depends on.
// Implementations must provide per-row isolation plus two stronger
// primitives: an atomic insert-if-absent keyed by (tenant_id,
// idempotency_key) and a compare-and-swap status update. Everything else in
// the system builds on those two, so correctness does not depend on
// in-process locking.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/YibinLong/ZapStream/internal/domain/event"
)

var (
	ErrNotFound = errors.New("event not found")
	// ErrConflict signals a compare-and-swap that lost against a concurrent
	// status transition.
	ErrConflict = errors.New("status conflict")
)

// Position is a point in the (created_at, id) listing order, used for
// keyset pagination.
type Position struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// Query narrows a pending-events listing. Filters are conjunctive; zero
// values mean "no filter".
type Query struct {
	After *Position
	Since time.Time
	Topic string
	Type  string
	Limit int
}

type Store interface {
	// InsertIfAbsent atomically stores ev unless an event with the same
	// (tenant_id, idempotency_key) already exists. It returns the stored
	// event and whether this call created it; on a duplicate the existing
	// event is returned unchanged.
	InsertIfAbsent(ctx context.Context, ev *event.Event) (*event.Event, bool, error)

	// Put stores ev unconditionally. Used when no idempotency key is given.
	Put(ctx context.Context, ev *event.Event) error

	Get(ctx context.Context, tenantID, id string) (*event.Event, error)

	// QueryPending lists pending events for the tenant ordered by
	// (created_at ASC, id ASC), strictly after q.After when set.
	QueryPending(ctx context.Context, tenantID string, q Query) ([]*event.Event, error)

	// UpdateStatus transitions the event from expected to next. Returns
	// ErrConflict when the current status is not expected, ErrNotFound when
	// the event does not exist for the tenant.
	UpdateStatus(ctx context.Context, tenantID, id string, expected, next event.Status) error

	// Delete tombstones the event regardless of its current status.
	Delete(ctx context.Context, tenantID, id string) error
}
