// Package memory is the reference event store: a single-process
// implementation backing tests and the default "memory" storage backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/YibinLong/ZapStream/internal/domain/event"
	"github.com/YibinLong/ZapStream/internal/store"
)

type tenantShard struct {
	events map[string]*event.Event
	// byIdemKey maps idempotency_key -> event id for the insert-if-absent
	// primitive.
	byIdemKey map[string]string
}

type Store struct {
	mu      sync.RWMutex
	tenants map[string]*tenantShard
}

func New() *Store {
	return &Store{tenants: make(map[string]*tenantShard)}
}

func (s *Store) shard(tenantID string) *tenantShard {
	t, ok := s.tenants[tenantID]
	if !ok {
		t = &tenantShard{
			events:    make(map[string]*event.Event),
			byIdemKey: make(map[string]string),
		}
		s.tenants[tenantID] = t
	}
	return t
}

func (s *Store) InsertIfAbsent(ctx context.Context, ev *event.Event) (*event.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.shard(ev.TenantID)
	if id, ok := t.byIdemKey[ev.IdempotencyKey]; ok {
		existing := t.events[id]
		return clone(existing), false, nil
	}

	t.byIdemKey[ev.IdempotencyKey] = ev.ID
	t.events[ev.ID] = clone(ev)
	return clone(ev), true, nil
}

func (s *Store) Put(ctx context.Context, ev *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shard(ev.TenantID).events[ev.ID] = clone(ev)
	return nil
}

func (s *Store) Get(ctx context.Context, tenantID, id string) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	ev, ok := t.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(ev), nil
}

func (s *Store) QueryPending(ctx context.Context, tenantID string, q store.Query) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, nil
	}

	var matched []*event.Event
	for _, ev := range t.events {
		if ev.Status != event.StatusPending {
			continue
		}
		if q.Topic != "" && ev.Topic != q.Topic {
			continue
		}
		if q.Type != "" && ev.Type != q.Type {
			continue
		}
		if !q.Since.IsZero() && ev.CreatedAt.Before(q.Since) {
			continue
		}
		if q.After != nil && !afterPosition(ev, q.After) {
			continue
		}
		matched = append(matched, ev)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*event.Event, len(matched))
	for i, ev := range matched {
		out[i] = clone(ev)
	}
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, tenantID, id string, expected, next event.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.locked(tenantID, id)
	if err != nil {
		return err
	}
	if ev.Status != expected {
		return store.ErrConflict
	}
	ev.Status = next
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) Delete(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.locked(tenantID, id)
	if err != nil {
		return err
	}
	ev.Status = event.StatusDeleted
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) locked(tenantID, id string) (*event.Event, error) {
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	ev, ok := t.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ev, nil
}

// afterPosition reports whether ev sorts strictly after pos in
// (created_at, id) order.
func afterPosition(ev *event.Event, pos *store.Position) bool {
	if ev.CreatedAt.After(pos.CreatedAt) {
		return true
	}
	return ev.CreatedAt.Equal(pos.CreatedAt) && ev.ID > pos.ID
}

func clone(ev *event.Event) *event.Event {
	cp := *ev
	return &cp
}
