package memory_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YibinLong/ZapStream/internal/domain/event"
	"github.com/YibinLong/ZapStream/internal/store"
	"github.com/YibinLong/ZapStream/internal/store/memory"
)

func newEvent(tenantID, id string, createdAt time.Time) *event.Event {
	return &event.Event{
		ID:        id,
		TenantID:  tenantID,
		Payload:   json.RawMessage(`{"n":1}`),
		Status:    event.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestInsertIfAbsentConcurrent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	const n = 32
	ids := make([]string, n)
	created := make([]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := newEvent("t1", event.NewID(), now)
			ev.IdempotencyKey = "k1"
			stored, ok, err := s.InsertIfAbsent(ctx, ev)
			if !assert.NoError(t, err) {
				return
			}
			ids[i] = stored.ID
			created[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < n; i++ {
		assert.Equal(t, ids[0], ids[i], "all callers must observe the same event")
		if created[i] {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one caller creates the event")
}

func TestInsertIfAbsentKeyScopedPerTenant(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	a := newEvent("t1", "evt_a", now)
	a.IdempotencyKey = "k1"
	b := newEvent("t2", "evt_b", now)
	b.IdempotencyKey = "k1"

	_, createdA, err := s.InsertIfAbsent(ctx, a)
	require.NoError(t, err)
	_, createdB, err := s.InsertIfAbsent(ctx, b)
	require.NoError(t, err)

	assert.True(t, createdA)
	assert.True(t, createdB, "same key under another tenant is a different event")
}

func TestQueryPendingOrderingAndPagination(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	// Two events share a timestamp to exercise the id tie-break.
	require.NoError(t, s.Put(ctx, newEvent("t1", "evt_03", base.Add(2*time.Second))))
	require.NoError(t, s.Put(ctx, newEvent("t1", "evt_02", base.Add(time.Second))))
	require.NoError(t, s.Put(ctx, newEvent("t1", "evt_01", base.Add(time.Second))))
	require.NoError(t, s.Put(ctx, newEvent("t1", "evt_00", base)))

	events, err := s.QueryPending(ctx, "t1", store.Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, []string{"evt_00", "evt_01", "evt_02", "evt_03"}, idsOf(events))

	// Keyset pagination resumes strictly after the position.
	events, err = s.QueryPending(ctx, "t1", store.Query{
		Limit: 10,
		After: &store.Position{CreatedAt: base.Add(time.Second), ID: "evt_01"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_02", "evt_03"}, idsOf(events))
}

func TestQueryPendingFilters(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	base := time.Now().UTC()

	billing := newEvent("t1", "evt_01", base)
	billing.Topic = "finance"
	billing.Type = "invoice.paid"
	require.NoError(t, s.Put(ctx, billing))

	other := newEvent("t1", "evt_02", base.Add(time.Second))
	other.Topic = "ops"
	other.Type = "host.down"
	require.NoError(t, s.Put(ctx, other))

	events, err := s.QueryPending(ctx, "t1", store.Query{Limit: 10, Topic: "finance"})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_01"}, idsOf(events))

	events, err = s.QueryPending(ctx, "t1", store.Query{Limit: 10, Topic: "finance", Type: "host.down"})
	require.NoError(t, err)
	assert.Empty(t, events, "filters are conjunctive")

	events, err = s.QueryPending(ctx, "t1", store.Query{Limit: 10, Since: base.Add(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_02"}, idsOf(events))
}

func TestQueryPendingExcludesNonPending(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Put(ctx, newEvent("t1", "evt_01", now)))
	require.NoError(t, s.Put(ctx, newEvent("t1", "evt_02", now.Add(time.Second))))
	require.NoError(t, s.UpdateStatus(ctx, "t1", "evt_01", event.StatusPending, event.StatusAcknowledged))

	events, err := s.QueryPending(ctx, "t1", store.Query{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_02"}, idsOf(events))
}

func TestTenantIsolation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Put(ctx, newEvent("t1", "evt_01", now)))

	_, err := s.Get(ctx, "t2", "evt_01")
	assert.ErrorIs(t, err, store.ErrNotFound)

	events, err := s.QueryPending(ctx, "t2", store.Query{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.ErrorIs(t, s.UpdateStatus(ctx, "t2", "evt_01", event.StatusPending, event.StatusAcknowledged), store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "t2", "evt_01"), store.ErrNotFound)
}

func TestUpdateStatusCAS(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, newEvent("t1", "evt_01", time.Now().UTC())))

	require.NoError(t, s.UpdateStatus(ctx, "t1", "evt_01", event.StatusPending, event.StatusAcknowledged))

	// The expected status no longer matches.
	err := s.UpdateStatus(ctx, "t1", "evt_01", event.StatusPending, event.StatusAcknowledged)
	assert.ErrorIs(t, err, store.ErrConflict)

	ev, err := s.Get(ctx, "t1", "evt_01")
	require.NoError(t, err)
	assert.Equal(t, event.StatusAcknowledged, ev.Status)
}

func TestConcurrentAckDeleteLandsTerminal(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("evt_%02d", i)
		require.NoError(t, s.Put(ctx, newEvent("t1", id, time.Now().UTC())))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.UpdateStatus(ctx, "t1", id, event.StatusPending, event.StatusAcknowledged)
		}()
		go func() {
			defer wg.Done()
			_ = s.Delete(ctx, "t1", id)
		}()
		wg.Wait()

		ev, err := s.Get(ctx, "t1", id)
		require.NoError(t, err)
		assert.Contains(t, []event.Status{event.StatusAcknowledged, event.StatusDeleted}, ev.Status)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, newEvent("t1", "evt_01", time.Now().UTC())))

	ev, err := s.Get(ctx, "t1", "evt_01")
	require.NoError(t, err)
	ev.Status = event.StatusDeleted

	fresh, err := s.Get(ctx, "t1", "evt_01")
	require.NoError(t, err)
	assert.Equal(t, event.StatusPending, fresh.Status, "mutating a returned event must not touch the store")
}

func idsOf(events []*event.Event) []string {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}
