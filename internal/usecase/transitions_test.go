package usecase_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/domain/event"
	"github.com/YibinLong/ZapStream/internal/store/memory"
	"github.com/YibinLong/ZapStream/internal/usecase"
)

func seedOne(t *testing.T, st *memory.Store, tenantID, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, st.Put(context.Background(), &event.Event{
		ID:        id,
		TenantID:  tenantID,
		Payload:   json.RawMessage(`{"n":1}`),
		Status:    event.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func TestAckIsIdempotent(t *testing.T) {
	st := memory.New()
	seedOne(t, st, "t1", "evt_01")
	uc := usecase.NewAckEvent(st)
	ctx := context.Background()

	require.NoError(t, uc.Execute(ctx, "t1", "evt_01"))
	require.NoError(t, uc.Execute(ctx, "t1", "evt_01"), "repeated ack succeeds")

	ev, err := st.Get(ctx, "t1", "evt_01")
	require.NoError(t, err)
	assert.Equal(t, event.StatusAcknowledged, ev.Status)
}

func TestAckUnknownEvent(t *testing.T) {
	uc := usecase.NewAckEvent(memory.New())

	err := uc.Execute(context.Background(), "t1", "evt_missing")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestAckForeignTenantIsNotFound(t *testing.T) {
	st := memory.New()
	seedOne(t, st, "t1", "evt_01")
	uc := usecase.NewAckEvent(st)

	err := uc.Execute(context.Background(), "t2", "evt_01")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err), "foreign tenant must look identical to missing")
}

func TestAckAfterDeleteIsInvalidTransition(t *testing.T) {
	st := memory.New()
	seedOne(t, st, "t1", "evt_01")
	ctx := context.Background()

	require.NoError(t, usecase.NewDeleteEvent(st).Execute(ctx, "t1", "evt_01"))

	err := usecase.NewAckEvent(st).Execute(ctx, "t1", "evt_01")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))
}

func TestDeleteIsIdempotent(t *testing.T) {
	st := memory.New()
	seedOne(t, st, "t1", "evt_01")
	uc := usecase.NewDeleteEvent(st)
	ctx := context.Background()

	require.NoError(t, uc.Execute(ctx, "t1", "evt_01"))
	require.NoError(t, uc.Execute(ctx, "t1", "evt_01"), "re-delete is a no-op success")

	ev, err := st.Get(ctx, "t1", "evt_01")
	require.NoError(t, err)
	assert.Equal(t, event.StatusDeleted, ev.Status)
}

func TestDeleteAcknowledgedEvent(t *testing.T) {
	st := memory.New()
	seedOne(t, st, "t1", "evt_01")
	ctx := context.Background()

	require.NoError(t, usecase.NewAckEvent(st).Execute(ctx, "t1", "evt_01"))
	require.NoError(t, usecase.NewDeleteEvent(st).Execute(ctx, "t1", "evt_01"))

	ev, err := st.Get(ctx, "t1", "evt_01")
	require.NoError(t, err)
	assert.Equal(t, event.StatusDeleted, ev.Status)
}

func TestDeleteUnknownEvent(t *testing.T) {
	uc := usecase.NewDeleteEvent(memory.New())

	err := uc.Execute(context.Background(), "t1", "evt_missing")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestDeletedEventLeavesInbox(t *testing.T) {
	st := memory.New()
	seedOne(t, st, "t1", "evt_01")
	ctx := context.Background()

	require.NoError(t, usecase.NewDeleteEvent(st).Execute(ctx, "t1", "evt_01"))

	result, err := usecase.NewListInbox(st).Execute(ctx, usecase.ListParams{TenantID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, result.Events)
}
