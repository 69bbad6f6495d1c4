package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/YibinLong/ZapStream/internal/domain/event"
	"github.com/YibinLong/ZapStream/internal/store"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `
	tenant_id,
	id,
	COALESCE(source, ''),
	COALESCE(type, ''),
	COALESCE(topic, ''),
	payload,
	status,
	COALESCE(idempotency_key, ''),
	created_at,
	updated_at
`

// InsertIfAbsent relies on the partial unique index over
// (tenant_id, idempotency_key): the ON CONFLICT DO NOTHING path waits for a
// concurrent conflicting insert to commit, so the follow-up select always
// observes the winner's row.
func (r *EventRepository) InsertIfAbsent(ctx context.Context, ev *event.Event) (*event.Event, bool, error) {
	const insert = `
		INSERT INTO events (tenant_id, id, source, type, topic, payload, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, insert,
		ev.TenantID, ev.ID, nullIfEmpty(ev.Source), nullIfEmpty(ev.Type), nullIfEmpty(ev.Topic),
		ev.Payload, string(ev.Status), ev.IdempotencyKey, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert event: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return ev, true, nil
	}

	const lookup = `SELECT ` + eventColumns + ` FROM events WHERE tenant_id = $1 AND idempotency_key = $2`

	existing, err := r.scanOne(r.pool.QueryRow(ctx, lookup, ev.TenantID, ev.IdempotencyKey))
	if err != nil {
		return nil, false, fmt.Errorf("lookup winner by idempotency key: %w", err)
	}
	return existing, false, nil
}

func (r *EventRepository) Put(ctx context.Context, ev *event.Event) error {
	const insert = `
		INSERT INTO events (tenant_id, id, source, type, topic, payload, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9)
	`

	_, err := r.pool.Exec(ctx, insert,
		ev.TenantID, ev.ID, nullIfEmpty(ev.Source), nullIfEmpty(ev.Type), nullIfEmpty(ev.Topic),
		ev.Payload, string(ev.Status), ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *EventRepository) Get(ctx context.Context, tenantID, id string) (*event.Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM events WHERE tenant_id = $1 AND id = $2`

	ev, err := r.scanOne(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (r *EventRepository) QueryPending(ctx context.Context, tenantID string, q store.Query) ([]*event.Event, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + eventColumns + ` FROM events WHERE tenant_id = $1 AND status = 'pending'`)
	args := []any{tenantID}

	if !q.Since.IsZero() {
		args = append(args, q.Since)
		sb.WriteString(` AND created_at >= $` + strconv.Itoa(len(args)))
	}
	if q.Topic != "" {
		args = append(args, q.Topic)
		sb.WriteString(` AND topic = $` + strconv.Itoa(len(args)))
	}
	if q.Type != "" {
		args = append(args, q.Type)
		sb.WriteString(` AND type = $` + strconv.Itoa(len(args)))
	}
	if q.After != nil {
		args = append(args, q.After.CreatedAt, q.After.ID)
		sb.WriteString(fmt.Sprintf(` AND (created_at, id) > ($%d, $%d)`, len(args)-1, len(args)))
	}

	sb.WriteString(` ORDER BY created_at ASC, id ASC`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		ev, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *EventRepository) UpdateStatus(ctx context.Context, tenantID, id string, expected, next event.Status) error {
	const update = `
		UPDATE events
		SET status = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $3
	`

	tag, err := r.pool.Exec(ctx, update, tenantID, id, string(expected), string(next))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// The conditional update missed: either the row is gone or another
	// transition won. Re-read to tell the two apart.
	if _, err := r.Get(ctx, tenantID, id); err != nil {
		return err
	}
	return store.ErrConflict
}

func (r *EventRepository) Delete(ctx context.Context, tenantID, id string) error {
	const update = `
		UPDATE events
		SET status = 'deleted', updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`

	tag, err := r.pool.Exec(ctx, update, tenantID, id)
	if err != nil {
		return fmt.Errorf("tombstone event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *EventRepository) scanOne(row pgx.Row) (*event.Event, error) {
	ev := &event.Event{}
	var status string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&ev.TenantID, &ev.ID, &ev.Source, &ev.Type, &ev.Topic,
		&ev.Payload, &status, &ev.IdempotencyKey, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	ev.Status = event.Status(status)
	ev.CreatedAt = createdAt.UTC()
	ev.UpdatedAt = updatedAt.UTC()
	return ev, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
