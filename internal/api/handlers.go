package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/auth"
	"github.com/YibinLong/ZapStream/internal/domain/event"
	"github.com/YibinLong/ZapStream/internal/usecase"
)

type Handlers struct {
	ingestUC *usecase.IngestEvent
	listUC   *usecase.ListInbox
	ackUC    *usecase.AckEvent
	deleteUC *usecase.DeleteEvent

	service string
	version string
}

func NewHandlers(ingestUC *usecase.IngestEvent, listUC *usecase.ListInbox, ackUC *usecase.AckEvent, deleteUC *usecase.DeleteEvent, service, version string) *Handlers {
	return &Handlers{
		ingestUC: ingestUC,
		listUC:   listUC,
		ackUC:    ackUC,
		deleteUC: deleteUC,
		service:  service,
		version:  version,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.service,
		"version": h.version,
	})
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source         string          `json:"source"`
		Type           string          `json:"type"`
		Topic          string          `json:"topic"`
		Payload        json.RawMessage `json:"payload"`
		IdempotencyKey string          `json:"idempotency_key"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.CodeInvalidPayload, "invalid request body"))
		return
	}

	// Header transport wins over the body field.
	idempotencyKey := r.Header.Get("X-Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = req.IdempotencyKey
	}

	ev, created, err := h.ingestUC.Execute(r.Context(), usecase.IngestParams{
		TenantID:   auth.TenantFrom(r.Context()),
		Credential: auth.Credential(r, false),
		Draft: event.Draft{
			Source:  req.Source,
			Type:    req.Type,
			Topic:   req.Topic,
			Payload: req.Payload,
		},
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		// Idempotency-key replay: same event, no new row.
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"id":         ev.ID,
		"created_at": ev.CreatedAt,
		"status":     ev.Status,
	})
}

type eventItem struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Source    string          `json:"source,omitempty"`
	Type      string          `json:"type,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func (h *Handlers) ListInbox(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.listUC.Execute(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]eventItem, 0, len(result.Events))
	for _, ev := range result.Events {
		items = append(items, eventItem{
			ID:        ev.ID,
			CreatedAt: ev.CreatedAt,
			Source:    ev.Source,
			Type:      ev.Type,
			Topic:     ev.Topic,
			Payload:   ev.Payload,
		})
	}

	resp := map[string]any{"events": items}
	if result.NextCursor != "" {
		resp["next_cursor"] = result.NextCursor
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) AckEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ackUC.Execute(r.Context(), auth.TenantFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"status": event.StatusAcknowledged,
	})
}

func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deleteUC.Execute(r.Context(), auth.TenantFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"status": event.StatusDeleted,
	})
}
