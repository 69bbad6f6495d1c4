package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/auth"
	"github.com/YibinLong/ZapStream/internal/stream"
)

type StreamHandler struct {
	hub       *stream.Hub
	heartbeat time.Duration
}

func NewStreamHandler(hub *stream.Hub, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 20 * time.Second
	}
	return &StreamHandler{hub: hub, heartbeat: heartbeat}
}

// ServeHTTP streams the tenant's new events as server-sent events. Idle
// streams carry heartbeat comments so proxies and clients can tell "alive
// but quiet" from "disconnected". Client disconnect cancels the request
// context, which deregisters the subscription.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, apperr.New(apperr.CodeInternal, "streaming unsupported"))
		return
	}

	sub := h.hub.Subscribe(auth.TenantFrom(r.Context()))
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-sub.C:
			if ev == nil {
				continue
			}
			frame, err := json.Marshal(eventItem{
				ID:        ev.ID,
				CreatedAt: ev.CreatedAt,
				Source:    ev.Source,
				Type:      ev.Type,
				Topic:     ev.Topic,
				Payload:   ev.Payload,
			})
			if err != nil {
				slog.Error("marshal stream frame", "event_id", ev.ID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
