package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YibinLong/ZapStream/internal/api/middleware"
	"github.com/YibinLong/ZapStream/internal/auth"
)

func NewRouter(h *Handlers, streamH *StreamHandler, resolver *auth.Resolver, allowedOrigins string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(splitOrigins(allowedOrigins)))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(resolver, false))

		r.Post("/events", h.CreateEvent)
		r.Get("/inbox", h.ListInbox)
		r.Post("/inbox/{id}/ack", h.AckEvent)
		r.Delete("/inbox/{id}", h.DeleteEvent)
	})

	// Stream auth additionally accepts ?api_key= for EventSource clients.
	r.With(middleware.Authenticate(resolver, true)).
		Get("/inbox/stream", streamH.ServeHTTP)

	return r
}

func splitOrigins(allowedOrigins string) []string {
	var origins []string
	for _, origin := range strings.Split(allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
