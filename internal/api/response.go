package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/YibinLong/ZapStream/internal/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses and emits the
// machine-readable error body. Internal causes are logged, never echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Wrap(apperr.CodeInternal, "internal server error", err)
	}

	status := http.StatusInternalServerError
	message := ae.Message

	switch ae.Code {
	case apperr.CodeUnauthenticated:
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", "Bearer")
	case apperr.CodeInvalidPayload, apperr.CodeInvalidParams:
		status = http.StatusBadRequest
	case apperr.CodeRateLimited:
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", retryAfterSeconds(ae))
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeInvalidTransition:
		status = http.StatusConflict
	case apperr.CodeInternal:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal server error"
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:      string(ae.Code),
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

func retryAfterSeconds(ae *apperr.Error) string {
	secs := int(math.Ceil(ae.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
