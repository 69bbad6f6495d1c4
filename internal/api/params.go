package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/auth"
	"github.com/YibinLong/ZapStream/internal/usecase"
)

func parseListParams(r *http.Request) (usecase.ListParams, error) {
	params := usecase.ListParams{
		TenantID: auth.TenantFrom(r.Context()),
		Topic:    r.URL.Query().Get("topic"),
		Type:     r.URL.Query().Get("type"),
		Cursor:   r.URL.Query().Get("cursor"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, apperr.New(apperr.CodeInvalidParams, "limit must be an integer")
		}
		if limit == 0 {
			// An explicit 0 must not fall back to the default.
			return params, apperr.New(apperr.CodeInvalidParams, "limit must be between 1 and 500")
		}
		params.Limit = limit
	}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, apperr.New(apperr.CodeInvalidParams, "since must be an RFC 3339 timestamp")
		}
		params.Since = since
	}

	return params, nil
}
