package usecase

import (
	"encoding/base64"
	"encoding/json"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/store"
)

// Cursors are opaque to callers: base64 over the JSON form of the last-seen
// (created_at, id) position.

func encodeCursor(pos store.Position) string {
	raw, _ := json.Marshal(pos)
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeCursor(cursor string) (*store.Position, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidParams, "invalid cursor", err)
	}

	pos := &store.Position{}
	if err := json.Unmarshal(raw, pos); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidParams, "invalid cursor", err)
	}
	if pos.ID == "" || pos.CreatedAt.IsZero() {
		return nil, apperr.New(apperr.CodeInvalidParams, "invalid cursor")
	}
	return pos, nil
}
