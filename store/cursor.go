package store

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
)

// cursorPosition is the keyset position after the last returned document.
// Hash ties a cursor to the collection, filter and order it was issued for.
type cursorPosition struct {
	ItemID      int64  `json:"item_id"`
	UpdatedAtMS int64  `json:"updated_at_ms,omitempty"`
	Hash        string `json:"hash"`
}

func hashQuery(collection string, filter mql.Document, order Order) (string, error) {
	fb, err := json.Marshal(filter)
	if err != nil {
		return "", qerrors.Wrap(qerrors.ErrCursor, "filter json", err)
	}
	h := sha256.New()
	h.Write([]byte(collection))
	h.Write([]byte("\n"))
	h.Write(fb)
	h.Write([]byte("\n"))
	h.Write([]byte(order))
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func encodeCursor(pos cursorPosition) (string, error) {
	b, err := json.Marshal(pos)
	if err != nil {
		return "", qerrors.Wrap(qerrors.ErrCursor, "cursor json", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeCursor(tok, wantHash string) (cursorPosition, error) {
	b, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return cursorPosition{}, qerrors.New(qerrors.ErrCursor, "base64 decode error")
	}
	var pos cursorPosition
	if err := json.Unmarshal(b, &pos); err != nil {
		return cursorPosition{}, qerrors.New(qerrors.ErrCursor, "cursor json parse error")
	}
	if pos.Hash != wantHash {
		return cursorPosition{}, qerrors.New(qerrors.ErrCursor, "cursor was issued for a different query")
	}
	return pos, nil
}
