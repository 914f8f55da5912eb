package store

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Order selects the order of find results
type Order string

const (
	OrderInsertion Order = "insertion" // oldest first
	OrderRecency   Order = "recency"   // updated_at DESC
)

// Options configures a Store
type Options struct {
	Now          func() time.Time
	DefaultLimit int
	MaxLimit     int
	Logger       *slog.Logger
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		Now:          time.Now,
		DefaultLimit: DefaultLimit,
		MaxLimit:     MaxLimit,
	}
}

const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// FindOptions configures a find
type FindOptions struct {
	Order   Order
	Limit   int
	After   string // cursor token or ""
	Explain bool
}

// DocMeta holds document timestamps
type DocMeta struct {
	CreatedAtMS int64 `json:"created_at_ms"`
	UpdatedAtMS int64 `json:"updated_at_ms"`
}

// DocumentView is a stored document with its metadata
type DocumentView struct {
	ID      string          `json:"id"`
	DocJSON json.RawMessage `json:"doc"`
	Meta    DocMeta         `json:"meta"`
}

// FindResult is a page of find results
type FindResult struct {
	Items        []DocumentView `json:"items"`
	NextCursor   string         `json:"next_cursor,omitempty"`
	HasMore      bool           `json:"has_more"`
	ExplainSQL   string         `json:"explain_sql,omitempty"`
	ExplainSteps []string       `json:"explain_steps,omitempty"`
}

// CollectionInfo names a collection and its size
type CollectionInfo struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
