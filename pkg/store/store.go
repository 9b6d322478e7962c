// Package store defines the document persistence contract shared by the
// memory, SQL and HTTP backends. Every backend satisfies submit.Store through
// Create; the read side serves the admin listing endpoints.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document id is unknown in a collection.
var ErrNotFound = errors.New("store: document not found")

// Document is a stored submission payload.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ListOptions pages a collection listing. A zero Limit uses DefaultLimit.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultLimit bounds listings that do not set a limit.
const DefaultLimit = 50

// Normalized returns opts with defaults applied.
func (o ListOptions) Normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Store persists and reads back documents.
type Store interface {
	Create(ctx context.Context, collection string, payload map[string]any) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, opts ListOptions) ([]Document, error)
	Delete(ctx context.Context, collection, id string) error
}
