// Package memory is an in-process document store for development, the CLI
// dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/store"
)

// Store keeps documents in memory, keyed by collection.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]store.Document
	now         func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]store.Document),
		now:         time.Now,
	}
}

// Create stores a deep copy of payload under a new UUID.
func (s *Store) Create(ctx context.Context, collection string, payload map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if collection == "" {
		return "", fmt.Errorf("memory: collection is required")
	}

	doc := store.Document{
		ID:         uuid.NewString(),
		Collection: collection,
		Payload:    model.CloneTree(payload),
		CreatedAt:  s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]store.Document)
		s.collections[collection] = docs
	}
	docs[doc.ID] = doc
	return doc.ID, nil
}

// Get returns a copy of the document.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return store.Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
	}
	return copyDocument(doc), nil
}

// List returns documents oldest first.
func (s *Store) List(ctx context.Context, collection string, opts store.ListOptions) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.Normalized()

	s.mu.RLock()
	docs := make([]store.Document, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})

	if opts.Offset >= len(docs) {
		return []store.Document{}, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(docs) {
		end = len(docs)
	}
	out := make([]store.Document, 0, end-opts.Offset)
	for _, doc := range docs[opts.Offset:end] {
		out = append(out, copyDocument(doc))
	}
	return out, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
	}
	delete(s.collections[collection], id)
	return nil
}

// Len reports how many documents a collection holds.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func copyDocument(doc store.Document) store.Document {
	doc.Payload = model.CloneTree(doc.Payload)
	return doc
}
