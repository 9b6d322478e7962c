package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formwizard/pkg/store"
	"github.com/goliatone/go-formwizard/pkg/store/memory"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	payload := map[string]any{"name": "Ada", "allergies": []string{"dairy"}}
	id, err := s.Create(ctx, "intakes", payload)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	payload["name"] = "mutated"
	payload["allergies"].([]string)[0] = "mutated"

	doc, err := s.Get(ctx, "intakes", id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Payload["name"])
	assert.Equal(t, []string{"dairy"}, doc.Payload["allergies"])
	assert.Equal(t, "intakes", doc.Collection)
	assert.False(t, doc.CreatedAt.IsZero())

	_, err = s.Get(ctx, "other", id)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, s.Delete(ctx, "intakes", id))
	assert.ErrorIs(t, s.Delete(ctx, "intakes", id), store.ErrNotFound)
	assert.Equal(t, 0, s.Len("intakes"))
}

func TestMemoryStoreListPages(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, "contacts", map[string]any{"n": i})
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "contacts", store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	page, err := s.List(ctx, "contacts", store.ListOptions{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	empty, err := s.List(ctx, "contacts", store.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := memory.New().Create(ctx, "intakes", map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = memory.New().Create(context.Background(), "", map[string]any{})
	assert.Error(t, err)
}
