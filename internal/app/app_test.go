package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/pkg/store"
	"github.com/goliatone/go-formwizard/pkg/store/httpstore"
	"github.com/goliatone/go-formwizard/pkg/store/memory"
)

func TestNewLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.GeneralConfig{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "form", "client")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"form":"client"`)
}

func TestOpenStoreByDriver(t *testing.T) {
	s, closeFn, err := OpenStore(config.StoreConfig{Driver: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
	assert.NoError(t, closeFn())

	dsn := "file:" + filepath.Join(t.TempDir(), "docs.db")
	s, closeFn, err = OpenStore(config.StoreConfig{Driver: config.StoreSQLite, DSN: dsn, Timeout: time.Second})
	require.NoError(t, err)
	id, err := s.Create(context.Background(), "intakes", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	doc, err := s.Get(context.Background(), "intakes", id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Payload["name"])
	assert.NoError(t, closeFn())

	s, _, err = OpenStore(config.StoreConfig{Driver: config.StoreHTTP, URL: "https://forms.example.org", Headers: map[string]string{"x-api-key": "k"}})
	require.NoError(t, err)
	assert.IsType(t, &httpstore.Client{}, s)

	_, _, err = OpenStore(config.StoreConfig{Driver: config.StoreHTTP, URL: "ftp://nope"})
	assert.Error(t, err)

	_, _, err = OpenStore(config.StoreConfig{Driver: "mongo"})
	assert.EqualError(t, err, `app: unknown store driver "mongo"`)

	var _ store.Store = s
}

func TestLoadFormsOverlaysDirectory(t *testing.T) {
	forms, err := LoadForms("")
	require.NoError(t, err)
	assert.Contains(t, forms.IDs(), "client")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pantry.yaml"), []byte(`
forms:
  pantry:
    collection: pantry_visits
    steps:
      - title: Visit
        fields:
          - name: visitor
            required: true
          - name: consent
            kind: checkbox
            required: true
`), 0o644))

	merged, err := LoadForms(dir)
	require.NoError(t, err)
	assert.Contains(t, merged.IDs(), "pantry")
	assert.Contains(t, merged.IDs(), "client")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("forms: [nope"), 0o644))
	_, err = LoadForms(dir)
	assert.ErrorContains(t, err, "formdef:")
}
