package httpstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/store"
	"github.com/goliatone/go-formwizard/pkg/store/httpstore"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/testsupport"
)

func TestClientCreatePostsPayload(t *testing.T) {
	var (
		gotPath   string
		gotKey    string
		gotBody   map[string]any
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod, gotKey = r.URL.Path, r.Method, r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok": true, "data": {"submissionId": "abc123"}}`))
	}))
	defer srv.Close()

	client, err := httpstore.New(srv.URL+"/api/", httpstore.WithHeader("X-Api-Key", "secret"))
	require.NoError(t, err)

	id, err := client.Create(context.Background(), "intakes", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
	assert.Equal(t, "/api/intakes", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "Ada", gotBody["name"])
}

func TestClientCreateRemoteValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok": false, "error": "Validation failed", "details": {"fieldErrors": {"applicant.phone": ["Invalid phone number"]}}}`))
	}))
	defer srv.Close()

	client, err := httpstore.New(srv.URL)
	require.NoError(t, err)

	_, err = client.Create(context.Background(), "intakes", map[string]any{})
	var remote *httpstore.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.Status)
	assert.Equal(t, "Validation failed", remote.Message)
	assert.Equal(t, map[string][]string{"applicant.phone": {"Invalid phone number"}}, remote.FieldErrors())
}

func TestClientAsPipelineStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := httpstore.New(srv.URL)
	require.NoError(t, err)

	s := session.New(testsupport.IntakeForm())
	testsupport.FillIntake(s.SetValue)

	outcome, err := submit.New(client).Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, submit.StateFailed, outcome.State)
	assert.False(t, s.Discarded())
}

func TestClientReadSide(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /intakes/doc-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "doc-1", "payload": {"name": "Ada"}, "createdAt": "2024-03-01T10:00:00Z"}`))
	})
	mux.HandleFunc("GET /intakes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"ok": true, "data": [{"_id": "a"}, {"_id": "b"}]}`))
	})
	mux.HandleFunc("DELETE /intakes/doc-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := httpstore.New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	doc, err := client.Get(ctx, "intakes", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Payload["name"])
	assert.Equal(t, 2024, doc.CreatedAt.Year())

	docs, err := client.List(ctx, "intakes", store.ListOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[1].ID)

	require.NoError(t, client.Delete(ctx, "intakes", "doc-1"))

	_, err = client.Get(ctx, "intakes", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := httpstore.New("ftp://example.com")
	assert.Error(t, err)
}
