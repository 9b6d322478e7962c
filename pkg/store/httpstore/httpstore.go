// Package httpstore forwards submissions to a remote JSON API. Documents are
// created with POST {base}/{collection}; remote validation errors are kept as
// per-field messages on *RemoteError.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formwizard/pkg/store"
)

const maxErrorBody = 64 << 10

// Client is a store.Store over HTTP.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	headers    http.Header
}

var _ store.Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithHeader adds a header to every request, e.g. an API key.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// New builds a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("httpstore: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("httpstore: base url %q must be http or https", baseURL)
	}
	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// RemoteError is a non-2xx response.
type RemoteError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("httpstore: remote returned status %d", e.Status)
	}
	return fmt.Sprintf("httpstore: remote returned status %d: %s", e.Status, e.Message)
}

// FieldErrors returns the remote per-field messages keyed by the remote's
// field paths.
func (e *RemoteError) FieldErrors() map[string][]string {
	return e.Fields
}

// Create posts payload and returns the id the remote assigned.
func (c *Client) Create(ctx context.Context, collection string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("httpstore: encode payload: %w", err)
	}

	var out map[string]any
	if err := c.do(ctx, http.MethodPost, c.endpoint(collection), nil, body, &out); err != nil {
		return "", err
	}
	id := documentID(out)
	if id == "" {
		return "", errors.New("httpstore: response carried no document id")
	}
	return id, nil
}

// Get fetches GET {base}/{collection}/{id}.
func (c *Client) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, c.endpoint(collection, id), nil, nil, &out); err != nil {
		return store.Document{}, err
	}
	doc := toDocument(collection, unwrap(out))
	if doc.ID == "" {
		doc.ID = id
	}
	return doc, nil
}

// List fetches GET {base}/{collection}?limit=&offset=.
func (c *Client) List(ctx context.Context, collection string, opts store.ListOptions) ([]store.Document, error) {
	opts = opts.Normalized()
	query := url.Values{}
	query.Set("limit", strconv.Itoa(opts.Limit))
	query.Set("offset", strconv.Itoa(opts.Offset))

	var out any
	if err := c.do(ctx, http.MethodGet, c.endpoint(collection), query, nil, &out); err != nil {
		return nil, err
	}

	var items []any
	switch typed := out.(type) {
	case []any:
		items = typed
	case map[string]any:
		switch data := unwrap(typed).(type) {
		case []any:
			items = data
		case map[string]any:
			items, _ = data["items"].([]any)
		}
	}

	docs := make([]store.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, toDocument(collection, item))
	}
	return docs, nil
}

// Delete issues DELETE {base}/{collection}/{id}.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint(collection, id), nil, nil, nil)
}

func (c *Client) endpoint(segments ...string) *url.URL {
	u := *c.base
	parts := []string{u.Path}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	u.Path = strings.Join(parts, "/")
	u.RawPath = ""
	return &u
}

func (c *Client) do(ctx context.Context, method string, endpoint *url.URL, query url.Values, body []byte, out any) error {
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("httpstore: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpstore: %s %s: %w", method, endpoint.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method != http.MethodPost {
		return fmt.Errorf("%w: %s", store.ErrNotFound, endpoint.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeRemoteError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpstore: decode: %w", err)
	}
	return nil
}

// decodeRemoteError reads {error|message, details|errors} bodies. Details may
// map fields to a message or a list of messages.
func decodeRemoteError(resp *http.Response) error {
	remote := &RemoteError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		remote.Message = strings.TrimSpace(string(data))
		return remote
	}

	for _, key := range []string{"error", "message"} {
		if msg, ok := body[key].(string); ok && msg != "" {
			remote.Message = msg
			break
		}
	}
	for _, key := range []string{"details", "errors"} {
		if fields := fieldMessages(body[key]); len(fields) > 0 {
			remote.Fields = fields
			break
		}
	}
	return remote
}

func fieldMessages(raw any) map[string][]string {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	if nested, ok := obj["fieldErrors"]; ok {
		return fieldMessages(nested)
	}

	out := make(map[string][]string)
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch v := obj[key].(type) {
		case string:
			out[key] = []string{v}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					out[key] = append(out[key], s)
				}
			}
		}
	}
	return out
}

// unwrap returns body["data"] for {ok, data} envelopes.
func unwrap(body map[string]any) any {
	if data, ok := body["data"]; ok {
		return data
	}
	return body
}

func documentID(body map[string]any) string {
	candidates := []map[string]any{body}
	if data, ok := body["data"].(map[string]any); ok {
		candidates = append(candidates, data)
	}
	for _, obj := range candidates {
		for _, key := range []string{"id", "_id", "submissionId"} {
			switch v := obj[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case float64:
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
	}
	return ""
}

func toDocument(collection string, raw any) store.Document {
	doc := store.Document{Collection: collection}
	obj, ok := raw.(map[string]any)
	if !ok {
		return doc
	}
	doc.ID = documentID(obj)
	if payload, ok := obj["payload"].(map[string]any); ok {
		doc.Payload = payload
	} else {
		doc.Payload = obj
	}
	if created, ok := obj["createdAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, created); err == nil {
			doc.CreatedAt = ts
		}
	}
	return doc
}
