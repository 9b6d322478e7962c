package intake

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goliatone/go-formwizard/pkg/store"
)

type documentsResponse struct {
	Data   []store.Document `json:"data"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func (c *Component) listDocuments(w http.ResponseWriter, r *http.Request) {
	collection, err := c.lookupCollection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := store.ListOptions{
		Limit:  clampLimit(parseInt(r.URL.Query().Get(c.opts.LimitParam)), c.opts),
		Offset: parseInt(r.URL.Query().Get("offset")),
	}.Normalized()

	docs, err := c.opts.Documents.List(r.Context(), collection, opts)
	if err != nil {
		c.opts.Logger.Error("document listing failed", "collection", collection, "error", err)
		writeError(w, r, StatusError{Code: http.StatusBadGateway, Err: err})
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	writeJSON(w, r, http.StatusOK, documentsResponse{Data: docs, Limit: opts.Limit, Offset: opts.Offset})
}

func (c *Component) getDocument(w http.ResponseWriter, r *http.Request) {
	collection, err := c.lookupCollection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := c.opts.Documents.Get(r.Context(), collection, r.PathValue("id"))
	if err != nil {
		writeError(w, r, documentError(err))
		return
	}
	writeJSON(w, r, http.StatusOK, dataResponse{Data: doc})
}

func (c *Component) deleteDocument(w http.ResponseWriter, r *http.Request) {
	collection, err := c.lookupCollection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.opts.Documents.Delete(r.Context(), collection, r.PathValue("id")); err != nil {
		writeError(w, r, documentError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookupCollection only admits collections some registered form writes to.
func (c *Component) lookupCollection(r *http.Request) (string, error) {
	name := r.PathValue("collection")
	for _, form := range c.opts.Forms.Forms() {
		if form.Collection == name {
			return name, nil
		}
	}
	return "", StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("intake: unknown collection %q", name)}
}

func documentError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return StatusError{Code: http.StatusNotFound, Err: err}
	}
	return StatusError{Code: http.StatusBadGateway, Err: err}
}
