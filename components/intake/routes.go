package intake

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formwizard/pkg/openapi"
)

// Mux is the minimal interface required to register a net/http handler.
// It is satisfied by *http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

type route struct {
	method  string
	path    string
	handler http.HandlerFunc
}

// RegisterRoutes builds a component from fns and registers it under basePath.
func RegisterRoutes(mux Mux, basePath string, fns ...OptionFn) (*Component, []string, error) {
	c, err := New(fns...)
	if err != nil {
		return nil, nil, err
	}
	patterns, err := c.RegisterRoutes(mux, basePath)
	if err != nil {
		return nil, nil, err
	}
	return c, patterns, nil
}

// MountPath joins basePath and a route path the way RegisterRoutes does.
func MountPath(basePath, routePath string) string {
	basePath = strings.TrimSpace(basePath)
	routePath = strings.TrimSpace(routePath)

	if routePath == "" {
		routePath = "/"
	}
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}

	if basePath == "" || basePath == "/" {
		return routePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimRight(basePath, "/")
	return basePath + routePath
}

func registerRoutes(c *Component, mux Mux, basePath string) ([]string, error) {
	if mux == nil {
		return nil, fmt.Errorf("intake: missing mux")
	}

	routes := []route{
		{http.MethodGet, "/forms", c.listForms},
		{http.MethodGet, "/forms/{form}", c.getForm},
		{http.MethodGet, "/forms/{form}/options/{field}", c.searchOptions},
		{http.MethodPost, "/forms/{form}/submissions", c.submitOnce},
		{http.MethodPost, "/forms/{form}/sessions", c.startSession},
		{http.MethodGet, "/sessions/{id}", c.getSession},
		{http.MethodDelete, "/sessions/{id}", c.deleteSession},
		{http.MethodPost, "/sessions/{id}/fields", c.changeField},
		{http.MethodPost, "/sessions/{id}/next", c.nextStep},
		{http.MethodPost, "/sessions/{id}/back", c.previousStep},
		{http.MethodPost, "/sessions/{id}/steps/{step}", c.jumpToStep},
		{http.MethodPost, "/sessions/{id}/submit", c.submitSession},
		{http.MethodGet, "/openapi.json", c.openAPIHandler(basePath)},
	}
	if c.opts.Documents != nil {
		routes = append(routes,
			route{http.MethodGet, "/collections/{collection}/documents", c.listDocuments},
			route{http.MethodGet, "/collections/{collection}/documents/{id}", c.getDocument},
			route{http.MethodDelete, "/collections/{collection}/documents/{id}", c.deleteDocument},
		)
	}

	patterns := make([]string, 0, len(routes))
	for _, rt := range routes {
		pattern := rt.method + " " + MountPath(basePath, rt.path)
		mux.Handle(pattern, c.guarded(rt.handler))
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func (c *Component) guarded(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.opts.Guard != nil {
			if err := c.opts.Guard(r); err != nil {
				writeGuardError(w, r, err)
				return
			}
		}
		next(w, r)
	})
}

// openAPIHandler serves the submission API document for routes mounted at
// basePath. The document is built on first request.
func (c *Component) openAPIHandler(basePath string) http.HandlerFunc {
	var (
		once sync.Once
		doc  *openapi3.T
		err  error
	)
	docOpts := c.opts.OpenAPI
	if docOpts.BasePath == "" {
		docOpts.BasePath = basePath
	}
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			doc, err = openapi.Build(r.Context(), c.opts.Forms, docOpts)
		})
		if err != nil {
			c.opts.Logger.Error("openapi document build failed", "error", err)
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, doc)
	}
}
