package formdef

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// ErrUnknownForm is returned when a form id is not registered.
var ErrUnknownForm = errors.New("formdef: unknown form")

// Registry holds compiled forms keyed by id. It is read-only after loading
// and safe for concurrent reads.
type Registry struct {
	forms   map[string]*model.Form
	sources map[string]string
}

func newRegistry() *Registry {
	return &Registry{
		forms:   make(map[string]*model.Form),
		sources: make(map[string]string),
	}
}

// NewRegistry builds a registry from already compiled forms.
func NewRegistry(forms ...*model.Form) (*Registry, error) {
	reg := newRegistry()
	for _, form := range forms {
		if form == nil {
			continue
		}
		if _, exists := reg.forms[form.ID]; exists {
			return nil, fmt.Errorf("formdef: duplicate form %q", form.ID)
		}
		reg.add(form, "")
	}
	return reg, nil
}

func (r *Registry) add(form *model.Form, source string) {
	r.forms[form.ID] = form
	r.sources[form.ID] = source
}

// Form returns the form registered under id.
func (r *Registry) Form(id string) (*model.Form, error) {
	form, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownForm, id)
	}
	return form, nil
}

// Lookup returns the form registered under id.
func (r *Registry) Lookup(id string) (*model.Form, bool) {
	if r == nil {
		return nil, false
	}
	form, ok := r.forms[id]
	return form, ok
}

// Source returns the file a form was loaded from, or "" for forms registered
// in code.
func (r *Registry) Source(id string) string {
	if r == nil {
		return ""
	}
	return r.sources[id]
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.forms))
	for id := range r.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Forms returns the registered forms ordered by id.
func (r *Registry) Forms() []*model.Form {
	ids := r.IDs()
	out := make([]*model.Form, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.forms[id])
	}
	return out
}

// Empty reports whether the registry holds any forms.
func (r *Registry) Empty() bool {
	return r == nil || len(r.forms) == 0
}

// Merge returns a registry holding r's forms overlaid with other's. Forms in
// other replace same-id forms in r.
func (r *Registry) Merge(other *Registry) *Registry {
	out := newRegistry()
	for _, src := range []*Registry{r, other} {
		if src == nil {
			continue
		}
		for id, form := range src.forms {
			out.add(form, src.sources[id])
		}
	}
	return out
}
