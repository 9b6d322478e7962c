package formwizard

import (
	"context"
	"io/fs"

	"github.com/goliatone/go-formwizard/pkg/formdef"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Form aliases model.Form for callers that only import the root package.
type Form = model.Form

// Outcome aliases submit.Outcome.
type Outcome = submit.Outcome

// Store aliases submit.Store, the single write the pipeline performs.
type Store = submit.Store

// Wizard aliases wizard.Wizard.
type Wizard = wizard.Wizard

// Registry aliases formdef.Registry.
type Registry = formdef.Registry

// DefaultForms returns the embedded intake forms.
func DefaultForms() *Registry {
	return formdef.Default()
}

// LoadForms parses every definition file in fsys. When withDefaults is true
// the result is overlaid on the embedded forms.
func LoadForms(fsys fs.FS, withDefaults bool) (*Registry, error) {
	reg, err := formdef.LoadFS(fsys)
	if err != nil {
		return nil, err
	}
	if withDefaults {
		return formdef.Default().Merge(reg), nil
	}
	return reg, nil
}

// NewWizard starts an interactive session over form that submits to store.
func NewWizard(form *Form, store Store, options ...wizard.Option) *Wizard {
	return wizard.New(form, store, options...)
}

// Submit validates and stores a complete payload in one call, the way a
// single-page form would.
func Submit(ctx context.Context, form *Form, store Store, payload map[string]any, options ...submit.Option) (Outcome, error) {
	return submit.New(store, options...).Submit(ctx, session.FromPayload(form, payload))
}
