// Package wizard is the controller a UI drives: field edits, step
// navigation and final submission over one session.
package wizard

import (
	"context"
	"io"
	"log/slog"

	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// Option configures a Wizard.
type Option func(*config)

type config struct {
	validator *validation.Validator
	logger    *slog.Logger
	pipeline  []submit.Option
	session   *session.Session
}

// WithValidator shares a validator between step checks and submission.
func WithValidator(v *validation.Validator) Option {
	return func(c *config) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPipelineOptions forwards options to the submission pipeline.
func WithPipelineOptions(opts ...submit.Option) Option {
	return func(c *config) {
		c.pipeline = append(c.pipeline, opts...)
	}
}

// WithSession resumes an existing session instead of starting a new one.
func WithSession(s *session.Session) Option {
	return func(c *config) {
		c.session = s
	}
}

// Wizard drives one session through a form.
type Wizard struct {
	session   *session.Session
	validator *validation.Validator
	pipeline  *submit.Pipeline
	logger    *slog.Logger
}

// New starts a wizard on form, submitting to store.
func New(form *model.Form, store submit.Store, opts ...Option) *Wizard {
	cfg := config{
		validator: validation.New(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	s := cfg.session
	if s == nil {
		s = session.New(form)
	}

	pipelineOpts := append([]submit.Option{
		submit.WithValidator(cfg.validator),
		submit.WithLogger(cfg.logger),
	}, cfg.pipeline...)

	return &Wizard{
		session:   s,
		validator: cfg.validator,
		pipeline:  submit.New(store, pipelineOpts...),
		logger:    cfg.logger,
	}
}

// Form returns the form being filled.
func (w *Wizard) Form() *model.Form {
	return w.session.Form()
}

// Session exposes the underlying session.
func (w *Wizard) Session() *session.Session {
	return w.session
}

// OnFieldChange records an edit and clears that field's error.
func (w *Wizard) OnFieldChange(name string, value any) {
	w.session.SetValue(name, value)
}

// OnStepNext validates the current step. On success the step is marked
// passed and, unless it is the last step, the wizard advances. It reports
// whether the step passed.
func (w *Wizard) OnStepNext() bool {
	current := w.session.CurrentStep()
	errs := w.validator.ValidateStep(w.session, current)
	w.session.ReplaceErrors(w.Form().FieldNames(current), errs)
	if len(errs) > 0 {
		w.session.MarkFailed()
		w.logger.Debug("step rejected", "form", w.Form().ID, "step", current, "fields", len(errs))
		return false
	}

	w.session.MarkPassed(current)
	if current < w.Form().StepCount() {
		w.session.GoToStep(current + 1)
	}
	return true
}

// OnStepBack moves one step back. It reports false on the first step.
func (w *Wizard) OnStepBack() bool {
	current := w.session.CurrentStep()
	if current <= 1 {
		return false
	}
	return w.session.GoToStep(current - 1)
}

// OnStepTo jumps to id when navigation rules allow it.
func (w *Wizard) OnStepTo(id int) bool {
	return w.session.GoToStep(id)
}

// OnSubmit runs the submission pipeline.
func (w *Wizard) OnSubmit(ctx context.Context) (submit.Outcome, error) {
	return w.pipeline.Submit(ctx, w.session)
}

// CurrentErrors returns the per-field errors.
func (w *Wizard) CurrentErrors() map[string]string {
	return w.session.Errors()
}

// CurrentStep returns the active step id.
func (w *Wizard) CurrentStep() int {
	return w.session.CurrentStep()
}

// IsLastStep reports whether the active step is the final one.
func (w *Wizard) IsLastStep() bool {
	return w.session.CurrentStep() == w.Form().StepCount()
}

// IsSubmitting reports whether a store call is in flight.
func (w *Wizard) IsSubmitting() bool {
	return w.pipeline.Submitting()
}

// State returns the pipeline state.
func (w *Wizard) State() submit.State {
	return w.pipeline.State()
}

// Step returns the active step declaration.
func (w *Wizard) Step() model.Step {
	step, _ := w.Form().Step(w.session.CurrentStep())
	return step
}

// VisibleFields returns the active step's fields whose visibility rules
// currently hold.
func (w *Wizard) VisibleFields() []model.Field {
	lookup := condition.Lookup(w.session.Lookup)
	var out []model.Field
	for _, field := range w.Step().Fields {
		if field.VisibleFor(lookup) {
			out = append(out, field)
		}
	}
	return out
}

// RequiredFields returns the names among VisibleFields that are currently
// required.
func (w *Wizard) RequiredFields() []string {
	lookup := condition.Lookup(w.session.Lookup)
	var out []string
	for _, field := range w.VisibleFields() {
		if field.RequiredFor(lookup) {
			out = append(out, field.Name)
		}
	}
	return out
}

// Values returns a copy of the entered values.
func (w *Wizard) Values() map[string]any {
	return w.session.Values()
}

// Cancel abandons the session.
func (w *Wizard) Cancel() {
	w.session.Discard()
}
