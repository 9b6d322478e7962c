// Package submit runs a filled form through validation, normalization and a
// store call, classifying the result as rejected, failed or succeeded.
package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/normalize"
	"github.com/goliatone/go-formwizard/pkg/render"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// State is the pipeline's position in a submission.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateRejected   State = "rejected"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var (
	// ErrInFlight is returned when a submission is already running.
	ErrInFlight = errors.New("submit: submission already in flight")
	// ErrDiscarded is returned for sessions ended by an earlier success.
	ErrDiscarded = errors.New("submit: session discarded")
)

// Store persists a normalized payload into a named collection.
type Store interface {
	Create(ctx context.Context, collection string, payload map[string]any) (string, error)
}

// StoreFunc adapts a function into a Store.
type StoreFunc func(ctx context.Context, collection string, payload map[string]any) (string, error)

// Create calls fn.
func (fn StoreFunc) Create(ctx context.Context, collection string, payload map[string]any) (string, error) {
	return fn(ctx, collection, payload)
}

// Outcome classifies one submission attempt.
type Outcome struct {
	State   State               `json:"state"`
	Step    int                 `json:"step,omitempty"`
	Errors  validation.ErrorMap `json:"errors,omitempty"`
	ID      string              `json:"id,omitempty"`
	Message string              `json:"message,omitempty"`
	Payload map[string]any      `json:"-"`
}

// Event is emitted on every state transition.
type Event struct {
	Form     string
	From     State
	To       State
	Duration time.Duration
	Err      error
}

// Observer receives transition events. Observers run synchronously.
type Observer func(Event)

// Pipeline drives one session's submissions. It is safe for concurrent use;
// only one submission runs at a time.
type Pipeline struct {
	store     Store
	validator *validation.Validator
	messages  *render.Messages
	logger    *slog.Logger
	tracer    trace.Tracer
	observers []Observer
	timeout   time.Duration

	mu    sync.Mutex
	state State
}

// New builds a pipeline writing to store.
func New(store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		validator: validation.New(),
		messages:  render.NewMessages(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:    otel.Tracer("github.com/goliatone/go-formwizard/pkg/submit"),
		state:     StateIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Submitting reports whether a store call is in flight.
func (p *Pipeline) Submitting() bool {
	return p.State() == StateSubmitting
}

// Submit validates every step, normalizes and stores the payload.
//
// Rejected: the first failing step's errors are written to the session and
// the session returns to that step; no store call is made.
// Failed: normalization or the store call failed; the session is kept so the
// user can retry.
// Succeeded: the session is discarded.
//
// A returned error means no attempt was made (ErrInFlight, ErrDiscarded).
func (p *Pipeline) Submit(ctx context.Context, s *session.Session) (Outcome, error) {
	if s.Discarded() {
		return Outcome{State: p.State()}, ErrDiscarded
	}

	p.mu.Lock()
	if p.state == StateSubmitting || p.state == StateValidating {
		p.mu.Unlock()
		return Outcome{State: StateSubmitting}, ErrInFlight
	}
	if p.state == StateSucceeded {
		p.mu.Unlock()
		return Outcome{State: StateSucceeded}, ErrDiscarded
	}
	p.transitionLocked(s.Form(), StateValidating, 0, nil)
	p.mu.Unlock()

	form := s.Form()
	snapshot := s.Clone()
	started := time.Now()

	result := p.validator.ValidateAll(snapshot)
	if !result.Valid() {
		errs := result.Errors()
		s.ReplaceErrors(form.FieldNames(result.FirstFailing), errs)
		s.ReturnTo(result.FirstFailing)
		p.finish(form, StateRejected, started, nil)
		p.logger.Info("submission rejected",
			"form", form.ID,
			"step", result.FirstFailing,
			"fields", len(errs),
		)
		return Outcome{State: StateRejected, Step: result.FirstFailing, Errors: errs}, nil
	}

	p.mu.Lock()
	p.transitionLocked(form, StateSubmitting, 0, nil)
	p.mu.Unlock()

	payload, err := normalize.Normalize(snapshot)
	if err != nil {
		p.logger.Error("submission normalize failed", "form", form.ID, "error", err)
		p.finish(form, StateFailed, started, err)
		return Outcome{State: StateFailed, Message: p.failureMessage(form)}, nil
	}

	id, err := p.create(ctx, form, payload)
	if err != nil {
		p.logStoreError(form, err)
		p.finish(form, StateFailed, started, err)
		return Outcome{State: StateFailed, Message: p.failureMessage(form), Payload: payload}, nil
	}

	message := p.successMessage(form, payload)
	s.Discard()

	p.mu.Lock()
	p.transitionLocked(form, StateSucceeded, time.Since(started), nil)
	p.mu.Unlock()

	p.logger.Info("submission stored", "form", form.ID, "collection", form.Collection, "id", id)
	return Outcome{State: StateSucceeded, ID: id, Message: message, Payload: payload}, nil
}

func (p *Pipeline) create(ctx context.Context, form *model.Form, payload map[string]any) (string, error) {
	if p.store == nil {
		return "", errors.New("submit: no store configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "formwizard.submit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("formwizard.form", form.ID),
			attribute.String("formwizard.collection", form.Collection),
		),
	)
	defer span.End()

	id, err := p.store.Create(ctx, form.Collection, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store create failed")
		return "", fmt.Errorf("submit: create in %q: %w", form.Collection, err)
	}
	span.SetAttributes(attribute.String("formwizard.document_id", id))
	return id, nil
}

// fieldErrorReporter is implemented by store errors that carry remote
// per-field messages.
type fieldErrorReporter interface {
	FieldErrors() map[string][]string
}

func (p *Pipeline) logStoreError(form *model.Form, err error) {
	attrs := []any{"form", form.ID, "collection", form.Collection, "error", err}
	var reporter fieldErrorReporter
	if errors.As(err, &reporter) {
		mapping := render.MapErrorPayload(form, reporter.FieldErrors())
		attrs = append(attrs, "field_errors", mapping.Fields, "form_errors", mapping.Form)
	}
	p.logger.Error("submission store failed", attrs...)
}

// finish records a terminal classification and returns the pipeline to idle.
func (p *Pipeline) finish(form *model.Form, outcome State, started time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := time.Since(started)
	p.transitionLocked(form, outcome, elapsed, err)
	p.transitionLocked(form, StateIdle, 0, nil)
}

func (p *Pipeline) transitionLocked(form *model.Form, to State, elapsed time.Duration, err error) {
	from := p.state
	p.state = to
	event := Event{Form: form.ID, From: from, To: to, Duration: elapsed, Err: err}
	for _, observer := range p.observers {
		observer(event)
	}
}

func (p *Pipeline) successMessage(form *model.Form, payload map[string]any) string {
	source := form.SuccessMessage
	if source == "" {
		return render.DefaultSuccessMessage
	}
	msg, err := p.messages.Render(source, payload)
	if err != nil {
		p.logger.Warn("success message render failed", "form", form.ID, "error", err)
		return render.DefaultSuccessMessage
	}
	return msg
}

func (p *Pipeline) failureMessage(form *model.Form) string {
	if form.FailureMessage != "" {
		return form.FailureMessage
	}
	return render.DefaultFailureMessage
}
