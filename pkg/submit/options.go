package submit

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-formwizard/pkg/render"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithValidator replaces the default validator.
func WithValidator(v *validation.Validator) Option {
	return func(p *Pipeline) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithMessages shares a message renderer across pipelines.
func WithMessages(m *render.Messages) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.messages = m
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithObserver registers a transition observer.
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		if observer != nil {
			p.observers = append(p.observers, observer)
		}
	}
}

// WithTimeout bounds each store call.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = timeout
	}
}
