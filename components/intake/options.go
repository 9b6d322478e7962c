package intake

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/openapi"
	"github.com/goliatone/go-formwizard/pkg/store"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// FormSource resolves form definitions by id. *formdef.Registry satisfies it.
type FormSource interface {
	Form(id string) (*model.Form, error)
	Forms() []*model.Form
}

type GuardFunc func(r *http.Request) error

type Options struct {
	Forms           FormSource
	Store           submit.Store
	// Documents serves the stored-submission listing routes. It defaults to
	// Store when Store also implements store.Store.
	Documents       store.Store
	Logger          *slog.Logger
	Metrics         *Metrics
	Validator       *validation.Validator
	PipelineOptions []submit.Option
	Guard           GuardFunc

	SearchParam  string
	LimitParam   string
	DefaultLimit int
	MaxLimit     int
	MaxBodyBytes int64

	// SessionTTL is how long a server-held session survives without a
	// request. SweepSchedule is the cron spec of the idle sweep.
	SessionTTL    time.Duration
	SweepSchedule string

	// SanitizeInput strips markup from submitted strings.
	SanitizeInput bool

	OpenAPI openapi.Options
	Now     func() time.Time
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		Logger:        slog.Default(),
		SearchParam:   "q",
		LimitParam:    "limit",
		DefaultLimit:  50,
		MaxLimit:      200,
		MaxBodyBytes:  1 << 20,
		SessionTTL:    30 * time.Minute,
		SweepSchedule: "@every 1m",
		SanitizeInput: true,
		Now:           time.Now,
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SearchParam == "" {
		opts.SearchParam = "q"
	}
	if opts.LimitParam == "" {
		opts.LimitParam = "limit"
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 50
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 200
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = "@every 1m"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PipelineOptions != nil {
		opts.PipelineOptions = append([]submit.Option{}, opts.PipelineOptions...)
	}
	return opts
}

func WithForms(forms FormSource) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Forms = forms
	}
}

func WithStore(s submit.Store) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Store = s
	}
}

func WithDocuments(docs store.Store) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Documents = docs
	}
}

func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Logger = logger
	}
}

func WithMetrics(metrics *Metrics) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Metrics = metrics
	}
}

func WithValidator(v *validation.Validator) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Validator = v
	}
}

// WithPipelineOptions appends options applied to every submission pipeline.
func WithPipelineOptions(opts ...submit.Option) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.PipelineOptions = append(o.PipelineOptions, opts...)
	}
}

func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Guard = guard
	}
}

func WithSearchParam(name string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.SearchParam = name
	}
}

func WithLimitParam(name string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.LimitParam = name
	}
}

func WithDefaultLimit(limit int) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.DefaultLimit = limit
	}
}

func WithMaxLimit(limit int) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.MaxLimit = limit
	}
}

func WithMaxBodyBytes(n int64) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.MaxBodyBytes = n
	}
}

func WithSessionTTL(ttl time.Duration) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.SessionTTL = ttl
	}
}

func WithSweepSchedule(spec string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.SweepSchedule = spec
	}
}

func WithSanitizeInput(enabled bool) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.SanitizeInput = enabled
	}
}

func WithOpenAPI(doc openapi.Options) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.OpenAPI = doc
	}
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Now = now
	}
}

func clampLimit(limit int, opts Options) int {
	if limit < 0 {
		return 0
	}
	if limit == 0 {
		limit = opts.DefaultLimit
	}
	if opts.MaxLimit > 0 && limit > opts.MaxLimit {
		return opts.MaxLimit
	}
	return limit
}
