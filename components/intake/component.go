package intake

import (
	"errors"
	"net/http"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/store"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Component serves form definitions, one-shot submissions and server-held
// wizard sessions over net/http.
type Component struct {
	opts     Options
	sessions *Sessions

	mu   sync.Mutex
	cron *cron.Cron
}

// New constructs a component. A form source and a store are required.
func New(fns ...OptionFn) (*Component, error) {
	opts := NewOptions(fns...)
	if opts.Forms == nil {
		return nil, errors.New("intake: missing form source")
	}
	if opts.Store == nil {
		return nil, errors.New("intake: missing store")
	}
	if opts.Documents == nil {
		if docs, ok := opts.Store.(store.Store); ok {
			opts.Documents = docs
		}
	}
	sessions := NewSessions(opts.SessionTTL, opts.Now)
	sessions.onResize = opts.Metrics.setSessions
	return &Component{opts: opts, sessions: sessions}, nil
}

// Options returns a copy of the component configuration.
func (c *Component) Options() Options {
	return NewOptions(func(o *Options) { *o = c.opts })
}

// Sessions exposes the session registry.
func (c *Component) Sessions() *Sessions {
	return c.sessions
}

// Handler returns a mux serving every route at the root path.
func (c *Component) Handler() http.Handler {
	mux := http.NewServeMux()
	_, _ = c.RegisterRoutes(mux, "")
	return mux
}

// RegisterRoutes registers the component routes under basePath on mux.
func (c *Component) RegisterRoutes(mux Mux, basePath string) ([]string, error) {
	return registerRoutes(c, mux, basePath)
}

// StartSweeper schedules the idle-session sweep on the configured cron spec.
func (c *Component) StartSweeper() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(c.opts.SweepSchedule, c.sweep); err != nil {
		return err
	}
	scheduler.Start()
	c.cron = scheduler
	return nil
}

// StopSweeper stops the sweep and waits for a running sweep to finish.
func (c *Component) StopSweeper() {
	c.mu.Lock()
	scheduler := c.cron
	c.cron = nil
	c.mu.Unlock()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
}

func (c *Component) sweep() {
	if removed := c.sessions.Sweep(); removed > 0 {
		c.opts.Logger.Info("expired sessions swept", "removed", removed, "remaining", c.sessions.Len())
	}
}

func (c *Component) newWizard(form *model.Form) *wizard.Wizard {
	opts := []wizard.Option{
		wizard.WithLogger(c.opts.Logger),
		wizard.WithPipelineOptions(c.extraPipelineOptions()...),
	}
	if c.opts.Validator != nil {
		opts = append(opts, wizard.WithValidator(c.opts.Validator))
	}
	return wizard.New(form, c.opts.Store, opts...)
}

// pipelineOptions configures a standalone pipeline the way newWizard does.
func (c *Component) pipelineOptions() []submit.Option {
	opts := []submit.Option{submit.WithLogger(c.opts.Logger)}
	if c.opts.Validator != nil {
		opts = append(opts, submit.WithValidator(c.opts.Validator))
	}
	return append(opts, c.extraPipelineOptions()...)
}

func (c *Component) extraPipelineOptions() []submit.Option {
	var opts []submit.Option
	if c.opts.Metrics != nil {
		opts = append(opts, submit.WithObserver(c.opts.Metrics.Observer()))
	}
	return append(opts, c.opts.PipelineOptions...)
}
