// Package app wires configuration into the loggers, stores and form registry
// shared by the formwizard commands.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/pkg/formdef"
	"github.com/goliatone/go-formwizard/pkg/store"
	"github.com/goliatone/go-formwizard/pkg/store/httpstore"
	"github.com/goliatone/go-formwizard/pkg/store/memory"
	"github.com/goliatone/go-formwizard/pkg/store/sqlstore"
)

// NewLogger builds a slog logger writing text or JSON at the configured level.
func NewLogger(cfg config.GeneralConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// OpenStore returns the configured document store and a function releasing
// its resources.
func OpenStore(cfg config.StoreConfig) (store.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case config.StoreMemory, "":
		return memory.New(), noop, nil
	case config.StoreSQLite, config.StorePostgres:
		driver := sqlstore.DriverSQLite
		if cfg.Driver == config.StorePostgres {
			driver = sqlstore.DriverPostgres
		}
		s, err := sqlstore.Open(driver, cfg.DSN, sqlstore.WithTimeout(cfg.Timeout))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreHTTP:
		opts := []httpstore.Option{httpstore.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}
		for key, value := range cfg.Headers {
			opts = append(opts, httpstore.WithHeader(key, value))
		}
		client, err := httpstore.New(cfg.URL, opts...)
		if err != nil {
			return nil, nil, err
		}
		return client, noop, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown store driver %q", cfg.Driver)
	}
}

// LoadForms returns the embedded forms, overlaid with the definitions found
// under dir when dir is set.
func LoadForms(dir string) (*formdef.Registry, error) {
	forms := formdef.Default()
	if dir == "" {
		return forms, nil
	}
	extra, err := formdef.LoadFS(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	return forms.Merge(extra), nil
}
