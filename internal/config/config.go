// Package config loads runtime settings for the formwizard commands from a
// YAML file, FORMWIZARD_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreHTTP     = "http"
)

const (
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultHTTPAddr        = ":3000"
	defaultBasePath        = "/api"
	defaultShutdownTimeout = 10 * time.Second
	defaultStoreDriver     = StoreMemory
	defaultStoreTimeout    = 10 * time.Second
	defaultSessionTTL      = 30 * time.Minute
	defaultSessionSweep    = "@every 1m"
)

var logLevelMapping = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

type Config struct {
	General  GeneralConfig
	HTTP     HTTPConfig
	Store    StoreConfig
	Forms    FormsConfig
	Sessions SessionsConfig
}

type GeneralConfig struct {
	LogLevel  string
	LogFormat string
}

// Level maps LogLevel to a slog level, defaulting to info.
func (g GeneralConfig) Level() slog.Level {
	if level, ok := logLevelMapping[strings.ToLower(g.LogLevel)]; ok {
		return level
	}
	return slog.LevelInfo
}

type HTTPConfig struct {
	Addr            string
	BasePath        string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Driver  string
	DSN     string
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

type FormsConfig struct {
	// Dir holds extra definition files merged over the embedded forms.
	Dir string
}

type SessionsConfig struct {
	TTL   time.Duration
	Sweep string
}

// Flags returns the flag set shared by the commands. Flag defaults match the
// configuration defaults.
func Flags(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.String("config", "", "path to a formwizard.yaml file")
	flags.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("http-addr", defaultHTTPAddr, "HTTP listen address")
	flags.String("store-driver", defaultStoreDriver, "submission store (memory, sqlite, postgres, http)")
	flags.String("store-dsn", "", "database DSN for sqlite or postgres")
	flags.String("store-url", "", "base URL of a remote document API")
	flags.String("forms-dir", "", "directory of extra form definitions")
	return flags
}

var flagKeys = map[string]string{
	"log-level":    "general.log_level",
	"http-addr":    "http.addr",
	"store-driver": "store.driver",
	"store-dsn":    "store.dsn",
	"store-url":    "store.url",
	"forms-dir":    "forms.dir",
}

// Load resolves the configuration. Precedence, highest first: flags set on
// the command line, environment, config file, defaults. A missing default
// config file is not an error; a missing --config file is.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("formwizard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := ""
	if flags != nil {
		for flagName, key := range flagKeys {
			if flag := flags.Lookup(flagName); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, fmt.Errorf("config: bind %s: %w", flagName, err)
				}
			}
		}
		explicit, _ = flags.GetString("config")
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", explicit, err)
		}
	} else {
		v.SetConfigName("formwizard")
		v.AddConfigPath("config")
		v.AddConfigPath("/etc/formwizard")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	cfg := Config{
		General: GeneralConfig{
			LogLevel:  v.GetString("general.log_level"),
			LogFormat: v.GetString("general.log_format"),
		},
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			BasePath:        v.GetString("http.base_path"),
			AllowedOrigins:  v.GetStringSlice("http.allowed_origins"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(v.GetString("store.driver")),
			DSN:     v.GetString("store.dsn"),
			URL:     v.GetString("store.url"),
			Timeout: v.GetDuration("store.timeout"),
			Headers: v.GetStringMapString("store.headers"),
		},
		Forms: FormsConfig{
			Dir: v.GetString("forms.dir"),
		},
		Sessions: SessionsConfig{
			TTL:   v.GetDuration("sessions.ttl"),
			Sweep: v.GetString("sessions.sweep"),
		},
	}
	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", defaultLogLevel)
	v.SetDefault("general.log_format", defaultLogFormat)
	v.SetDefault("http.addr", defaultHTTPAddr)
	v.SetDefault("http.base_path", defaultBasePath)
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("http.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("store.driver", defaultStoreDriver)
	v.SetDefault("store.timeout", defaultStoreTimeout)
	v.SetDefault("sessions.ttl", defaultSessionTTL)
	v.SetDefault("sessions.sweep", defaultSessionSweep)
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if _, ok := logLevelMapping[strings.ToLower(c.General.LogLevel)]; !ok {
		errs = append(errs, fmt.Errorf("config: unknown log level %q", c.General.LogLevel))
	}
	switch c.General.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.General.LogFormat))
	}
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("config: store.dsn is required for postgres"))
		}
	case StoreHTTP:
		if c.Store.URL == "" {
			errs = append(errs, errors.New("config: store.url is required for the http store"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store driver %q", c.Store.Driver))
	}
	if c.Sessions.TTL <= 0 {
		errs = append(errs, errors.New("config: sessions.ttl must be positive"))
	}
	return errors.Join(errs...)
}
