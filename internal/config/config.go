// Package config loads qfilter settings from qfilter.yaml, QFILTER_*
// environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nonibytes/qfilter/qfilter"
	"github.com/nonibytes/qfilter/store"
	"github.com/nonibytes/qfilter/store/storage"
	"github.com/nonibytes/qfilter/store/storage/postgres"
	"github.com/nonibytes/qfilter/store/storage/sqlite"
)

const (
	configName = "qfilter"
	envPrefix  = "QFILTER"
)

// Config holds all settings
type Config struct {
	BindingKey string   `mapstructure:"binding_key"`
	Combinator string   `mapstructure:"combinator"` // "$and" or "$or"
	Exclude    []string `mapstructure:"exclude"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`

	Store StoreConfig `mapstructure:"store"`

	HTTP struct {
		Addr      string `mapstructure:"addr"`
		Metrics   bool   `mapstructure:"metrics"`
		RateLimit int    `mapstructure:"rate_limit"` // requests per minute per client IP, 0 disables
		RateBurst int    `mapstructure:"rate_burst"`
	} `mapstructure:"http"`
}

// StoreConfig selects and configures the document store backend
type StoreConfig struct {
	Backend      string `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath   string `mapstructure:"sqlite_path"`
	SQLiteDriver string `mapstructure:"sqlite_driver"`
	PGDSN        string `mapstructure:"pg_dsn"`
	PGSchema     string `mapstructure:"pg_schema"`
	Collection   string `mapstructure:"collection"`
	DefaultLimit int    `mapstructure:"default_limit"`
	MaxLimit     int    `mapstructure:"max_limit"`
}

// flagKeys maps flag names to the config keys they override. Flags that are
// not defined on the set are skipped.
var flagKeys = map[string]string{
	"binding-key":   "binding_key",
	"combinator":    "combinator",
	"exclude":       "exclude",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"backend":       "store.backend",
	"sqlite-path":   "store.sqlite_path",
	"sqlite-driver": "store.sqlite_driver",
	"pg-dsn":        "store.pg_dsn",
	"pg-schema":     "store.pg_schema",
	"collection":    "store.collection",
	"addr":          "http.addr",
	"rate-limit":    "http.rate_limit",
}

// LoadOptions controls where Load looks
type LoadOptions struct {
	// File is an explicit config file; when set the search paths are ignored
	// and a missing file is an error.
	File string
	// SearchPaths overrides the default search list.
	SearchPaths []string
	// Flags, when non-nil, override file and environment values.
	Flags *pflag.FlagSet
}

// DefaultSearchPaths returns the current directory followed by the user
// config directory.
func DefaultSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "qfilter"))
	}
	return paths
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("binding_key", qfilter.DefaultBindingKey)
	v.SetDefault("combinator", "$and")
	v.SetDefault("exclude", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.backend", string(storage.BackendSQLite))
	v.SetDefault("store.sqlite_path", "qfilter.db")
	v.SetDefault("store.sqlite_driver", sqlite.DriverModernc)
	v.SetDefault("store.pg_dsn", "")
	v.SetDefault("store.pg_schema", "qfilter")
	v.SetDefault("store.collection", "default")
	v.SetDefault("store.default_limit", store.DefaultLimit)
	v.SetDefault("store.max_limit", store.MaxLimit)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.metrics", true)
	v.SetDefault("http.rate_limit", 0)
	v.SetDefault("http.rate_burst", 10)
}

// Load reads the configuration
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		paths := opts.SearchPaths
		if paths == nil {
			paths = DefaultSearchPaths()
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("no qfilter.yaml found, using defaults")
	} else {
		slog.Debug("loaded configuration", "file", v.ConfigFileUsed())
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// QFilterOptions converts the filter settings into builder options
func (c *Config) QFilterOptions(log *slog.Logger) qfilter.Options {
	var exclude qfilter.FieldLister
	if len(c.Exclude) > 0 {
		exclude = qfilter.FieldList(c.Exclude)
	}
	return qfilter.Options{
		BindingKey: c.BindingKey,
		Combinator: c.Combinator,
		Exclude:    exclude,
		Logger:     log,
	}
}

// StoreOptions converts the store settings into store options
func (c *Config) StoreOptions(log *slog.Logger) store.Options {
	opts := store.DefaultOptions()
	if c.Store.DefaultLimit > 0 {
		opts.DefaultLimit = c.Store.DefaultLimit
	}
	if c.Store.MaxLimit > 0 {
		opts.MaxLimit = c.Store.MaxLimit
	}
	opts.Logger = log
	return opts
}

// Adapter returns the storage adapter for the configured backend
func (s StoreConfig) Adapter() (storage.Adapter, error) {
	switch storage.Backend(strings.ToLower(s.Backend)) {
	case storage.BackendSQLite:
		if s.SQLitePath == "" {
			return nil, errors.New("store.sqlite_path is required for the sqlite backend")
		}
		switch s.SQLiteDriver {
		case "", sqlite.DriverModernc, sqlite.DriverMattn:
		default:
			return nil, fmt.Errorf("unknown sqlite driver %q (want %s or %s)", s.SQLiteDriver, sqlite.DriverModernc, sqlite.DriverMattn)
		}
		return sqlite.NewWithDriver(ResolveSQLitePath(s.SQLitePath), s.SQLiteDriver), nil
	case storage.BackendPostgres:
		if s.PGDSN == "" {
			return nil, errors.New("store.pg_dsn is required for the postgres backend")
		}
		return postgres.New(s.PGDSN, s.PGSchema), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (want sqlite or postgres)", s.Backend)
	}
}

// ResolveSQLitePath treats an existing directory as the location of
// qfilter.db and returns any other path unchanged.
func ResolveSQLitePath(path string) string {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return filepath.Join(path, "qfilter.db")
	}
	return path
}
