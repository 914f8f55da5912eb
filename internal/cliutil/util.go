package cliutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	goerrors "github.com/go-errors/errors"
	"github.com/spf13/pflag"

	"github.com/nonibytes/qfilter/internal/cliopt"
	"github.com/nonibytes/qfilter/internal/config"
	"github.com/nonibytes/qfilter/internal/logging"
	"github.com/nonibytes/qfilter/qfilter"
	"github.com/nonibytes/qfilter/store"
)

type OutputFormat string

const (
	FormatPretty OutputFormat = "pretty"
	FormatJSON   OutputFormat = "json"
)

func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", FormatPretty:
		return FormatPretty, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want pretty or json)", s)
	}
}

// PrintJSON writes v indented
func PrintJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// PrintCompactJSON writes v on one line
func PrintCompactJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// Env is the per-invocation state shared by every command: global flags,
// streams, and the configuration loaded before the command runs.
type Env struct {
	Global cliopt.GlobalOptions
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Config *config.Config
	Log    *slog.Logger
	Format OutputFormat
}

func NewEnv(stdin io.Reader, stdout, stderr io.Writer) *Env {
	return &Env{
		Global: cliopt.DefaultGlobalOptions(),
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Log:    slog.Default(),
		Format: FormatPretty,
	}
}

// Load reads the configuration with flags taking priority and installs the
// configured logger.
func (e *Env) Load(flags *pflag.FlagSet) error {
	format, err := ParseOutputFormat(e.Global.Format)
	if err != nil {
		return WithStackTrace(err)
	}
	cfg, err := config.Load(config.LoadOptions{File: e.Global.ConfigFile, Flags: flags})
	if err != nil {
		return WithStackTrace(err)
	}
	e.Config = cfg
	e.Format = format
	e.Log = logging.Init(e.Stderr, logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return nil
}

// Builder returns a filter builder for the configured options
func (e *Env) Builder() (*qfilter.Builder, error) {
	b, err := qfilter.New(e.Config.QFilterOptions(e.Log))
	if err != nil {
		return nil, WithStackTrace(err)
	}
	return b, nil
}

// OpenStore opens the configured store, creating its tables when missing.
func (e *Env) OpenStore(ctx context.Context) (*store.Store, error) {
	adapter, err := e.Config.Store.Adapter()
	if err != nil {
		return nil, WithStackTrace(err)
	}
	s, err := store.Create(ctx, adapter, e.Config.StoreOptions(e.Log))
	if err != nil {
		return nil, WithStackTrace(err)
	}
	e.Log.Debug("opened store", "backend", adapter.Backend(), "id", adapter.StoreID())
	return s, nil
}

// Collection returns the configured collection of s
func (e *Env) Collection(s *store.Store) (*store.Collection, error) {
	c, err := s.Collection(e.Config.Store.Collection)
	if err != nil {
		return nil, WithStackTrace(err)
	}
	return c, nil
}

// WithStackTrace records the call stack on err. An error that already has
// one keeps it.
func WithStackTrace(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}

// ErrorStack returns the stack recorded by WithStackTrace, or "".
func ErrorStack(err error) string {
	var ge *goerrors.Error
	if goerrors.As(err, &ge) {
		return ge.ErrorStack()
	}
	return ""
}
