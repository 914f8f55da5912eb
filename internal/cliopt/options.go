package cliopt

import "github.com/spf13/pflag"

// GlobalOptions are bound once on the root command and shared with every
// subcommand. Settings that live in the config file (store, logging,
// builder) are registered here too but read back through viper, so an unset
// flag never masks a file or environment value.
//
// NOTE: This is a separate package to avoid import cycles between the root
// command and per-command code.
type GlobalOptions struct {
	ConfigFile string
	Format     string
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{Format: "pretty"}
}

func BindGlobalFlags(fs *pflag.FlagSet, g *GlobalOptions) {
	fs.StringVar(&g.ConfigFile, "config", g.ConfigFile, "config file (default: qfilter.yaml in . or ~/.config/qfilter)")
	fs.StringVarP(&g.Format, "format", "f", g.Format, "output format: pretty|json")

	fs.String("log-level", "", "log level: debug|info|warn|error")
	fs.String("log-format", "", "log format: text|json")

	fs.String("binding-key", "", "reserved binding parameter name")
	fs.String("combinator", "", "joins same-field clauses without a binding: $and|$or")
	fs.StringSlice("exclude", nil, "parameters never turned into clauses (repeatable, comma separated)")

	fs.String("backend", "", "store backend: sqlite|postgres")
	fs.String("sqlite-path", "", "sqlite database file, or a directory holding qfilter.db")
	fs.String("sqlite-driver", "", "sqlite driver: sqlite (pure Go) | sqlite3_qfilter (cgo)")
	fs.String("pg-dsn", "", "postgres DSN")
	fs.String("pg-schema", "", "postgres schema")
	fs.StringP("collection", "c", "", "collection name")
}
