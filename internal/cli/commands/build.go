package commands

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cliutil"
	"github.com/nonibytes/qfilter/qfilter"
	"github.com/nonibytes/qfilter/qfilter/mql"
)

func NewBuildCmd(env *cliutil.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "build [query-string]",
		Short: "Print the filter document built from a query string",
		Long: `Print the filter document built from a query string.

Without an argument (or with "-") every non-empty line of stdin is built on
its own and printed on its own line.`,
		Example: `  qfilter build 'price__lte=7.8&is_verified=false&has_evolved=true&__binding__=(price__lte|is_verified)+has_evolved'
  qfilter build --format json 'age__gte=18&age__lt=65'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := env.Builder()
			if err != nil {
				return err
			}
			if len(args) == 1 && args[0] != "-" {
				return printFilter(env, b, args[0])
			}

			scanner := bufio.NewScanner(env.Stdin)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if err := printFilter(env, b, line); err != nil {
					return err
				}
			}
			return cliutil.WithStackTrace(scanner.Err())
		},
	}
}

func printFilter(env *cliutil.Env, b *qfilter.Builder, raw string) error {
	filter, err := b.BuildQuery(raw, nil)
	if err != nil {
		return cliutil.WithStackTrace(err)
	}
	env.Log.Debug("built filter", "query", raw, "clauses", len(filter))
	return printDoc(env, filter)
}

func printDoc(env *cliutil.Env, doc mql.Document) error {
	if env.Format == cliutil.FormatJSON {
		return cliutil.PrintCompactJSON(env.Stdout, doc)
	}
	return cliutil.PrintJSON(env.Stdout, doc)
}
