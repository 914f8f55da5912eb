package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cliutil"
)

func NewStatsCmd(env *cliutil.Env) *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:     "stats [query-string]",
		Short:   "Summarize the numeric values of a field",
		Example: `  qfilter stats -c users --field age 'is_verified=true'`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if field == "" {
				return fmt.Errorf("missing --field")
			}
			filter, err := buildOptionalFilter(env, args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := env.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			coll, err := env.Collection(s)
			if err != nil {
				return err
			}

			stats, err := coll.Stats(ctx, field, filter)
			if err != nil {
				return cliutil.WithStackTrace(err)
			}
			if env.Format == cliutil.FormatJSON {
				return cliutil.PrintJSON(env.Stdout, stats)
			}
			fmt.Fprintf(env.Stdout, "Statistics for field '%s':\n", stats.Field)
			fmt.Fprintf(env.Stdout, "  Count: %d\n", stats.Count)
			for _, row := range []struct {
				name string
				v    *float64
			}{{"Min", stats.Min}, {"Max", stats.Max}, {"Avg", stats.Avg}, {"Median", stats.Median}} {
				if row.v != nil {
					fmt.Fprintf(env.Stdout, "  %s: %g\n", row.name, *row.v)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "numeric field; dots address nested fields")
	return cmd
}
