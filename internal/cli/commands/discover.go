package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cliutil"
	"github.com/nonibytes/qfilter/qfilter/mql"
)

func NewDiscoverCmd(env *cliutil.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Explore the fields and values of a collection",
	}
	cmd.AddCommand(newDiscoverFieldsCmd(env), newDiscoverValuesCmd(env))
	return cmd
}

// buildOptionalFilter builds the filter of an optional query argument
func buildOptionalFilter(env *cliutil.Env, args []string) (mql.Document, error) {
	if len(args) == 0 {
		return mql.Document{}, nil
	}
	b, err := env.Builder()
	if err != nil {
		return nil, err
	}
	filter, err := b.BuildQuery(args[0], nil)
	if err != nil {
		return nil, cliutil.WithStackTrace(err)
	}
	return filter, nil
}

func newDiscoverFieldsCmd(env *cliutil.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "fields [query-string]",
		Short: "List top-level fields with their JSON types",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			fields, err := coll.DiscoverFields(ctx, filter)
			if err != nil {
				return cliutil.WithStackTrace(err)
			}
			if env.Format == cliutil.FormatJSON {
				return cliutil.PrintJSON(env.Stdout, fields)
			}
			for _, f := range fields {
				types := make([]string, 0, len(f.Types))
				for t, n := range f.Types {
					types = append(types, fmt.Sprintf("%s:%d", t, n))
				}
				sort.Strings(types)
				fmt.Fprintf(env.Stdout, "%s\t%d\t%s\n", f.Field, f.DocCount, strings.Join(types, ","))
			}
			return nil
		},
	}
}

func newDiscoverValuesCmd(env *cliutil.Env) *cobra.Command {
	var (
		field string
		top   int
	)
	cmd := &cobra.Command{
		Use:     "values [query-string]",
		Short:   "List the most frequent values of a field",
		Example: `  qfilter discover values -c users --field owner.city --top 5 'age__gte=18'`,
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

			values, err := coll.DiscoverValues(ctx, field, filter, top)
			if err != nil {
				return cliutil.WithStackTrace(err)
			}
			if env.Format == cliutil.FormatJSON {
				return cliutil.PrintJSON(env.Stdout, values)
			}
			for _, v := range values {
				fmt.Fprintf(env.Stdout, "%s\t%d\n", v.Value, v.Count)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "field name; dots address nested fields")
	cmd.Flags().IntVar(&top, "top", 0, "number of values (0 uses 20)")
	return cmd
}
