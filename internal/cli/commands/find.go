package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cliutil"
	"github.com/nonibytes/qfilter/store"
)

func NewFindCmd(env *cliutil.Env) *cobra.Command {
	var (
		limit   int
		after   string
		order   string
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "find [query-string]",
		Short: "Find documents matching a query string",
		Long: `Find documents matching a query string.

Pretty output prints one "id<TAB>document" line per match. When more matches
remain, the cursor for the next page is printed on stderr; pass it back with
--after.`,
		Example: `  qfilter find -c users 'age__gte=18&email__regex=@example\.com$'
  qfilter find -c users --order recency --limit 5 --explain 'tags__all=["admin","dev"]'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			}
			b, err := env.Builder()
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

			res, err := coll.FindQuery(ctx, raw, b, nil, store.FindOptions{
				Order:   store.Order(order),
				Limit:   limit,
				After:   after,
				Explain: explain,
			})
			if err != nil {
				return cliutil.WithStackTrace(err)
			}

			if env.Format == cliutil.FormatJSON {
				return cliutil.PrintJSON(env.Stdout, res)
			}
			for _, it := range res.Items {
				fmt.Fprintf(env.Stdout, "%s\t%s\n", it.ID, it.DocJSON)
			}
			if explain {
				fmt.Fprintln(env.Stdout, "-- plan")
				for _, step := range res.ExplainSteps {
					fmt.Fprintln(env.Stdout, "--", step)
				}
				fmt.Fprintln(env.Stdout, strings.TrimSpace(res.ExplainSQL))
			}
			if res.HasMore {
				fmt.Fprintf(env.Stderr, "more results: --after %s\n", res.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "page size (0 uses the store default)")
	cmd.Flags().StringVar(&after, "after", "", "cursor returned by the previous page")
	cmd.Flags().StringVar(&order, "order", string(store.OrderInsertion), "result order: insertion|recency")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the compiled SQL")
	return cmd
}

func NewCountCmd(env *cliutil.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "count [query-string]",
		Short: "Count documents matching a query string",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			}
			b, err := env.Builder()
			if err != nil {
				return err
			}
			filter, err := b.BuildQuery(raw, nil)
			if err != nil {
				return cliutil.WithStackTrace(err)
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
			n, err := coll.Count(ctx, filter)
			if err != nil {
				return cliutil.WithStackTrace(err)
			}
			fmt.Fprintln(env.Stdout, n)
			return nil
		},
	}
}
