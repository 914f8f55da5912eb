package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cliutil"
	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
)

func NewDeleteCmd(env *cliutil.Env) *cobra.Command {
	var (
		id    string
		where string
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a document by id, or every document matching a query",
		Example: `  qfilter delete --id u1
  qfilter delete --where 'age__lt=18'
  qfilter delete --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, set := range []bool{id != "", where != "", all} {
				if set {
					modes++
				}
			}
			if modes != 1 {
				return fmt.Errorf("provide exactly one of --id, --where or --all")
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

			if id != "" {
				deleted, err := coll.Delete(ctx, id)
				if err != nil {
					return cliutil.WithStackTrace(err)
				}
				if !deleted {
					return cliutil.WithStackTrace(qerrors.NotFoundError(id))
				}
				fmt.Fprintf(env.Stdout, "deleted %s\n", id)
				return nil
			}

			filter := mql.Document{}
			if where != "" {
				b, err := env.Builder()
				if err != nil {
					return err
				}
				if filter, err = b.BuildQuery(where, nil); err != nil {
					return cliutil.WithStackTrace(err)
				}
			}
			n, err := coll.DeleteWhere(ctx, filter)
			if err != nil {
				return cliutil.WithStackTrace(err)
			}
			fmt.Fprintf(env.Stdout, "deleted %d\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "document id")
	cmd.Flags().StringVar(&where, "where", "", "query string selecting the documents to delete")
	cmd.Flags().BoolVar(&all, "all", false, "delete every document of the collection")
	return cmd
}
