package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cliutil"
)

func NewGetCmd(env *cliutil.Env) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print one document by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("missing --id")
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

			view, err := coll.Get(ctx, id)
			if err != nil {
				return cliutil.WithStackTrace(err)
			}
			if env.Format == cliutil.FormatJSON {
				return cliutil.PrintJSON(env.Stdout, view)
			}
			return cliutil.PrintJSON(env.Stdout, view.DocJSON)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "document id")
	return cmd
}
