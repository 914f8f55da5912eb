package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cliutil"
)

func NewCollectionsCmd(env *cliutil.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections and their document counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := env.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			infos, err := s.Collections(ctx)
			if err != nil {
				return cliutil.WithStackTrace(err)
			}
			if env.Format == cliutil.FormatJSON {
				return cliutil.PrintJSON(env.Stdout, infos)
			}
			for _, info := range infos {
				fmt.Fprintf(env.Stdout, "%s\t%d\n", info.Name, info.Count)
			}
			return nil
		},
	}
}
