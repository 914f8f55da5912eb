package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cli/commands"
	"github.com/nonibytes/qfilter/internal/cliopt"
	"github.com/nonibytes/qfilter/internal/cliutil"
)

// NewRootCmd builds the command tree around env
func NewRootCmd(env *cliutil.Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "qfilter",
		Short:         "Build MongoDB-style filters from query strings and run them",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.Load(cmd.Flags())
		},
	}
	cliopt.BindGlobalFlags(root.PersistentFlags(), &env.Global)

	root.AddCommand(
		commands.NewBuildCmd(env),
		commands.NewPutCmd(env),
		commands.NewGetCmd(env),
		commands.NewDeleteCmd(env),
		commands.NewFindCmd(env),
		commands.NewCountCmd(env),
		commands.NewCollectionsCmd(env),
		commands.NewDiscoverCmd(env),
		commands.NewStatsCmd(env),
		commands.NewServeCmd(env),
	)
	return root
}

// Execute runs the CLI on the process streams and returns an exit code.
func Execute(argv []string) int {
	return Run(argv, os.Stdin, os.Stdout, os.Stderr)
}

// Run runs the CLI with explicit streams and returns an exit code.
func Run(argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	env := cliutil.NewEnv(stdin, stdout, stderr)
	root := NewRootCmd(env)
	root.SetArgs(argv)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		if stack := cliutil.ErrorStack(err); stack != "" {
			env.Log.Debug("error stack", "stack", stack)
		}
		return 1
	}
	return 0
}
