package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nonibytes/qfilter/internal/cliutil"
	"github.com/nonibytes/qfilter/internal/httpapi"
)

func NewServeCmd(env *cliutil.Env) *cobra.Command {
	var noStore bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve filter building and document finds over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := env.Builder()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := httpapi.Options{
				Logger:    env.Log,
				RateLimit: env.Config.HTTP.RateLimit,
				RateBurst: env.Config.HTTP.RateBurst,
			}
			if env.Config.HTTP.Metrics {
				opts.Metrics = httpapi.NewMetrics()
			}
			h := httpapi.NewHandler(b, nil, opts)
			if !noStore {
				s, err := env.OpenStore(ctx)
				if err != nil {
					return err
				}
				defer s.Close()
				h = httpapi.NewHandler(b, s, opts)
			}

			gin.SetMode(gin.ReleaseMode)
			return cliutil.WithStackTrace(httpapi.Serve(ctx, env.Config.HTTP.Addr, httpapi.NewRouter(h), env.Log))
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Int("rate-limit", 0, "requests per minute per client IP, 0 disables (default from config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "serve /filter only, without opening a store")
	return cmd
}
