package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/1homsi/importrisk/internal/app"
	"github.com/1homsi/importrisk/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewCommand returns the serve subcommand.
func NewCommand(global *app.Options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Bootstrap(cmd.Context(), *global)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if addr != "" {
				a.Config.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return Run(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, a *app.App) error {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(a.Analyzer, server.Config{
		Addr:           a.Config.Server.Addr,
		RateLimitRPS:   a.Config.Server.RateLimitRPS,
		RateLimitBurst: a.Config.Server.RateLimitBurst,
	}, a.Logger)

	a.Logger.Info("starting importrisk API",
		zap.String("addr", a.Config.Server.Addr),
		zap.Int("known_packages", a.Corpus.Len()),
		zap.Bool("popularity", a.Popularity.Enabled()),
	)
	if err := srv.Run(ctx); err != nil {
		return &app.ExitError{Code: app.ExitFail, Err: err}
	}
	return nil
}
