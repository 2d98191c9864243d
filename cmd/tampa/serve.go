package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/djarekg/tampa-taffy/internal/apiserver"
	"github.com/djarekg/tampa-taffy/internal/live"
	"github.com/djarekg/tampa-taffy/internal/store"
	"github.com/djarekg/tampa-taffy/internal/telemetry"
)

func serveCmd(g *globals) *cobra.Command {
	var (
		port int
		seed bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long: `Run the users API, the /live search websocket and /metrics.

The server shuts down gracefully on SIGINT or SIGTERM.

Examples:
  tampa serve
  tampa serve --port=8080 --seed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Port = port
			}
			logger := g.logger(cfg, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close()

			if seed {
				n, err := st.Seed(ctx)
				if err != nil {
					return err
				}
				logger.Info("seeded users", "count", n)
			}

			tel := telemetry.New()
			liveHandler := live.NewHandler(st.SearchUsers,
				live.WithLogger(logger),
				live.WithObserver(tel),
				live.WithSessionHooks(tel),
				live.WithAttributeDebounce(live.DefaultAttributeDebounce),
			)
			srv := apiserver.New(apiserver.ConfigFrom(cfg), st,
				apiserver.WithLogger(logger),
				apiserver.WithTelemetry(tel, prometheus.DefaultGatherer),
				apiserver.WithLive(liveHandler),
			)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default PORT)")
	cmd.Flags().BoolVar(&seed, "seed", false, "Seed demo users when the database is empty")

	return cmd
}
