package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	stoparrivals "github.com/theoremus-urban-solutions/stop-arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/config"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if port > 0 {
				cfg.Server.Port = port
			}

			app, err := stoparrivals.NewApp(cmd.Context(), cfg, g.feedName, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			logger.Info("starting",
				zap.String("feed", app.Feed.Name),
				zap.Strings("realtime_strategies", app.Client.Strategies()),
				zap.Int("port", cfg.Server.Port),
			)
			srv := stoparrivals.NewServer(cfg.Server.Port, app.Handler(), config.Duration(cfg.Server.ShutdownTimeoutMS), logger)
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}
