package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/stop-arrivals/config"
	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

type globalFlags struct {
	configPath string
	feedName   string
	logLevel   string
	dev        bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "stop-arrivals",
		Short:         "Upcoming arrivals at a transit stop, planned and realtime reconciled",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to config.yml (default: $STOPARRIVALS_CONFIG or ./config.yml)")
	root.PersistentFlags().StringVarP(&g.feedName, "feed", "f", "", "feed name from config feeds[]")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug|info|warn|error (overrides config)")
	root.PersistentFlags().BoolVar(&g.dev, "dev", false, "human-readable development logging")

	root.AddCommand(newServeCmd(g), newLookupCmd(g), newTripUpdatesCmd(g))
	return root
}

// setup loads configuration and builds the logger.
func (g *globalFlags) setup() (*config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Logging.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger, err := utils.NewLogger(level, g.dev || cfg.Logging.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
