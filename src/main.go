package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"herd/src/config"
	"herd/src/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "herd",
	Short: "Serve and seed the nearby-posts feed",
	Long: `herd serves the nearbyPosts callable endpoint backed by a document store
(Elasticsearch or Postgres), and provides commands to create the store schema
and seed it with posts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (defaults + HERD_* env when empty)")
	rootCmd.AddCommand(serveCmd, seedCmd, schemaCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Pretty, os.Stdout)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("configure logging: %w", err)
	}
	return cfg, log, nil
}
