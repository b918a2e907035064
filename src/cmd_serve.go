package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"herd/src/db"
	"herd/src/handlers"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	open := func(ctx context.Context) (db.Store, error) {
		return db.Open(ctx, cfg.Store, log)
	}
	if cfg.Store.EnsureSchema {
		open = db.EnsuringSchema(open)
	}
	store := db.NewLazyStore(open)
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		// the store may come up later; requests will report it as unavailable
		log.Warn().Err(err).Str("driver", cfg.Store.Driver).Msg("Store is not reachable yet")
	}

	h := handlers.New(store, cfg.Feed.Limit, cfg.Store.QueryTimeout, log)
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("address", cfg.Server.Address).Str("driver", cfg.Store.Driver).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped")
		return err
	}
	return nil
}
