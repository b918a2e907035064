package db

import (
	"context"
	"fmt"

	"herd/src/apperrors"
	"herd/src/config"
	"herd/src/types"

	"github.com/rs/zerolog"
)

// Store is a post store that can be read, written and closed.
type Store interface {
	types.PostStore
	types.PostWriter
	Close()
}

// Opener connects to a store.
type Opener func(ctx context.Context) (Store, error)

// Open connects to the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverElastic:
		store, err = NewElasticStore(ctx, cfg.ElasticURL, cfg.Index, logger)
	case config.DriverPostgres:
		store, err = NewPostgresStore(ctx, cfg.PostgresDSN, cfg.Table, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// EnsuringSchema wraps open so every fresh connection creates the index or
// table before it is handed out. A schema failure closes the connection and
// is returned like a failed dial.
func EnsuringSchema(open Opener) Opener {
	return func(ctx context.Context) (Store, error) {
		store, err := open(ctx)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
}

// LazyStore connects on first use. A failed connection is not cached, so a
// later call retries; once connected the same client serves every call.
// Callers waiting on a connection in progress give up when their ctx is done.
type LazyStore struct {
	sem   chan struct{}
	open  Opener
	store Store
}

func NewLazyStore(open Opener) *LazyStore {
	return &LazyStore{sem: make(chan struct{}, 1), open: open}
}

func (l *LazyStore) get(ctx context.Context) (Store, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, apperrors.StoreUnavailable("post store is unavailable").
			Wrap(ctx.Err()).
			WithInternal("waiting for store connection")
	}
	defer func() { <-l.sem }()

	if l.store != nil {
		return l.store, nil
	}

	store, err := l.open(ctx)
	if err != nil {
		if apperrors.IsStoreUnavailable(err) {
			return nil, err
		}
		return nil, apperrors.StoreUnavailable("post store is unavailable").Wrap(err)
	}
	l.store = store
	return store, nil
}

func (l *LazyStore) RecentPosts(ctx context.Context, limit int) ([]types.Post, error) {
	store, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return store.RecentPosts(ctx, limit)
}

func (l *LazyStore) GetPosts(ctx context.Context, limit, offset int) ([]types.Post, int, error) {
	store, err := l.get(ctx)
	if err != nil {
		return nil, 0, err
	}
	return store.GetPosts(ctx, limit, offset)
}

func (l *LazyStore) Ping(ctx context.Context) error {
	store, err := l.get(ctx)
	if err != nil {
		return err
	}
	return store.Ping(ctx)
}

func (l *LazyStore) SavePosts(ctx context.Context, posts []types.Post) error {
	store, err := l.get(ctx)
	if err != nil {
		return err
	}
	return store.SavePosts(ctx, posts)
}

func (l *LazyStore) EnsureSchema(ctx context.Context) error {
	store, err := l.get(ctx)
	if err != nil {
		return err
	}
	return store.EnsureSchema(ctx)
}

func (l *LazyStore) Close() {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()

	if l.store != nil {
		l.store.Close()
		l.store = nil
	}
}
