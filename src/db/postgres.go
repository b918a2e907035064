package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"herd/src/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// querier is the subset of *pgxpool.Pool used by PostgresStore.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
}

// PostgresStore keeps posts in a single table; author and votes are stored as JSONB.
type PostgresStore struct {
	db     querier
	pool   *pgxpool.Pool
	name   string
	table  string
	logger zerolog.Logger
}

func NewPostgresStore(ctx context.Context, dsn, table string, logger zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, unavailable(err, "connecting to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable(err, "pinging postgres")
	}

	store := newPostgresStore(pool, table, logger)
	store.pool = pool
	return store, nil
}

func newPostgresStore(db querier, table string, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		name:   table,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: logger.With().Str("store", "postgres").Str("table", table).Logger(),
	}
}

func (ps *PostgresStore) RecentPosts(ctx context.Context, limit int) ([]types.Post, error) {
	rows, err := ps.db.Query(ctx, ps.selectSQL()+` LIMIT $1`, limit)
	if err != nil {
		return nil, unavailable(err, "querying recent posts")
	}
	return ps.scanPosts(rows)
}

func (ps *PostgresStore) GetPosts(ctx context.Context, limit, offset int) ([]types.Post, int, error) {
	rows, err := ps.db.Query(ctx, ps.selectSQL()+` LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, unavailable(err, "listing posts")
	}
	posts, err := ps.scanPosts(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := ps.db.QueryRow(ctx, `SELECT count(*) FROM `+ps.table).Scan(&total); err != nil {
		return nil, 0, unavailable(err, "counting posts")
	}
	return posts, total, nil
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	if err := ps.db.Ping(ctx); err != nil {
		return unavailable(err, "pinging postgres")
	}
	return nil
}

func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	author JSONB NOT NULL,
	text TEXT NOT NULL,
	votes JSONB NOT NULL DEFAULT '{}',
	time_posted TIMESTAMPTZ NOT NULL,
	latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude DOUBLE PRECISION NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (time_posted DESC);`,
		ps.table, pgx.Identifier{ps.name + "_time_posted_idx"}.Sanitize())

	if _, err := ps.db.Exec(ctx, schema); err != nil {
		return unavailable(err, "creating posts table")
	}
	return nil
}

// SavePosts upserts posts with a single pgx.Batch round-trip.
func (ps *PostgresStore) SavePosts(ctx context.Context, posts []types.Post) error {
	if len(posts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, post := range posts {
		author, err := json.Marshal(post.Author)
		if err != nil {
			return fmt.Errorf("encode author of %s: %w", post.ID, err)
		}
		votes, err := json.Marshal(post.Votes)
		if err != nil {
			return fmt.Errorf("encode votes of %s: %w", post.ID, err)
		}
		if post.Votes == nil {
			votes = []byte("{}")
		}
		batch.Queue(`INSERT INTO `+ps.table+` (id, author, text, votes, time_posted, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET author = EXCLUDED.author, text = EXCLUDED.text, votes = EXCLUDED.votes,
		time_posted = EXCLUDED.time_posted, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude`,
			post.ID, string(author), post.Text, string(votes), post.TimePosted, post.Latitude, post.Longitude)
	}

	br := ps.db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return unavailable(err, "inserting post %d of %d", i+1, len(posts))
		}
	}
	if err := br.Close(); err != nil {
		return unavailable(err, "closing insert batch")
	}

	ps.logger.Info().Int("count", len(posts)).Msg("Posts inserted")
	return nil
}

func (ps *PostgresStore) Close() {
	if ps.pool != nil {
		ps.pool.Close()
	}
}

func (ps *PostgresStore) selectSQL() string {
	return `SELECT id, author, text, votes, time_posted, latitude, longitude FROM ` + ps.table +
		` ORDER BY time_posted DESC, id`
}

func (ps *PostgresStore) scanPosts(rows pgx.Rows) ([]types.Post, error) {
	defer rows.Close()

	posts := []types.Post{}
	for rows.Next() {
		var (
			post       types.Post
			author     []byte
			votes      []byte
			timePosted time.Time
		)
		if err := rows.Scan(&post.ID, &author, &post.Text, &votes, &timePosted, &post.Latitude, &post.Longitude); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		post.TimePosted = timePosted
		if err := json.Unmarshal(author, &post.Author); err != nil {
			ps.logger.Warn().Err(err).Str("id", post.ID).Msg("Undecodable author")
		}
		if len(votes) > 0 {
			if err := json.Unmarshal(votes, &post.Votes); err != nil {
				ps.logger.Warn().Err(err).Str("id", post.ID).Msg("Undecodable votes")
			}
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "reading posts")
	}
	return posts, nil
}
