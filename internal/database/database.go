package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const defaultPingTimeout = 2 * time.Second

// Options configures the result store connection.
type Options struct {
	URL string

	// Zero keeps the pgxpool defaults.
	MaxConns int32
	MinConns int32

	// PingTimeout bounds the ping in Connect and HealthCheck; 0 means 2s.
	PingTimeout time.Duration

	Log zerolog.Logger
}

// DB is the Postgres-backed store for finished transcriptions.
type DB struct {
	Pool        *pgxpool.Pool
	pingTimeout time.Duration
	log         zerolog.Logger
}

// Connect opens the pool and verifies the server answers a ping within
// PingTimeout.
func Connect(ctx context.Context, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 && opts.MinConns <= cfg.MaxConns {
		cfg.MinConns = opts.MinConns
	}
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	db := &DB{Pool: pool, pingTimeout: timeout, log: opts.Log}
	if err := db.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", maskDSN(opts.URL), err)
	}

	opts.Log.Info().
		Str("url", maskDSN(opts.URL)).
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Int("schema_version", len(migrations)).
		Msg("result store connected")

	return db, nil
}

// HealthCheck pings the database, bounded by the configured ping timeout.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.pingTimeout)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// maskDSN hides the password so the URL can be logged.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

func (db *DB) Close() {
	db.log.Info().Msg("closing result store")
	db.Pool.Close()
}
