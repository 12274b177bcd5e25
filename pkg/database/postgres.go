package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/session-auth-api/pkg/config"
)

// Options bounds how long callers wait on the pool.
type Options struct {
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration
}

// QueryObserver receives the duration of each labelled statement.
type QueryObserver func(label string, duration time.Duration)

// Pool is the process-wide connection pool shared by every repository. It is
// built once at start-up and passed to the components that need it.
type Pool struct {
	*sqlx.DB
	opts     Options
	observer QueryObserver
}

// NewPool wraps an existing handle. Zero timeouts fall back to 5s acquisition and 10s per query.
func NewPool(db *sqlx.DB, opts Options) *Pool {
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 5 * time.Second
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 10 * time.Second
	}
	return &Pool{DB: db, opts: opts}
}

// NewPostgres returns a configured PostgreSQL pool.
func NewPostgres(cfg config.DatabaseConfig) (*Pool, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(cfg.IdleTimeout)
	}
	db.SetConnMaxLifetime(1 * time.Hour)

	pool := NewPool(db, Options{AcquireTimeout: cfg.AcquireTimeout, QueryTimeout: cfg.QueryTimeout})

	ctx, cancel := context.WithTimeout(context.Background(), pool.opts.AcquireTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Classify("ping database", err)
	}

	return pool, nil
}

// SetObserver installs a hook invoked by Observe.
func (p *Pool) SetObserver(o QueryObserver) {
	p.observer = o
}

// Observe reports the time elapsed since start under label. Meant to be deferred.
func (p *Pool) Observe(label string, start time.Time) {
	if p == nil || p.observer == nil {
		return
	}
	p.observer(label, time.Since(start))
}

// WithQueryTimeout derives the per-statement deadline.
func (p *Pool) WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.opts.QueryTimeout)
}

// Ping checks that a connection can be acquired within the acquisition timeout.
func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
	defer cancel()
	if err := p.DB.PingContext(ctx); err != nil {
		return Classify("ping database", err)
	}
	return nil
}

// Close releases every pooled connection.
func (p *Pool) Close() error {
	if p == nil || p.DB == nil {
		return nil
	}
	if err := p.DB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
