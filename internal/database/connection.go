package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// PoolConfig bounds the connection pool used for database health checks
type PoolConfig struct {
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

// DefaultPoolConfig returns a small pool suitable for CLI use
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:    4,
		MinConns:    0,
		MaxConnLife: 30 * time.Minute,
		MaxConnIdle: 5 * time.Minute,
	}
}

// DB wraps a pgx connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  *logrus.Logger
}

// Status describes a reachable review database
type Status struct {
	ServerVersion    string `json:"server_version"`
	ReviewTable      bool   `json:"review_table"`
	TotalConns       int32  `json:"total_conns"`
	MigrationVersion uint   `json:"migration_version"`
	Dirty            bool   `json:"dirty"`
}

// Connect opens and pings a connection pool for databaseURL
func Connect(ctx context.Context, databaseURL string, cfg PoolConfig, logger *logrus.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLife
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdle

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":      poolConfig.ConnConfig.Host,
		"port":      poolConfig.ConnConfig.Port,
		"database":  poolConfig.ConnConfig.Database,
		"max_conns": cfg.MaxConns,
	}).Info("Database connection pool established")

	return &DB{
		Pool: pool,
		log:  logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Debug("Database connection pool closed")
	}
}

// Health checks the database connection health
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Status reports the server version and whether the review table exists
func (db *DB) Status(ctx context.Context) (*Status, error) {
	st := &Status{}

	if err := db.Pool.QueryRow(ctx, "SHOW server_version").Scan(&st.ServerVersion); err != nil {
		return nil, fmt.Errorf("querying server version: %w", err)
	}

	if err := db.Pool.QueryRow(ctx, "SELECT to_regclass('public.case_reviews') IS NOT NULL").Scan(&st.ReviewTable); err != nil {
		return nil, fmt.Errorf("checking review table: %w", err)
	}

	st.TotalConns = db.Pool.Stat().TotalConns()
	return st, nil
}
