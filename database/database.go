package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// PoolConfig sizes the connection pool
type PoolConfig struct {
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	PingMaxWait     time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpen:         25,
		MaxIdle:         10,
		ConnMaxLifetime: 5 * time.Minute,
		PingMaxWait:     60 * time.Second,
	}
}

// Connect opens the journal database and waits for it to answer a ping,
// backing off up to PingMaxWait.
func Connect(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := waitForPing(ctx, db, pool.PingMaxWait); err != nil {
		db.Close()
		return nil, err
	}

	log.WithFields(log.Fields{
		"max_open": pool.MaxOpen,
		"max_idle": pool.MaxIdle,
	}).Info("database.connected")
	return db, nil
}

func waitForPing(ctx context.Context, db *sql.DB, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	waitInterval := time.Second
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		pingErr := db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database ping timeout after %v: %w", maxWait, pingErr)
		}
		log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, pingErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitInterval):
		}
		waitInterval *= 2
		if waitInterval > 30*time.Second {
			waitInterval = 30 * time.Second
		}
	}
}
