package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Open connects to Postgres through the pgx stdlib driver, retrying the ping
// while the database is still starting up.
func Open(ctx context.Context, dsn string, log logrus.FieldLogger) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := pingWithRetry(ctx, db, 8, time.Second, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func pingWithRetry(ctx context.Context, db *sqlx.DB, attempts int, sleep time.Duration, log logrus.FieldLogger) error {
	var last error
	for i := 1; i <= attempts; i++ {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		last = db.PingContext(pctx)
		cancel()
		if last == nil {
			return nil
		}
		log.WithFields(logrus.Fields{"attempt": i, "err": last}).Warn("db ping failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		if sleep < 8*time.Second {
			sleep *= 2
		}
	}
	return fmt.Errorf("db ping after %d attempts: %w", attempts, last)
}
