package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/maintenance-portal-api/pkg/config"
)

const applicationName = "maintenance-portal"

// DSN renders the lib/pq connection string. DATABASE_URL is used verbatim
// when present.
func DSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
		applicationName,
	)
}

// NewPostgres opens the pool and waits for the server to accept
// connections, retrying with a doubling delay up to cfg.ConnectRetries times.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := waitForPing(ctx, db.PingContext, cfg.ConnectRetries, 500*time.Millisecond); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func waitForPing(ctx context.Context, ping func(context.Context) error, retries int, delay time.Duration) error {
	var err error
	for attempt := 0; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt >= retries {
			return fmt.Errorf("postgres unreachable after %d attempts: %w", attempt+1, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}
