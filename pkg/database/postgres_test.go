package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-portal-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "portal", Password: "secret", Name: "maintenance", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5433 user=portal password=secret dbname=maintenance sslmode=disable application_name=maintenance-portal", dsn)

	url := "postgres://portal:secret@db:5432/maintenance?sslmode=require"
	assert.Equal(t, url, DSN(config.DatabaseConfig{URL: url, Host: "ignored"}))
}

func TestWaitForPingRetries(t *testing.T) {
	calls := 0
	err := waitForPing(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitForPingGivesUp(t *testing.T) {
	calls := 0
	err := waitForPing(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	}, 2, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestWaitForPingHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitForPing(ctx, func(context.Context) error { return errors.New("down") }, 10, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
