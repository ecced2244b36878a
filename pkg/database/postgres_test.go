package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/smallgroups-admin-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "groups", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=groups sslmode=disable", dsn)
}

func TestWaitForRetriesUntilReady(t *testing.T) {
	attempts := 0
	notified := 0
	err := WaitFor(context.Background(), 5*time.Second, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, func(error, time.Duration) { notified++ })

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, notified)
}

func TestWaitForSingleAttemptWithoutTimeout(t *testing.T) {
	attempts := 0
	err := WaitFor(context.Background(), 0, func(context.Context) error {
		attempts++
		return errors.New("down")
	}, nil)

	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, attempts)
}

func TestWaitForStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitFor(ctx, time.Minute, func(context.Context) error { return errors.New("down") }, nil)
	assert.Error(t, err)
}
