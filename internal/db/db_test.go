package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm/logger"

	"axis-blue-backend/config"
)

func TestInit_SQLiteCreatesTables(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "nested", "axis.db"),
		LogLevel: "silent",
	}

	gormDB, err := Init(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	for _, table := range []string{"users", "sessions", "axis_days", "axis_visits", "axis_captures", "axis_scans", "push_subscriptions"} {
		assert.True(t, gormDB.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "mysql"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Init(&config.DatabaseConfig{Driver: "postgres"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "requires a dsn")
}

func TestLogLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected logger.LogLevel
	}{
		{in: "silent", expected: logger.Silent},
		{in: "ERROR", expected: logger.Error},
		{in: "info", expected: logger.Info},
		{in: "", expected: logger.Warn},
		{in: "bogus", expected: logger.Warn},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.expected, logLevel(tc.in))
		})
	}
}
