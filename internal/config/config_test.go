package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "collie", cfg.AppName)
	assert.Equal(t, "bbolt", cfg.StorageType)
	assert.NotEmpty(t, cfg.BBoltPath)
	assert.Zero(t, cfg.HTTPTimeout, "no http timeout by default")
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("COLLIE_HTTP_TIMEOUT", "7")
	t.Setenv("COLLIE_LOG_LEVEL", "debug")
	t.Setenv("COLLIE_BBOLT_PATH", "/tmp/x.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/x.db", cfg.BBoltPath)
}

func TestLoadRejectsNonPositiveConcurrency(t *testing.T) {
	t.Setenv("COLLIE_FETCH_CONCURRENCY", "0")
	_, err := Load()
	assert.Error(t, err)
}
