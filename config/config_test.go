package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"QNX4X_LOG_LEVEL", "QNX4X_WORKERS", "QNX4X_READ_RETRIES", "QNX4X_RETRY_DELAY", "QNX4X_MMAP", "QNX4X_SERIAL_READS", "QNX4X_PARTITION"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, 2, cfg.ReadRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryDelay)
	assert.True(t, cfg.Mmap)
	assert.False(t, cfg.Serial)
	assert.Equal(t, -1, cfg.Partition)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("QNX4X_LOG_LEVEL", "DEBUG")
	t.Setenv("QNX4X_WORKERS", "3")
	t.Setenv("QNX4X_READ_RETRIES", "not a number")
	t.Setenv("QNX4X_RETRY_DELAY", "1s")
	t.Setenv("QNX4X_MMAP", "no")
	t.Setenv("QNX4X_SERIAL_READS", "yes")
	t.Setenv("QNX4X_PARTITION", "2")

	cfg := Load()
	assert.Equal(t, LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2, cfg.ReadRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.False(t, cfg.Mmap)
	assert.True(t, cfg.Serial)
	assert.Equal(t, 2, cfg.Partition)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("chatty"))
	assert.Equal(t, "warn", LogLevelWarn.String())
}
