// Package config reads qnx4x settings from the environment.
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "info"
	}
}

// Config holds the defaults that command-line flags start from.
type Config struct {
	LogLevel    LogLevel
	Workers     int           // Files extracted or hashed in parallel
	ReadRetries int           // Extra attempts after a failed physical read
	RetryDelay  time.Duration // Pause before the first retry, doubled each time
	Mmap        bool          // Map the image instead of reading it with pread
	Serial      bool          // One physical read at a time, for devices that dislike concurrency
	Partition   int           // MBR partition to open, -1 picks the first QNX4 one
}

func Load() *Config {
	return &Config{
		LogLevel:    ParseLogLevel(getEnv("QNX4X_LOG_LEVEL", "info")),
		Workers:     getEnvInt("QNX4X_WORKERS", runtime.NumCPU()),
		ReadRetries: getEnvInt("QNX4X_READ_RETRIES", 2),
		RetryDelay:  getEnvDuration("QNX4X_RETRY_DELAY", 50*time.Millisecond),
		Mmap:        getEnvBool("QNX4X_MMAP", true),
		Serial:      getEnvBool("QNX4X_SERIAL_READS", false),
		Partition:   getEnvInt("QNX4X_PARTITION", -1),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		v := strings.ToLower(value)
		return v == "true" || v == "1" || v == "yes"
	}
	return defaultValue
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}
