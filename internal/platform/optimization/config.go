// Package optimization provides concurrency tuning for the core backend.
// Buffer sizes and pool limits are picked per deployment profile.
package optimization

import (
	"fmt"
	"runtime"
)

// Config holds tuned parameters for the hub, the event log and storage.
type Config struct {
	// Channel buffer sizes
	BroadcastChannelBuffer int
	ClientSendBuffer       int

	// In-memory event retention
	EventLogCapacity int

	// Connection pools
	DBMaxOpenConns int
	DBMaxIdleConns int
	RedisPoolSize  int

	// Hub limits
	MaxClients int
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,

		EventLogCapacity: 10000,

		// SQLite serializes writers; one open conn avoids SQLITE_BUSY.
		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,
		RedisPoolSize:  numCPU * 2,

		MaxClients: 200,
	}
}

// HighLoadConfig returns aggressive settings for many dashboard terminals.
func HighLoadConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		BroadcastChannelBuffer: 1024,
		ClientSendBuffer:       256,

		EventLogCapacity: 50000,

		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,
		RedisPoolSize:  numCPU * 4,

		MaxClients: 1000,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,

		EventLogCapacity: 500,

		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,
		RedisPoolSize:  2,

		MaxClients: 20,
	}
}

// ForProfile resolves a profile name from configuration.
func ForProfile(name string) (*Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "high_load":
		return HighLoadConfig(), nil
	case "low_resource":
		return LowResourceConfig(), nil
	default:
		return nil, fmt.Errorf("unknown optimization profile %q", name)
	}
}
