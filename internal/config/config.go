// Package config provides configuration management for Verboo Realtime hosts
// (the CLI and the chat example). The SDK itself is configured with functional
// options; this package only feeds those options.
//
// Configuration sources are loaded in this order (highest to lowest precedence):
// 1. OS environment variables
// 2. Explicit config file (if provided)
// 3. Code defaults set with SetDefault()
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var cfg *viper.Viper // Global configuration instance

const defaultMaxFramePayloadSize = 2 * 1024 * 1024 // 2 MiB

// Init initializes global config with the following precedence:
// 1. OS environment variables (and loaded .env into OS env)
// 2. Explicit config file (if provided)
// 3. Default values set in code
//
// Parameters:
// - envPrefix: optional prefix for environment variables (e.g., "REALTIME")
// - filePath: path to config file (yaml/toml/json); empty for no explicit file
func Init(envPrefix, filePath string) error {
	// Load .env into environment (if exists)
	_ = godotenv.Load()

	v := viper.New()

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}

	v.AutomaticEnv()
	// Map env variable names like REALTIME_APP_KEY to keys like realtime.app_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("realtime.url", "")
	v.SetDefault("realtime.cluster_url", "")
	v.SetDefault("realtime.app_key", "")
	v.SetDefault("realtime.auth_token", "")
	v.SetDefault("realtime.connection_metadata", "")
	v.SetDefault("realtime.announcement_subchannel", "")
	v.SetDefault("realtime.connection_timeout", "5s")
	v.SetDefault("realtime.heartbeat.active", false)
	v.SetDefault("realtime.heartbeat.time", 15)
	v.SetDefault("realtime.heartbeat.fails", 3)
	v.SetDefault("realtime.transport", "framed")
	v.SetDefault("realtime.insecure", false)
	v.SetDefault("realtime.discovery.timeout", "15s")
	v.SetDefault("realtime.multipart.ttl", "5m")
	v.SetDefault("realtime.max_frame_payload_size", defaultMaxFramePayloadSize)

	if filePath != "" {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", filePath, err)
		}
	}

	cfg = v
	return nil
}

// V returns underlying viper instance (may be nil if Init not called).
func V() *viper.Viper { return cfg }

// Set overrides a single key, creating an empty config when Init was not called.
// Useful for tests and for CLI flags that take precedence over the environment.
func Set(key string, value interface{}) {
	if cfg == nil {
		cfg = viper.New()
		cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	}
	cfg.Set(key, value)
}

// IsSet reports whether key has a value from any source.
func IsSet(key string) bool {
	if cfg == nil {
		return false
	}
	return cfg.IsSet(key)
}

// GetString retrieves string value from configuration
func GetString(key string) string {
	if cfg == nil {
		return ""
	}
	return cfg.GetString(key)
}

// GetBool retrieves boolean value from configuration
func GetBool(key string) bool {
	if cfg == nil {
		return false
	}
	return cfg.GetBool(key)
}

// GetInt retrieves integer value from configuration
func GetInt(key string) int {
	if cfg == nil {
		return 0
	}
	return cfg.GetInt(key)
}

// GetDuration retrieves duration value from configuration
func GetDuration(key string, fallback time.Duration) time.Duration {
	if cfg == nil {
		return fallback
	}
	// Viper supports both string duration and numeric seconds for durations
	if s := cfg.GetString(key); s != "" {
		d, err := time.ParseDuration(s)
		if err == nil {
			return d
		}
	}
	if n := cfg.GetInt64(key); n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// MaxFramePayloadSize returns configured maximum allowed size of a frame payload.
func MaxFramePayloadSize() int64 {
	if cfg == nil {
		return defaultMaxFramePayloadSize
	}
	size := cfg.GetInt64("realtime.max_frame_payload_size")
	if size <= 0 {
		return defaultMaxFramePayloadSize
	}
	return size
}

// SetJWTSecretFromProvider sets JWT secret programmatically (useful for tests or secret-manager injection)
func SetJWTSecretFromProvider(secret string) {
	Set("jwt.secret", secret)
}

// JWTSecret returns configured JWT secret (dot key "jwt.secret" or env variable JWT_SECRET)
func JWTSecret() string {
	if cfg == nil {
		return ""
	}
	if s := cfg.GetString("JWT_SECRET"); s != "" {
		return s
	}
	return cfg.GetString("jwt.secret")
}
