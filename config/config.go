// Package config loads the process-wide caching settings from a properties
// resource. The result is an immutable value handed to components at
// construction time; nothing in this module reads configuration lazily.
package config

import (
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Property names understood in the properties resource.
const (
	keyExpireSecond      = "expireSecond"
	keyIgnoreKind        = "ignoreKind"
	keyResetIgnoreKind   = "resetIgnoreKind"
	keySharedTimeoutMill = "sharedTimeoutMillis"
	keyLocalResetMillis  = "localResetMillis"
	keyChunkSize         = "chunkSize"
	keyNamespace         = "namespace"
)

// Config is the read-only configuration surface of the caching layer.
type Config struct {
	// ExpireSeconds is the shared-cache entry expiration.
	ExpireSeconds int

	// IgnoreKinds are excluded from query caching entirely.
	IgnoreKinds []string

	// ResetIgnoreKinds never get their invalidation watermark bumped.
	ResetIgnoreKinds []string

	// SharedTimeout bounds each shared-cache operation, separate from the
	// backend's own deadline.
	SharedTimeout time.Duration

	// LocalResetTTL is the local tier's whole-map reset window.
	LocalResetTTL time.Duration

	// ChunkSize is the chunking threshold and chunk size in bytes.
	ChunkSize int

	// Namespace isolates this process's local tier, when set.
	Namespace string
}

// Default returns the built-in fallback configuration.
func Default() Config {
	return Config{
		ExpireSeconds: 300,
		SharedTimeout: 3000 * time.Millisecond,
		LocalResetTTL: 5000 * time.Millisecond,
		ChunkSize:     1000000,
	}
}

// Load reads a properties file. An empty path or a missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	v.SetDefault(keyExpireSecond, cfg.ExpireSeconds)
	v.SetDefault(keySharedTimeoutMill, int(cfg.SharedTimeout/time.Millisecond))
	v.SetDefault(keyLocalResetMillis, int(cfg.LocalResetTTL/time.Millisecond))
	v.SetDefault(keyChunkSize, cfg.ChunkSize)

	if err := v.ReadInConfig(); err != nil {
		return cfg, errors.Wrapf(err, "config: read %s", path)
	}

	cfg.ExpireSeconds = v.GetInt(keyExpireSecond)
	cfg.IgnoreKinds = splitList(v.GetString(keyIgnoreKind))
	cfg.ResetIgnoreKinds = splitList(v.GetString(keyResetIgnoreKind))
	cfg.SharedTimeout = time.Duration(v.GetInt(keySharedTimeoutMill)) * time.Millisecond
	cfg.LocalResetTTL = time.Duration(v.GetInt(keyLocalResetMillis)) * time.Millisecond
	cfg.ChunkSize = v.GetInt(keyChunkSize)
	cfg.Namespace = v.GetString(keyNamespace)

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config: invalid %s", path)
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ExpireSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.SharedTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.LocalResetTTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(1)),
	)
}

// ExpireTTL is ExpireSeconds as a duration.
func (c Config) ExpireTTL() time.Duration {
	return time.Duration(c.ExpireSeconds) * time.Second
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
