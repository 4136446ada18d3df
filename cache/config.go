package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Config holds the tuning knobs of the two-tier cache service.
type Config struct {
	// Namespace, when set, prefixes every local-tier key so namespaces
	// sharing a process never collide. The shared tier is assumed to be
	// namespace-aware already.
	Namespace string

	// SharedTTL is the expiration applied to shared-tier writes.
	SharedTTL time.Duration

	// LocalResetTTL is the reset window of the local tier: ResetLocal
	// clears the whole tier once this much time has passed since the
	// previous clear.
	LocalResetTTL time.Duration

	// ChunkSize is both the chunking threshold and the chunk size for
	// oversized shared-tier values.
	ChunkSize int

	// Local tier sizing, passed through to the backing store.
	LocalCapacity           int
	LocalShards             int
	LocalEvictionPercentage int

	// Clock overrides the time source. Nil means time.Now.
	Clock func() time.Time

	// Logger receives swallowed shared-tier failures. Nil means the
	// standard logger.
	Logger logrus.FieldLogger

	// Registerer, when set, gets the hit counters registered against it.
	Registerer prometheus.Registerer
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SharedTTL:               5 * time.Minute,
		LocalResetTTL:           5000 * time.Millisecond,
		ChunkSize:               1000000,
		LocalCapacity:           10000,
		LocalShards:             256,
		LocalEvictionPercentage: 10,
	}
}

// Validate checks whether the configuration values are usable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SharedTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.LocalResetTTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(1)),
		validation.Field(&c.LocalCapacity, validation.Required, validation.Min(1)),
		validation.Field(&c.LocalShards, validation.Required, validation.Min(1)),
		validation.Field(&c.LocalEvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
	)
}
