package polyglot

import "time"

// Config carries the engine-wide settings shared by all repositories.
type Config struct {
	// Mode routes reads and writes. See [Mode].
	Mode Mode

	// EnableCompensation records failed secondary writes for later replay.
	// When false, failures are logged and counted but nothing is retried.
	EnableCompensation bool

	// SecondaryWriteTimeout bounds each secondary write attempt. The
	// primary write result is never held up longer than this.
	SecondaryWriteTimeout time.Duration

	// EnableConsistencyValidation gates the consistency admin endpoints.
	EnableConsistencyValidation bool

	// ConsistencyTimeout bounds each per-store fetch during validation.
	ConsistencyTimeout time.Duration

	// MaxCompensationAttempts is the replay ceiling. Records that reach it
	// stay in the store for manual inspection and are skipped by replay.
	MaxCompensationAttempts int

	// CompensationBackoff is the base delay between replay attempts for a
	// record. The delay grows linearly with the attempt count.
	CompensationBackoff time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Mode:                        ModeSingleStore,
		EnableCompensation:          true,
		SecondaryWriteTimeout:       5 * time.Second,
		EnableConsistencyValidation: true,
		ConsistencyTimeout:          3 * time.Second,
		MaxCompensationAttempts:     10,
		CompensationBackoff:         30 * time.Second,
	}
}

// withDefaults fills zero values so a partially populated Config behaves.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.SecondaryWriteTimeout <= 0 {
		c.SecondaryWriteTimeout = def.SecondaryWriteTimeout
	}
	if c.ConsistencyTimeout <= 0 {
		c.ConsistencyTimeout = def.ConsistencyTimeout
	}
	if c.MaxCompensationAttempts <= 0 {
		c.MaxCompensationAttempts = def.MaxCompensationAttempts
	}
	if c.CompensationBackoff <= 0 {
		c.CompensationBackoff = def.CompensationBackoff
	}
	return c
}
