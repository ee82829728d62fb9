package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default entropy accounting values. The rate default is deliberately a 16th
// of the security strength: the jitter source is credited conservatively even
// though its own health tests claim much higher rates.
const (
	DefaultBlocks           = 64
	DefaultSeedBytes        = 32
	DefaultOSR              = 3
	DefaultSecurityStrength = 256
	DefaultEntropyRate      = DefaultSecurityStrength / 16
)

// Config represents the top-level configuration structure.
type Config struct {
	Pool   PoolConfig   `yaml:"pool"`
	Source SourceConfig `yaml:"source"`
	Output OutputConfig `yaml:"output"`
}

// PoolConfig holds all settings for the asynchronous slot pool.
type PoolConfig struct {
	Blocks     int  `yaml:"blocks"`      // Slot count (power of two, >= 4); 0 disables async collection
	SeedBytes  int  `yaml:"seed_bytes"`  // Size of one seed unit in bytes
	OSR        int  `yaml:"osr"`         // Oversampling factor applied to fast-path requests
	Async      bool `yaml:"async"`       // Enable asynchronous collection at startup
	RefillRate int  `yaml:"refill_rate"` // Max slots filled per second during a refill pass (0 = unpaced)
}

// SourceConfig holds entropy accounting and noise source settings.
type SourceConfig struct {
	EntropyRate      int      `yaml:"entropy_rate"`           // Bits of entropy credited per security-strength bits of output
	SecurityStrength int      `yaml:"security_strength_bits"` // DRNG security strength in bits
	FIPS             bool     `yaml:"fips"`                   // Compliance mode: credit full entropy unless rate overridden
	Calibration      Duration `yaml:"calibration"`            // Timer source calibration budget
}

// OutputConfig controls diagnostics.
type OutputConfig struct {
	Verbose bool `yaml:"verbose"` // Log per-fetch details
	Debug   bool `yaml:"debug"`   // Slot-level diagnostics
	Quiet   bool `yaml:"quiet"`   // Silent mode
	NoTUI   bool `yaml:"no_tui"`  // Disable TUI
}

// Duration wraps time.Duration for YAML unmarshalling from strings like "5s", "100ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			Blocks:    DefaultBlocks,
			SeedBytes: DefaultSeedBytes,
			OSR:       DefaultOSR,
			Async:     true,
		},
		Source: SourceConfig{
			EntropyRate:      DefaultEntropyRate,
			SecurityStrength: DefaultSecurityStrength,
		},
	}
}

// SeedBits returns the size of one seed unit in bits.
func (c *Config) SeedBits() uint32 {
	return uint32(c.Pool.SeedBytes) * 8
}

// SeedBitsOSR returns the oversampled request size in bits. This is the
// amount the refill task produces per slot and the exact request size the
// fast path accepts.
func (c *Config) SeedBitsOSR() uint32 {
	return c.SeedBits() * uint32(c.Pool.OSR)
}

// Validate checks structural constraints. Blocks == 0 is legal and means
// async collection is compiled out.
func (c *Config) Validate() error {
	if c.Pool.Blocks != 0 {
		if c.Pool.Blocks < 4 {
			return fmt.Errorf("pool.blocks must be 0 or >= 4, got %d", c.Pool.Blocks)
		}
		if c.Pool.Blocks&(c.Pool.Blocks-1) != 0 {
			return fmt.Errorf("pool.blocks must be a power of two, got %d", c.Pool.Blocks)
		}
	}
	if c.Pool.SeedBytes <= 0 {
		return fmt.Errorf("pool.seed_bytes must be positive, got %d", c.Pool.SeedBytes)
	}
	if c.Pool.OSR <= 0 {
		return fmt.Errorf("pool.osr must be positive, got %d", c.Pool.OSR)
	}
	if c.Source.SecurityStrength <= 0 {
		return fmt.Errorf("source.security_strength_bits must be positive, got %d", c.Source.SecurityStrength)
	}
	if c.Source.EntropyRate < 0 {
		return fmt.Errorf("source.entropy_rate must not be negative, got %d", c.Source.EntropyRate)
	}
	return nil
}

// LoadConfig reads a YAML configuration file from the specified path.
// Fields absent from the file keep their Default() values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
