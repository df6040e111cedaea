// Package application orchestrates the domain model against the
// external collaborators defined in internal/ports: the observation
// pipeline (spy), the prediction engine (prophet), and daemon
// configuration.
package application

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/gavel-preload/internal/ports"
)

// Config is the daemon's complete configuration surface, loaded from a
// YAML file by cmd/preloadd and validated before the event loop starts.
type Config struct {
	// StateFile is where the model is persisted across restarts.
	StateFile string `yaml:"statefile" validate:"required"`

	// ScanIntervalSec is the wall-clock period between scan ticks.
	ScanIntervalSec int `yaml:"scan_interval_sec" validate:"required,min=1,max=3600"`

	// LogFile is where the daemon appends its log stream. Empty means
	// stderr. SIGHUP reopens this path, the usual logrotate contract.
	LogFile string `yaml:"logfile"`

	// VommEnabled turns on the variable-order Markov sequence model
	// alongside the pairwise co-occurrence model.
	VommEnabled bool `yaml:"vomm_enabled"`

	// RespectPowerState skips scan ticks while the host is confirmed
	// running on battery power.
	RespectPowerState bool `yaml:"respect_power_state"`

	Model ModelConfig `yaml:"model" validate:"required"`

	Prefetch PrefetchConfig `yaml:"prefetch" validate:"required"`
}

// ModelConfig tunes the sequence and co-occurrence models.
type ModelConfig struct {
	// MinSize is the minimum aggregate mapped size (bytes) an exe must
	// have to be considered interesting; smaller exes are recorded in
	// the bad-exe table instead of being modeled.
	MinSize int64 `yaml:"minsize" validate:"min=0"`

	// CycleSec is the full scan/update cycle length in virtual seconds:
	// the virtual clock advances by (cycle+1)/2 on one tick boundary and
	// cycle/2 on the next.
	CycleSec int `yaml:"cycle_sec" validate:"required,min=1,max=600"`

	// MemorySafetyMarginPct is subtracted from the available-memory
	// budget before the prophet greedily selects candidate maps.
	MemorySafetyMarginPct int `yaml:"memory_safety_margin_pct" validate:"min=0,max=90"`
}

// PrefetchConfig tunes the readahead scheduler.
type PrefetchConfig struct {
	// Strategy selects request ordering: "none", "path", "block", or
	// "inode".
	Strategy string `yaml:"strategy" validate:"required,oneof=none path block inode"`

	// MaxProcs bounds the number of outstanding prefetch workers. Zero
	// disables forking entirely (readahead calls happen inline).
	MaxProcs int `yaml:"max_procs" validate:"min=0,max=256"`
}

// SortStrategy translates the configured string into a ports.SortStrategy.
func (c PrefetchConfig) SortStrategy() ports.SortStrategy {
	switch c.Strategy {
	case "path":
		return ports.SortPath
	case "block":
		return ports.SortBlock
	case "inode":
		return ports.SortInode
	default:
		return ports.SortNone
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig runs struct-tag validation over cfg, independent of
// whether the event loop ever starts — exercised directly by the
// "validate-config" CLI verb.
func ValidateConfig(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultConfig returns sane defaults. LoadConfig does not fall back to
// them: a missing config file is an error.
func DefaultConfig() *Config {
	return &Config{
		StateFile:       "/var/lib/preloadd/preload.state",
		ScanIntervalSec: 5,
		Model: ModelConfig{
			MinSize:               4000,
			CycleSec:              30,
			MemorySafetyMarginPct: 10,
		},
		Prefetch: PrefetchConfig{
			Strategy: "block",
			MaxProcs: 30,
		},
	}
}
