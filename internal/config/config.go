// Package config loads and validates relink configuration from YAML,
// with environment-variable overrides and optional hot reload of the
// tunable weight tables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relinkhq/relink/internal/errors"
	"github.com/relinkhq/relink/internal/fusion"
	"github.com/relinkhq/relink/internal/ranking"
	"github.com/relinkhq/relink/internal/reliability"
)

// Config is the complete relink configuration.
type Config struct {
	Fusion      FusionConfig      `yaml:"fusion"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Reliability ReliabilityConfig `yaml:"reliability"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// FusionConfig tunes the fusion engine. BaseWeights and SampleCount are
// configuration, not learned values: the blend is deliberately simple
// and tunable.
type FusionConfig struct {
	// SampleCount is the Monte Carlo sample count per fuse call.
	SampleCount int `yaml:"sample_count"`

	// BaseWeights maps branch name to base weight. Unknown branches get
	// UnknownWeight.
	BaseWeights map[string]float64 `yaml:"base_weights"`

	// UnknownWeight is the base weight for unconfigured branch names.
	UnknownWeight float64 `yaml:"unknown_weight"`
}

// RankingConfig tunes the ranking engine.
type RankingConfig struct {
	// K is the default result count.
	K int `yaml:"k"`

	// FetchLimit caps the candidate scan per ranking call.
	FetchLimit int `yaml:"fetch_limit"`

	// HalfLifeHours is the freshness decay half-life.
	HalfLifeHours float64 `yaml:"half_life_hours"`

	// AxisWeights maps embedding space to similarity blend weight.
	AxisWeights map[string]float64 `yaml:"axis_weights"`

	// UseVectorIndex serves candidates from the HNSW semantic index
	// instead of recency order when true.
	UseVectorIndex bool `yaml:"use_vector_index"`
}

// ReliabilityConfig sets the per-branch Beta priors.
type ReliabilityConfig struct {
	// Priors maps branch name to its starting belief. Branches not
	// listed start at Beta(5,5).
	Priors map[string]reliability.Record `yaml:"priors"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	// Path is the database file. Empty means ~/.relink/relink.db.
	Path string `yaml:"path"`
}

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in configuration, matching the tuned
// production tables.
func DefaultConfig() *Config {
	return &Config{
		Fusion: FusionConfig{
			SampleCount:   fusion.DefaultSampleCount,
			BaseWeights:   fusion.DefaultBaseWeights(),
			UnknownWeight: fusion.DefaultUnknownWeight,
		},
		Ranking: RankingConfig{
			K:             ranking.DefaultK,
			FetchLimit:    ranking.DefaultFetchLimit,
			HalfLifeHours: ranking.DefaultHalfLife.Hours(),
			AxisWeights:   ranking.DefaultAxisWeights(),
		},
		Reliability: ReliabilityConfig{
			Priors: reliability.DefaultPriors(),
		},
		Storage: StorageConfig{
			Path: defaultDBPath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// HalfLife returns the ranking half-life as a duration.
func (c *Config) HalfLife() time.Duration {
	return time.Duration(c.Ranking.HalfLifeHours * float64(time.Hour))
}

// Load reads configuration from path, layered over defaults and under
// environment overrides. A missing file is not an error: defaults apply.
// Invalid configuration fails loudly here, at startup, never per-request.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.New(errors.ErrCodeConfigNotFound,
					fmt.Sprintf("read config %s", path), err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("parse config %s", path), err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural invariants. Weight tables may be retuned
// freely, but degenerate values (negative weights, zero samples) are
// programming or operator errors and abort startup.
func (c *Config) Validate() error {
	if c.Fusion.SampleCount <= 0 {
		return errors.ConfigError(
			fmt.Sprintf("fusion.sample_count must be positive, got %d", c.Fusion.SampleCount), nil)
	}
	if c.Fusion.UnknownWeight < 0 || c.Fusion.UnknownWeight > 1 {
		return errors.ConfigError(
			fmt.Sprintf("fusion.unknown_weight must be in [0,1], got %g", c.Fusion.UnknownWeight), nil)
	}
	for name, w := range c.Fusion.BaseWeights {
		if w < 0 || w > 1 {
			return errors.ConfigError(
				fmt.Sprintf("fusion.base_weights[%s] must be in [0,1], got %g", name, w), nil)
		}
	}
	if c.Ranking.K <= 0 {
		return errors.ConfigError(
			fmt.Sprintf("ranking.k must be positive, got %d", c.Ranking.K), nil)
	}
	if c.Ranking.FetchLimit <= 0 {
		return errors.ConfigError(
			fmt.Sprintf("ranking.fetch_limit must be positive, got %d", c.Ranking.FetchLimit), nil)
	}
	if c.Ranking.HalfLifeHours <= 0 {
		return errors.ConfigError(
			fmt.Sprintf("ranking.half_life_hours must be positive, got %g", c.Ranking.HalfLifeHours), nil)
	}
	for space, w := range c.Ranking.AxisWeights {
		if w < 0 {
			return errors.ConfigError(
				fmt.Sprintf("ranking.axis_weights[%s] must be non-negative, got %g", space, w), nil)
		}
	}
	for name, r := range c.Reliability.Priors {
		if r.Alpha <= 0 || r.Beta <= 0 {
			return errors.ConfigError(
				fmt.Sprintf("reliability.priors[%s] must have positive alpha and beta", name), nil)
		}
	}
	return nil
}

// applyEnvOverrides layers RELINK_* environment variables on top of the
// loaded configuration. Malformed values are ignored (the file/default
// value stands).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELINK_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("RELINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RELINK_SAMPLE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Fusion.SampleCount = n
		}
	}
	if v := os.Getenv("RELINK_FETCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Ranking.FetchLimit = n
		}
	}
	if v := os.Getenv("RELINK_USE_VECTOR_INDEX"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ranking.UseVectorIndex = b
		}
	}
}

// DefaultConfigPath returns ~/.relink/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(relinkDir(), "config.yaml")
}

func defaultDBPath() string {
	return filepath.Join(relinkDir(), "relink.db")
}

func relinkDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".relink")
	}
	return filepath.Join(home, ".relink")
}
