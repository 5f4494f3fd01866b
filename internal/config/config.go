// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig configures the Postgres backend that holds the
// street registry and the validation records.
type DatabaseConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// EngineConfig configures the matching engine thresholds.
type EngineConfig struct {
	MaxSuggestions           int     `yaml:"max_suggestions" mapstructure:"max_suggestions"`
	FuzzySearchMinSimilarity float64 `yaml:"fuzzy_search_min_similarity" mapstructure:"fuzzy_search_min_similarity"`
	FuzzyStreetLimit         int     `yaml:"fuzzy_street_limit" mapstructure:"fuzzy_street_limit"`
	ValidThreshold           float64 `yaml:"valid_threshold" mapstructure:"valid_threshold"`
	ReviewThreshold          float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	SpellingSimilarity       float64 `yaml:"spelling_similarity" mapstructure:"spelling_similarity"`

	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
}

// ScoringConfig exposes the scorer weights for calibration against a
// labeled set without a rebuild.
type ScoringConfig struct {
	FuzzyTextThreshold   float64 `yaml:"fuzzy_text_threshold" mapstructure:"fuzzy_text_threshold"`
	TextWeight           float64 `yaml:"text_weight" mapstructure:"text_weight"`
	PostalBoost          float64 `yaml:"postal_boost" mapstructure:"postal_boost"`
	DistrictBoost        float64 `yaml:"district_boost" mapstructure:"district_boost"`
	DistanceBoostMax     float64 `yaml:"distance_boost_max" mapstructure:"distance_boost_max"`
	SanityRadiusM        float64 `yaml:"sanity_radius_m" mapstructure:"sanity_radius_m"`
	ExactDistancePenalty float64 `yaml:"exact_distance_penalty" mapstructure:"exact_distance_penalty"`
	MaxRadiusM           float64 `yaml:"max_radius_m" mapstructure:"max_radius_m"`
	GeographicCap        float64 `yaml:"geographic_cap" mapstructure:"geographic_cap"`
	LooseTextCap         float64 `yaml:"loose_text_cap" mapstructure:"loose_text_cap"`
}

// BatchConfig configures batch validation runs.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// SchedulerConfig configures the periodic reprocessing sweep.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/address-validation")

	// Environment
	v.SetEnvPrefix("ADDRVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("engine.max_suggestions", 10)
	v.SetDefault("engine.fuzzy_search_min_similarity", 0.30)
	v.SetDefault("engine.fuzzy_street_limit", 25)
	v.SetDefault("engine.valid_threshold", 0.85)
	v.SetDefault("engine.review_threshold", 0.40)
	v.SetDefault("engine.spelling_similarity", 0.75)
	v.SetDefault("engine.scoring.fuzzy_text_threshold", 0.55)
	v.SetDefault("engine.scoring.text_weight", 0.60)
	v.SetDefault("engine.scoring.postal_boost", 0.20)
	v.SetDefault("engine.scoring.district_boost", 0.10)
	v.SetDefault("engine.scoring.distance_boost_max", 0.20)
	v.SetDefault("engine.scoring.sanity_radius_m", 750)
	v.SetDefault("engine.scoring.exact_distance_penalty", 0.05)
	v.SetDefault("engine.scoring.max_radius_m", 2000)
	v.SetDefault("engine.scoring.geographic_cap", 0.50)
	v.SetDefault("engine.scoring.loose_text_cap", 0.84)
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", 15*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
