package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Boundary  BoundaryConfig  `yaml:"boundary" mapstructure:"boundary"`
	Geometry  GeometryConfig  `yaml:"geometry" mapstructure:"geometry"`
	Query     QueryConfig     `yaml:"query" mapstructure:"query"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the administrative-region store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BoundaryConfig configures where clip-region boundaries are loaded from.
type BoundaryConfig struct {
	RegistryPath  string `yaml:"registry_path" mapstructure:"registry_path"`
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	GeoJSONPath   string `yaml:"geojson_path" mapstructure:"geojson_path"`
	NameField     string `yaml:"name_field" mapstructure:"name_field"`
}

// GeometryConfig holds tunable tolerances for the geometry pipeline.
// These are empirically chosen and exposed as configuration rather than
// baked-in constants.
type GeometryConfig struct {
	RaySafetyFactor    float64 `yaml:"ray_safety_factor" mapstructure:"ray_safety_factor"`
	DedupeEpsilonM     float64 `yaml:"dedupe_epsilon_m" mapstructure:"dedupe_epsilon_m"`
	PatchBufferM       float64 `yaml:"patch_buffer_m" mapstructure:"patch_buffer_m"`
	AdjacencyMinLenM   float64 `yaml:"adjacency_min_len_m" mapstructure:"adjacency_min_len_m"`
	BoundarySampleStep float64 `yaml:"boundary_sample_step_m" mapstructure:"boundary_sample_step_m"`
}

// QueryConfig configures spatial query behavior.
type QueryConfig struct {
	AdaptiveKRatio float64 `yaml:"adaptive_k_ratio" mapstructure:"adaptive_k_ratio"`
	AdaptiveKMax   int     `yaml:"adaptive_k_max" mapstructure:"adaptive_k_max"`
}

// AnalyticsConfig holds thresholds for coverage recommendations.
type AnalyticsConfig struct {
	GapRadiusKM         float64 `yaml:"gap_radius_km" mapstructure:"gap_radius_km"`
	CriticalGapRadiusKM float64 `yaml:"critical_gap_radius_km" mapstructure:"critical_gap_radius_km"`
	OverburdenedFactor  float64 `yaml:"overburdened_factor" mapstructure:"overburdened_factor"`
	CapacityThreshold   float64 `yaml:"capacity_threshold" mapstructure:"capacity_threshold"`
	RankCount           int     `yaml:"rank_count" mapstructure:"rank_count"`
}

// ServerConfig configures the query server.
type ServerConfig struct {
	Port      int     `yaml:"port" mapstructure:"port"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
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

	// Environment
	v.SetEnvPrefix("COVERAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "coverage.db")
	v.SetDefault("boundary.registry_path", "datasets.yaml")
	v.SetDefault("boundary.name_field", "state")
	v.SetDefault("geometry.ray_safety_factor", 10.0)
	v.SetDefault("geometry.dedupe_epsilon_m", 1.0)
	v.SetDefault("geometry.patch_buffer_m", 50.0)
	v.SetDefault("geometry.adjacency_min_len_m", 1.0)
	v.SetDefault("geometry.boundary_sample_step_m", 25000.0)
	v.SetDefault("query.adaptive_k_ratio", 3.5)
	v.SetDefault("query.adaptive_k_max", 64)
	v.SetDefault("analytics.gap_radius_km", 10.0)
	v.SetDefault("analytics.critical_gap_radius_km", 25.0)
	v.SetDefault("analytics.overburdened_factor", 2.0)
	v.SetDefault("analytics.capacity_threshold", 1000000.0)
	v.SetDefault("analytics.rank_count", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
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
