package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Map       MapConfig       `mapstructure:"map"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProviderConfig selects where map markers come from: the local database
// ("postgres") or another TrailMap API ("http").
type ProviderConfig struct {
	Mode    string `mapstructure:"mode"`
	URL     string `mapstructure:"url"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// MapConfig holds the map view limits and clustering parameters.
type MapConfig struct {
	MinZoom                 int     `mapstructure:"min_zoom"`
	MaxZoom                 int     `mapstructure:"max_zoom"`
	DefaultZoom             int     `mapstructure:"default_zoom"`
	DefaultLat              float64 `mapstructure:"default_lat"`
	DefaultLon              float64 `mapstructure:"default_lon"`
	ClusterRadius           float64 `mapstructure:"cluster_radius"`
	DisableClusteringAtZoom int     `mapstructure:"disable_clustering_at_zoom"`
	MarkerLimit             int     `mapstructure:"marker_limit"`
	CacheTTL                int     `mapstructure:"cache_ttl"`    // seconds
	PositionTTL             int     `mapstructure:"position_ttl"` // seconds
	IconBaseURL             string  `mapstructure:"icon_base_url"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "trailmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "trailmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "location-submissions")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("provider.mode", "postgres")
	v.SetDefault("provider.url", "")
	v.SetDefault("provider.timeout", 10)
	v.SetDefault("map.min_zoom", 5)
	v.SetDefault("map.max_zoom", 18)
	v.SetDefault("map.default_zoom", 7)
	v.SetDefault("map.default_lat", 49.8)
	v.SetDefault("map.default_lon", 15.5)
	v.SetDefault("map.cluster_radius", 60)
	v.SetDefault("map.disable_clustering_at_zoom", 11)
	v.SetDefault("map.marker_limit", 2000)
	v.SetDefault("map.cache_ttl", 120)
	v.SetDefault("map.position_ttl", 30*24*3600)
	v.SetDefault("map.icon_base_url", "/location-icons")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TRAILMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("TRAILMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Provider.Mode {
	case "postgres":
	case "http":
		if c.Provider.URL == "" {
			errs = append(errs, "provider.url is required when provider.mode is http")
		}
	default:
		errs = append(errs, fmt.Sprintf("provider.mode must be postgres or http, got %q", c.Provider.Mode))
	}
	if c.Map.MinZoom < 0 || c.Map.MinZoom > c.Map.MaxZoom {
		errs = append(errs, fmt.Sprintf("map.min_zoom must be between 0 and map.max_zoom, got %d", c.Map.MinZoom))
	}
	if c.Map.DefaultZoom < c.Map.MinZoom || c.Map.DefaultZoom > c.Map.MaxZoom {
		errs = append(errs, fmt.Sprintf("map.default_zoom must be within [%d, %d], got %d", c.Map.MinZoom, c.Map.MaxZoom, c.Map.DefaultZoom))
	}
	if c.Map.DefaultLat < -90 || c.Map.DefaultLat > 90 || c.Map.DefaultLon < -180 || c.Map.DefaultLon > 180 {
		errs = append(errs, "map.default_lat/default_lon out of range")
	}
	if c.Map.ClusterRadius <= 0 {
		errs = append(errs, "map.cluster_radius must be positive")
	}
	if c.Map.MarkerLimit <= 0 {
		errs = append(errs, "map.marker_limit must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
