// Package config materialises application configuration from file,
// environment, and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fuelscout/fuelscout/internal/pricing"
	"github.com/fuelscout/fuelscout/internal/station/feed"
)

// Config is the full application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Match     MatchConfig     `mapstructure:"match"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Averages  AveragesConfig  `mapstructure:"averages"`
	Policy    PolicyConfig    `mapstructure:"policy"`
}

// AppConfig holds general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// FeedsConfig covers the retailer feed fetch pass.
type FeedsConfig struct {
	// Endpoints maps retailer name to feed URL. Empty means the
	// built-in retailer set.
	Endpoints   map[string]string `mapstructure:"endpoints"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Concurrency int               `mapstructure:"concurrency"`
	FeedTimeout time.Duration     `mapstructure:"feed_timeout"`
}

// ResolveEndpoints returns the configured endpoint table or the
// built-in default set.
func (f FeedsConfig) ResolveEndpoints() map[string]string {
	if len(f.Endpoints) > 0 {
		return f.Endpoints
	}
	return feed.DefaultEndpoints()
}

// DirectoryConfig covers the authoritative site directory source.
type DirectoryConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SnapshotConfig governs snapshot caching.
type SnapshotConfig struct {
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	StaleIfErrorTTL time.Duration `mapstructure:"stale_if_error_ttl"`
}

// MatchConfig tunes the matching engine.
type MatchConfig struct {
	AllowDuplicateClaims bool    `mapstructure:"allow_duplicate_claims"`
	InnerRadiusDeg       float64 `mapstructure:"inner_radius_deg"`
	OuterRadiusDeg       float64 `mapstructure:"outer_radius_deg"`
}

// ReferenceConfig is the default reference location used for distance
// sorting when a request carries no coordinates.
type ReferenceConfig struct {
	Lat float64 `mapstructure:"lat"`
	Lon float64 `mapstructure:"lon"`
}

// AveragesConfig holds the fallback national averages in pounds per
// litre, used when no live prices are available at all.
type AveragesConfig struct {
	PetrolFallback float64 `mapstructure:"petrol_fallback"`
	DieselFallback float64 `mapstructure:"diesel_fallback"`
}

// PolicyConfig is the weekly pricing schedule as configured. All amounts
// are pence per litre; dates are ISO 8601 days.
type PolicyConfig struct {
	DieselStandard            float64  `mapstructure:"diesel_standard"`
	DieselSupermarket         float64  `mapstructure:"diesel_supermarket"`
	PetrolDiscountStandard    float64  `mapstructure:"petrol_discount_standard"`
	PetrolDiscountSupermarket float64  `mapstructure:"petrol_discount_supermarket"`
	ValidFrom                 string   `mapstructure:"valid_from"`
	ValidTo                   string   `mapstructure:"valid_to"`
	SupermarketBrands         []string `mapstructure:"supermarket_brands"`
}

// ToPolicy converts the configured schedule into a validated policy.
func (p PolicyConfig) ToPolicy() (pricing.Policy, error) {
	policy := pricing.Policy{
		DieselStandard:            decimal.NewFromFloat(p.DieselStandard),
		DieselSupermarket:         decimal.NewFromFloat(p.DieselSupermarket),
		PetrolDiscountStandard:    decimal.NewFromFloat(p.PetrolDiscountStandard),
		PetrolDiscountSupermarket: decimal.NewFromFloat(p.PetrolDiscountSupermarket),
		SupermarketBrands:         p.SupermarketBrands,
	}

	var err error
	if policy.ValidFrom, err = parseDay(p.ValidFrom); err != nil {
		return pricing.Policy{}, fmt.Errorf("policy.valid_from: %w", err)
	}
	if policy.ValidTo, err = parseDay(p.ValidTo); err != nil {
		return pricing.Policy{}, fmt.Errorf("policy.valid_to: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return pricing.Policy{}, err
	}
	return policy, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

// Load builds configuration from file, environment, and defaults.
// Environment variables use the FUELSCOUT_ prefix with underscores for
// section separators.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FUELSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fuelscout")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")

	v.SetDefault("feeds.timeout", "10s")
	v.SetDefault("feeds.concurrency", 4)
	v.SetDefault("feeds.feed_timeout", "15s")

	v.SetDefault("directory.timeout", "15s")

	v.SetDefault("snapshot.cache_ttl", "5m")
	v.SetDefault("snapshot.stale_if_error_ttl", "30m")

	v.SetDefault("match.allow_duplicate_claims", false)
	v.SetDefault("match.inner_radius_deg", 0.001)
	v.SetDefault("match.outer_radius_deg", 0.01)

	// Slough head office, the historical default reference point.
	v.SetDefault("reference.lat", 51.5105)
	v.SetDefault("reference.lon", -0.5950)

	v.SetDefault("averages.petrol_fallback", 1.452)
	v.SetDefault("averages.diesel_fallback", 1.534)

	v.SetDefault("policy.diesel_standard", 149.9)
	v.SetDefault("policy.diesel_supermarket", 151.9)
	v.SetDefault("policy.petrol_discount_standard", 3.0)
	v.SetDefault("policy.petrol_discount_supermarket", 1.0)
	v.SetDefault("policy.supermarket_brands", pricing.DefaultSupermarketBrands())
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Feeds.Concurrency <= 0 {
		return fmt.Errorf("feeds.concurrency must be greater than zero")
	}
	if c.Snapshot.CacheTTL <= 0 {
		return fmt.Errorf("snapshot.cache_ttl must be greater than zero")
	}
	if c.Match.InnerRadiusDeg > c.Match.OuterRadiusDeg {
		return fmt.Errorf("match.inner_radius_deg cannot exceed match.outer_radius_deg")
	}
	if _, err := c.Policy.ToPolicy(); err != nil {
		return err
	}
	return nil
}
