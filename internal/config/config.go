// Package config loads service configuration from config files, .env files
// and environment variables, in that order of increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite". sqlite exists for local runs and tests.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	MaxOpenConns int `mapstructure:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	// Addr empty disables the run lock entirely.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SyncConfig holds the knobs of the aggregation and import loops.
type SyncConfig struct {
	PageSize           int `mapstructure:"page_size"`
	ChunkSize          int `mapstructure:"chunk_size"`
	WriteBackThreshold int `mapstructure:"write_back_threshold"`

	CatalogRefreshInterval    time.Duration `mapstructure:"catalog_refresh_interval"`
	AdjustmentRefreshInterval time.Duration `mapstructure:"adjustment_refresh_interval"`

	// RunInterval drives the scheduler's periodic metrics pass.
	RunInterval time.Duration `mapstructure:"run_interval"`
	RunLockTTL  time.Duration `mapstructure:"run_lock_ttl"`
}

type ProvidersConfig struct {
	Cardnet  CardnetConfig  `mapstructure:"cardnet"`
	Shopfeed ShopfeedConfig `mapstructure:"shopfeed"`
}

type CardnetConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type ShopfeedConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type LogConfig struct {
	// Level is a zap level string; Development switches to console encoding.
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func Load() (Config, error) {
	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/loyalsync")

	v.SetEnvPrefix("LOYALSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("sync.page_size", 1000)
	v.SetDefault("sync.chunk_size", 250)
	v.SetDefault("sync.write_back_threshold", 250)
	v.SetDefault("sync.catalog_refresh_interval", time.Hour)
	v.SetDefault("sync.adjustment_refresh_interval", 5*time.Minute)
	v.SetDefault("sync.run_interval", 6*time.Hour)
	v.SetDefault("sync.run_lock_ttl", 30*time.Minute)

	v.SetDefault("providers.cardnet.base_url", "https://api.cardnet.example.com/v1")
	v.SetDefault("providers.shopfeed.base_url", "https://api.shopfeed.example.com/v2")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
