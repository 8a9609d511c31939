// Package config читает настройки из config.yaml (необязательного), .env и переменных NEXUS_*.
// Вложенные ключи мапятся на переменные через "_": store.url -> NEXUS_STORE_URL.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type StoreConf struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConf struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type S3Conf struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

type ImagesConf struct {
	// Host: inline, imgbb или s3.
	Host     string `mapstructure:"host"`
	ImgbbURL string `mapstructure:"imgbb_url"`
	ImgbbKey string `mapstructure:"imgbb_key"`
	MaxWidth int    `mapstructure:"max_width"`
	Quality  int    `mapstructure:"quality"`
	S3       S3Conf `mapstructure:"s3"`
}

type PollConf struct {
	Interval time.Duration `mapstructure:"interval"`
}

type SessionConf struct {
	// Backend: file, redis или memory.
	Backend       string `mapstructure:"backend"`
	File          string `mapstructure:"file"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

type BreakerConf struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type TelemetryConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConf struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ServerConf struct {
	Addr          string        `mapstructure:"addr"`
	Storage       string        `mapstructure:"storage"`
	DatabaseURL   string        `mapstructure:"database_url"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	RequireAuth   bool          `mapstructure:"require_auth"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
	Burst         int           `mapstructure:"burst"`
}

type Config struct {
	Store     StoreConf     `mapstructure:"store"`
	Auth      AuthConf      `mapstructure:"auth"`
	Images    ImagesConf    `mapstructure:"images"`
	Poll      PollConf      `mapstructure:"poll"`
	Session   SessionConf   `mapstructure:"session"`
	Breaker   BreakerConf   `mapstructure:"breaker"`
	Telemetry TelemetryConf `mapstructure:"telemetry"`
	Log       LogConf       `mapstructure:"log"`
	Server    ServerConf    `mapstructure:"server"`
}

// defaults задает значения по умолчанию. Каждый ключ должен быть здесь,
// иначе viper не увидит его переменную окружения при Unmarshal.
var defaults = map[string]any{
	"store.url":     "http://localhost:8080",
	"store.timeout": 30 * time.Second,

	"auth.base_url": "https://identitytoolkit.googleapis.com/v1/accounts",
	"auth.api_key":  "",

	"images.host":          "inline",
	"images.imgbb_url":     "https://api.imgbb.com/1/upload",
	"images.imgbb_key":     "",
	"images.max_width":     1080,
	"images.quality":       80,
	"images.s3.region":     "us-east-1",
	"images.s3.bucket":     "",
	"images.s3.endpoint":   "",
	"images.s3.public_url": "",
	"images.s3.prefix":     "images/",

	"poll.interval": 2 * time.Second,

	"session.backend":        "file",
	"session.file":           "",
	"session.redis_addr":     "localhost:6379",
	"session.redis_password": "",
	"session.redis_db":       0,
	"session.redis_prefix":   "nexus:settings:",

	"breaker.max_failures": 5,
	"breaker.interval":     time.Minute,
	"breaker.timeout":      30 * time.Second,

	"telemetry.brokers": []string{},
	"telemetry.topic":   "nexus.client-errors",

	"log.level":       "info",
	"log.development": false,

	"server.addr":            ":8080",
	"server.storage":         "in-memory",
	"server.database_url":    "",
	"server.jwt_secret":      "dev-secret",
	"server.token_ttl":       time.Hour,
	"server.require_auth":    false,
	"server.rate_per_minute": 600,
	"server.burst":           50,
}

// Load читает .env (если есть), затем path (если задан) и переменные NEXUS_*.
// Переменные окружения важнее файла.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("NEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения, которые нельзя исправить молча.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	switch c.Images.Host {
	case "inline", "imgbb", "s3":
	default:
		return fmt.Errorf("images.host: unknown host %q", c.Images.Host)
	}
	if c.Images.Host == "s3" && c.Images.S3.Bucket == "" {
		return fmt.Errorf("images.s3.bucket is required for the s3 host")
	}
	switch c.Session.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("session.backend: unknown backend %q", c.Session.Backend)
	}
	switch c.Server.Storage {
	case "in-memory", "postgres":
	default:
		return fmt.Errorf("server.storage: unknown storage %q", c.Server.Storage)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	return nil
}
