package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Tracing  TracingConfig `mapstructure:"tracing"`
	Announce AnnounceConfig
	Game     GameConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

// AnnounceConfig points at the chat-platform webhooks used for challenge
// announcements and the audit side channel.
type AnnounceConfig struct {
	WebhookURL      string `mapstructure:"webhook_url"`
	AuditWebhookURL string `mapstructure:"audit_webhook_url"`
	MessageURLBase  string `mapstructure:"message_url_base"`
	Anonymous       bool   `mapstructure:"anonymous"`
}

// GameConfig carries the tunable competition constants. Zero values fall back
// to the defaults applied in LoadConfig.
type GameConfig struct {
	SubmitCooldown  time.Duration `mapstructure:"submit_cooldown_seconds"`
	CacheRefresh    time.Duration `mapstructure:"cache_refresh_seconds"`
	ConfirmTTL      time.Duration `mapstructure:"confirm_ttl_seconds"`
	ResetConfirmTTL time.Duration `mapstructure:"reset_confirm_ttl_hours"`
	PageSize        int           `mapstructure:"page_size"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CTF")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Announcements
	viper.BindEnv("announce.webhook_url", "ANNOUNCE_WEBHOOK_URL")
	viper.BindEnv("announce.audit_webhook_url", "AUDIT_WEBHOOK_URL")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if cfg.Game.SubmitCooldown == 0 {
		cfg.Game.SubmitCooldown = 30 * time.Second
	} else {
		cfg.Game.SubmitCooldown *= time.Second
	}
	if cfg.Game.CacheRefresh == 0 {
		cfg.Game.CacheRefresh = 30 * time.Second
	} else {
		cfg.Game.CacheRefresh *= time.Second
	}
	if cfg.Game.ConfirmTTL == 0 {
		cfg.Game.ConfirmTTL = 390 * time.Second
	} else {
		cfg.Game.ConfirmTTL *= time.Second
	}
	if cfg.Game.ResetConfirmTTL == 0 {
		cfg.Game.ResetConfirmTTL = 24 * time.Hour
	} else {
		cfg.Game.ResetConfirmTTL *= time.Hour
	}
	if cfg.Game.PageSize == 0 {
		cfg.Game.PageSize = 10
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}
