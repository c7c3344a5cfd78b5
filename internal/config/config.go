package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port    int    `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"`

	Store       string `mapstructure:"store"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	RedisURL    string `mapstructure:"redis_url"`

	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`

	OpenAIAPIKey        string `mapstructure:"openai_api_key"`
	EmbeddingModel      string `mapstructure:"embedding_model"`
	EnrichmentWorkers   int    `mapstructure:"enrichment_workers"`
	EnrichmentQueueSize int    `mapstructure:"enrichment_queue_size"`

	EventRate      float64  `mapstructure:"event_rate"`
	EventBurst     int      `mapstructure:"event_burst"`
	ReadLimit      int64    `mapstructure:"read_limit"`
	SendBuffer     int      `mapstructure:"send_buffer"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Load читает .env.local/.env, затем CONFIG_FILE (yaml, необязателен) и переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Debug().Str("module", "config").Msg(".env not found, using environment variables")
		}
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		log.Info().Str("module", "config").Str("file", file).Msg("loaded config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// из окружения список приходит строкой через запятую
	cfg.AllowedOrigins = splitList(strings.Join(cfg.AllowedOrigins, ","))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("gin_mode", "release")
	v.SetDefault("store", StorePostgres)
	v.SetDefault("database_url", "")
	v.SetDefault("sqlite_path", "teamchat.db")
	v.SetDefault("redis_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("embedding_model", "text-embedding-3-small")
	v.SetDefault("enrichment_workers", 2)
	v.SetDefault("enrichment_queue_size", 256)
	v.SetDefault("event_rate", 20.0)
	v.SetDefault("event_burst", 40)
	v.SetDefault("read_limit", 512*1024)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for store=%s", c.Store)
		}
	case StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown gin_mode %q", c.GinMode)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
