// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Port string `mapstructure:"PORT"`

	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PGHost           string `mapstructure:"PG_HOST"`
	PGPort           string `mapstructure:"PG_PORT"`
	PGDatabase       string `mapstructure:"PG_DATABASE"`

	RedisAddr          string `mapstructure:"REDIS_ADDR"`
	RedisDB            int    `mapstructure:"REDIS_DB"`
	HistorianQueueName string `mapstructure:"HISTORIAN_QUEUE_NAME"`
	HistorianBatchSize int    `mapstructure:"HISTORIAN_BATCH_SIZE"`
	HistorianFlushMs   int    `mapstructure:"HISTORIAN_FLUSH_MS"`
	TableInactivitySec int    `mapstructure:"TABLE_INACTIVITY_TIMEOUT_SEC"`

	TokenExpireTime  string        `mapstructure:"TOKEN_EXPIRE_TIME"`
	TableIdleTimeout time.Duration `mapstructure:"TABLE_IDLE_TIMEOUT"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`

	DropPenalty           int `mapstructure:"DROP_PENALTY"`
	MidDropPenalty        int `mapstructure:"MID_DROP_PENALTY"`
	InvalidDeclarePenalty int `mapstructure:"INVALID_DECLARE_PENALTY"`
	MaxPoints             int `mapstructure:"MAX_POINTS"`
}

var defaults = map[string]interface{}{
	"PORT":                         "8080",
	"DATABASE_URL":                 "",
	"POSTGRES_USER":                "",
	"POSTGRES_PASSWORD":            "",
	"PG_HOST":                      "localhost",
	"PG_PORT":                      "5432",
	"PG_DATABASE":                  "rummy",
	"REDIS_ADDR":                   "",
	"REDIS_DB":                     0,
	"HISTORIAN_QUEUE_NAME":         "rummy_actions",
	"HISTORIAN_BATCH_SIZE":         20,
	"HISTORIAN_FLUSH_MS":           500,
	"TABLE_INACTIVITY_TIMEOUT_SEC": 600,
	"TOKEN_EXPIRE_TIME":            "72h",
	"TABLE_IDLE_TIMEOUT":           "30m",
	"LOG_LEVEL":                    "info",
	"DROP_PENALTY":                 game.DefaultRules().DropPenalty,
	"MID_DROP_PENALTY":             game.DefaultRules().MidDropPenalty,
	"INVALID_DECLARE_PENALTY":      game.DefaultRules().InvalidDeclarePenalty,
	"MAX_POINTS":                   game.DefaultRules().MaxPoints,
}

// Load reads the configuration from an optional .env file in dir and the environment. Environment
// variables win over the file.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Rules().Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule config: %w", err)
	}
	return cfg, nil
}

// HasDatabase reports whether Postgres is configured. Without it tables live in memory only.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != "" || c.PostgresUser != ""
}

// PostgresURL returns DATABASE_URL, or a URL assembled from the POSTGRES_* and PG_* variables.
func (c *Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.PostgresUser, c.PostgresPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// Rules returns the table rules with the configured penalties.
func (c *Config) Rules() game.Rules {
	return game.Rules{
		DropPenalty:           c.DropPenalty,
		MidDropPenalty:        c.MidDropPenalty,
		InvalidDeclarePenalty: c.InvalidDeclarePenalty,
		MaxPoints:             c.MaxPoints,
	}
}

// TokenTTL parses TOKEN_EXPIRE_TIME. "never", "0" and "" mean tokens do not expire.
func (c *Config) TokenTTL() (time.Duration, error) {
	switch c.TokenExpireTime {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(c.TokenExpireTime)
	if err != nil {
		return 0, fmt.Errorf("parse TOKEN_EXPIRE_TIME: %w", err)
	}
	return d, nil
}
