// Package config содержит логику чтения конфигурации сервиса маркетплейса.
package config

import (
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress   string        `env:"RUN_ADDRESS"`
	DatabaseURI  string        `env:"DATABASE_URI"`
	JWTSecret    string        `env:"JWT_SECRET"`
	RedisURL     string        `env:"REDIS_URL"`
	Timezone     string        `env:"TIMEZONE" envDefault:"Asia/Tashkent"`
	KafkaBrokers []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string        `env:"KAFKA_TOPIC" envDefault:"marketplace.events"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:","`

	OverdueSweepInterval time.Duration `env:"OVERDUE_SWEEP_INTERVAL" envDefault:"0s"`

	SMS SMSConfig
}

// SMSConfig — параметры SMS-шлюза Eskiz. Пустой email отключает рассылку.
type SMSConfig struct {
	BaseURL  string `env:"ESKIZ_BASE_URL" envDefault:"https://notify.eskiz.uz"`
	Email    string `env:"ESKIZ_EMAIL"`
	Password string `env:"ESKIZ_PASSWORD"`
	From     string `env:"ESKIZ_FROM" envDefault:"4546"`
}

// Location возвращает часовой пояс, по которому сравниваются даты без времени.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envJWTSecret := cfg.JWTSecret
	envRedisURL := cfg.RedisURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.JWTSecret, "s", "", "JWT signing secret")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for the overdue sweep lock")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}
	if envRedisURL != "" {
		cfg.RedisURL = envRedisURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}
