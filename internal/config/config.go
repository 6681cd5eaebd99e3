package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Log      LogConfig      `yaml:"log"`
	Thread   ThreadConfig   `yaml:"thread"`
	Search   SearchConfig   `yaml:"search"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ThreadConfig struct {
	// максимальное число одновременных запросов голосов при аннотации
	AnnotationConcurrency int `yaml:"annotation_concurrency"`
}

type SearchConfig struct {
	PageSize              int `yaml:"page_size"`
	BatchSize             int `yaml:"batch_size"`
	AnnotationConcurrency int `yaml:"annotation_concurrency"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info"},
		Thread: ThreadConfig{AnnotationConcurrency: 8},
		Search: SearchConfig{PageSize: 25, BatchSize: 100, AnnotationConcurrency: 8},
	}
}

// Load читает YAML-файл поверх значений по умолчанию.
// FEED_POSTGRES_DSN и FEED_JWT_SECRET переопределяют значения из файла.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if dsn := os.Getenv("FEED_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if secret := os.Getenv("FEED_JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Thread.AnnotationConcurrency <= 0 {
		return fmt.Errorf("thread.annotation_concurrency must be positive, got %d", c.Thread.AnnotationConcurrency)
	}
	if c.Search.PageSize <= 0 {
		return fmt.Errorf("search.page_size must be positive, got %d", c.Search.PageSize)
	}
	if c.Search.BatchSize <= 0 {
		return fmt.Errorf("search.batch_size must be positive, got %d", c.Search.BatchSize)
	}
	if c.Search.AnnotationConcurrency <= 0 {
		return fmt.Errorf("search.annotation_concurrency must be positive, got %d", c.Search.AnnotationConcurrency)
	}
	return nil
}
