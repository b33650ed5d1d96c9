package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pongarena/internal/pong"
)

const DefaultPath = "config.yaml"

var Config = Default()

type Configuration struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	TCP      TCPConfig      `yaml:"tcp"`
	Auth     AuthConfig     `yaml:"auth"`
	Match    pong.Rules     `yaml:"match"`
	Queues   []string       `yaml:"queues"`
	Postgres PostgresConfig `yaml:"postgres"`
	NATS     NATSConfig     `yaml:"nats"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TCPConfig is the raw protobuf listener. An empty Addr disables it.
type TCPConfig struct {
	Addr         string        `yaml:"addr"`
	HelloTimeout time.Duration `yaml:"hello_timeout"`
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	AllowGuests bool   `yaml:"allow_guests"`
}

// PostgresConfig enables the match table when DSN is set.
type PostgresConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

// NATSConfig enables lifecycle events when URL is set.
type NATSConfig struct {
	URL string `yaml:"url"`
}

func Default() Configuration {
	return Configuration{
		Log:   LogConfig{Level: "info", Format: "text"},
		HTTP:  HTTPConfig{Addr: ":4000", ShutdownTimeout: 10 * time.Second},
		TCP:   TCPConfig{Addr: "127.0.0.1:12345", HelloTimeout: 5 * time.Second},
		Auth:  AuthConfig{AllowGuests: true},
		Match: pong.DefaultRules(),
		Queues: []string{
			"RANK",
			"CASUAL",
		},
		Postgres: PostgresConfig{Migrate: true},
	}
}

// LoadConfig reads the YAML file at path (config.yaml when empty) over the
// defaults. A missing or unreadable file is not an error; the defaults are
// used. PONG_JWT_SECRET, PONG_POSTGRES_DSN and PONG_NATS_URL override the file.
func LoadConfig(path string) (Configuration, error) {
	c := Default()
	if path == "" {
		path = DefaultPath
	}

	cf, err := os.ReadFile(path)
	if err != nil {
		slog.Info("failed to open config at path provided, using default config instead", slog.String("path", path))
	} else if err := yaml.Unmarshal(cf, &c); err != nil {
		slog.Info("failed to read configuration, using default config instead", slog.Any("error", err))
		c = Default()
	}

	if v := os.Getenv("PONG_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("PONG_POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("PONG_NATS_URL"); v != "" {
		c.NATS.URL = v
	}

	if err := c.Validate(); err != nil {
		return c, err
	}
	Config = c
	return c, nil
}

func (c Configuration) Validate() error {
	var errs []error
	if err := c.Match.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("match: %w", err))
	}
	if len(c.Queues) == 0 {
		errs = append(errs, errors.New("at least one queue kind is required"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if !c.Auth.AllowGuests && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("a jwt secret is required when guests are not allowed"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
