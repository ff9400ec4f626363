// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Database selects and addresses the SQL backend.
type Database struct {
	Driver     string `env:"DB_DRIVER" envDefault:"mysql"`
	Host       string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port       int    `env:"DB_PORT" envDefault:"3306"`
	User       string `env:"DB_USER" envDefault:"root"`
	Password   string `env:"DB_PASSWORD"`
	Name       string `env:"DB_NAME" envDefault:"olympiad"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"olympiad.db"`
}

// Engine holds the timing constants of the results engine.
type Engine struct {
	GraceWindow  time.Duration `env:"GRACE_WINDOW" envDefault:"5s"`
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	ArchiveAfter time.Duration `env:"ARCHIVE_AFTER" envDefault:"720h"`
}

// Twilio configures SMS lifecycle notifications. Disabled when AccountSID is empty.
type Twilio struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	From       string `env:"TWILIO_FROM"`
	AdminPhone string `env:"TWILIO_ADMIN_PHONE"`
}

// S3 configures the results archive. Disabled when Bucket is empty.
type S3 struct {
	Region          string `env:"AWS_REGION" envDefault:"eu-central-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Bucket          string `env:"RESULTS_BUCKET"`
}

// Config is the full process configuration.
type Config struct {
	Port            string `env:"PORT" envDefault:"8000"`
	Secret          string `env:"SECRET,required"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"text"`
	NotifyQueueSize int    `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	OTelEndpoint    string `env:"OTEL_ENDPOINT"`

	Database Database
	Engine   Engine
	Twilio   Twilio
	S3       S3
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the optional files (".env" when none are given) and parses the
// environment. A missing file is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Engine.GraceWindow < 0 {
		return fmt.Errorf("GRACE_WINDOW must not be negative")
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	return nil
}
