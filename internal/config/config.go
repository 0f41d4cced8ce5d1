// Package config loads service configuration from a YAML file with
// environment-variable overrides. A missing file is not an error: defaults
// plus environment are enough to run against the in-memory store.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Mailer  MailerConfig  `yaml:"mailer"`
	Auth    AuthConfig    `yaml:"auth"`
	Archive ArchiveConfig `yaml:"archive"`
	Redis   RedisConfig   `yaml:"redis"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the listen host, with container detection.
func (c ServerConfig) GetHost() string {
	// In containers, listen on all interfaces.
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	// Type is "dynamo", "postgres", or "memory".
	Type          string `yaml:"type"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"`
	DatabaseURL   string `yaml:"database_url"`
}

// MailerConfig configures the outbound transactional email provider.
type MailerConfig struct {
	// Provider is "mailersend" or "ses". An absent, short, or demo_-prefixed
	// APIKey puts the mailersend provider in demo mode (simulated sends).
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// SES credentials (provider "ses").
	SESRegion    string `yaml:"ses_region"`
	SESAccessKey string `yaml:"ses_access_key"`
	SESSecretKey string `yaml:"ses_secret_key"`
}

// AuthConfig configures caller-identity verification.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SigningSecret string `yaml:"signing_secret"`
}

// ArchiveConfig configures optional post-draw snapshot archival to S3.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	S3Bucket  string `yaml:"s3_bucket"`
	AWSRegion string `yaml:"aws_region"`
}

// RedisConfig configures optional webhook duplicate suppression.
type RedisConfig struct {
	URL             string `yaml:"url"`
	DedupTTLSeconds int    `yaml:"dedup_ttl_seconds"`
}

// Load reads configuration from a YAML file and applies defaults.
// A missing file yields a default config.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.AWSRegion == "" {
		cfg.Store.AWSRegion = "us-east-1"
	}
	if cfg.Mailer.Provider == "" {
		cfg.Mailer.Provider = "mailersend"
	}
	if cfg.Mailer.BaseURL == "" {
		cfg.Mailer.BaseURL = "https://api.mailersend.com/v1"
	}
	if cfg.Mailer.FromEmail == "" {
		cfg.Mailer.FromEmail = "noreply@mail.giftexchange.local"
	}
	if cfg.Mailer.FromName == "" {
		cfg.Mailer.FromName = "Amigo Invisible"
	}
	if cfg.Mailer.TimeoutSeconds == 0 {
		cfg.Mailer.TimeoutSeconds = 30
	}
	if cfg.Mailer.SESRegion == "" {
		cfg.Mailer.SESRegion = "us-east-1"
	}
	if cfg.Archive.AWSRegion == "" {
		cfg.Archive.AWSRegion = cfg.Store.AWSRegion
	}
	if cfg.Redis.DedupTTLSeconds == 0 {
		cfg.Redis.DedupTTLSeconds = 86400
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration and overrides it with environment
// variables. A .env file is honored if present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STORE_TYPE"); v != "" {
		cfg.Store.Type = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.Store.DynamoDBTable = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Store.AWSRegion = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
		if cfg.Store.Type == "" || cfg.Store.Type == "memory" {
			cfg.Store.Type = "postgres"
		}
	}
	if v := os.Getenv("MAILER_PROVIDER"); v != "" {
		cfg.Mailer.Provider = v
	}
	if v := os.Getenv("MAILERSEND_API_KEY"); v != "" {
		cfg.Mailer.APIKey = v
	}
	if v := os.Getenv("MAILERSEND_BASE_URL"); v != "" {
		cfg.Mailer.BaseURL = v
	}
	if v := os.Getenv("MAIL_FROM_EMAIL"); v != "" {
		cfg.Mailer.FromEmail = v
	}
	if v := os.Getenv("MAIL_FROM_NAME"); v != "" {
		cfg.Mailer.FromName = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Mailer.SESRegion = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Mailer.SESAccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Mailer.SESSecretKey = v
	}
	if v := os.Getenv("AUTH_SIGNING_SECRET"); v != "" {
		cfg.Auth.SigningSecret = v
		cfg.Auth.Enabled = true
	}
	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.S3Bucket = v
		cfg.Archive.Enabled = true
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}

	return cfg, nil
}
