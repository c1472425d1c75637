// Package config holds the server configuration, populated by kong from
// flags and environment variables.
package config

import (
	"fmt"
	"strings"
)

const (
	BackendAuto   = "auto"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// OpenAIConfig enables the chat assistant when an API key is present.
type OpenAIConfig struct {
	APIKey string `name:"api-key" help:"OpenAI API key; chat uses mock replies when empty." env:"OPENAI_API_KEY"`
	Model  string `help:"Chat completion model." default:"gpt-3.5-turbo" env:"OPENAI_MODEL"`
}

// AWSConfig enables the S3 dataset store when credentials are present.
type AWSConfig struct {
	AccessKeyID     string `name:"access-key-id" help:"AWS access key id." env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `name:"secret-access-key" help:"AWS secret access key." env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `help:"AWS region." default:"us-east-1" env:"AWS_REGION"`
	Bucket          string `help:"S3 bucket for datasets." default:"oil-drilling-data" env:"AWS_S3_BUCKET"`
	Endpoint        string `help:"S3-compatible endpoint URL (path-style)." env:"AWS_S3_ENDPOINT"`
}

type Config struct {
	DBPath           string `name:"db" help:"Path to SQLite database." default:"data/drillboard.db" env:"DB_PATH"`
	MaxUploadBytes   int64  `help:"Maximum upload size in bytes." default:"10485760" env:"MAX_UPLOAD_BYTES"`
	StoreBackend     string `name:"store" help:"Dataset store backend." enum:"auto,memory,sqlite,s3" default:"auto" env:"STORE_BACKEND"`
	RawRetentionDays int    `help:"Days to keep original upload files." default:"90" env:"RAW_RETENTION_DAYS"`
	Env              string `help:"Environment mode." default:"development" env:"NODE_ENV"`

	OpenAI OpenAIConfig `embed:"" prefix:"openai-"`
	AWS    AWSConfig    `embed:"" prefix:"aws-"`
}

// ServerConfig holds settings only the HTTP server needs.
type ServerConfig struct {
	Port           string   `help:"HTTP server port." default:"5001" env:"PORT"`
	CORSOrigins    []string `name:"cors-origin" help:"Allowed CORS origins." default:"http://localhost:3000,http://127.0.0.1:3000" env:"CORS_ALLOWED_ORIGINS"`
	RateLimitRPS   float64  `name:"rate-limit-rps" help:"Sustained POST requests per second per client." default:"2" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `help:"POST burst per client." default:"10" env:"RATE_LIMIT_BURST"`
}

// HasS3 returns true when both AWS credentials are set.
func (c *Config) HasS3() bool {
	return c.AWS.AccessKeyID != "" && c.AWS.SecretAccessKey != ""
}

// HasOpenAI returns true when an OpenAI API key is set.
func (c *Config) HasOpenAI() bool {
	return c.OpenAI.APIKey != ""
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Backend resolves "auto" to a concrete dataset store backend: S3 when
// credentials are configured, otherwise SQLite.
func (c *Config) Backend() string {
	switch c.StoreBackend {
	case BackendMemory, BackendSQLite, BackendS3:
		return c.StoreBackend
	}
	if c.HasS3() {
		return BackendS3
	}
	return BackendSQLite
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.StoreBackend == BackendS3 && !c.HasS3() {
		return fmt.Errorf("store backend s3 requires AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
	}
	if c.Backend() == BackendS3 && c.AWS.Bucket == "" {
		return fmt.Errorf("store backend s3 requires a bucket")
	}
	return nil
}

// Warnings lists disabled optional features, for logging at startup.
func (c *Config) Warnings() []string {
	var w []string
	if !c.HasOpenAI() {
		w = append(w, "OpenAI API key not configured - chat will use mock responses")
	}
	if !c.HasS3() {
		w = append(w, "AWS credentials not configured - S3 dataset storage disabled")
	}
	if c.IsProduction() && c.Backend() == BackendMemory {
		w = append(w, "memory dataset store in production - datasets are lost on restart")
	}
	return w
}
