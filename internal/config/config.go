package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Bind        string
	Port        int
	ServiceName string

	// Storage configuration
	UploadDir    string
	LedgerPath   string
	StaticDir    string
	MaxUploadMB  int
	StrictLedger bool

	// Per-client submission throttle; a zero rate disables it.
	SubmitPerMinute int
	SubmitBurst     int

	// Tracing is enabled only when an endpoint is set.
	OTelEndpoint string
}

// LoadConfig loads configuration from environment variables with sensible defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Bind:        getEnv("BIND", "0.0.0.0"),
		Port:        getEnvAsInt("PORT", 8000),
		ServiceName: getEnv("SERVICE_NAME", "logo-feedback"),

		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		LedgerPath:   getEnv("LEDGER_PATH", "comments.json"),
		StaticDir:    getEnv("STATIC_DIR", "static"),
		MaxUploadMB:  getEnvAsInt("MAX_UPLOAD_MB", 10),
		StrictLedger: getEnvAsBool("STRICT_LEDGER", false),

		SubmitPerMinute: getEnvAsInt("SUBMIT_RATE_PER_MIN", 30),
		SubmitBurst:     getEnvAsInt("SUBMIT_BURST", 10),

		OTelEndpoint: getEnv("OTEL_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %dMB", c.MaxUploadMB)
	}
	if c.SubmitPerMinute < 0 || c.SubmitBurst < 0 {
		return fmt.Errorf("submission limits must not be negative")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload directory is required")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger path is required")
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// MaxUploadBytes returns the per-file upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
