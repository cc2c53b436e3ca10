// Package config loads server settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Model backends.
const (
	BackendNative = "native"
	BackendONNX   = "onnx"
)

// History store drivers, picked from the DATABASE_URL scheme.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port               string
	GinMode            string
	LogLevel           string
	LogDevelopment     bool
	ModelsDir          string
	DataDir            string
	StaticDir          string
	ModelBackend       string
	ONNXRuntimeLib     string
	EnableDB           bool
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	ReportTTL          time.Duration
	MaxBodyBytes       int64
	CORSAllowedOrigins []string
	HistoryLimit       int
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	staticDir := v.GetString("static_dir")
	if staticDir == "" {
		staticDir = DetectStaticDir()
	}

	cfg := &Config{
		Port:               v.GetString("port"),
		GinMode:            v.GetString("gin_mode"),
		LogLevel:           strings.ToLower(v.GetString("log_level")),
		LogDevelopment:     v.GetBool("log_development"),
		ModelsDir:          v.GetString("models_dir"),
		DataDir:            v.GetString("data_dir"),
		StaticDir:          staticDir,
		ModelBackend:       strings.ToLower(v.GetString("model_backend")),
		ONNXRuntimeLib:     v.GetString("onnxruntime_lib"),
		EnableDB:           v.GetBool("enable_db"),
		DatabaseURL:        v.GetString("database_url"),
		RedisAddr:          v.GetString("redis_addr"),
		RedisPassword:      v.GetString("redis_password"),
		RedisDB:            v.GetInt("redis_db"),
		ReportTTL:          v.GetDuration("report_ttl"),
		MaxBodyBytes:       v.GetInt64("max_body_bytes"),
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		HistoryLimit:       v.GetInt("history_limit"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
	v.SetDefault("models_dir", "models")
	v.SetDefault("data_dir", "data")
	v.SetDefault("static_dir", "")
	v.SetDefault("model_backend", BackendNative)
	v.SetDefault("onnxruntime_lib", "")
	v.SetDefault("enable_db", false)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("report_ttl", "30m")
	v.SetDefault("max_body_bytes", 1<<20)
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("history_limit", 20)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.ModelBackend {
	case BackendNative, BackendONNX:
	default:
		errs = append(errs, fmt.Errorf("MODEL_BACKEND must be %q or %q, got %q", BackendNative, BackendONNX, c.ModelBackend))
	}
	if c.EnableDB {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when ENABLE_DB=true"))
		} else if _, err := c.DatabaseDriver(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ReportTTL <= 0 {
		errs = append(errs, fmt.Errorf("REPORT_TTL must be positive, got %s", c.ReportTTL))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit))
	}
	return errors.Join(errs...)
}

// DatabaseDriver picks the history store driver from DatabaseURL.
func (c *Config) DatabaseDriver() (string, error) {
	url := c.DatabaseURL
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(url, "sqlite:"), strings.HasPrefix(url, "file:"):
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("DATABASE_URL scheme not supported: %q", url)
	}
}

// SQLiteDSN strips the sqlite: prefix so the URL can be handed to the driver.
func (c *Config) SQLiteDSN() string {
	return strings.TrimPrefix(c.DatabaseURL, "sqlite:")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DetectStaticDir looks for the static asset directory next to the working
// directory or up to two levels above it.
func DetectStaticDir() string {
	startDir, err := os.Getwd()
	if err != nil {
		return "static"
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}
	for _, dir := range candidates {
		static := filepath.Join(dir, "static")
		if fileExists(filepath.Join(static, "css", "style.css")) {
			return static
		}
	}
	return filepath.Join(startDir, "static")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
