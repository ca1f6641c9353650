// Package config loads runtime configuration from the environment (and an
// optional .env file).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DBConfig holds PostgreSQL connection settings. URL wins when set.
type DBConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// DSN returns the connection string for pgxpool.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// UploadConfig configures where MOV files are stored.
type UploadConfig struct {
	Driver  string // "local" or "r2"
	Dir     string
	BaseURL string
}

// R2Config holds Cloudflare R2 credentials.
type R2Config struct {
	AccountID string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
}

type Config struct {
	Port          string
	JWTSecret     string
	LogLevel      string
	CORSOrigins   []string
	SweepInterval time.Duration
	TemplatesDir  string
	// AdminEmail and AdminPassword bootstrap a super_admin on startup when
	// both are set.
	AdminEmail    string
	AdminPassword string
	DB            DBConfig
	Upload        UploadConfig
	R2            R2Config
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := &Config{
		Port:          get("PORT", "8080"),
		JWTSecret:     get("JWT_SECRET", ""),
		LogLevel:      get("LOG_LEVEL", "info"),
		TemplatesDir:  get("TEMPLATES_DIR", ""),
		AdminEmail:    strings.ToLower(get("ADMIN_EMAIL", "")),
		AdminPassword: get("ADMIN_PASSWORD", ""),
		DB: DBConfig{
			URL:      get("DATABASE_URL", ""),
			Host:     get("DB_HOST", "localhost"),
			Port:     get("DB_PORT", "5432"),
			User:     get("DB_USER", "postgres"),
			Password: get("DB_PASSWORD", "postgres"),
			Name:     get("DB_NAME", "sinag"),
			SSLMode:  get("DB_SSLMODE", "disable"),
			MaxConns: 10,
		},
		Upload: UploadConfig{
			Driver:  get("STORAGE_DRIVER", "local"),
			Dir:     get("UPLOAD_DIR", "./uploads"),
			BaseURL: get("UPLOAD_BASE_URL", "http://localhost:8080/api/files"),
		},
		R2: R2Config{
			AccountID: get("R2_ACCOUNT_ID", ""),
			AccessKey: get("R2_ACCESS_KEY", ""),
			SecretKey: get("R2_SECRET_KEY", ""),
			Bucket:    get("R2_BUCKET", ""),
			PublicURL: get("R2_PUBLIC_URL", ""),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	for _, o := range strings.Split(get("CORS_ORIGINS", "http://localhost:3000"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	interval, err := time.ParseDuration(get("DEADLINE_SWEEP_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEADLINE_SWEEP_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("DEADLINE_SWEEP_INTERVAL must be positive, got %s", interval)
	}
	cfg.SweepInterval = interval

	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return nil, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if cfg.AdminPassword != "" && len(cfg.AdminPassword) < 8 {
		return nil, errors.New("ADMIN_PASSWORD must be at least 8 characters")
	}

	switch cfg.Upload.Driver {
	case "local":
	case "r2":
		if cfg.R2.AccountID == "" || cfg.R2.AccessKey == "" || cfg.R2.SecretKey == "" || cfg.R2.Bucket == "" {
			return nil, errors.New("STORAGE_DRIVER=r2 requires R2_ACCOUNT_ID, R2_ACCESS_KEY, R2_SECRET_KEY and R2_BUCKET")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Upload.Driver)
	}

	return cfg, nil
}
