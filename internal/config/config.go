// Package config loads the gateway configuration from the environment. A
// .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DBConfig holds PostgreSQL connection settings.
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

// DSN returns the connection string, preferring DATABASE_URL.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// UploadConfig holds attachment storage settings. R2 is used when
// R2AccountID is set, the local directory otherwise.
type UploadConfig struct {
	Dir       string
	BaseURL   string
	MaxBytes  int64
	R2Account string
	R2Key     string
	R2Secret  string
	R2Bucket  string
	R2Public  string
}

// UseR2 reports whether attachments go to R2.
func (c UploadConfig) UseR2() bool { return c.R2Account != "" }

// Config is the full gateway configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SecureCookies   bool

	SessionBackend string
	SweepInterval  time.Duration
	DB             DBConfig
	RedisAddr      string
	RedisPassword  string

	RemoteURL     string
	RemoteTimeout time.Duration

	CORSOrigins []string
	LoginRate   float64
	LoginBurst  int

	Upload UploadConfig
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", BackendMemory)),
		DB: DBConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "complaintdesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		RemoteURL: os.Getenv("REMOTE_API_URL"),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		Upload: UploadConfig{
			Dir:       getEnv("UPLOAD_DIR", "./uploads"),
			BaseURL:   getEnv("UPLOAD_BASE_URL", "/api/files"),
			R2Account: os.Getenv("R2_ACCOUNT_ID"),
			R2Key:     os.Getenv("R2_ACCESS_KEY_ID"),
			R2Secret:  os.Getenv("R2_SECRET_ACCESS_KEY"),
			R2Bucket:  os.Getenv("R2_BUCKET"),
			R2Public:  os.Getenv("R2_PUBLIC_URL"),
		},
	}

	var errs []error
	var err error

	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.SweepInterval, err = getDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.RemoteTimeout, err = getDuration("REMOTE_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.LoginRate, err = getFloat("LOGIN_RATE_PER_SEC", 0.2); err != nil {
		errs = append(errs, err)
	}
	if cfg.LoginBurst, err = getInt("LOGIN_BURST", 5); err != nil {
		errs = append(errs, err)
	}
	maxConns, err := getInt("DB_MAX_CONNS", 10)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.DB.MaxConns = int32(maxConns)

	maxMB, err := getInt("UPLOAD_MAX_MB", 10)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Upload.MaxBytes = int64(maxMB) << 20

	cfg.SecureCookies = cfg.IsProduction()

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters in production"))
	}
	if c.RemoteURL == "" {
		errs = append(errs, errors.New("REMOTE_API_URL is required"))
	}
	switch c.SessionBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND %q must be memory, postgres or redis", c.SessionBackend))
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must not be shorter than ACCESS_TOKEN_TTL"))
	}
	if c.Upload.UseR2() && (c.Upload.R2Bucket == "" || c.Upload.R2Key == "" || c.Upload.R2Secret == "") {
		errs = append(errs, errors.New("R2_BUCKET, R2_ACCESS_KEY_ID and R2_SECRET_ACCESS_KEY are required with R2_ACCOUNT_ID"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
