package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"privacyhub/internal/domain/dal"
)

const Production = "production"

type Config struct {
	Addr               string        `env:"APP_ADDR" envDefault:":8080"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	JWTSecret          string        `env:"JWT_SECRET"`
	Environment        string        `env:"APP_ENV" envDefault:"development"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string        `env:"LOG_FORMAT" envDefault:"json"`
	RunMigrations      bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxBodyBytes       int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	DefaultPageSize    int           `env:"DEFAULT_PAGE_SIZE" envDefault:"50"`
	MaxPageSize        int           `env:"MAX_PAGE_SIZE" envDefault:"200"`
	ImpactScanInterval time.Duration `env:"IMPACT_SCAN_INTERVAL" envDefault:"15m"`
	ImpactScanOverlap  time.Duration `env:"IMPACT_SCAN_OVERLAP" envDefault:"10m"`
	MetricsEnabled     bool          `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPath        string        `env:"METRICS_PATH" envDefault:"/metrics"`
	RateLimitRequests  int           `env:"RATE_LIMIT_REQUESTS" envDefault:"600"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// LoadEnv loads the given dotenv files that exist and reports how many were read.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func Load() (Config, error) {
	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == Production && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if c.MaxPageSize > dal.MaxLimit {
		return fmt.Errorf("MAX_PAGE_SIZE must not exceed %d", dal.MaxLimit)
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must not exceed MAX_PAGE_SIZE")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if c.ImpactScanOverlap < 0 {
		return fmt.Errorf("IMPACT_SCAN_OVERLAP must not be negative")
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when RATE_LIMIT_REQUESTS is set")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}
