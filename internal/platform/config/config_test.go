package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DatabaseURL:     "postgres://localhost/privacyhub",
		Environment:     "development",
		LogFormat:       "json",
		MaxBodyBytes:    1048576,
		DefaultPageSize: 50,
		MaxPageSize:     200,
		DBMaxConns:      10,
		DBMinConns:      2,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 50, cfg.DefaultPageSize)
	require.Equal(t, 200, cfg.MaxPageSize)
	require.Equal(t, 15*time.Minute, cfg.ImpactScanInterval)
	require.Equal(t, 10*time.Minute, cfg.ImpactScanOverlap)
	require.True(t, cfg.RunMigrations)
	require.Equal(t, 600, cfg.RateLimitRequests)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = " "
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = Production
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = "s3cret"
	require.NoError(t, cfg.Validate())
}

func TestValidatePageSizes(t *testing.T) {
	cfg := validConfig()
	cfg.DefaultPageSize = 500
	require.Error(t, cfg.Validate())
}

func TestValidateRateLimitWindow(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimitRequests = 10
	require.Error(t, cfg.Validate())

	cfg.RateLimitWindow = time.Minute
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PRIVACYHUB_TEST_ENV=loaded\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("PRIVACYHUB_TEST_ENV") })

	n, err := LoadEnv([]string{path, filepath.Join(dir, ".env.local")})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "loaded", os.Getenv("PRIVACYHUB_TEST_ENV"))
}

func TestValidatePageSizeCeiling(t *testing.T) {
	cfg := validConfig()
	cfg.MaxPageSize = 500
	require.ErrorContains(t, cfg.Validate(), "MAX_PAGE_SIZE")

	cfg.MaxPageSize = 200
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsNegativeScanOverlap(t *testing.T) {
	cfg := validConfig()
	cfg.ImpactScanOverlap = -time.Minute
	require.ErrorContains(t, cfg.Validate(), "IMPACT_SCAN_OVERLAP")
}
