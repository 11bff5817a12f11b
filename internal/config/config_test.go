package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 256, cfg.Store.CacheSize)
	assert.Equal(t, 5*time.Minute, cfg.Store.CacheTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.6, cfg.Import.FuzzyThreshold, 0.001)
	assert.Equal(t, 720*time.Hour, cfg.Import.InactiveAfter)
	assert.Len(t, cfg.Import.States, 51)
	assert.Equal(t, "https://runsignup.com/rest", cfg.RunSignup.BaseURL)
	assert.Equal(t, 50, cfg.RunSignup.PageSize)
	assert.Equal(t, 20, cfg.RunSignup.MaxPages)
	assert.Equal(t, 500*time.Millisecond, cfg.RunSignup.PageDelay)
	assert.Equal(t, 2*time.Second, cfg.RunSignup.StateDelay)
	assert.Equal(t, 2, cfg.RunSignup.Concurrency)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
  database_url: races.db
log:
  level: debug
  format: console
server:
  port: 9090
  schedule: "0 3 * * *"
import:
  fuzzy_threshold: 0.7
  states: [MA, NH, VT]
runsignup:
  page_size: 25
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "races.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0 3 * * *", cfg.Server.Schedule)
	assert.InDelta(t, 0.7, cfg.Import.FuzzyThreshold, 0.001)
	assert.Equal(t, []string{"MA", "NH", "VT"}, cfg.Import.States)
	assert.Equal(t, 25, cfg.RunSignup.PageSize)
	// Defaults still apply for unset values
	assert.Equal(t, 20, cfg.RunSignup.MaxPages)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RACEDIR_STORE_DRIVER", "postgres")
	t.Setenv("RACEDIR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("RACEDIR_SERVER_PORT", "3000")
	t.Setenv("RACEDIR_RUNSIGNUP_API_KEY", "key-from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "key-from-env", cfg.RunSignup.APIKey)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validBase returns a Config that passes the shared checks.
func validBase() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "races.db"},
		Import: ImportConfig{FuzzyThreshold: 0.6, InactiveAfter: 720 * time.Hour, States: []string{"MA"}},
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidateImport(t *testing.T) {
	cfg := validBase()
	assert.NoError(t, cfg.Validate("import"))

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("import")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateIngest_RequiresCredentials(t *testing.T) {
	cfg := validBase()
	err := cfg.Validate("ingest")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "runsignup.api_key is required")
	assert.Contains(t, err.Error(), "runsignup.api_secret is required")

	cfg.RunSignup.APIKey = "key"
	cfg.RunSignup.APISecret = "secret"
	assert.NoError(t, cfg.Validate("ingest"))
}

func TestValidateServe(t *testing.T) {
	cfg := validBase()
	cfg.RunSignup.APIKey = "key"
	cfg.RunSignup.APISecret = "secret"
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_RequiresCredentials(t *testing.T) {
	// Serve needs the registry client for on-demand refreshes even
	// without a schedule.
	cfg := validBase()
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "runsignup.api_key is required")
	assert.Contains(t, err.Error(), "runsignup.api_secret is required")
}

func TestValidateBounds(t *testing.T) {
	cfg := validBase()
	cfg.Import.FuzzyThreshold = 1.5
	err := cfg.Validate("import")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fuzzy_threshold must be between 0 and 1")

	cfg = validBase()
	cfg.Import.InactiveAfter = 0
	err = cfg.Validate("import")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "inactive_after must be positive")

	cfg = validBase()
	cfg.Import.States = nil
	cfg.RunSignup.APIKey = "key"
	cfg.RunSignup.APISecret = "secret"
	err = cfg.Validate("ingest")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "states must not be empty")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validBase().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
