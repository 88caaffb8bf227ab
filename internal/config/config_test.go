package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "2024-01", cfg.Oracle.APIVersion)
	assert.Equal(t, "X-Shopify-Access-Token", cfg.Oracle.AuthHeader)
	assert.InDelta(t, 2.0, cfg.Oracle.RequestsPerSec, 0.001)
	assert.Equal(t, "*.php", cfg.Scan.Pattern)
	assert.Equal(t, "cost_report.csv", cfg.Report.Path)
	assert.Equal(t, "backups", cfg.Patch.BackupDir)
	assert.Equal(t, 1, cfg.Analyze.Concurrency)
	assert.Equal(t, "costsync.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
oracle:
  base_url: https://shop.example.com
  token: tok-123
  requests_per_sec: 0.5
scan:
  dir: ./generated
  pattern: "*_check.php"
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com", cfg.Oracle.BaseURL)
	assert.Equal(t, "tok-123", cfg.Oracle.Token)
	assert.InDelta(t, 0.5, cfg.Oracle.RequestsPerSec, 0.001)
	assert.Equal(t, "./generated", cfg.Scan.Dir)
	assert.Equal(t, "*_check.php", cfg.Scan.Pattern)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, "cost_report.csv", cfg.Report.Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	yaml := `
oracle:
  token: from-file
log:
  level: debug
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	t.Setenv("COSTSYNC_ORACLE_TOKEN", "from-env")
	t.Setenv("COSTSYNC_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "from-env", cfg.Oracle.Token)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("COSTSYNC_ANALYZE_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Analyze.Concurrency)
}

func validAnalyze() *Config {
	return &Config{
		Oracle: OracleConfig{
			BaseURL:        "https://shop.example.com",
			Token:          "tok",
			RequestsPerSec: 2,
		},
		Scan:    ScanConfig{Dir: "./generated", Pattern: "*.php"},
		Report:  ReportConfig{Path: "cost_report.csv"},
		Patch:   PatchConfig{BackupDir: "backups"},
		Analyze: AnalyzeConfig{Concurrency: 1},
		Store:   StoreConfig{Path: "costsync.db"},
	}
}

func TestValidateAnalyze(t *testing.T) {
	assert.NoError(t, validAnalyze().Validate("analyze"))

	cfg := validAnalyze()
	cfg.Oracle.BaseURL = ""
	cfg.Oracle.Token = ""
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle.base_url is required")
	assert.Contains(t, err.Error(), "oracle.token is required")

	cfg = validAnalyze()
	cfg.Scan.Dir = ""
	err = cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan.dir is required")

	cfg = validAnalyze()
	cfg.Oracle.RequestsPerSec = 0
	err = cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requests_per_sec must be > 0")

	cfg = validAnalyze()
	cfg.Analyze.Concurrency = 17
	err = cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency must be between 1 and 16")
}

func TestValidateApply(t *testing.T) {
	assert.NoError(t, validAnalyze().Validate("apply"))

	cfg := validAnalyze()
	cfg.Report.Path = ""
	cfg.Patch.BackupDir = ""
	err := cfg.Validate("apply")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report.path is required")
	assert.Contains(t, err.Error(), "patch.backup_dir is required")
}

func TestValidateRuns(t *testing.T) {
	assert.NoError(t, validAnalyze().Validate("runs"))

	cfg := validAnalyze()
	cfg.Store.Path = ""
	err := cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.path is required")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validAnalyze().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
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
