// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Oracle  OracleConfig  `yaml:"oracle" mapstructure:"oracle"`
	Scan    ScanConfig    `yaml:"scan" mapstructure:"scan"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Patch   PatchConfig   `yaml:"patch" mapstructure:"patch"`
	Analyze AnalyzeConfig `yaml:"analyze" mapstructure:"analyze"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// OracleConfig holds remote cost service settings.
type OracleConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	Token          string  `yaml:"token" mapstructure:"token"`
	APIVersion     string  `yaml:"api_version" mapstructure:"api_version"`
	AuthHeader     string  `yaml:"auth_header" mapstructure:"auth_header"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// ScanConfig configures artifact enumeration.
type ScanConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
}

// ReportConfig configures the report file location.
type ReportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PatchConfig configures the patch phase.
type PatchConfig struct {
	BackupDir string `yaml:"backup_dir" mapstructure:"backup_dir"`
}

// AnalyzeConfig configures the analysis phase. TokensPath optionally points
// at a YAML file of placeholder-token overrides merged over the built-in
// sample table.
type AnalyzeConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	TokensPath  string `yaml:"tokens_path" mapstructure:"tokens_path"`
}

// StoreConfig configures the run-history database. An empty path disables
// run history.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COSTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("oracle.api_version", "2024-01")
	v.SetDefault("oracle.auth_header", "X-Shopify-Access-Token")
	v.SetDefault("oracle.requests_per_sec", 2.0)
	v.SetDefault("scan.pattern", "*.php")
	v.SetDefault("report.path", "cost_report.csv")
	v.SetDefault("patch.backup_dir", "backups")
	v.SetDefault("analyze.concurrency", 1)
	v.SetDefault("store.path", "costsync.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given mode actually needs; modes are
// command names ("analyze", "apply", "runs").
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "analyze":
		if c.Oracle.BaseURL == "" {
			missing = append(missing, "oracle.base_url is required")
		}
		if c.Oracle.Token == "" {
			missing = append(missing, "oracle.token is required")
		}
		if c.Scan.Dir == "" {
			missing = append(missing, "scan.dir is required")
		}
		if c.Oracle.RequestsPerSec <= 0 {
			missing = append(missing, "oracle.requests_per_sec must be > 0")
		}
		if c.Analyze.Concurrency < 1 || c.Analyze.Concurrency > 16 {
			missing = append(missing, "analyze.concurrency must be between 1 and 16")
		}
	case "apply":
		if c.Report.Path == "" {
			missing = append(missing, "report.path is required")
		}
		if c.Patch.BackupDir == "" {
			missing = append(missing, "patch.backup_dir is required")
		}
	case "runs":
		if c.Store.Path == "" {
			missing = append(missing, "store.path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
