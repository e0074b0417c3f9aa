package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sadit-diagnostic-engine/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. SADIT_LOGGING_LEVEL
const EnvPrefix = "SADIT"

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Manager loads configuration from defaults, an optional sadit.yaml and
// SADIT_* environment variables, in increasing order of precedence
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager creates a new configuration manager. configFile may be empty, in
// which case sadit.yaml is searched in the working directory, ./config and
// $HOME/.sadit.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("sadit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sadit"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment only
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Storage.SQLitePath == "" {
		config.Storage.SQLitePath = filepath.Join(config.Storage.DataDir, "reviews.db")
	}
	m.v = v
	m.config = config

	if config.Logging.Format == "" {
		config.Logging.Format = "text"
		if m.IsProduction() {
			config.Logging.Format = "json"
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)

	// Compliance defaults (ISO 14971 image gate)
	v.SetDefault("compliance.min_rows", 1024)
	v.SetDefault("compliance.min_cols", 1024)
	v.SetDefault("compliance.min_snr_db", 15.0)
	v.SetDefault("compliance.noise_floor", 1e-5)
	v.SetDefault("compliance.certainty_lower", 0.01)
	v.SetDefault("compliance.certainty_upper", 0.99)

	// Storage defaults
	dataDir := ".sadit"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".sadit")
	}
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", "")
	v.SetDefault("storage.postgres_url", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "") // json in production, text otherwise
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("knowledge_base.path", "data/knowledge_base")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetComplianceConfig returns the compliance thresholds
func (m *Manager) GetComplianceConfig() domain.ComplianceConfig {
	return m.config.Compliance
}

// GetStorageConfig returns review store configuration
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}

// GetLoggingConfig returns logging configuration
func (m *Manager) GetLoggingConfig() domain.LoggingConfig {
	return m.config.Logging
}

// ConfigFileUsed returns the config file that was read, if any
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	switch strings.ToLower(config.Environment) {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	// Validate compliance thresholds
	c := config.Compliance
	if c.MinRows <= 0 || c.MinCols <= 0 {
		return fmt.Errorf("invalid minimum resolution: (%d, %d)", c.MinRows, c.MinCols)
	}
	if c.NoiseFloor <= 0 {
		return fmt.Errorf("noise floor must be positive: %g", c.NoiseFloor)
	}
	if c.CertaintyLower < 0 || c.CertaintyUpper > 1 || c.CertaintyLower >= c.CertaintyUpper {
		return fmt.Errorf("invalid certainty band: (%g, %g)", c.CertaintyLower, c.CertaintyUpper)
	}

	// Validate storage configuration
	switch config.Storage.Driver {
	case DriverSQLite:
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DriverPostgres:
		if config.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s", config.Storage.Driver)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// EnsureDataDir creates the data directory and the export directory beneath it
func (m *Manager) EnsureDataDir() error {
	if err := os.MkdirAll(m.config.Storage.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(m.ExportDir(), 0755)
}

// ExportDir returns the directory for JSON review exports
func (m *Manager) ExportDir() string {
	return filepath.Join(m.config.Storage.DataDir, "exports")
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == EnvProduction
}
