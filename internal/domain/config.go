package domain

// Config represents the main application configuration
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Compliance    ComplianceConfig    `mapstructure:"compliance"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`
}

// ComplianceConfig holds the ISO 14971 image gate thresholds and the band
// outside which a probability is flagged as over-certain
type ComplianceConfig struct {
	MinRows        int     `mapstructure:"min_rows"`
	MinCols        int     `mapstructure:"min_cols"`
	MinSNRdB       float64 `mapstructure:"min_snr_db"`
	NoiseFloor     float64 `mapstructure:"noise_floor"`
	CertaintyLower float64 `mapstructure:"certainty_lower"`
	CertaintyUpper float64 `mapstructure:"certainty_upper"`
}

// StorageConfig selects the clinician review store
type StorageConfig struct {
	Driver      string `mapstructure:"driver"` // sqlite or postgres
	DataDir     string `mapstructure:"data_dir"`
	SQLitePath  string `mapstructure:"sqlite_path"` // defaults to <data_dir>/reviews.db
	PostgresURL string `mapstructure:"postgres_url"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
	Output string `mapstructure:"output"` // stdout or stderr
}

// KnowledgeBaseConfig points at the multimodal knowledge base directory
type KnowledgeBaseConfig struct {
	Path string `mapstructure:"path"`
}
