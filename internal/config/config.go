// Package config holds the application configuration model and its loader.
package config

import "time"

// EmbeddedConfig holds the content of the configuration file embedded in the binary.
type EmbeddedConfig []byte

// Config is the root of the application configuration.
type Config struct {
	App AppConfig `yaml:"app"`
}

// AppConfig groups every configuration section under the `app:` key.
type AppConfig struct {
	System   SystemConfig           `yaml:"system"`
	Schedule ScheduleConfig         `yaml:"schedule"`
	Feeds    FeedsConfig            `yaml:"feeds"`
	Store    StoreConfig            `yaml:"store"`
	Database map[string]interface{} `yaml:"database"` // Connection name -> raw DatabaseConfig, decoded on use.
	Metrics  MetricsConfig          `yaml:"metrics"`
	Export   ExportConfig           `yaml:"export"`
}

// SystemConfig holds process-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"` // IANA zone used when printing timestamps.
	Logging  LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // DEBUG, INFO, WARN, ERROR or FATAL.
}

// ScheduleConfig controls how ingestion cycles are triggered.
type ScheduleConfig struct {
	IntervalSeconds    int  `yaml:"interval_seconds"`     // Period between cycles.
	RunOnce            bool `yaml:"run_once"`             // Run a single cycle and exit.
	CallTimeoutSeconds int  `yaml:"call_timeout_seconds"` // Timeout applied to each fetch and store call.
}

// Interval returns the cycle period.
func (s ScheduleConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// CallTimeout returns the per-call timeout.
func (s ScheduleConfig) CallTimeout() time.Duration {
	return time.Duration(s.CallTimeoutSeconds) * time.Second
}

// FeedsConfig holds the upstream endpoint of each feed.
type FeedsConfig struct {
	Kp      FeedConfig `yaml:"kp"`
	Weather FeedConfig `yaml:"weather"`
	Device  FeedConfig `yaml:"device"`
}

// FeedConfig configures one Record Source.
type FeedConfig struct {
	Endpoint string `yaml:"endpoint"`
	Enabled  bool   `yaml:"enabled"`
}

// StoreConfig selects the Keyed Store connection.
type StoreConfig struct {
	Ref            string `yaml:"ref"`              // Key into AppConfig.Database.
	BatchSize      int    `yaml:"batch_size"`       // Rows per INSERT statement.
	MigrateOnStart bool   `yaml:"migrate_on_start"` // Apply the embedded SQL migrations before the first cycle.
}

// MetricsConfig configures observability.
type MetricsConfig struct {
	ListenAddress string     `yaml:"listen_address"` // Address of the /metrics endpoint; empty disables it.
	Tracing       bool       `yaml:"tracing"`        // Emit OpenTelemetry spans for cycles and feeds.
	OTLP          OTLPConfig `yaml:"otlp"`
}

// OTLPConfig configures the OpenTelemetry exporters. An empty Endpoint keeps
// spans and OTel metrics in-process.
type OTLPConfig struct {
	Endpoint              string `yaml:"endpoint"` // host:port of the collector.
	Protocol              string `yaml:"protocol"` // grpc or http.
	Insecure              bool   `yaml:"insecure"`
	MetricIntervalSeconds int    `yaml:"metric_interval_seconds"`
}

// ExportConfig configures Parquet snapshots of the partitions.
type ExportConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Compression string        `yaml:"compression"` // SNAPPY, GZIP or NONE.
	Storage     StorageConfig `yaml:"storage"`
}

// StorageConfig selects where exported files are written.
type StorageConfig struct {
	Type            string `yaml:"type"`             // local or gcs.
	BaseDir         string `yaml:"base_dir"`         // Root directory for local storage.
	BucketName      string `yaml:"bucket_name"`      // Bucket for gcs; optional sub-directory for local.
	CredentialsFile string `yaml:"credentials_file"` // Service account key for gcs; empty uses default credentials.
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string     `yaml:"type" mapstructure:"type"` // mysql, postgres or sqlite.
	Host     string     `yaml:"host" mapstructure:"host"`
	Port     int        `yaml:"port" mapstructure:"port"`
	Database string     `yaml:"database" mapstructure:"database"` // Database name, or file path for sqlite.
	User     string     `yaml:"user" mapstructure:"user"`
	Password string     `yaml:"password" mapstructure:"password"`
	Sslmode  string     `yaml:"sslmode" mapstructure:"sslmode"`
	Pool     PoolConfig `yaml:"pool" mapstructure:"pool"`
}

const (
	DefaultKpEndpoint      = "https://services.swpc.noaa.gov/json/planetary_k_index_1m.json"
	DefaultWeatherEndpoint = "https://api.open-meteo.com/v1/forecast"
	DefaultDeviceEndpoint  = "https://ipinfo.io/json"
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		App: AppConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Schedule: ScheduleConfig{
				IntervalSeconds:    300,
				CallTimeoutSeconds: 30,
			},
			Feeds: FeedsConfig{
				Kp:      FeedConfig{Endpoint: DefaultKpEndpoint, Enabled: true},
				Weather: FeedConfig{Endpoint: DefaultWeatherEndpoint, Enabled: true},
				Device:  FeedConfig{Endpoint: DefaultDeviceEndpoint, Enabled: true},
			},
			Store: StoreConfig{Ref: "default", BatchSize: 500},
			Metrics: MetricsConfig{
				OTLP: OTLPConfig{Protocol: "grpc", MetricIntervalSeconds: 60},
			},
			Database: map[string]interface{}{
				"default": map[string]interface{}{
					"type":     "sqlite",
					"database": "spaceweather.db",
				},
			},
			Export: ExportConfig{
				Compression: "SNAPPY",
				Storage:     StorageConfig{Type: "local", BaseDir: "export"},
			},
		},
	}
}
