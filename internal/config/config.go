package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "tacticboard.cfg.json"

// MemoryConfig holds file-backed in-memory storage settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	Format         string `json:"format" mapstructure:"format"`
}

// SQLiteConfig holds SQLite storage settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// StorageConfig selects and configures the tactic storage backend
type StorageConfig struct {
	Type     string
	Memory   MemoryConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool

	// MetricsFile enables the stdout metric exporter, written to this path.
	MetricsFile    string
	MetricInterval time.Duration
}

// PlaybackConfig holds scheduler settings
type PlaybackConfig struct {
	TickInterval time.Duration
	DefaultSpeed float64
}

// AnnotationConfig holds stroke editing settings
type AnnotationConfig struct {
	MaxHistory   int
	EraserRadius float64
}

// InfluxConfig holds playback telemetry sink settings
type InfluxConfig struct {
	Enabled    bool
	Host       string
	Port       string
	Protocol   string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// GraylogConfig holds the GELF log sink settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; callers
// running without a config file can call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("playback.tickInterval", "16ms")
	viper.SetDefault("playback.defaultSpeed", 1.0)
	viper.SetDefault("timeline.defaultFrameDurationMs", 1000)
	viper.SetDefault("annotation.maxHistory", 50)
	viper.SetDefault("annotation.eraserRadius", 0.02)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./tactics")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.memory.format", "json")
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./tactics.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "tacticboard")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "tacticboard")
	viper.SetDefault("influx.bucket", "playback")
	viper.SetDefault("influx.backupPath", "./playback.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "tacticboard")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metricsFile", "")
	viper.SetDefault("otel.metricInterval", "1m")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
			Format:         viper.GetString("storage.memory.format"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),

		MetricsFile:    viper.GetString("otel.metricsFile"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
	}
}

// GetPlaybackConfig returns the scheduler settings.
func GetPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		TickInterval: viper.GetDuration("playback.tickInterval"),
		DefaultSpeed: viper.GetFloat64("playback.defaultSpeed"),
	}
}

// GetAnnotationConfig returns the stroke editing settings.
func GetAnnotationConfig() AnnotationConfig {
	return AnnotationConfig{
		MaxHistory:   viper.GetInt("annotation.maxHistory"),
		EraserRadius: viper.GetFloat64("annotation.eraserRadius"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
