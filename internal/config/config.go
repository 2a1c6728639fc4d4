package config

import (
	"fmt"
	"time"

	"github.com/pathsim/bikesim/internal/physics"
	"github.com/spf13/viper"
)

// FileName is the config file looked up by Load.
const FileName = "bikesim.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StorageConfig selects and configures the recording backends
type StorageConfig struct {
	Backends  []string     `json:"backends" mapstructure:"backends"`
	BatchSize int          `json:"batchSize" mapstructure:"batchSize"`
	Memory    MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// WebSocketConfig holds the streaming backend settings
type WebSocketConfig struct {
	URL    string
	Secret string
}

// InfluxConfig holds InfluxDB settings
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

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "")
	viper.SetDefault("sampleInterval", 1.0)

	def := physics.DefaultModel()
	viper.SetDefault("physics.friction", def.Friction)
	viper.SetDefault("physics.drag", def.Drag)
	viper.SetDefault("physics.referenceMass", def.ReferenceMass)
	viper.SetDefault("physics.gravity", def.Gravity)

	viper.SetDefault("storage.backends", []string{})
	viper.SetDefault("storage.batchSize", 500)
	viper.SetDefault("storage.memory.outputDir", "./runs")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./runs/bikesim.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "bikesim")

	viper.SetDefault("websocket.url", "ws://localhost:5000/api/runs")
	viper.SetDefault("websocket.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "bikesim")
	viper.SetDefault("influx.bucket", "rider_samples")
	viper.SetDefault("influx.backupPath", "./runs/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "bikesim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
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
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// LoadFile reads an explicit JSON config file and sets default values.
func LoadFile(path string) error {
	SetDefaults()

	viper.SetConfigFile(path)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
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

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetStorageConfig returns the recording backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Backends:  viper.GetStringSlice("storage.backends"),
		BatchSize: viper.GetInt("storage.batchSize"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// GetDatabaseConfig returns the Postgres connection settings.
func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetWebSocketConfig returns the streaming backend settings.
func GetWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		URL:    viper.GetString("websocket.url"),
		Secret: viper.GetString("websocket.secret"),
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

// GetGraylogConfig returns the GELF settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
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
	}
}

// GetPhysicsModel returns the resistance model coefficients.
func GetPhysicsModel() physics.Model {
	return physics.Model{
		Friction:      viper.GetFloat64("physics.friction"),
		Drag:          viper.GetFloat64("physics.drag"),
		ReferenceMass: viper.GetFloat64("physics.referenceMass"),
		Gravity:       viper.GetFloat64("physics.gravity"),
	}
}
