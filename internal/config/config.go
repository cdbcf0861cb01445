package config

import (
	"fmt"
	"os"
	"time"

	"manifest-relay/internal/model"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Sink     SinkConfig     `yaml:"sink"`
	Manifest ManifestConfig `yaml:"manifest"`
	Workers  WorkersConfig  `yaml:"workers"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// DatabaseConfig points at the optional MySQL run history. Nothing is
// written there unless Enabled is set.
type DatabaseConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	Charset            string        `yaml:"charset"`
	ParseTime          bool          `yaml:"parse_time"`
	Loc                string        `yaml:"loc"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
}

type RedisConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"pool_size"`
	RunQueue  string        `yaml:"run_queue"`
	DLQSuffix string        `yaml:"dlq_suffix"`
	StatusTTL time.Duration `yaml:"status_ttl"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// SinkConfig describes the remote sheet endpoints rows are relayed to.
type SinkConfig struct {
	Today    model.Destinations `yaml:"today"`
	Tomorrow model.Destinations `yaml:"tomorrow"`
	Timeout  time.Duration      `yaml:"timeout"`
	// RowDelay is waited before every row after the first.
	RowDelay time.Duration `yaml:"row_delay"`
}

type ManifestConfig struct {
	PickupKeyword    string   `yaml:"pickup_keyword"`
	DropoffKeyword   string   `yaml:"dropoff_keyword"`
	ValidationColumn string   `yaml:"validation_column"`
	HeaderRow        int      `yaml:"header_row"`
	LocationCodes    []string `yaml:"location_codes"`
}

type WorkersConfig struct {
	Relay RelayWorkerConfig `yaml:"relay"`
}

type RelayWorkerConfig struct {
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	return LoadFile(configPath)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Default returns the values used for any key the YAML leaves out.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name: "manifest-relay",
			Env:  "development",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  20 << 20,
		},
		Database: DatabaseConfig{
			Host:               "localhost",
			Port:               3306,
			Name:               "manifest_relay",
			Charset:            "utf8mb4",
			ParseTime:          true,
			Loc:                "UTC",
			MaxConnections:     5,
			MaxIdleConnections: 2,
			ConnectionLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			PoolSize:  10,
			RunQueue:  "manifest:runs",
			DLQSuffix: ":dlq",
			StatusTTL: 72 * time.Hour,
		},
		Storage: StorageConfig{
			S3: S3Config{Prefix: "manifests"},
		},
		Sink: SinkConfig{
			Timeout: 30 * time.Second,
		},
		Manifest: ManifestConfig{
			PickupKeyword:    "Pick",
			DropoffKeyword:   "Drop",
			ValidationColumn: "Res.",
			HeaderRow:        3,
			LocationCodes:    []string{"MEL", "ADL", "SYD", "MSR", "BNE", "CNS"},
		},
		Workers: WorkersConfig{
			Relay: RelayWorkerConfig{PollTimeout: 5 * time.Second},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c *Config) Validate() error {
	if c.Manifest.PickupKeyword == "" || c.Manifest.DropoffKeyword == "" {
		return fmt.Errorf("manifest keywords must not be empty")
	}
	if c.Manifest.ValidationColumn == "" {
		return fmt.Errorf("manifest.validation_column must not be empty")
	}
	if c.Manifest.HeaderRow < 1 {
		return fmt.Errorf("manifest.header_row must be at least 1, got %d", c.Manifest.HeaderRow)
	}
	if c.Sink.RowDelay < 0 {
		return fmt.Errorf("sink.row_delay must not be negative")
	}
	if c.Database.Enabled && c.Database.Name == "" {
		return fmt.Errorf("database.name is required when the run history is enabled")
	}
	if c.Sink.Timeout <= 0 {
		return fmt.Errorf("sink.timeout must be positive")
	}
	return nil
}

// Destinations picks the today or tomorrow URL pair.
func (c *Config) Destinations(nextDay bool) model.Destinations {
	if nextDay {
		return c.Sink.Tomorrow
	}
	return c.Sink.Today
}

// DatabaseDSN renders the go-sql-driver/mysql DSN:
// user:password@tcp(host:port)/dbname?param=value
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.Charset, c.Database.ParseTime, c.Database.Loc)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
