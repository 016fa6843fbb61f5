// Package config provides configuration for the SQL Observer service and tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "SQLOBSERVER_"

// Source types.
const (
	SourceHTTP     = "http"
	SourceFile     = "file"
	SourceSQLite   = "sqlite"
	SourceSnapshot = "snapshot"
)

// Storage types.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the configuration of the service.
type Config struct {
	// DataDir is the base directory for local files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// gRPC configuration
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`

	// Source is where the dataset comes from
	Source SourceConfig `json:"source" yaml:"source"`

	// Cache configuration for the fetched dataset
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Query configuration
	Query QueryConfig `json:"query" yaml:"query"`

	// Storage configuration for snapshots
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether gRPC is enabled
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// SourceConfig selects and configures the dataset source.
type SourceConfig struct {
	// Type is the source type: http, file, sqlite, snapshot
	Type string `json:"type" yaml:"type"`

	// URL is the JSON endpoint (http type)
	URL string `json:"url" yaml:"url"`

	// Timeout bounds each fetch attempt (http type)
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of retries after a retryable failure (http type)
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// QueryParam forwards the query text as this URL parameter (http type)
	QueryParam string `json:"query_param" yaml:"query_param"`

	// Path is the JSON file or SQLite database (file and sqlite types)
	Path string `json:"path" yaml:"path"`

	// Table is the SQLite table holding the students (sqlite type)
	Table string `json:"table" yaml:"table"`

	// Object is the snapshot object path in storage (snapshot type)
	Object string `json:"object" yaml:"object"`
}

// CacheConfig controls dataset caching.
type CacheConfig struct {
	// TTL is how long a fetched dataset is reused; 0 disables caching
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// RefreshSchedule is a cron expression for background refreshes
	RefreshSchedule string `json:"refresh_schedule" yaml:"refresh_schedule"`

	// Watch invalidates the cache when a file or sqlite source changes
	Watch bool `json:"watch" yaml:"watch"`
}

// QueryConfig holds query console configuration.
type QueryConfig struct {
	// DefaultQuery is run for blank input; empty rejects blank input
	DefaultQuery string `json:"default_query" yaml:"default_query"`

	// StatsWindow is how long usage statistics are kept
	StatsWindow time.Duration `json:"stats_window" yaml:"stats_window"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing (MinIO, LocalStack)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/sqlobserver",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Source: SourceConfig{
			Type:       SourceHTTP,
			URL:        "https://my-json-server.typicode.com/averkoc/demo/example1",
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			QueryParam: "querytext",
			Table:      "students",
			Object:     "snapshots/students.json.sz",
		},
		Cache: CacheConfig{
			TTL: 30 * time.Second,
		},
		Query: QueryConfig{
			DefaultQuery: "select * from students;",
			StatsWindow:  time.Hour,
		},
		Storage: StorageConfig{
			Type: StorageLocal,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/sqlobserver"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = "us-east-1"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Source.Type {
	case SourceHTTP:
		if c.Source.URL == "" {
			return fmt.Errorf("source.url is required when source type is http")
		}
	case SourceFile:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required when source type is file")
		}
	case SourceSQLite:
		if c.Source.Path == "" || c.Source.Table == "" {
			return fmt.Errorf("source.path and source.table are required when source type is sqlite")
		}
	case SourceSnapshot:
		if c.Source.Object == "" {
			return fmt.Errorf("source.object is required when source type is snapshot")
		}
	default:
		return fmt.Errorf("invalid source type: %s (must be http, file, sqlite, or snapshot)", c.Source.Type)
	}

	if c.Source.MaxRetries < 0 {
		return fmt.Errorf("source.max_retries must not be negative, got %d", c.Source.MaxRetries)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Cache.RefreshSchedule != "" && c.Cache.TTL == 0 {
		return fmt.Errorf("cache.refresh_schedule requires a positive cache.ttl")
	}
	if c.Cache.Watch && c.Source.Type != SourceFile && c.Source.Type != SourceSQLite {
		return fmt.Errorf("cache.watch is only supported for file and sqlite sources")
	}

	if c.Storage.Type != StorageLocal && c.Storage.Type != StorageS3 {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == StorageS3 && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// Load reads path as a config file when set, otherwise starts from the
// defaults, then applies the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	LoadFromEnv(cfg)
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the SQLOBSERVER_ prefix.
func LoadFromEnv(cfg *Config) {
	setString(&cfg.DataDir, "DATA_DIR")

	// HTTP configuration
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")

	// gRPC configuration
	setString(&cfg.GRPC.Addr, "GRPC_ADDR")
	setBool(&cfg.GRPC.Enabled, "GRPC_ENABLED")

	// Source configuration
	setString(&cfg.Source.Type, "SOURCE_TYPE")
	setString(&cfg.Source.URL, "SOURCE_URL")
	setDuration(&cfg.Source.Timeout, "SOURCE_TIMEOUT")
	setInt(&cfg.Source.MaxRetries, "SOURCE_MAX_RETRIES")
	setString(&cfg.Source.QueryParam, "SOURCE_QUERY_PARAM")
	setString(&cfg.Source.Path, "SOURCE_PATH")
	setString(&cfg.Source.Table, "SOURCE_TABLE")
	setString(&cfg.Source.Object, "SOURCE_OBJECT")

	// Cache configuration
	setDuration(&cfg.Cache.TTL, "CACHE_TTL")
	setString(&cfg.Cache.RefreshSchedule, "CACHE_REFRESH_SCHEDULE")
	setBool(&cfg.Cache.Watch, "CACHE_WATCH")

	// Query configuration
	if v, ok := os.LookupEnv(EnvPrefix + "QUERY_DEFAULT_QUERY"); ok {
		cfg.Query.DefaultQuery = v
	}
	setDuration(&cfg.Query.StatsWindow, "QUERY_STATS_WINDOW")

	// Storage configuration
	setString(&cfg.Storage.Type, "STORAGE_TYPE")
	setString(&cfg.Storage.Path, "STORAGE_PATH")
	setString(&cfg.Storage.S3.Bucket, "S3_BUCKET")
	setString(&cfg.Storage.S3.Region, "S3_REGION")
	setString(&cfg.Storage.S3.Endpoint, "S3_ENDPOINT")
	setBool(&cfg.Storage.S3.UsePathStyle, "S3_USE_PATH_STYLE")
	setString(&cfg.Storage.S3.Prefix, "S3_PREFIX")
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Storage.Type == StorageLocal {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
