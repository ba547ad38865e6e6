package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration is the complete application configuration.
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Retry      RetryConfig      `yaml:"retry"`
	Content    ContentConfig    `yaml:"content"`
	Account    AccountConfig    `yaml:"account"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Features   FeatureConfig    `yaml:"features"`
}

// GlobalConfig holds process-wide settings.
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
}

// StorageConfig selects and configures the ObjectStore backend.
type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend string `yaml:"backend"`
	Local   LocalStorageConfig `yaml:"local"`
	S3      S3StorageConfig    `yaml:"s3"`
}

// LocalStorageConfig configures the filesystem-backed ObjectStore.
type LocalStorageConfig struct {
	BaseDir string `yaml:"base_dir"`
}

// S3StorageConfig configures the S3-backed ObjectStore.
type S3StorageConfig struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	PoolSize       int    `yaml:"pool_size"`
}

// CacheConfig configures the shared types.Cache store.
type CacheConfig struct {
	MaxSize         string        `yaml:"max_size"`
	MaxEntries      int           `yaml:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	ThumbnailTTL    time.Duration `yaml:"thumbnail_ttl"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
}

// RetryConfig tunes the retryable atomic block.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	CreateFileRetries int           `yaml:"create_file_retries"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
}

// ContentConfig tunes the thumbnail/fingerprint pipeline.
type ContentConfig struct {
	ThumbnailSizes        []int  `yaml:"thumbnail_sizes"`
	MaxUploadSize         string `yaml:"max_upload_size"`
	PipelineConcurrency   int    `yaml:"pipeline_concurrency"`
	DHashMaxDistance      int    `yaml:"dhash_max_distance"`
	MaxThumbnailSourceSize string `yaml:"max_thumbnail_source_size"`
	ThumbnailLockTTL      time.Duration `yaml:"thumbnail_lock_ttl"`
}

// AccountConfig configures default account behavior.
type AccountConfig struct {
	DefaultQuota string `yaml:"default_quota"`
}

// MonitoringConfig configures metrics and structured logging.
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// MetricsConfig configures Prometheus metrics export.
type MetricsConfig struct {
	Enabled    bool              `yaml:"enabled"`
	Namespace  string            `yaml:"namespace"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	Format string `yaml:"format"` // "json" or "text"
}

// FeatureConfig holds feature flags.
type FeatureConfig struct {
	ContentPipeline bool `yaml:"content_pipeline"`
	DuplicateDetection bool `yaml:"duplicate_detection"`
	SharedLinks     bool `yaml:"shared_links"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			MetricsPort: 9090,
		},
		Storage: StorageConfig{
			Backend: "local",
			Local:   LocalStorageConfig{BaseDir: "/var/lib/shelfcloud/objects"},
			S3: S3StorageConfig{
				PoolSize: 8,
			},
		},
		Cache: CacheConfig{
			MaxSize:         "512MB",
			MaxEntries:      100_000,
			CleanupInterval: time.Minute,
			ThumbnailTTL:    24 * time.Hour,
			LockTTL:         30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			CreateFileRetries: 10,
			BaseDelay:         100 * time.Millisecond,
			MaxDelay:          5 * time.Second,
		},
		Content: ContentConfig{
			ThumbnailSizes:         []int{32, 128, 512, 1024},
			MaxUploadSize:          "5GB",
			PipelineConcurrency:    8,
			DHashMaxDistance:       5,
			MaxThumbnailSourceSize: "50MB",
			ThumbnailLockTTL:       30 * time.Second,
		},
		Account: AccountConfig{
			DefaultQuota: "15GB",
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "shelfcloud",
				CustomLabels: map[string]string{
					"service": "core",
				},
			},
			Logging: LoggingConfig{Format: "json"},
		},
		Features: FeatureConfig{
			ContentPipeline:    true,
			DuplicateDetection: true,
			SharedLinks:        true,
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv overlays SHELFCLOUD_-prefixed environment variables.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("SHELFCLOUD_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("SHELFCLOUD_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("SHELFCLOUD_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}
	if val := os.Getenv("SHELFCLOUD_STORAGE_BACKEND"); val != "" {
		c.Storage.Backend = val
	}
	if val := os.Getenv("SHELFCLOUD_S3_BUCKET"); val != "" {
		c.Storage.S3.Bucket = val
	}
	if val := os.Getenv("SHELFCLOUD_S3_REGION"); val != "" {
		c.Storage.S3.Region = val
	}
	if val := os.Getenv("SHELFCLOUD_CONTENT_PIPELINE"); val != "" {
		c.Features.ContentPipeline = strings.ToLower(val) == "true"
	}
	return nil
}

// SaveToFile writes the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ParseByteSize parses a human-readable size like "50MB" or "5GB" into
// bytes. Suffixes are case-insensitive; a bare number is taken as bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	units := []struct {
		suffix string
		mult   int64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			numPart := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			n, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", s, err)
			}
			return int64(n * float64(u.mult)), nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n, nil
}

// Validate checks the configuration for internally inconsistent values.
func (c *Configuration) Validate() error {
	if c.Storage.Backend != "local" && c.Storage.Backend != "s3" {
		return fmt.Errorf("invalid storage.backend: %s (must be local or s3)", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when storage.backend is s3")
	}
	if c.Content.PipelineConcurrency <= 0 {
		return fmt.Errorf("content.pipeline_concurrency must be greater than 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be greater than 0")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	valid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}
