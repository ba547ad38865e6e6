package s3

import "time"

// Config configures an S3-backed ObjectStore.
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	MaxRetries     int           `yaml:"max_retries"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PoolSize       int           `yaml:"pool_size"`

	UseAccelerate bool `yaml:"use_accelerate"`
	UseDualStack  bool `yaml:"use_dual_stack"`

	// MultipartThreshold is not read by Backend: Save always goes through
	// the SDK's upload manager, which sends a single PutObject when the
	// content fits in one MultipartChunkSize part and a multipart upload
	// otherwise.
	MultipartThreshold int64 `yaml:"multipart_threshold"`
	MultipartChunkSize int64 `yaml:"multipart_chunk_size"`
	MultipartConcurrency int `yaml:"multipart_concurrency"`
}

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:           3,
		ConnectTimeout:       10 * time.Second,
		RequestTimeout:       30 * time.Second,
		PoolSize:             8,
		MultipartThreshold:   32 * 1024 * 1024,
		MultipartChunkSize:   16 * 1024 * 1024,
		MultipartConcurrency: 4,
	}
}
