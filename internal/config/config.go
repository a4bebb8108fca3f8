package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup from
// the environment (plus an optional .env file for local development).
type Config struct {
	// HTTP
	Host string
	Port int

	// Paths
	DataDir   string
	DBPath    string
	IndexPath string

	// Blob storage: "local" or "s3"
	BlobBackend string
	BlobDir     string // local backend
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	// Content extraction (Tika-compatible server); empty disables extraction
	TikaURL        string
	ExtractTimeout time.Duration

	// Search cache
	CacheTTL time.Duration

	// Task dispatcher
	Workers   int
	QueueSize int
}

// Load reads configuration from the environment. A missing .env file is
// not an error (production sets real env vars).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("NOTEDROP_DATA_DIR", "./data")

	cfg := &Config{
		Host:           getEnv("NOTEDROP_HOST", "localhost"),
		Port:           getEnvInt("NOTEDROP_PORT", 8080),
		DataDir:        dataDir,
		DBPath:         getEnv("NOTEDROP_DB_PATH", dataDir+"/notedrop.db"),
		IndexPath:      getEnv("NOTEDROP_INDEX_PATH", dataDir+"/bleve"),
		BlobBackend:    getEnv("NOTEDROP_BLOB_BACKEND", "local"),
		BlobDir:        getEnv("NOTEDROP_BLOB_DIR", dataDir+"/files"),
		S3Endpoint:     getEnv("NOTEDROP_S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("NOTEDROP_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("NOTEDROP_S3_SECRET_KEY", ""),
		S3Bucket:       getEnv("NOTEDROP_S3_BUCKET", "notedrop"),
		S3UseSSL:       getEnvBool("NOTEDROP_S3_USE_SSL", true),
		TikaURL:        getEnv("NOTEDROP_TIKA_URL", ""),
		ExtractTimeout: getEnvDuration("NOTEDROP_EXTRACT_TIMEOUT", 45*time.Second),
		CacheTTL:       getEnvDuration("NOTEDROP_CACHE_TTL", 5*time.Minute),
		Workers:        getEnvInt("NOTEDROP_WORKERS", 4),
		QueueSize:      getEnvInt("NOTEDROP_QUEUE_SIZE", 256),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.BlobBackend {
	case "local":
	case "s3":
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("s3 blob backend requires NOTEDROP_S3_ENDPOINT, NOTEDROP_S3_ACCESS_KEY and NOTEDROP_S3_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unsupported blob backend: %s (supported: local, s3)", c.BlobBackend)
	}
	if c.Workers < 1 {
		return fmt.Errorf("NOTEDROP_WORKERS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
