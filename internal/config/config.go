package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend identifiers recognized at startup. The choice is made exactly once
// in main; request handling never branches on it.
const (
	StorageLocal = "local"
	StorageS3    = "s3"

	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongo"
)

// Config aggregates runtime configuration for the dumpit API.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects and parameterizes the blob storage backend.
type StorageConfig struct {
	Backend string
	Local   LocalStorageConfig
	S3      S3Config
}

// LocalStorageConfig holds settings for the filesystem backend.
type LocalStorageConfig struct {
	Dir        string
	PublicBase string
}

// S3Config carries connection details for any S3-compatible endpoint
// (AWS S3, Cloudflare R2, MinIO).
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	ForcePathStyle  bool
	PresignTTL      time.Duration
}

// DatabaseConfig selects and parameterizes the metadata backend.
type DatabaseConfig struct {
	Backend  string
	Postgres PostgresConfig
	Mongo    MongoConfig
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Pool sizing. Zero leaves the pgxpool default in place.
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MongoConfig contains MongoDB connection details.
type MongoConfig struct {
	URI      string
	Database string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("DUMPIT_API_HOST", "0.0.0.0"),
			Port:         getInt("DUMPIT_API_PORT", 5000),
			ReadTimeout:  getDuration("DUMPIT_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("DUMPIT_API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("DUMPIT_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getString("DUMPIT_STORAGE_BACKEND", StorageLocal)),
			Local: LocalStorageConfig{
				Dir:        getString("DUMPIT_UPLOADS_DIR", "./uploads"),
				PublicBase: getString("DUMPIT_PUBLIC_BASE", "/uploads"),
			},
			S3: S3Config{
				Endpoint:        getString("S3_ENDPOINT", ""),
				AccessKeyID:     getString("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getString("S3_SECRET_ACCESS_KEY", ""),
				Bucket:          getString("S3_BUCKET", ""),
				Region:          getString("S3_REGION", ""),
				UseSSL:          getBool("S3_USE_SSL", true),
				ForcePathStyle:  getBool("S3_FORCE_PATH_STYLE", false),
				PresignTTL:      getDuration("S3_PRESIGN_TTL", time.Hour),
			},
		},
		Database: DatabaseConfig{
			Backend: strings.ToLower(getString("DUMPIT_DATABASE_BACKEND", DatabasePostgres)),
			Postgres: PostgresConfig{
				Host:     getString("POSTGRES_HOST", "localhost"),
				Port:     getInt("POSTGRES_PORT", 5432),
				User:     getString("POSTGRES_USER", "dumpit_app"),
				Password: getString("POSTGRES_PASSWORD", "change-me"),
				Database: getString("POSTGRES_DB", "dumpit"),
				SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
				MaxConns: getInt("POSTGRES_MAX_CONNS", 10),
				MinConns: getInt("POSTGRES_MIN_CONNS", 2),
			},
			Mongo: MongoConfig{
				URI:      getString("MONGODB_URI", ""),
				Database: getString("MONGODB_DB_NAME", "dumpit"),
			},
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("DUMPIT_METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown backend selections and selections whose required
// credentials are missing. A failure here is fatal: the process must not start
// with a partially configured backend.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.Local.Dir == "" {
			return fmt.Errorf("config: local storage selected but DUMPIT_UPLOADS_DIR is empty")
		}
	case StorageS3:
		s3 := c.Storage.S3
		if s3.Endpoint == "" || s3.AccessKeyID == "" || s3.SecretAccessKey == "" || s3.Bucket == "" {
			return fmt.Errorf("config: s3 storage selected but S3_ENDPOINT, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY and S3_BUCKET are all required")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Database.Backend {
	case DatabasePostgres:
	case DatabaseMongo:
		if c.Database.Mongo.URI == "" {
			return fmt.Errorf("config: mongo database selected but MONGODB_URI is empty")
		}
	default:
		return fmt.Errorf("config: unknown database backend %q", c.Database.Backend)
	}

	return nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
