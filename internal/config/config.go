package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends understood by the image upload adapter.
const (
	StorageSupabase = "supabase"
	StorageFTP      = "ftp"
	StorageMemory   = "memory"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string
	CORSOrigin   string

	JWTSecret string

	DatabaseURL string
	AutoMigrate bool
	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	// Object storage configuration
	StorageBackend       string
	SupabaseURL          string
	SupabaseServiceKey   string
	StorageBucket        string
	StoragePublicBaseURL string
	StorageTimeout       time.Duration
	FTPHost              string
	FTPPort              string
	FTPUser              string
	FTPPassword          string
	FTPBaseURL           string
	MaxUploadBytes       int64

	// Change events
	EventsEnabled bool
	RedisAddr     string

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load reads a .env file when present, then parses environment variables and
// returns a Config populated with defaults when variables are absent.
func Load() Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Config{}

	cfg.Port = getenv("PORT", "5000")
	cfg.Env = strings.ToLower(getenv("ENV", "production"))
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 10*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 30*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "floodwatch")
	cfg.CORSOrigin = getenv("CORS_ORIGIN", "https://uas-sisi-klien-six.vercel.app")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	cfg.DatabaseURL = getenv("DATABASE_URL", "postgres://postgres@127.0.0.1:5432/floodwatch?sslmode=disable")
	cfg.AutoMigrate = envBool("DB_AUTO_MIGRATE", true)
	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.StorageBackend = strings.ToLower(getenv("STORAGE_BACKEND", StorageSupabase))
	cfg.SupabaseURL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	cfg.SupabaseServiceKey = os.Getenv("SERVICE_ROLE")
	cfg.StorageBucket = getenv("STORAGE_BUCKET", "banjirImage")
	cfg.StoragePublicBaseURL = strings.TrimRight(os.Getenv("STORAGE_PUBLIC_BASE_URL"), "/")
	if cfg.StoragePublicBaseURL == "" && cfg.SupabaseURL != "" {
		cfg.StoragePublicBaseURL = cfg.SupabaseURL + "/storage/v1/object/public/" + cfg.StorageBucket
	}
	cfg.StorageTimeout = envDuration("STORAGE_TIMEOUT", 30*time.Second)
	cfg.FTPHost = os.Getenv("FTP_HOST")
	cfg.FTPPort = getenv("FTP_PORT", "21")
	cfg.FTPUser = os.Getenv("FTP_USER")
	cfg.FTPPassword = os.Getenv("FTP_PASSWORD")
	cfg.FTPBaseURL = strings.TrimRight(os.Getenv("FTP_BASE_URL"), "/")
	cfg.MaxUploadBytes = int64(envInt("MAX_UPLOAD_BYTES", 10<<20))

	cfg.EventsEnabled = envBool("EVENTS_ENABLED", false)
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")

	// Tracing configuration
	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0) // Default to 100% sampling for dev

	return cfg
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StorageBackend {
	case StorageSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return errors.New("SUPABASE_URL and SERVICE_ROLE are required for the supabase storage backend")
		}
	case StorageFTP:
		if c.FTPHost == "" || c.FTPBaseURL == "" {
			return errors.New("FTP_HOST and FTP_BASE_URL are required for the ftp storage backend")
		}
	case StorageMemory:
	default:
		return errors.New("unknown STORAGE_BACKEND " + strconv.Quote(c.StorageBackend))
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// Development reports whether error responses may include debug details.
func (c Config) Development() bool {
	return c.Env == "development" || c.Env == "dev"
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
