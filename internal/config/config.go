package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string
	// MongoDB holds the publications collection
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MongoTimeout    time.Duration
	// Redis receives migration run announcements
	RedisAddr  string
	LastRunTTL time.Duration
	// Postgres holds the migration run log and review queue
	PostgresDSN string
	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	// Migration defaults, overridable by CLI flags
	MigrationMappingsFile string
	MigrationReviewQueue  bool
	MigrationNotify       bool
	// MigrationWritesPerSecond paces publication updates in apply mode. Zero
	// disables pacing.
	MigrationWritesPerSecond int
	// Creative upload limits. Zero CreativeMatchesPerSecond disables the
	// request limit.
	MaxUploadBytes           int64
	CreativeMatchesPerSecond int
	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// LoadDotEnv reads variables from the given .env files into the process
// environment without overriding values that are already set. Missing files
// are ignored. With no arguments ".env" in the working directory is used.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "mediahub")

	cfg.MongoURI = getenv("MONGODB_URI", "mongodb://localhost:27017")
	cfg.MongoDatabase = getenv("MONGODB_DATABASE", "mediahub")
	cfg.MongoCollection = getenv("MONGODB_COLLECTION", "publications")
	cfg.MongoTimeout = envDuration("MONGODB_TIMEOUT", 10*time.Second)

	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	// keep the last run summary for a week by default
	cfg.LastRunTTL = envDuration("MIGRATION_LAST_RUN_TTL", 7*24*time.Hour)

	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")
	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 2)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.MigrationMappingsFile = getenv("MIGRATION_MAPPINGS_FILE", "")
	cfg.MigrationReviewQueue = envBool("MIGRATION_REVIEW_QUEUE", false)
	cfg.MigrationNotify = envBool("MIGRATION_NOTIFY", false)
	cfg.MigrationWritesPerSecond = envInt("MIGRATION_WRITES_PER_SECOND", 0)

	cfg.MaxUploadBytes = int64(envInt("MAX_UPLOAD_BYTES", 20<<20))
	cfg.CreativeMatchesPerSecond = envInt("CREATIVE_MATCHES_PER_SECOND", 0)

	// Tracing configuration
	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0) // Default to 100% sampling for dev

	return cfg
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
