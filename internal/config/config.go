package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	SQLitePath  string
	PostgresURL string

	NSQDAddress          string
	RunConsumers         bool
	NSQEventChannel      string
	NSQEventConcurrency  int
	NSQMaxInFlight       int
	DBEventBatchSize     int
	DBEventFlushInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EnableMetrics bool

	AuthSecret            []byte
	AuthTokenTTL          time.Duration
	DashboardPasswordHash string
	IngestKey             string

	CacheTTL      time.Duration
	TrustHalfLife time.Duration

	MaintenanceMode bool
}

func FromEnv() (Config, error) {
	authSecretRaw := strings.TrimSpace(os.Getenv("AUTH_SECRET"))
	var authSecret []byte
	if authSecretRaw != "" {
		b, err := decodeBase64Any(authSecretRaw)
		if err != nil {
			return Config{}, errors.New("invalid AUTH_SECRET (expected base64)")
		}
		if len(b) < 32 {
			return Config{}, errors.New("AUTH_SECRET too short (need >= 32 bytes)")
		}
		authSecret = b
	}

	cfg := Config{
		HTTPAddr:              getenvDefault("HTTP_ADDR", ":8080"),
		SQLitePath:            getenvDefault("SQLITE_PATH", "bilan.db"),
		PostgresURL:           strings.TrimSpace(os.Getenv("POSTGRES_URL")),
		NSQDAddress:           strings.TrimSpace(os.Getenv("NSQD_ADDRESS")),
		NSQEventChannel:       getenvDefault("NSQ_EVENT_CHANNEL", "event-consumer"),
		NSQEventConcurrency:   parseIntDefault(getenvDefault("NSQ_EVENT_CONCURRENCY", "1"), 1),
		NSQMaxInFlight:        parseIntDefault(getenvDefault("NSQ_MAX_IN_FLIGHT", "200"), 200),
		DBEventBatchSize:      parseIntDefault(getenvDefault("DB_EVENT_BATCH_SIZE", "200"), 200),
		RedisAddr:             strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               parseIntDefault(getenvDefault("REDIS_DB", "0"), 0),
		AuthSecret:            authSecret,
		DashboardPasswordHash: strings.TrimSpace(os.Getenv("DASHBOARD_PASSWORD_HASH")),
		IngestKey:             strings.TrimSpace(os.Getenv("INGEST_KEY")),
		MaintenanceMode:       parseBoolDefault(getenvDefault("MAINTENANCE_MODE", "false"), false),
	}
	cfg.DBEventFlushInterval = parseDurationDefault(getenvDefault("DB_EVENT_FLUSH_INTERVAL", "50ms"), 50*time.Millisecond)
	cfg.AuthTokenTTL = parseDurationDefault(getenvDefault("AUTH_TOKEN_TTL", "168h"), 168*time.Hour)
	cfg.CacheTTL = parseDurationDefault(getenvDefault("CACHE_TTL", "5m"), 5*time.Minute)
	cfg.TrustHalfLife = parseDurationDefault(getenvDefault("TRUST_HALF_LIFE", "168h"), 168*time.Hour)

	cfg.RunConsumers = parseBoolDefault(getenvDefault("RUN_CONSUMERS", "false"), false)
	cfg.EnableMetrics = parseBoolDefault(getenvDefault("ENABLE_METRICS", "true"), true) && cfg.RedisAddr != ""

	if cfg.RunConsumers && cfg.NSQDAddress == "" {
		return Config{}, errors.New("NSQD_ADDRESS is required when RUN_CONSUMERS=true")
	}
	if cfg.SQLitePath == "" && cfg.PostgresURL == "" {
		return Config{}, errors.New("SQLITE_PATH or POSTGRES_URL is required")
	}
	return cfg, nil
}

func getenvDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolDefault(value string, defaultValue bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseIntDefault(value string, defaultValue int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationDefault(value string, defaultValue time.Duration) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

func decodeBase64Any(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty")
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func (c Config) String() string {
	db := "sqlite:" + c.SQLitePath
	if c.PostgresURL != "" {
		db = "pg:" + redactPostgresURL(c.PostgresURL)
	}
	return fmt.Sprintf(
		"http=%s db=%s nsqd=%s consumers=%v redis=%s metrics=%v auth=%v ingest_key=%v cache_ttl=%s half_life=%s maintenance=%v",
		c.HTTPAddr,
		db,
		c.NSQDAddress,
		c.RunConsumers,
		redactRedis(c.RedisAddr),
		c.EnableMetrics,
		len(c.AuthSecret) > 0,
		c.IngestKey != "",
		c.CacheTTL,
		c.TrustHalfLife,
		c.MaintenanceMode,
	)
}

func redactPostgresURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "<none>"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<set>"
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	host := u.Host
	db := strings.TrimPrefix(u.Path, "/")
	if user == "" && host == "" && db == "" {
		return "<set>"
	}
	if user == "" {
		user = "?"
	}
	if host == "" {
		host = "?"
	}
	if db == "" {
		db = "?"
	}
	return fmt.Sprintf("%s@%s/%s", user, host, db)
}

func redactRedis(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "<none>"
	}
	return addr
}
