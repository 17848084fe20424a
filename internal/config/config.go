package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// LogSQL routes every statement through the debug SQL logger.
	LogSQL bool

	// MQTTBroker empty disables the push feed.
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	PollInterval time.Duration

	CacheDriver string
	CacheAddrs  []string
	CacheTTL    time.Duration

	ExportStore     string
	ExportDir       string
	ExportBaseURL   string
	ExportURLExpiry time.Duration
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool

	// OTLPEndpoint empty disables tracing export.
	OTLPEndpoint string
}

func LoadFromEnv() (Config, error) {
	appEnv := envString("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	driver := envString("DB_DRIVER", "sqlite3")
	if driver != "sqlite3" {
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3)", driver)
	}

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := envDuration("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	logSQL, err := envBool("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}

	mqttPort, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d (allowed: 1-65535)", mqttPort)
	}

	pollInterval, err := envDuration("POLL_INTERVAL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	if pollInterval <= 0 {
		return Config{}, fmt.Errorf("invalid POLL_INTERVAL %s: must be > 0", pollInterval)
	}

	cacheDriver := strings.ToLower(envString("CACHE_DRIVER", "none"))
	switch cacheDriver {
	case "none", "redis", "memcached":
	default:
		return Config{}, fmt.Errorf("invalid CACHE_DRIVER %q (allowed: none, redis, memcached)", cacheDriver)
	}
	cacheAddrs := splitList(envString("CACHE_ADDRS", ""))
	if cacheDriver != "none" && len(cacheAddrs) == 0 {
		return Config{}, fmt.Errorf("CACHE_ADDRS is required when CACHE_DRIVER=%s", cacheDriver)
	}
	cacheTTL, err := envDuration("CACHE_TTL", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	exportStore := strings.ToLower(envString("EXPORT_STORE", "local"))
	switch exportStore {
	case "local", "minio":
	default:
		return Config{}, fmt.Errorf("invalid EXPORT_STORE %q (allowed: local, minio)", exportStore)
	}
	expiry, err := envDuration("EXPORT_URL_EXPIRY", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	minioUseSSL, err := envBool("MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        envString("HTTP_ADDR", ":8080"),
		Driver:          driver,
		DSN:             envString("DB_DSN", ""),
		Path:            envString("SQLITE_PATH", "./data/stationmeteo.db"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		LogSQL:          logSQL,
		MQTTBroker:      envString("MQTT_BROKER", ""),
		MQTTPort:        mqttPort,
		MQTTClientID:    envString("MQTT_CLIENT_ID", "stationmeteo-server"),
		MQTTTopic:       envString("MQTT_TOPIC", "stationmeteo/readings"),
		PollInterval:    pollInterval,
		CacheDriver:     cacheDriver,
		CacheAddrs:      cacheAddrs,
		CacheTTL:        cacheTTL,
		ExportStore:     exportStore,
		ExportDir:       envString("EXPORT_DIR", "./data/exports"),
		ExportBaseURL:   strings.TrimRight(envString("EXPORT_BASE_URL", "http://localhost:8080"), "/"),
		ExportURLExpiry: expiry,
		MinioEndpoint:   envString("MINIO_ENDPOINT", ""),
		MinioAccessKey:  envString("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  envString("MINIO_SECRET_KEY", ""),
		MinioBucket:     envString("MINIO_BUCKET", "stationmeteo-exports"),
		MinioUseSSL:     minioUseSSL,
		OTLPEndpoint:    envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
	if cfg.ExportStore == "minio" && cfg.MinioEndpoint == "" {
		return Config{}, fmt.Errorf("MINIO_ENDPOINT is required when EXPORT_STORE=minio")
	}
	return cfg, nil
}

// MQTTEnabled reports whether a broker was configured.
func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
