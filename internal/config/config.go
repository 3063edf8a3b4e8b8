package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP
	HTTPPort    string
	MetricsPort string

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Event validation
	FutureDateAction     string
	FutureDateMaxSkewSec int64

	// Derived state
	MaxOdometerKM float64

	// Enrichment
	GeocoderMode    string
	GeocoderURL     string
	GeocoderFast    bool
	GeocoderLocale  string
	CellLocatorURL  string
	EnrichWorkers   int
	EnrichQueueSize int

	// Rules
	NotifyDedupSeconds int

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string
}

func Load() *Config {
	return &Config{
		HTTPPort:             getEnv("HTTP_PORT", "8001"),
		MetricsPort:          getEnv("METRICS_PORT", "9001"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "track_user"),
		DBPassword:           getEnv("DB_PASSWORD", "track_password"),
		DBName:               getEnv("DB_NAME", "fleet_track"),
		DBMaxConns:           int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		FutureDateAction:     getEnv("FUTURE_DATE_ACTION", "disabled"),
		FutureDateMaxSkewSec: int64(getEnvInt("FUTURE_DATE_MAX_SKEW_SEC", 86400)),
		MaxOdometerKM:        getEnvFloat("MAX_ODOMETER_KM", 0),
		GeocoderMode:         getEnv("GEOCODER_MODE", "full"),
		GeocoderURL:          getEnv("GEOCODER_URL", ""),
		GeocoderFast:         getEnvInt("GEOCODER_FAST", 0) != 0,
		GeocoderLocale:       getEnv("GEOCODER_LOCALE", "en"),
		CellLocatorURL:       getEnv("CELL_LOCATOR_URL", ""),
		EnrichWorkers:        getEnvInt("ENRICH_WORKERS", 30),
		EnrichQueueSize:      getEnvInt("ENRICH_QUEUE_SIZE", 1000),
		NotifyDedupSeconds:   getEnvInt("NOTIFY_DEDUP_SECONDS", 300),
		AuthCacheTTLSeconds:  getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:         strings.Split(getEnv("VALID_API_KEYS", ""), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
