package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CORSOrigin string
	// Redis backs the broadcast gateway and refresh sessions
	RedisURL string
	// Meilisearch - empty URL disables it, search falls back to in-memory matching
	MeiliURL       string
	MeiliMasterKey string
	// Admission budget: points per window per connection for create operations
	AdmissionPoints int
	AdmissionWindow time.Duration
	// Read notifications older than this horizon are purged by the janitor
	NotificationRetention time.Duration
}

func Load() Config {
	return Config{
		Addr:                  getenv("API_ADDR", ":8686"),
		JWTSecret:             getenv("MARGINALIA_JWT_SECRET", "marginalia-dev-secret"),
		AccessTTL:             time.Duration(getenvInt("MARGINALIA_ACCESS_TTL_SECONDS", 900)) * time.Second,
		RefreshTTL:            time.Duration(getenvInt("MARGINALIA_REFRESH_TTL_SECONDS", 2592000)) * time.Second,
		CORSOrigin:            getenv("MARGINALIA_CORS_ORIGIN", "*"),
		RedisURL:              getenv("REDIS_URL", "redis://localhost:6379/0"),
		MeiliURL:              getenv("MEILI_URL", ""),
		MeiliMasterKey:        getenv("MEILI_MASTER_KEY", ""),
		AdmissionPoints:       getenvInt("MARGINALIA_ADMISSION_POINTS", 10),
		AdmissionWindow:       time.Duration(getenvInt("MARGINALIA_ADMISSION_WINDOW_SECONDS", 10)) * time.Second,
		NotificationRetention: time.Duration(getenvInt("MARGINALIA_NOTIFICATION_RETENTION_HOURS", 720)) * time.Hour,
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
