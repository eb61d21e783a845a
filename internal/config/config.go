package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"mesa-order-client/pkg/storage"
)

type Config struct {
	Env                  string
	LogLevel             string
	HTTPAddr             string
	APIURL               string
	SessionCheckInterval time.Duration
	RequestTimeout       time.Duration
	PINMinLength         int
	CorsAllowedOrigins   []string
	RabbitMQURL          string
	EventsExchange       string
	WSTicketPollInterval time.Duration
	DemoSeed             bool
	StaffJWTSecret       string

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
}

func Load() Config {
	cfg := Config{
		Env:                  getEnv("APP_ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", ""),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8087"),
		APIURL:               getEnv("API_URL", "http://localhost:8087"),
		SessionCheckInterval: getEnvDuration("SESSION_CHECK_INTERVAL", 5*time.Second),
		RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		PINMinLength:         int(getEnvInt64("PIN_MIN_LENGTH", 3)),
		CorsAllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RabbitMQURL:          getEnv("RABBITMQ_URL", ""),
		EventsExchange:       getEnv("EVENTS_EXCHANGE", "mesa.events"),
		WSTicketPollInterval: getEnvDuration("WS_TICKET_POLL_INTERVAL", 2*time.Second),
		DemoSeed:             getEnvBool("DEMO_SEED", true),
		StaffJWTSecret:       getEnv("STAFF_JWT_SECRET", ""),

		// Object store (Cloudflare R2 / S3-compatible)
		ObjectStoreEndpoint:        getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          getEnvFirst([]string{"OBJECT_STORE_REGION", "R2_REGION"}, "auto"),
		ObjectStoreAccessKeyID:     getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          getEnvFirst([]string{"OBJECT_STORE_BUCKET", "R2_BUCKET"}, ""),
		ObjectStorePublicBaseURL:   getEnvFirst([]string{"OBJECT_STORE_PUBLIC_BASE_URL", "R2_PUBLIC_BASE_URL"}, ""),
		ObjectStoreStorageClass:    getEnvFirst([]string{"OBJECT_STORE_STORAGE_CLASS", "R2_STORAGE_CLASS"}, "STANDARD"),
	}

	if cfg.SessionCheckInterval <= 0 {
		cfg.SessionCheckInterval = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.PINMinLength <= 0 {
		cfg.PINMinLength = 3
	}
	if cfg.WSTicketPollInterval <= 0 {
		cfg.WSTicketPollInterval = 2 * time.Second
	}

	// Back-compat: allow R2_ACCOUNT_ID -> endpoint
	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" {
		accountID := strings.TrimSpace(os.Getenv("R2_ACCOUNT_ID"))
		if accountID != "" {
			cfg.ObjectStoreEndpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
		}
	}

	return cfg
}

func (c Config) ObjectStore() storage.Config {
	return storage.Config{
		Endpoint:        c.ObjectStoreEndpoint,
		Region:          c.ObjectStoreRegion,
		AccessKeyID:     c.ObjectStoreAccessKeyID,
		SecretAccessKey: c.ObjectStoreSecretAccessKey,
		Bucket:          c.ObjectStoreBucket,
		PublicBaseURL:   c.ObjectStorePublicBaseURL,
		StorageClass:    c.ObjectStoreStorageClass,
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k))
		if value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
