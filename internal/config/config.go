package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment       string
	ServiceName       string
	HTTPPort          string
	AuthBaseURL       string
	APIBaseURL        string
	AccessKey         string
	SecretKey         string
	RedirectURI       string
	Scopes            []string
	HTTPTimeout       time.Duration
	TokenStoreBackend string
	TokenStorePath    string
	TokenStoreSecret  string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	TelemetryEndpoint string
	TelemetryInsecure bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	accessKey := strings.TrimSpace(os.Getenv("UNSPLASH_ACCESS_KEY"))
	if accessKey == "" {
		return Config{}, fmt.Errorf("UNSPLASH_ACCESS_KEY is required")
	}
	secretKey := strings.TrimSpace(os.Getenv("UNSPLASH_SECRET_KEY"))
	if secretKey == "" {
		return Config{}, fmt.Errorf("UNSPLASH_SECRET_KEY is required")
	}
	redirectURI := strings.TrimSpace(os.Getenv("OAUTH_REDIRECT_URI"))
	if redirectURI == "" {
		return Config{}, fmt.Errorf("OAUTH_REDIRECT_URI is required")
	}

	cfg := Config{
		Environment:       getEnv("APP_ENV", "development"),
		ServiceName:       getEnv("SERVICE_NAME", "imagefeed"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		AuthBaseURL:       getEnv("UNSPLASH_AUTH_BASE_URL", "https://unsplash.com"),
		APIBaseURL:        getEnv("UNSPLASH_API_BASE_URL", "https://api.unsplash.com"),
		AccessKey:         accessKey,
		SecretKey:         secretKey,
		RedirectURI:       redirectURI,
		Scopes:            getList("OAUTH_SCOPES", []string{"public", "read_user", "write_likes"}),
		HTTPTimeout:       getDuration("HTTP_TIMEOUT", 10*time.Second),
		TokenStoreBackend: getEnv("TOKEN_STORE_BACKEND", "file"),
		TokenStorePath:    getEnv("TOKEN_STORE_PATH", ".imagefeed"),
		TokenStoreSecret:  os.Getenv("TOKEN_STORE_SECRET"),
		RedisAddr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getInt("REDIS_DB", 0),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	switch cfg.TokenStoreBackend {
	case "file", "redis", "memory":
	default:
		return Config{}, fmt.Errorf("TOKEN_STORE_BACKEND must be file, redis, or memory")
	}

	if cfg.TokenStoreBackend == "file" && cfg.TokenStoreSecret == "" {
		return Config{}, fmt.Errorf("TOKEN_STORE_SECRET is required for the file token store")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
