package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Env  string
	Port int

	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// shared-secret admin enrollment gate
	AdminCode string

	// optional seed admin created at startup
	AdminEmail    string
	AdminPassword string
	AdminName     string

	ImageHostURL string
	ImageHostKey string

	OTLPEndpoint   string
	AllowedOrigins []string

	CatalogCacheTTL time.Duration
}

func Load() Config {
	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		AccessTTL:  getEnvDuration("ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvDuration("REFRESH_TTL", 7*24*time.Hour),

		AdminCode: getEnv("ADMIN_CODE", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		ImageHostURL: getEnv("IMAGE_HOST_URL", ""),
		ImageHostKey: getEnv("IMAGE_HOST_KEY", ""),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", ""),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		CatalogCacheTTL: getEnvDuration("CATALOG_CACHE_TTL", 30*time.Second),
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "lendhub")
	pass := getEnv("DB_PASSWORD", "lendhub")
	name := getEnv("DB_NAME", "lendhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// Validate is the readiness predicate: the service refuses to serve
// data-dependent routes when the minimum required settings are missing
// or still hold placeholder values.
func (c Config) Validate() error {
	var missing []string

	if isPlaceholder(c.JWTSecret) {
		missing = append(missing, "JWT_SECRET")
	}

	if isPlaceholder(c.AdminCode) {
		missing = append(missing, "ADMIN_CODE")
	}

	if isPlaceholder(c.ImageHostURL) {
		missing = append(missing, "IMAGE_HOST_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("configuration incomplete: set %s", strings.Join(missing, ", "))
	}

	return nil
}

// placeholder values left over from a copied .env count as absent
func isPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))

	switch v {
	case "", "changeme", "change-me", "replace-me", "todo", "xxx":
		return true
	}

	return strings.HasPrefix(v, "your-") || strings.HasPrefix(v, "<")
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			return fallback
		}

		return d
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")

	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)

		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
