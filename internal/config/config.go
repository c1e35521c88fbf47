package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort  string
	ServerHost  string
	FrontendURL string

	// Identity
	AuthTokenSecret string
	RoomTokenSecret string
	RoomTokenTTL    time.Duration
	UserCacheTTL    time.Duration

	// Rooms: "memory" (single instance) or "redis"
	RoomStore string
	RedisAddr string

	// Export
	ExportDefaultWidth  float64
	ExportDefaultHeight float64
	ExportMaxWidth      float64
	ExportMaxHeight     float64

	// Observability
	JaegerEndpoint string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "canvas_studio"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		ServerPort:  getEnv("SERVER_PORT", "8080"),
		ServerHost:  getEnv("SERVER_HOST", "localhost"),
		FrontendURL: getEnv("FRONTEND_URL", "*"),

		AuthTokenSecret: getEnv("AUTH_TOKEN_SECRET", ""),
		RoomTokenSecret: getEnv("ROOM_TOKEN_SECRET", ""),
		RoomTokenTTL:    getEnvDuration("ROOM_TOKEN_TTL", time.Hour),
		UserCacheTTL:    getEnvDuration("USER_CACHE_TTL", 5*time.Minute),

		RoomStore: getEnv("ROOM_STORE", "memory"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		ExportDefaultWidth:  getEnvFloat("EXPORT_DEFAULT_WIDTH", 800),
		ExportDefaultHeight: getEnvFloat("EXPORT_DEFAULT_HEIGHT", 600),
		ExportMaxWidth:      getEnvFloat("EXPORT_MAX_WIDTH", 8192),
		ExportMaxHeight:     getEnvFloat("EXPORT_MAX_HEIGHT", 8192),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
	}

	if cfg.RoomTokenSecret == "" {
		return nil, fmt.Errorf("ROOM_TOKEN_SECRET is required")
	}
	if cfg.RoomStore != "memory" && cfg.RoomStore != "redis" {
		return nil, fmt.Errorf("ROOM_STORE must be memory or redis, got %q", cfg.RoomStore)
	}

	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
