package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port        string
	Database    Database
	JWTSecret   string
	TokenTTL    time.Duration
	RedisURL    string
	LogLevel    string
	CORSOrigins []string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN is the key/value connection string understood by both gorm's postgres
// driver and pgx.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// Load reads the environment (and a .env file, if present).
func Load() (*Config, error) {
	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "72h"))
	if err != nil {
		return nil, fmt.Errorf("parse TOKEN_TTL: %w", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "quickbite"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    ttl,
		RedisURL:    os.Getenv("REDIS_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
