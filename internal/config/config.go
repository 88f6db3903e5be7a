package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds everything the API server reads from the environment.
// JWT_SECRET is read by the middleware package directly.
type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ApproachingRatio decimal.Decimal
	Workers          int
}

// Load reads configs/.env when present, then the process environment.
func Load() Config {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	return Config{
		Port:        GetString("PORT", "8080"),
		GinMode:     GetString("GIN_MODE", "debug"),
		CORSOrigins: splitList(GetString("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),

		DBHost:     GetString("DB_HOST", "localhost"),
		DBPort:     GetString("DB_PORT", "5432"),
		DBUser:     GetString("DB_USER", "postgres"),
		DBPassword: GetString("DB_PASSWORD", "postgres"),
		DBName:     GetString("DB_NAME", "postgres"),
		DBSSLMode:  GetString("DB_SSLMODE", "disable"),

		ApproachingRatio: GetDecimal("NEXUS_APPROACHING_RATIO", decimal.RequireFromString("0.85")),
		Workers:          GetInt("NEXUS_WORKERS", 4),
	}
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func GetString(key, fallback string) string {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return fallback
	}
	return val
}

func GetInt(key string, fallback int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[config] %s=%q is not an integer, using %d", key, val, fallback)
		return fallback
	}
	return n
}

func GetDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := decimal.NewFromString(val)
	if err != nil || !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1)) {
		log.Printf("[config] %s=%q is not a ratio in (0, 1], using %s", key, val, fallback)
		return fallback
	}
	return d
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
