// Package config loads the daemon configuration from the environment. A
// local .env file is honored when present; real deployments set the
// variables directly.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	// DBURL is the postgres connection string. Empty selects the
	// in-memory stores (development only).
	DBURL string
	// RedisAddr is the shared counter store. Empty runs the limiter and
	// CSRF guard purely in-process.
	RedisAddr     string
	RedisPassword string

	AccessTokenSecret  string
	CookieSecret       string
	AccessExpiryMin    int
	RefreshExpiryHours int

	CookieSameSite string
	CookieSecure   bool
}

func Load() *Config {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Env:                env,
		Port:               getEnv("PORT", "8080"),
		DBURL:              os.Getenv("DB_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		AccessTokenSecret:  mustGetEnv("ACCESS_TOKEN_SECRET"),
		CookieSecret:       mustGetEnv("COOKIE_SECRET"),
		AccessExpiryMin:    getEnvAsInt("ACCESS_TOKEN_EXPIRY_MIN", 15),
		RefreshExpiryHours: getEnvAsInt("REFRESH_TOKEN_EXPIRY_HOURS", 168),
		CookieSecure:       env == "production",
	}

	// Strict in development keeps casual CSRF out; production fronted by a
	// separate web origin needs lax. An explicit setting wins either way.
	sameSite := "strict"
	if env == "production" {
		sameSite = "lax"
	}
	cfg.CookieSameSite = getEnv("COOKIE_SAMESITE", sameSite)

	return cfg
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessExpiryMin) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshExpiryHours) * time.Hour
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func mustGetEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Fatalf("Missing required environment variable: %s", key)
	return ""
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}
