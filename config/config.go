package config

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

type Config struct {
	ServerPort  string
	StoreDriver string
	DataPath    string
	SQLitePath  string
	CacheDir    string
	CORSOrigins []string
	Debug       bool

	JWTSecret       string
	JWTSecretRandom bool
	TokenTTL        time.Duration

	SuperadminUsername string
	SuperadminPassword string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	cfg := &Config{
		ServerPort:  ":" + strings.TrimPrefix(getEnv("PORT", "8080"), ":"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverJSON)),
		DataPath:    getEnv("DATA_PATH", "./data/elclasico.json"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/elclasico.db"),
		CacheDir:    getEnv("CACHE_DIR", "./.cache"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		Debug:       getEnvBool("LOG_DEBUG", false),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 7*24*time.Hour),

		SuperadminUsername: getEnv("SUPERADMIN_USERNAME", "superadmin"),
		SuperadminPassword: os.Getenv("SUPERADMIN_PASSWORD"),
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateSecret()
		cfg.JWTSecretRandom = true
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// generateSecret is only used when JWT_SECRET is unset; tokens then stop
// validating after a restart.
func generateSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate token secret:", err)
	}
	return base64.StdEncoding.EncodeToString(bytes)
}
