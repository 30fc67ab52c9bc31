package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultSecret = "dev-secret-change-me"

type Config struct {
	Env             string
	Port            string
	DatabasePath    string // sqlite file, used when no postgres settings are present
	DatabaseURL     string
	DBHost          string
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBSSLMode       string
	SecretKey       string
	SessionDir      string
	CSRFTimeLimit   time.Duration
	LogLevel        string
	LogstashAddr    string
	LoginRatePerMin int
	DemoUsername    string
	DemoPassword    string
	SlowRequest     time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() Config {
	_ = godotenv.Load()

	port := getenv("PORT", ":5000")
	if !strings.Contains(port, ":") {
		port = ":" + port
	}

	return Config{
		Env:             getenv("APP_ENV", "dev"),
		Port:            port,
		DatabasePath:    getenv("DATABASE", "warbler.db"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBHost:          os.Getenv("DB_HOST"),
		DBPort:          getenv("DB_PORT", "5432"),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          getenv("DB_NAME", "warbler"),
		DBSSLMode:       getenv("DB_SSLMODE", "require"),
		SecretKey:       getenv("SECRET_KEY", defaultSecret),
		SessionDir:      os.Getenv("SESSION_DIR"),
		CSRFTimeLimit:   time.Duration(getenvInt("CSRF_TIME_LIMIT", 3600)) * time.Second,
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogstashAddr:    os.Getenv("LOGSTASH_ADDR"),
		LoginRatePerMin: getenvInt("LOGIN_RATE_PER_MINUTE", 30),
		DemoUsername:    getenv("DEMO_USERNAME", "demo"),
		DemoPassword:    getenv("DEMO_PASSWORD", "123123"),
		SlowRequest:     time.Duration(getenvInt("SLOW_REQUEST_MS", 2000)) * time.Millisecond,
	}
}

// UsesPostgres reports whether a remote postgres database is configured.
func (c Config) UsesPostgres() bool {
	return c.DatabaseURL != "" || c.DBHost != ""
}

// PostgresDSN returns the connection string for postgres. DATABASE_URL wins
// over the individual DB_* settings.
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		// Heroku style URLs use the short scheme.
		return strings.Replace(c.DatabaseURL, "postgres://", "postgresql://", 1)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func Validate(c Config) error {
	if c.Port == "" {
		return errors.New("config: PORT must not be empty")
	}
	if !c.UsesPostgres() && c.DatabasePath == "" {
		return errors.New("config: no database configured")
	}
	if c.SecretKey == "" {
		return errors.New("config: SECRET_KEY must not be empty")
	}
	if c.Env != "dev" && c.SecretKey == defaultSecret {
		return errors.New("config: SECRET_KEY must be set outside dev")
	}
	return nil
}
