package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort                   = "8080"
	DefaultAccessTokenExpiryMin   = 15
	DefaultRefreshTokenExpiryMin  = 10080
	DefaultMaxFailedLoginAttempts = 5
	DefaultLoginWindowMinutes     = 15
	DefaultLockoutDurationMinutes = 30
	DefaultAppName                = "AuthGuard"
)

type Config struct {
	Env  string
	Port string

	DBURL         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessExpiryMin    int
	RefreshExpiryMin   int

	MaxFailedLoginAttempts int
	LoginWindowMinutes     int
	LockoutDurationMinutes int

	AppName  string
	BaseURL  string
	MailFrom string
}

// Load reads config/.env.<env> when present, then the process environment.
// Environment variables always win over file values.
func Load() *Config {
	env := getEnv("ENV", "development")

	envFile := "config/.env.dev"
	if env == "production" {
		envFile = "config/.env.prod"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("no %s file found, relying on environment", envFile)
	}

	return &Config{
		Env:                    env,
		Port:                   getEnv("PORT", DefaultPort),
		DBURL:                  mustGetEnv("DB_URL"),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getEnvAsInt("REDIS_DB", 0),
		AccessTokenSecret:      mustGetEnv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret:     mustGetEnv("REFRESH_TOKEN_SECRET"),
		AccessExpiryMin:        getEnvAsInt("ACCESS_TOKEN_EXPIRY", DefaultAccessTokenExpiryMin),
		RefreshExpiryMin:       getEnvAsInt("REFRESH_TOKEN_EXPIRY", DefaultRefreshTokenExpiryMin),
		MaxFailedLoginAttempts: getEnvAsInt("MAX_FAILED_LOGIN_ATTEMPTS", DefaultMaxFailedLoginAttempts),
		LoginWindowMinutes:     getEnvAsInt("LOGIN_ATTEMPT_WINDOW_MINUTES", DefaultLoginWindowMinutes),
		LockoutDurationMinutes: getEnvAsInt("ACCOUNT_LOCKOUT_DURATION_MINUTES", DefaultLockoutDurationMinutes),
		AppName:                getEnv("APP_NAME", DefaultAppName),
		BaseURL:                getEnv("BASE_URL", "http://localhost:"+getEnv("PORT", DefaultPort)),
		MailFrom:               getEnv("MAIL_FROM", "no-reply@localhost"),
	}
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func mustGetEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Fatalf("Missing required config: %s", key)
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

func (c *Config) AccessTokenExpiry() time.Duration {
	return time.Duration(c.AccessExpiryMin) * time.Minute
}

func (c *Config) VerificationURL(token string) string {
	return fmt.Sprintf("%s/api/v1/verify-email?token=%s", c.BaseURL, token)
}

func (c *Config) PasswordResetURL(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", c.BaseURL, token)
}
