package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBAutoMigrate bool

	ServerPort     string
	RequestTimeout time.Duration

	JWTSecret         string
	AccessTokenMaxAge int
	CookieSecure      bool

	// RedisURL is optional. Without it the feed is read straight from
	// Postgres, the page cache is kept in memory and no worker is started.
	RedisURL     string
	PageCacheTTL time.Duration
	WorkerCount  int

	LogLevel  string
	LogFormat string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found or error loading it, relying on environment variables")
	}

	accessTokenMaxAge, err := strconv.Atoi(os.Getenv("ACCESS_TOKEN_MAX_AGE"))
	if err != nil || accessTokenMaxAge <= 0 {
		accessTokenMaxAge = 14 * 24 * 3600
	}

	workerCount, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || workerCount <= 0 {
		workerCount = 2
	}

	return &Config{
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        getEnv("DB_NAME", "yatube"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate: getBool("DB_AUTO_MIGRATE", false),

		ServerPort:     getEnv("SERVER_PORT", "8080"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AccessTokenMaxAge: accessTokenMaxAge,
		CookieSecure:      getBool("COOKIE_SECURE", false),

		RedisURL:     os.Getenv("REDIS_URL"),
		PageCacheTTL: getDuration("PAGE_CACHE_TTL", 20*time.Second),
		WorkerCount:  workerCount,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),
	}, nil
}

// MediaEnabled reports whether every R2 setting needed for image uploads is present.
func (c *Config) MediaEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicURL != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
