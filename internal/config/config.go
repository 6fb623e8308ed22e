package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	LogLevel  string
	LogFormat string

	HTTPAddr string

	OtelEnabled  bool
	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	TelegramBotToken    string
	TelegramBotUsername string

	OpenAIAPIKey          string
	OpenAIChatModel       string
	OpenAITranscribeModel string

	UserbotEnabled   bool
	UserbotBaseURL   string
	UserbotAuthToken string

	CronSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	IngestLockEnabled    bool
	IngestLockTTLSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "resto-worker"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		OtelEnabled:  getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "restoworker"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		TelegramBotToken:    strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
		TelegramBotUsername: strings.TrimSpace(getenv("TELEGRAM_BOT_USERNAME", "")),

		OpenAIAPIKey:          strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
		OpenAIChatModel:       getenv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAITranscribeModel: getenv("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),

		UserbotEnabled:   getenvBool("USERBOT_ENABLED", false),
		UserbotBaseURL:   strings.TrimSpace(getenv("USERBOT_BASE_URL", "")),
		UserbotAuthToken: strings.TrimSpace(getenv("USERBOT_AUTH_TOKEN", "")),

		CronSecret: strings.TrimSpace(getenv("CRON_SECRET", "")),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		IngestLockEnabled:    getenvBool("INGEST_LOCK_ENABLED", false),
		IngestLockTTLSeconds: int(getenvInt64("INGEST_LOCK_TTL_SECONDS", 30)),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
