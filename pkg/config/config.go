package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	HTTPServer HTTPServerConfig
	Evaluator  EvaluatorConfig
	FCM        FCMConfig
	Telegram   TelegramConfig
	SMTP       SMTPConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers            []string
	TopicLocations     string
	TopicEvents        string
	TopicNotifications string
	NumPartitions      int
}

type HTTPServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type EvaluatorConfig struct {
	// RejectStaleSamples drops location samples whose timestamp is not newer
	// than the last processed sample for the device.
	RejectStaleSamples bool
	GuardTTL           time.Duration
	PersistTimeout     time.Duration
}

type FCMConfig struct {
	Endpoint  string
	ServerKey string
	Timeout   time.Duration
}

type TelegramConfig struct {
	BaseURL  string
	BotToken string
	Timeout  time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "geofence_user"),
			Password: getEnv("DB_PASSWORD", "geofence_pass"),
			DBName:   getEnv("DB_NAME", "geofence_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:            strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicLocations:     getEnv("KAFKA_TOPIC_LOCATIONS", "geo.locations.raw"),
			TopicEvents:        getEnv("KAFKA_TOPIC_EVENTS", "geo.events"),
			TopicNotifications: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "geo.notifications"),
			NumPartitions:      getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
		},
		HTTPServer: HTTPServerConfig{
			Port:            getEnvAsInt("HTTP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Evaluator: EvaluatorConfig{
			RejectStaleSamples: getEnvAsBool("EVALUATOR_REJECT_STALE", true),
			GuardTTL:           getEnvAsDuration("EVALUATOR_GUARD_TTL", 7*24*time.Hour),
			PersistTimeout:     getEnvAsDuration("EVALUATOR_PERSIST_TIMEOUT", 5*time.Second),
		},
		FCM: FCMConfig{
			Endpoint:  getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
			ServerKey: getEnv("FCM_SERVER_KEY", ""),
			Timeout:   getEnvAsDuration("FCM_TIMEOUT", 10*time.Second),
		},
		Telegram: TelegramConfig{
			BaseURL:  getEnv("TELEGRAM_BASE_URL", "https://api.telegram.org/bot"),
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			Timeout:  getEnvAsDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "geofence-server@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
