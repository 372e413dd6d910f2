package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig содержит конфигурацию приложения
type AppConfig struct {
	ServerPort  string
	KafkaBroker string
	KafkaTopic  string
	GinMode     string
	Moonraker   MoonrakerConfig
	Engine      EngineConfig
	Cache       CacheConfig
	Logging     LoggerConfig
}

// MoonrakerConfig содержит конфигурацию подключения к Moonraker
type MoonrakerConfig struct {
	Host      string
	Port      int
	APIKey    string
	TimeoutMs int
}

// BaseURL возвращает базовый HTTP URL Moonraker.
func (m MoonrakerConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", m.Host, m.Port)
}

// WebsocketURL возвращает URL WebSocket потока событий Moonraker.
func (m MoonrakerConfig) WebsocketURL() string {
	return fmt.Sprintf("ws://%s:%d/websocket", m.Host, m.Port)
}

// EngineConfig содержит настройки движка трансляции и очереди выполнения
type EngineConfig struct {
	QueueMaxSize      int
	HistoryMaxEntries int
	DefaultTimeoutMs  int
}

// CacheConfig содержит настройки кэша состояний оборудования
type CacheConfig struct {
	DefaultTTLMs      int
	MaxSize           int
	CleanupIntervalMs int
	AutoRefresh       bool
}

// LoggerConfig содержит настройки логгера
type LoggerConfig struct {
	Enable     bool
	LogsDir    string
	Level      string
	SavingDays int
}

// LoadConfiguration загружает конфигурацию из .env файла или переменных окружения
func LoadConfiguration() (*AppConfig, error) {
	_ = godotenv.Load()

	config := &AppConfig{
		ServerPort:  getEnv("APP_PORT", "8080"),
		KafkaBroker: getEnv("KAFKA_BROKER", ""),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "pnp_events"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		Moonraker: MoonrakerConfig{
			Host:      getEnv("MOONRAKER_HOST", "localhost"),
			Port:      getEnvAsInt("MOONRAKER_PORT", 7125),
			APIKey:    getEnv("MOONRAKER_API_KEY", ""),
			TimeoutMs: getEnvAsInt("MOONRAKER_TIMEOUT_MS", 5000),
		},
		Engine: EngineConfig{
			QueueMaxSize:      getEnvAsInt("QUEUE_MAX_SIZE", 1000),
			HistoryMaxEntries: getEnvAsInt("HISTORY_MAX_ENTRIES", 1000),
			DefaultTimeoutMs:  getEnvAsInt("DEFAULT_TIMEOUT_MS", 30000),
		},
		Cache: CacheConfig{
			DefaultTTLMs:      getEnvAsInt("CACHE_DEFAULT_TTL_MS", 1000),
			MaxSize:           getEnvAsInt("CACHE_MAX_SIZE", 10000),
			CleanupIntervalMs: getEnvAsInt("CACHE_CLEANUP_INTERVAL_MS", 10000),
			AutoRefresh:       getEnvAsBool("CACHE_AUTO_REFRESH", true),
		},
		Logging: LoggerConfig{
			Enable:     getEnvAsBool("LOGGER_ENABLE", true),
			LogsDir:    getEnv("LOGGER_LOGS_DIR", "./logs"),
			Level:      getEnv("LOGGER_LOG_LEVEL", "DEBUG"),
			SavingDays: getEnvAsInt("LOGGER_SAVING_DAYS", 7),
		},
	}

	return config, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(name string, defaultValue int) int {
	valueStr := getEnv(name, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	val, _ := strconv.ParseBool(value)
	return val
}
