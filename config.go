package klipperplace

import (
	"os"
	"strconv"
)

// Config хранит модель конфигурации клиентской библиотеки
type Config struct {
	Host      string
	Port      int
	APIKey    string
	TimeoutMs int
	LogLevel  string
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	host := os.Getenv("MOONRAKER_HOST")
	if host == "" {
		host = "localhost"
	}

	portStr := os.Getenv("MOONRAKER_PORT")
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		port = 7125
	}

	timeoutStr := os.Getenv("MOONRAKER_TIMEOUT_MS")
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil || timeout == 0 {
		timeout = 5000
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		Host:      host,
		Port:      port,
		APIKey:    os.Getenv("MOONRAKER_API_KEY"),
		TimeoutMs: timeout,
		LogLevel:  logLevel,
	}
}
