// Пакет config — загрузка и валидация конфигурации Data Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/globecontacts/data-module/internal/domain/apperr"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Data Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера sidecar (слушает только localhost)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration
	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- Удалённая книга ---

	// Путь к JSON-файлу сервисного аккаунта (client_email, private_key, token_uri)
	CredentialsPath string
	// Идентификатор удалённой книги
	SpreadsheetID string
	// Базовый URL values/metadata API книги
	SheetsAPIURL string
	// OAuth2 scope для assertion
	TokenScope string
	// Таймаут исходящих HTTP-запросов (токен, книга, геокодер)
	HTTPClientTimeout time.Duration

	// Имена листов по типам таблиц
	ContactsSheet    string
	CommerciauxSheet string
	JournalSheet     string

	// --- Кэш чтения ---

	// TTL снимка таблицы в памяти (по умолчанию 2m)
	CacheTTL time.Duration

	// --- Геокодер ---

	// Базовый URL внешнего геокодера
	GeocoderURL string
	// Описательный User-Agent (требование сервиса геокодирования)
	GeocoderUserAgent string
	// Язык ответов геокодера (accept-language)
	GeocoderLang string
	// Минимальный интервал между внешними запросами геокодера
	GeocodeMinInterval time.Duration
	// Размер сессионного кэша геокодера
	GeocodeCacheSize int

	// --- Офлайн-кэш (PostgreSQL, опционально) ---

	// Хост PostgreSQL. Пустое значение отключает офлайн-кэш.
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// OfflineEnabled сообщает, сконфигурирован ли персистентный офлайн-кэш.
func (c *Config) OfflineEnabled() bool {
	return c.DBHost != ""
}

// DatabaseDSN возвращает DSN подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Load загружает конфигурацию из переменных окружения.
// Отсутствие обязательных переменных (credentials, идентификатор книги)
// возвращается как *apperr.ConfigError.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("DM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("DM_PORT: %w", err)
	}

	// DM_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("DM_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("DM_LOG_LEVEL: %w", err)
	}

	// DM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("DM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("DM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("DM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("DM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Удалённая книга ---

	// DM_CREDENTIALS_PATH — обязательный путь к JSON сервисного аккаунта
	cfg.CredentialsPath = os.Getenv("DM_CREDENTIALS_PATH")
	if cfg.CredentialsPath == "" {
		return nil, &apperr.ConfigError{Msg: "DM_CREDENTIALS_PATH не задана"}
	}

	// DM_SPREADSHEET_ID — обязательный идентификатор книги
	cfg.SpreadsheetID = os.Getenv("DM_SPREADSHEET_ID")
	if cfg.SpreadsheetID == "" {
		return nil, &apperr.ConfigError{Msg: "DM_SPREADSHEET_ID не задана"}
	}

	cfg.SheetsAPIURL = getEnvDefault("DM_SHEETS_API_URL", "https://sheets.googleapis.com/v4/spreadsheets")
	cfg.TokenScope = getEnvDefault("DM_TOKEN_SCOPE", "https://www.googleapis.com/auth/spreadsheets")

	cfg.HTTPClientTimeout, err = getEnvDuration("DM_HTTP_CLIENT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_CLIENT_TIMEOUT: %w", err)
	}

	cfg.ContactsSheet = getEnvDefault("DM_CONTACTS_SHEET", "Contacts")
	cfg.CommerciauxSheet = getEnvDefault("DM_COMMERCIAUX_SHEET", "Commerciaux")
	cfg.JournalSheet = getEnvDefault("DM_JOURNAL_SHEET", "Journal")

	// --- Кэш чтения ---

	cfg.CacheTTL, err = getEnvDuration("DM_CACHE_TTL", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DM_CACHE_TTL: %w", err)
	}

	// --- Геокодер ---

	cfg.GeocoderURL = getEnvDefault("DM_GEOCODER_URL", "https://nominatim.openstreetmap.org/search")
	cfg.GeocoderUserAgent = getEnvDefault("DM_GEOCODER_USER_AGENT",
		"globecontacts-data-module/"+Version+" (visualisation d'annuaire)")
	cfg.GeocoderLang = getEnvDefault("DM_GEOCODER_LANG", "fr")

	// DM_GEOCODE_MIN_INTERVAL — глобальный троттлинг внешних запросов.
	// Политика сервиса геокодирования: не чаще одного запроса в секунду.
	cfg.GeocodeMinInterval, err = getEnvDuration("DM_GEOCODE_MIN_INTERVAL", 1100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("DM_GEOCODE_MIN_INTERVAL: %w", err)
	}

	cfg.GeocodeCacheSize, err = getEnvInt("DM_GEOCODE_CACHE_SIZE", 2048)
	if err != nil {
		return nil, fmt.Errorf("DM_GEOCODE_CACHE_SIZE: %w", err)
	}

	// --- Офлайн-кэш ---

	// DM_OFFLINE_DB_HOST — пустое значение отключает офлайн-кэш
	cfg.DBHost = os.Getenv("DM_OFFLINE_DB_HOST")
	if cfg.DBHost != "" {
		cfg.DBPort, err = getEnvInt("DM_OFFLINE_DB_PORT", 5432)
		if err != nil {
			return nil, fmt.Errorf("DM_OFFLINE_DB_PORT: %w", err)
		}
		cfg.DBName = getEnvDefault("DM_OFFLINE_DB_NAME", "globecontacts")
		cfg.DBUser, err = getEnvRequired("DM_OFFLINE_DB_USER")
		if err != nil {
			return nil, err
		}
		cfg.DBPassword, err = getEnvRequired("DM_OFFLINE_DB_PASSWORD")
		if err != nil {
			return nil, err
		}
		cfg.DBSSLMode = getEnvDefault("DM_OFFLINE_DB_SSLMODE", "disable")
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
