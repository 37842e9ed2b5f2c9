package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Trading  TradingConfig
	Engine   EngineConfig
	Oracle   OracleConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// SweepSecret - bearer токен для защищённого sweep endpoint.
	// Пустое значение = незащищённый режим (допустим только для dev,
	// логируется как предупреждение при старте).
	SweepSecret string

	// CronPath - секретный сегмент пути для альтернативного sweep endpoint
	// без bearer проверки. Защита только секретностью пути.
	CronPath string

	// WebhookSecret - shared secret для HMAC-SHA512 подписи депозитных webhook
	WebhookSecret string

	// SystemActorID - идентификатор системного актора для атрибуции
	// сгенерированных движком записей журнала. Никогда не хардкодится в логике.
	SystemActorID int
}

// TradingConfig - параметры торговли и риска
type TradingConfig struct {
	// MaintenanceMarginRate - минимальная доля капитала (mm), при которой
	// позиция ещё жива. Ликвидация срабатывает чуть раньше полного
	// исчерпания залога, оставляя платформе буфер на исполнение.
	MaintenanceMarginRate float64

	// SpreadRate - корректировка цены исполнения относительно оракула.
	// Всегда двигает цену против трейдера.
	SpreadRate float64

	// FeeRate - комиссия от номинала (collateral × leverage)
	FeeRate float64

	// MaxLeverage - максимальное допустимое плечо
	MaxLeverage float64

	// MinCollateral - минимальный залог для открытия позиции в USDT
	MinCollateral float64

	// InitialBalance - стартовый демо-баланс нового пользователя в USDT
	InitialBalance float64
}

// EngineConfig - настройки движка ликвидаций
type EngineConfig struct {
	// SweepInterval - период авторитетного серверного sweep
	SweepInterval time.Duration

	// WatcherInterval - период best-effort клиентского watcher
	// (работает только пока подключена хотя бы одна WS сессия)
	WatcherInterval time.Duration

	// OracleTimeout - бюджет времени на один запрос к оракулу.
	// По истечении запрос завершается ошибкой, пара пропускается
	// до следующего sweep.
	OracleTimeout time.Duration

	// JanitorInterval - период фонового обслуживания: чистка
	// старых закрытых позиций и обновление gauge открытых
	JanitorInterval time.Duration

	// PositionRetention - срок хранения закрытых позиций.
	// Открытые позиции не удаляются никогда.
	PositionRetention time.Duration
}

// OracleConfig - настройки адаптера ценового оракула
type OracleConfig struct {
	BaseURL   string
	RateLimit float64 // запросов в секунду
	RateBurst float64
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "memeperp"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			SweepSecret:   getEnv("SWEEP_SECRET", ""),
			CronPath:      getEnv("CRON_PATH", ""),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
			SystemActorID: getEnvAsInt("SYSTEM_ACTOR_ID", 1),
		},
		Trading: TradingConfig{
			MaintenanceMarginRate: getEnvAsFloat("MAINTENANCE_MARGIN_RATE", 0.025),
			SpreadRate:            getEnvAsFloat("SPREAD_RATE", 0.025),
			FeeRate:               getEnvAsFloat("FEE_RATE", 0.001),
			MaxLeverage:           getEnvAsFloat("MAX_LEVERAGE", 100),
			MinCollateral:         getEnvAsFloat("MIN_COLLATERAL", 1),
			InitialBalance:        getEnvAsFloat("INITIAL_BALANCE", 10000),
		},
		Engine: EngineConfig{
			SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", 60*time.Second),
			WatcherInterval:   getEnvAsDuration("WATCHER_INTERVAL", 15*time.Second),
			OracleTimeout:     getEnvAsDuration("ORACLE_TIMEOUT", 5*time.Second),
			JanitorInterval:   getEnvAsDuration("JANITOR_INTERVAL", time.Hour),
			PositionRetention: getEnvAsDuration("POSITION_RETENTION", 90*24*time.Hour),
		},
		Oracle: OracleConfig{
			BaseURL:   getEnv("ORACLE_BASE_URL", "https://api.binance.com/api/v3"),
			RateLimit: getEnvAsFloat("ORACLE_RATE_LIMIT", 10),
			RateBurst: getEnvAsFloat("ORACLE_RATE_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// WEBHOOK_SECRET обязателен: без него невозможно проверить подпись
	// депозитных событий, а непроверенные зачисления недопустимы
	if c.Security.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required for verifying deposit webhooks")
	}

	if len(c.Security.WebhookSecret) < 16 {
		return fmt.Errorf("WEBHOOK_SECRET must be at least 16 characters")
	}

	// SWEEP_SECRET опционален (relaxed-security режим), но если задан -
	// должен быть достаточно длинным
	if c.Security.SweepSecret != "" && len(c.Security.SweepSecret) < 16 {
		return fmt.Errorf("SWEEP_SECRET must be at least 16 characters when set")
	}

	if c.Security.SystemActorID <= 0 {
		return fmt.Errorf("SYSTEM_ACTOR_ID must be positive, got %d", c.Security.SystemActorID)
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Maintenance margin должен оставлять платформе буфер, но не съедать
	// весь залог
	if c.Trading.MaintenanceMarginRate < 0 || c.Trading.MaintenanceMarginRate >= 1 {
		return fmt.Errorf("MAINTENANCE_MARGIN_RATE must be in [0, 1), got %v", c.Trading.MaintenanceMarginRate)
	}

	if c.Trading.SpreadRate < 0 || c.Trading.SpreadRate >= 1 {
		return fmt.Errorf("SPREAD_RATE must be in [0, 1), got %v", c.Trading.SpreadRate)
	}

	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		return fmt.Errorf("FEE_RATE must be in [0, 1), got %v", c.Trading.FeeRate)
	}

	if c.Trading.MaxLeverage < 1 {
		return fmt.Errorf("MAX_LEVERAGE must be at least 1, got %v", c.Trading.MaxLeverage)
	}

	if c.Trading.MinCollateral <= 0 {
		return fmt.Errorf("MIN_COLLATERAL must be positive, got %v", c.Trading.MinCollateral)
	}

	// Интервалы движка
	if c.Engine.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %v", c.Engine.SweepInterval)
	}

	if c.Engine.WatcherInterval <= 0 {
		return fmt.Errorf("WATCHER_INTERVAL must be positive, got %v", c.Engine.WatcherInterval)
	}

	if c.Engine.OracleTimeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be positive, got %v", c.Engine.OracleTimeout)
	}

	if c.Engine.JanitorInterval <= 0 {
		return fmt.Errorf("JANITOR_INTERVAL must be positive, got %v", c.Engine.JanitorInterval)
	}

	if c.Engine.PositionRetention <= 0 {
		return fmt.Errorf("POSITION_RETENTION must be positive, got %v", c.Engine.PositionRetention)
	}

	if c.Oracle.BaseURL == "" {
		return fmt.Errorf("ORACLE_BASE_URL cannot be empty")
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
