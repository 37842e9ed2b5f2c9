package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - структурированное логирование поверх zap
//
// Назначение:
// Единая точка настройки логирования для всего приложения.
// JSON формат для production, console для разработки.
//
// Использование:
//
//	logger := utils.InitGlobalLogger(utils.LogConfig{Level: "info", Format: "json"})
//	defer logger.Sync()
//	utils.Info("server started", utils.Int("port", 8080))

// LogConfig - настройки логгера
type LogConfig struct {
	// Level: debug, info, warn, error, fatal. По умолчанию info
	Level string

	// Format: json или text. По умолчанию json
	Format string

	// Output - путь к файлу лога. Пустое значение = stderr.
	// При ошибке открытия файла fallback на stderr
	Output string

	// Development включает caller и stacktrace на warn+
	Development bool
}

// Logger оборачивает zap.Logger вместе с sugar-вариантом
// для форматированных сообщений
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// parseLevel преобразует строковый уровень в zapcore.Level.
// Неизвестные значения дают InfoLevel
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger создает новый настроенный логгер
func InitLogger(config LogConfig) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(config.Format) {
	case "text", "console":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if config.Output != "" {
		file, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			sink = zapcore.AddSync(file)
		}
		// при ошибке остаёмся на stderr
	}

	core := zapcore.NewCore(encoder, sink, parseLevel(config.Level))

	opts := []zap.Option{}
	if config.Development {
		opts = append(opts,
			zap.Development(),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.WarnLevel),
		)
	}

	zl := zap.New(core, opts...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// With возвращает дочерний логгер с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{
		Logger: child,
		sugar:  child.Sugar(),
	}
}

// WithComponent - дочерний логгер с полем component
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithSymbol - дочерний логгер с полем symbol
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// WithUserID - дочерний логгер с полем user_id
func (l *Logger) WithUserID(id int) *Logger {
	return l.With(UserID(id))
}

// WithPositionID - дочерний логгер с полем position_id
func (l *Logger) WithPositionID(id int) *Logger {
	return l.With(PositionID(id))
}

// Sugar возвращает sugar-вариант для printf-style логирования
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============ Глобальный логгер ============

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitGlobalLogger инициализирует и устанавливает глобальный логгер
func InitGlobalLogger(config LogConfig) *Logger {
	logger := InitLogger(config)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger устанавливает глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger возвращает глобальный логгер, лениво создавая
// логгер по умолчанию при первом обращении
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	if globalLogger != nil {
		defer globalMu.RUnlock()
		return globalLogger
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий псевдоним для GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// ============ Глобальные функции логирования ============

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

func Debugf(template string, args ...interface{}) { L().sugar.Debugf(template, args...) }
func Infof(template string, args ...interface{}) { L().sugar.Infof(template, args...) }
func Warnf(template string, args ...interface{}) { L().sugar.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { L().sugar.Errorf(template, args...) }

// ============ Конструкторы доменных полей ============

// Symbol - торговая пара (DOGEUSDT)
func Symbol(symbol string) zap.Field { return zap.String("symbol", symbol) }

// PositionID - идентификатор позиции
func PositionID(id int) zap.Field { return zap.Int("position_id", id) }

// UserID - идентификатор пользователя
func UserID(id int) zap.Field { return zap.Int("user_id", id) }

// Price - цена
func Price(price float64) zap.Field { return zap.Float64("price", price) }

// Leverage - плечо позиции
func Leverage(leverage float64) zap.Field { return zap.Float64("leverage", leverage) }

// Collateral - залог позиции
func Collateral(collateral float64) zap.Field { return zap.Float64("collateral", collateral) }

// PNL - прибыль/убыток
func PNL(pnl float64) zap.Field { return zap.Float64("pnl", pnl) }

// Side - направление позиции (long/short)
func Side(side string) zap.Field { return zap.String("side", side) }

// Trigger - источник запуска sweep (server/http/cron/watcher)
func Trigger(trigger string) zap.Field { return zap.String("trigger", trigger) }

// Reference - ссылка записи журнала
func Reference(reference string) zap.Field { return zap.String("reference", reference) }

// Latency - длительность операции в миллисекундах
func Latency(ms float64) zap.Field { return zap.Float64("latency_ms", ms) }

// RequestID - идентификатор запроса
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// Component - подсистема приложения
func Component(name string) zap.Field { return zap.String("component", name) }

// ============ Переэкспорт стандартных конструкторов zap ============

func String(key, value string) zap.Field { return zap.String(key, value) }
func Int(key string, value int) zap.Field { return zap.Int(key, value) }
func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }
func Err(err error) zap.Field { return zap.Error(err) }
func Any(key string, value interface{}) zap.Field { return zap.Any(key, value) }

// fieldsToInterface разворачивает zap поля в пары key/value
// для передачи в sugar-логгер
func fieldsToInterface(fields []zap.Field) []interface{} {
	result := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		var value interface{}
		switch {
		case f.Interface != nil:
			value = f.Interface
		case f.String != "":
			value = f.String
		default:
			value = f.Integer
		}
		result = append(result, f.Key, value)
	}
	return result
}
