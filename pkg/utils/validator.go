package utils

import (
	"errors"
	"strings"
)

// validator.go - валидация форматов входных данных
//
// Назначение:
// Чистые проверки формата без обращения к конфигурации или БД.
// Диапазонные проверки (плечо, залог) живут в сервисном слое,
// потому что зависят от настроек площадки.

var (
	// ErrBadSymbol - символ не похож на торговую пару
	ErrBadSymbol = errors.New("symbol must be 5-20 uppercase letters or digits")

	// ErrBadUsername - имя пользователя вне допустимого формата
	ErrBadUsername = errors.New("username must be 3-32 characters: letters, digits, underscore")

	// ErrBadReference - ссылка платежного события вне формата
	ErrBadReference = errors.New("reference must be 1-128 printable characters")
)

// NormalizeSymbol приводит торговый символ к каноническому виду
// (верхний регистр, без пробелов) и валидирует формат.
//
// Примеры:
//   - "dogeusdt " -> "DOGEUSDT"
//   - "PEPE-USDT" -> ошибка (допустимы только A-Z и 0-9)
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if len(symbol) < 5 || len(symbol) > 20 {
		return "", ErrBadSymbol
	}
	for _, c := range symbol {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", ErrBadSymbol
		}
	}
	return symbol, nil
}

// ValidateUsername проверяет формат имени пользователя
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 32 {
		return ErrBadUsername
	}
	for _, c := range username {
		ok := (c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '_'
		if !ok {
			return ErrBadUsername
		}
	}
	return nil
}

// ValidateReference проверяет формат внешней ссылки платежного события.
// Ссылка попадает в уникальный индекс, поэтому ограничиваем длину
// и отсекаем управляющие символы
func ValidateReference(reference string) error {
	if len(reference) == 0 || len(reference) > 128 {
		return ErrBadReference
	}
	for _, c := range reference {
		if c < 0x21 || c > 0x7e {
			return ErrBadReference
		}
	}
	return nil
}
