package models

import "time"

// User представляет аккаунт пользователя платформы
//
// Аутентификация и сессии — ответственность внешнего сервиса;
// здесь хранится только то, что нужно движку: баланс и hash пароля
// для начального создания аккаунта.
type User struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Balance      float64   `json:"balance" db:"balance"` // доступный баланс в USDT
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
