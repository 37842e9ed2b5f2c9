package service

import (
	"context"

	"memeperp/internal/engine"
	"memeperp/internal/models"
	"memeperp/internal/oracle"
	"memeperp/internal/repository"
	"memeperp/internal/websocket"
)

// PositionRepositoryInterface определяет интерфейс репозитория позиций
type PositionRepositoryInterface interface {
	GetByID(ctx context.Context, id int) (*models.Position, error)
	GetOpen(ctx context.Context) ([]*models.Position, error)
	GetByUser(ctx context.Context, userID, limit int) ([]*models.Position, error)
	GetOpenByUser(ctx context.Context, userID int) ([]*models.Position, error)
}

// LedgerRepositoryInterface определяет интерфейс атомарных денежных операций
type LedgerRepositoryInterface interface {
	GetBalance(ctx context.Context, userID int) (float64, error)
	ListEntries(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error)
	OpenPosition(ctx context.Context, p *models.Position, fee float64) error
	ClosePosition(ctx context.Context, p *models.Position, exitPrice, pnl, payout float64, reason string, actorID int) error
	ProcessExternalCredit(ctx context.Context, reference string, userID int, amount float64) error
}

// UserRepositoryInterface определяет интерфейс репозитория пользователей
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// PriceOracleInterface определяет интерфейс ценового оракула
type PriceOracleInterface interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]oracle.Kline, error)
}

// EventBroadcaster рассылает доменные события подключённым WS сессиям.
// Может быть nil - рассылка best-effort и не влияет на корректность
type EventBroadcaster interface {
	BroadcastPositionUpdate(position *models.Position)
	BroadcastBalanceUpdate(userID int, balance float64)
}

// Проверяем, что реальные реализации удовлетворяют интерфейсам
var _ PositionRepositoryInterface = (*repository.PositionRepository)(nil)
var _ LedgerRepositoryInterface = (*repository.LedgerRepository)(nil)
var _ UserRepositoryInterface = (*repository.UserRepository)(nil)
var _ PriceOracleInterface = (*oracle.Client)(nil)
var _ EventBroadcaster = (*websocket.Hub)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// PositionServiceInterface определяет интерфейс сервиса позиций
type PositionServiceInterface interface {
	OpenPosition(ctx context.Context, req *OpenPositionRequest) (*models.Position, error)
	ClosePosition(ctx context.Context, userID, positionID int) (*models.Position, error)
	GetPosition(ctx context.Context, userID, positionID int) (*models.Position, error)
	ListPositions(ctx context.Context, userID, limit int) ([]*models.Position, error)
	ListOpenPositions(ctx context.Context, userID int) ([]*models.Position, error)
}

// LedgerServiceInterface определяет интерфейс сервиса леджера
type LedgerServiceInterface interface {
	ProcessExternalCredit(ctx context.Context, reference string, userID int, amount float64) error
	GetBalance(ctx context.Context, userID int) (float64, error)
	GetLedger(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error)
}

// UserServiceInterface определяет интерфейс сервиса пользователей
type UserServiceInterface interface {
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUser(ctx context.Context, id int) (*models.User, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ PositionServiceInterface = (*PositionService)(nil)
var _ LedgerServiceInterface = (*LedgerService)(nil)
var _ UserServiceInterface = (*UserService)(nil)

// LedgerService участвует в sweep как расчетчик ликвидаций
var _ engine.Settler = (*LedgerService)(nil)

// PositionRepository поставляет sweep список открытых позиций
// и операции обслуживания для janitor
var _ engine.PositionLister = (*repository.PositionRepository)(nil)
var _ engine.PositionPruner = (*repository.PositionRepository)(nil)

// Оракул поставляет sweep текущие цены
var _ engine.PriceSource = (*oracle.Client)(nil)
