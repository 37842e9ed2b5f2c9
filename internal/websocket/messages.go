package websocket

import (
	"time"

	"memeperp/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypePositionUpdate - открытие или ручное закрытие позиции
	MessageTypePositionUpdate MessageType = "positionUpdate"

	// MessageTypeLiquidation - позиция ликвидирована движком
	MessageTypeLiquidation MessageType = "liquidation"

	// MessageTypeBalanceUpdate - изменение баланса пользователя
	// Отправляется после депозита и выплаты при закрытии
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"

	// MessageTypeStatsUpdate - итоги завершенного прохода ликвидаций
	MessageTypeStatsUpdate MessageType = "statsUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// PositionUpdateMessage - сообщение об изменении позиции
type PositionUpdateMessage struct {
	BaseMessage
	Position *models.Position `json:"position"`
}

// LiquidationMessage - сообщение о ликвидации
//
// Содержит снимок позиции после расчета: статус liquidated,
// зафиксированные exit_price и pnl
type LiquidationMessage struct {
	BaseMessage
	Position *models.Position `json:"position"`
}

// BalanceUpdateMessage - сообщение об обновлении баланса пользователя
type BalanceUpdateMessage struct {
	BaseMessage
	UserID  int     `json:"user_id"`
	Balance float64 `json:"balance"`
}

// StatsUpdateMessage - сообщение с итогами прохода ликвидаций
type StatsUpdateMessage struct {
	BaseMessage
	Data *SweepStatsData `json:"data"`
}

// SweepStatsData - агрегат одного прохода
type SweepStatsData struct {
	Trigger       string `json:"trigger"`
	OpenPositions int    `json:"open_positions"`
	Evaluated     int    `json:"evaluated"`
	Liquidated    int    `json:"liquidated"`
}

// ============ Фабричные функции для создания сообщений ============

// NewPositionUpdateMessage создает сообщение изменения позиции
func NewPositionUpdateMessage(p *models.Position) *PositionUpdateMessage {
	return &PositionUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePositionUpdate,
			Timestamp: time.Now(),
		},
		Position: p,
	}
}

// NewLiquidationMessage создает сообщение о ликвидации
func NewLiquidationMessage(p *models.Position) *LiquidationMessage {
	return &LiquidationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeLiquidation,
			Timestamp: time.Now(),
		},
		Position: p,
	}
}

// NewBalanceUpdateMessage создает сообщение обновления баланса
func NewBalanceUpdateMessage(userID int, balance float64) *BalanceUpdateMessage {
	return &BalanceUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeBalanceUpdate,
			Timestamp: time.Now(),
		},
		UserID:  userID,
		Balance: balance,
	}
}

// NewStatsUpdateMessage создает сообщение с итогами прохода
func NewStatsUpdateMessage(trigger string, open, evaluated, liquidated int) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatsUpdate,
			Timestamp: time.Now(),
		},
		Data: &SweepStatsData{
			Trigger:       trigger,
			OpenPositions: open,
			Evaluated:     evaluated,
			Liquidated:    liquidated,
		},
	}
}

// ============ Broadcast-хелперы доменных событий ============

// BroadcastPositionUpdate транслирует изменение позиции
func (h *Hub) BroadcastPositionUpdate(p *models.Position) {
	h.Broadcast(NewPositionUpdateMessage(p))
}

// BroadcastLiquidation транслирует ликвидацию.
// Реализует интерфейс Broadcaster движка
func (h *Hub) BroadcastLiquidation(p *models.Position) {
	h.Broadcast(NewLiquidationMessage(p))
}

// BroadcastBalanceUpdate транслирует изменение баланса
func (h *Hub) BroadcastBalanceUpdate(userID int, balance float64) {
	h.Broadcast(NewBalanceUpdateMessage(userID, balance))
}

// BroadcastSweepStats транслирует итоги завершенного прохода
func (h *Hub) BroadcastSweepStats(trigger string, open, evaluated, liquidated int) {
	h.Broadcast(NewStatsUpdateMessage(trigger, open, evaluated, liquidated))
}
