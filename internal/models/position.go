package models

import "time"

// Position представляет маржинальную позицию пользователя
//
// Позиция изолированная: залог (collateral) списывается с баланса при
// открытии и является максимальным убытком пользователя по этой позиции.
// LiquidationPrice вычисляется ОДИН раз при открытии из entry_price,
// leverage и direction и больше никогда не пересчитывается — это защищает
// от дрейфа порога ликвидации при обновлениях цены.
type Position struct {
	ID               int        `json:"id" db:"id"`
	UserID           int        `json:"user_id" db:"user_id"`
	PairSymbol       string     `json:"pair_symbol" db:"pair_symbol"`             // DOGEUSDT
	Direction        string     `json:"direction" db:"direction"`                 // long, short
	Collateral       float64    `json:"collateral" db:"collateral"`               // залог в USDT
	Leverage         float64    `json:"leverage" db:"leverage"`                   // плечо (>= 1)
	EntryPrice       float64    `json:"entry_price" db:"entry_price"`             // цена входа с учётом спреда
	LiquidationPrice float64    `json:"liquidation_price" db:"liquidation_price"` // порог ликвидации (immutable)
	Status           string     `json:"status" db:"status"`                       // open, closed, liquidated
	ExitPrice        *float64   `json:"exit_price,omitempty" db:"exit_price"`     // цена выхода с учётом спреда
	Pnl              *float64   `json:"pnl,omitempty" db:"pnl"`                   // реализованный PNL
	CloseReason      string     `json:"close_reason,omitempty" db:"close_reason"` // manual, liquidation
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// Направления позиции
const (
	DirectionLong  = "long"  // ставка на рост
	DirectionShort = "short" // ставка на падение
)

// Статусы позиции
const (
	PositionStatusOpen       = "open"
	PositionStatusClosed     = "closed"
	PositionStatusLiquidated = "liquidated"
)

// Причины закрытия позиции
const (
	CloseReasonManual      = "manual"      // закрыта пользователем
	CloseReasonLiquidation = "liquidation" // принудительно закрыта движком
)

// Notional возвращает номинальный размер позиции (залог × плечо)
func (p *Position) Notional() float64 {
	return p.Collateral * p.Leverage
}

// Quantity возвращает количество базового актива в позиции
func (p *Position) Quantity() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return p.Notional() / p.EntryPrice
}

// IsOpen сообщает, открыта ли позиция
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}
