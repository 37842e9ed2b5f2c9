// Package engine содержит ядро движка маржинальных позиций:
// чистую математику цены/риска, оценку пробоя и sweep ликвидаций.
package engine

import "memeperp/internal/models"

// pricing.go - расчёт цены ликвидации, цены исполнения и комиссий
//
// Все функции чистые и детерминированные: без I/O, без скрытого состояния.
// Повторный вызов с теми же аргументами всегда даёт тот же результат.

// LiquidationPrice вычисляет порог ликвидации позиции.
//
// Формулы:
//
//	long:  entry × (1 - (1/leverage - mm)), не ниже 0
//	short: entry × (1 + (1/leverage - mm))
//
// При убытке в долю 1/leverage залог позиции исчерпан полностью.
// Вычитание maintenance margin (mm) сдвигает срабатывание чуть раньше
// полного обнуления - платформе нужен запас, чтобы успеть исполнить
// принудительное закрытие до того, как убыток превысит залог.
//
// Вырожденные входы (entryPrice <= 0, leverage < 1) дают 0 - вызывающий
// обязан отклонить такую позицию до сохранения.
//
// Примеры (mm = 0.025):
//   - LiquidationPrice(long, 100, 10)  = 100 × (1 - 0.075) = 92.5
//   - LiquidationPrice(short, 100, 10) = 100 × (1 + 0.075) = 107.5
func LiquidationPrice(direction string, entryPrice, leverage, maintenanceMarginRate float64) float64 {
	if entryPrice <= 0 || leverage < 1 {
		return 0
	}

	lossFraction := 1/leverage - maintenanceMarginRate

	switch direction {
	case models.DirectionLong:
		price := entryPrice * (1 - lossFraction)
		if price < 0 {
			return 0
		}
		return price
	case models.DirectionShort:
		return entryPrice * (1 + lossFraction)
	default:
		return 0
	}
}

// SpreadAdjustedPrice вычисляет цену исполнения с учётом спреда платформы.
//
// Правило знака: открытие long и закрытие short исполняются по
// price × (1 + spread); открытие short и закрытие long - по
// price × (1 - spread). Скорректированная цена ВСЕГДА хуже сырой цены
// оракула для трейдера - это структурное преимущество платформы.
// Одна и та же конвенция знака применяется на каждом исполнении.
//
// Примеры (spread = 0.025):
//   - открытие long по 100  -> 102.5
//   - закрытие long по 100  -> 97.5
func SpreadAdjustedPrice(price float64, direction string, isClosing bool, spreadRate float64) float64 {
	buySide := (direction == models.DirectionLong) != isClosing

	if buySide {
		return price * (1 + spreadRate)
	}
	return price * (1 - spreadRate)
}

// Fee вычисляет комиссию за исполнение.
//
// База комиссии - номинальный размер позиции (collateral × leverage),
// а не залог: плечо увеличивает и комиссию.
//
// Пример: Fee(1000, 5, 0.001) = 5
func Fee(collateral, leverage, feeRate float64) float64 {
	return collateral * leverage * feeRate
}

// PositionPnl вычисляет реализованный PNL позиции при выходе по exitPrice.
//
//	long:  (exit - entry) × qty
//	short: (entry - exit) × qty
//
// где qty = notional / entry.
func PositionPnl(p *models.Position, exitPrice float64) float64 {
	qty := p.Quantity()
	if qty <= 0 {
		return 0
	}

	switch p.Direction {
	case models.DirectionLong:
		return (exitPrice - p.EntryPrice) * qty
	case models.DirectionShort:
		return (p.EntryPrice - exitPrice) * qty
	default:
		return 0
	}
}
