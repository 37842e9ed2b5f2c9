package engine

import "memeperp/internal/models"

// IsBreached решает, пробит ли порог ликвидации позиции текущей ценой.
//
//	long:  пробой при currentPrice <= liquidation_price
//	short: пробой при currentPrice >= liquidation_price
//
// Равенство считается пробоем в обоих направлениях - граница включена
// намеренно: при касании порога позиция уже не имеет запаса.
//
// Функция тотальна над своими двумя аргументами и не имеет побочных
// эффектов; позиция с неизвестным направлением никогда не пробита.
func IsBreached(p *models.Position, currentPrice float64) bool {
	switch p.Direction {
	case models.DirectionLong:
		return currentPrice <= p.LiquidationPrice
	case models.DirectionShort:
		return currentPrice >= p.LiquidationPrice
	default:
		return false
	}
}
