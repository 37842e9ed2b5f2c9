package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"memeperp/internal/models"
	"memeperp/internal/oracle"
)

// SettlementOutcome - результат попытки расчёта по одной позиции
type SettlementOutcome string

// Возможные исходы расчёта
const (
	// SettlementSettled - эта попытка закрыла позицию и записала журнал
	SettlementSettled SettlementOutcome = "settled"

	// SettlementAlreadySettled - позиция уже не open: кто-то успел раньше.
	// Тихий no-op, НЕ ошибка - именно это делает безопасным наложение
	// конкурентных sweep от cron и клиентского watcher.
	SettlementAlreadySettled SettlementOutcome = "already_settled"

	// SettlementNotFound - позиция с таким id не существует
	SettlementNotFound SettlementOutcome = "not_found"
)

// PositionLister отдаёт снимок открытых позиций всех пользователей
type PositionLister interface {
	GetOpen(ctx context.Context) ([]*models.Position, error)
}

// PriceSource отдаёт свежую цену тикера
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// Settler выполняет атомарный идемпотентный расчёт по одной позиции
type Settler interface {
	SettleLiquidation(ctx context.Context, position *models.Position, markPrice float64) (SettlementOutcome, error)
}

// Broadcaster рассылает события движка подключённым WS сессиям.
// Может быть nil - рассылка best-effort и не влияет на корректность.
type Broadcaster interface {
	BroadcastLiquidation(position *models.Position)
	BroadcastSweepStats(trigger string, open, evaluated, liquidated int)
}

// Result - агрегированный итог одного прохода sweep
type Result struct {
	Trigger        string    `json:"trigger"`
	StartedAt      time.Time `json:"started_at"`
	Duration       string    `json:"duration"`
	OpenPositions  int       `json:"open_positions"`
	Evaluated      int       `json:"evaluated"`
	Liquidated     int       `json:"liquidated"`
	AlreadySettled int       `json:"already_settled"`
	PriceFailures  int       `json:"price_failures"`  // позиции, пропущенные из-за оракула
	SettleFailures int       `json:"settle_failures"` // позиции с ошибкой расчёта
}

// Coordinator - координатор sweep ликвидаций
//
// Назначение:
// Один проход по ВСЕМ открытым позициям: оценить пробой и рассчитать
// пробитые позиции, ровно один раз на пробой, безопасно при конкурентных
// вызовах из нескольких триггеров (серверный cron + клиентский watcher).
//
// Протокол одного прохода:
//  1. Снимок открытых позиций (status = open).
//  2. Группировка по тикеру; ОДНА свежая цена на каждый тикер
//     (мемоизация только внутри прохода - между проходами кэша нет).
//  3. Оценка пробоя каждой позиции по цене её тикера.
//  4. Для пробитых - атомарный идемпотентный расчёт; повторный вызов
//     по уже закрытой позиции возвращает AlreadySettled, а не двойную
//     выплату.
//  5. Агрегация счётчиков; ошибка по одной позиции НЕ прерывает
//     обработку остальных.
//
// Sweep никогда не ждёт завершения другого sweep: единица взаимного
// исключения - позиция (транзакция расчёта), а не весь проход. Два
// наложившихся прохода просто обнаружат, что часть работы уже сделана.
// Запущенный проход не вытесняется более новым и работает по своему
// снимку до конца.
type Coordinator struct {
	positions PositionLister
	prices    PriceSource
	settler   Settler
	hub       Broadcaster

	oracleTimeout time.Duration
	logger        *zap.Logger
}

// NewCoordinator создает координатор sweep
func NewCoordinator(
	positions PositionLister,
	prices PriceSource,
	settler Settler,
	hub Broadcaster,
	oracleTimeout time.Duration,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		positions:     positions,
		prices:        prices,
		settler:       settler,
		hub:           hub,
		oracleTimeout: oracleTimeout,
		logger:        logger,
	}
}

// Sweep выполняет один полный проход оценки и ликвидаций.
//
// Возвращает ошибку только при инфраструктурном сбое уровня прохода
// (невозможно получить список позиций) - такие ошибки всплывают до
// триггерной границы как 500. Поштучные сбои (оракул, расчёт) считаются
// в Result и логируются, но проход продолжается.
func (c *Coordinator) Sweep(ctx context.Context, trigger string) (*Result, error) {
	start := time.Now()
	SweepsTotal.WithLabelValues(trigger).Inc()

	result := &Result{Trigger: trigger, StartedAt: start}

	// 1. Снимок открытых позиций
	open, err := c.positions.GetOpen(ctx)
	if err != nil {
		SweepErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("list open positions: %w", err)
	}

	result.OpenPositions = len(open)
	OpenPositions.Set(float64(len(open)))

	// 2. Одна свежая цена на каждый тикер этого прохода
	prices := c.fetchPrices(ctx, open, result)

	// 3-4. Оценка и расчёт
	for _, p := range open {
		price, ok := prices[p.PairSymbol]
		if !ok {
			// Цена тикера недоступна в этом проходе - позиция будет
			// повторно оценена следующим sweep по расписанию
			result.PriceFailures++
			continue
		}

		result.Evaluated++
		PositionsEvaluated.Inc()

		if !IsBreached(p, price) {
			continue
		}

		outcome, err := c.settler.SettleLiquidation(ctx, p, price)
		if err != nil {
			SweepErrors.WithLabelValues("settle").Inc()
			result.SettleFailures++
			c.logger.Error("settlement failed",
				zap.Int("position_id", p.ID),
				zap.String("symbol", p.PairSymbol),
				zap.Error(err),
			)
			continue
		}

		switch outcome {
		case SettlementSettled:
			result.Liquidated++
			LiquidationsTotal.WithLabelValues(p.PairSymbol).Inc()
			c.logger.Info("position liquidated",
				zap.Int("position_id", p.ID),
				zap.String("symbol", p.PairSymbol),
				zap.Float64("mark_price", price),
				zap.Float64("liquidation_price", p.LiquidationPrice),
			)
			if c.hub != nil {
				c.hub.BroadcastLiquidation(p)
			}
		case SettlementAlreadySettled:
			// Конкурентный sweep успел раньше - корректный no-op
			result.AlreadySettled++
		case SettlementNotFound:
			result.SettleFailures++
		}
	}

	elapsed := time.Since(start)
	SweepDuration.Observe(elapsed.Seconds())
	result.Duration = elapsed.String()

	if c.hub != nil {
		c.hub.BroadcastSweepStats(trigger, result.OpenPositions, result.Evaluated, result.Liquidated)
	}

	c.logger.Info("sweep finished",
		zap.String("trigger", trigger),
		zap.Int("open", result.OpenPositions),
		zap.Int("liquidated", result.Liquidated),
		zap.Int("price_failures", result.PriceFailures),
		zap.Duration("duration", elapsed),
	)

	return result, nil
}

// fetchPrices получает по одной свежей цене на каждый уникальный тикер.
// Недоступный тикер просто отсутствует в карте - его позиции
// пропускаются в этом проходе (fail fast, retry = следующий sweep).
func (c *Coordinator) fetchPrices(ctx context.Context, positions []*models.Position, result *Result) map[string]float64 {
	prices := make(map[string]float64)
	failed := make(map[string]bool)

	for _, p := range positions {
		symbol := p.PairSymbol
		if _, ok := prices[symbol]; ok {
			continue
		}
		if failed[symbol] {
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.oracleTimeout)
		reqStart := time.Now()
		price, err := c.prices.GetPrice(reqCtx, symbol)
		cancel()

		OracleRequestDuration.WithLabelValues(symbol).Observe(time.Since(reqStart).Seconds())

		if err != nil {
			failed[symbol] = true
			SweepErrors.WithLabelValues("price").Inc()
			OracleErrors.WithLabelValues(oracleErrorKind(err)).Inc()
			c.logger.Warn("price fetch failed, skipping pair for this pass",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}

		prices[symbol] = price
	}

	return prices
}

func oracleErrorKind(err error) string {
	if errors.Is(err, oracle.ErrSymbolNotFound) {
		return "symbol_not_found"
	}
	return "unavailable"
}
