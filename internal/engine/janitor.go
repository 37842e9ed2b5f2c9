package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PositionPruner - операции обслуживания хранилища позиций
type PositionPruner interface {
	CountOpen(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, timestamp time.Time) (int64, error)
}

// Janitor - фоновое обслуживание хранилища позиций
//
// Раз в JanitorInterval удаляет закрытые позиции старше retention
// и обновляет gauge открытых позиций между sweep'ами. Открытые
// позиции не удаляются никогда, сколько бы им ни было: retention
// касается только завершённой истории.
type Janitor struct {
	positions PositionPruner
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

// NewJanitor создает janitor
func NewJanitor(positions PositionPruner, retention, interval time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		positions: positions,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Run запускает цикл обслуживания до отмены контекста.
// Вызывается в отдельной горутине из main.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("position janitor started",
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("position janitor stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

// runOnce выполняет один цикл обслуживания. Сбой не фатален:
// следующий тик повторит попытку
func (j *Janitor) runOnce(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)

	pruned, err := j.positions.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("position pruning failed", zap.Error(err))
	} else if pruned > 0 {
		j.logger.Info("closed positions pruned",
			zap.Int64("pruned", pruned),
			zap.Time("cutoff", cutoff),
		)
	}

	open, err := j.positions.CountOpen(ctx)
	if err != nil {
		j.logger.Error("open position count failed", zap.Error(err))
		return
	}
	OpenPositions.Set(float64(open))
}
