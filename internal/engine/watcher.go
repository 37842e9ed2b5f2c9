package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionCounter сообщает количество подключённых клиентских сессий
type SessionCounter interface {
	ClientCount() int
}

// Watcher - best-effort вторичный триггер sweep, привязанный к
// присутствию клиентских сессий
//
// Пока подключена хотя бы одна WS сессия, watcher запускает sweep
// каждые WatcherInterval (default 15s). Это сокращает задержку
// обнаружения пробоя для активных пользователей, но НЕ несёт гарантий
// корректности: авторитетный триггер - периодический серверный sweep.
// Ликвидация, пропущенная watcher'ом, будет исполнена следующим
// серверным проходом; корректность обеспечивается идемпотентностью
// расчёта, а не этим таймером.
type Watcher struct {
	coordinator *Coordinator
	sessions    SessionCounter
	interval    time.Duration
	logger      *zap.Logger
}

// NewWatcher создает watcher
func NewWatcher(coordinator *Coordinator, sessions SessionCounter, interval time.Duration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		coordinator: coordinator,
		sessions:    sessions,
		interval:    interval,
		logger:      logger,
	}
}

// Run запускает цикл watcher'а до отмены контекста.
// Вызывается в отдельной горутине из main.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("client watcher started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("client watcher stopped")
			return
		case <-ticker.C:
			// Нет активных сессий - нет и watcher-проходов
			if w.sessions.ClientCount() == 0 {
				continue
			}

			if _, err := w.coordinator.Sweep(ctx, "watcher"); err != nil {
				// Инфраструктурный сбой не фатален: следующий тик
				// или серверный sweep повторят попытку
				w.logger.Error("watcher sweep failed", zap.Error(err))
			}
		}
	}
}
