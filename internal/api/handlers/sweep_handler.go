package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"memeperp/internal/engine"
)

// SweepRunner запускает один проход ликвидаций
type SweepRunner interface {
	Sweep(ctx context.Context, trigger string) (*engine.Result, error)
}

// SweepHandler обрабатывает внешние триггеры sweep.
//
// Endpoints:
// - GET /api/v1/liquidations/sweep - защищен bearer-токеном (middleware)
// - GET|POST /internal/tasks/{cron_path} - защищен только секретностью пути
//
// Оба маршрута ведут в один handler: семантика прохода идентична,
// различается только способ охраны входа
type SweepHandler struct {
	coordinator SweepRunner
}

// NewSweepHandler создает новый SweepHandler
func NewSweepHandler(coordinator SweepRunner) *SweepHandler {
	return &SweepHandler{coordinator: coordinator}
}

// sweepResponse - контракт ответа триггера
type sweepResponse struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp string         `json:"timestamp"`
	Result    *engine.Result `json:"result,omitempty"`
}

// TriggerSweep запускает проход и возвращает агрегированный результат.
// 200 при завершенном проходе (поштучные сбои не считаются провалом),
// 500 при инфраструктурной ошибке уровня прохода
func (h *SweepHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	h.runSweep(w, r, "http")
}

// TriggerCronSweep - тот же проход, но с атрибуцией триггера "cron"
// для маршрута /internal/tasks/{cron_path}
func (h *SweepHandler) TriggerCronSweep(w http.ResponseWriter, r *http.Request) {
	h.runSweep(w, r, "cron")
}

func (h *SweepHandler) runSweep(w http.ResponseWriter, r *http.Request, trigger string) {
	result, err := h.coordinator.Sweep(r.Context(), trigger)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, sweepResponse{
			Status:    "error",
			Error:     err.Error(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, sweepResponse{
		Status:    "ok",
		Message:   fmt.Sprintf("sweep finished: %d evaluated, %d liquidated", result.Evaluated, result.Liquidated),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Result:    result,
	})
}
