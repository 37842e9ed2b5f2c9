package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики движка ликвидаций
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах
// - Контроль того, что авторитетный sweep реально выполняется

// ============ Метрики sweep ============

// SweepsTotal - количество запусков sweep по источникам триггера
var SweepsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "memeperp",
		Subsystem: "engine",
		Name:      "sweeps_total",
		Help:      "Total number of liquidation sweeps by trigger source",
	},
	[]string{"trigger"}, // server, http, cron, watcher
)

// SweepDuration - длительность полного прохода sweep
var SweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "memeperp",
		Subsystem: "engine",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a full liquidation sweep pass",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
)

// PositionsEvaluated - количество оценённых позиций
var PositionsEvaluated = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "memeperp",
		Subsystem: "engine",
		Name:      "positions_evaluated_total",
		Help:      "Total number of open positions evaluated for breach",
	},
)

// LiquidationsTotal - количество исполненных ликвидаций
var LiquidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "memeperp",
		Subsystem: "engine",
		Name:      "liquidations_total",
		Help:      "Total number of settled liquidations",
	},
	[]string{"symbol"},
)

// SweepErrors - ошибки по стадиям sweep
var SweepErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "memeperp",
		Subsystem: "engine",
		Name:      "sweep_errors_total",
		Help:      "Per-position and per-pair errors during sweeps",
	},
	[]string{"stage"}, // list, price, settle
)

// OpenPositions - текущее количество открытых позиций (снимок на sweep)
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "memeperp",
		Subsystem: "engine",
		Name:      "open_positions",
		Help:      "Number of open positions observed by the last sweep",
	},
)

// ============ Метрики оракула ============

// OracleRequestDuration - латентность запросов к ценовому фиду
var OracleRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "memeperp",
		Subsystem: "oracle",
		Name:      "request_duration_seconds",
		Help:      "Latency of oracle price requests",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"symbol"},
)

// OracleErrors - ошибки ценового фида
var OracleErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "memeperp",
		Subsystem: "oracle",
		Name:      "errors_total",
		Help:      "Oracle request failures by kind",
	},
	[]string{"kind"}, // unavailable, symbol_not_found
)
