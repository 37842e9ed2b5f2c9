package api

import (
	"net/http"

	"memeperp/internal/api/handlers"
	"memeperp/internal/api/middleware"
	"memeperp/internal/config"
	"memeperp/internal/service"
	"memeperp/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	PositionService service.PositionServiceInterface
	LedgerService   service.LedgerServiceInterface
	UserService     service.UserServiceInterface
	PriceOracle     service.PriceOracleInterface
	SweepRunner     handlers.SweepRunner
	Hub             *websocket.Hub
	Security        config.SecurityConfig
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
// Организует версионирование API (v1).
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /users/
//	│   └── POST / - создать пользователя
//	├── /positions/
//	│   ├── POST / - открыть позицию
//	│   ├── GET / - список позиций пользователя
//	│   ├── GET /{id} - получить позицию
//	│   └── POST /{id}/close - закрыть позицию по рынку
//	├── /balance - GET баланс пользователя
//	├── /ledger - GET журнал операций
//	├── /market/
//	│   ├── GET /price - текущая цена пары
//	│   └── GET /klines - свечи
//	└── /liquidations/
//	    └── GET /sweep - запустить проход ликвидаций (bearer)
//
// /internal/tasks/{cron_path} - GET|POST альтернативный sweep триггер,
// защищен только секретностью пути (регистрируется если CRON_PATH задан)
//
// /webhooks/deposit - POST депозитный webhook (HMAC-SHA512 подпись)
//
// /ws/stream - WebSocket для real-time обновлений
//
// /health, /metrics - служебные endpoints
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. SweepAuth (только для /api/v1/liquidations/*)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var userHandler *handlers.UserHandler
	if deps != nil && deps.UserService != nil {
		userHandler = handlers.NewUserHandler(deps.UserService)
	}

	var positionHandler *handlers.PositionHandler
	if deps != nil && deps.PositionService != nil {
		positionHandler = handlers.NewPositionHandler(deps.PositionService)
	}

	var ledgerHandler *handlers.LedgerHandler
	if deps != nil && deps.LedgerService != nil {
		ledgerHandler = handlers.NewLedgerHandler(deps.LedgerService)
	}

	var marketHandler *handlers.MarketHandler
	if deps != nil && deps.PriceOracle != nil {
		marketHandler = handlers.NewMarketHandler(deps.PriceOracle)
	}

	var sweepHandler *handlers.SweepHandler
	if deps != nil && deps.SweepRunner != nil {
		sweepHandler = handlers.NewSweepHandler(deps.SweepRunner)
	}

	var depositHandler *handlers.DepositHandler
	if deps != nil && deps.LedgerService != nil {
		depositHandler = handlers.NewDepositHandler(deps.LedgerService, deps.Security.WebhookSecret)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// User routes
	if userHandler != nil {
		api.HandleFunc("/users", userHandler.CreateUser).Methods("POST")
	}

	// Position routes
	if positionHandler != nil {
		api.HandleFunc("/positions", positionHandler.OpenPosition).Methods("POST")
		api.HandleFunc("/positions", positionHandler.GetPositions).Methods("GET")
		api.HandleFunc("/positions/{id:[0-9]+}", positionHandler.GetPosition).Methods("GET")
		api.HandleFunc("/positions/{id:[0-9]+}/close", positionHandler.ClosePosition).Methods("POST")
	}

	// Ledger routes
	if ledgerHandler != nil {
		api.HandleFunc("/balance", ledgerHandler.GetBalance).Methods("GET")
		api.HandleFunc("/ledger", ledgerHandler.GetLedger).Methods("GET")
	}

	// Market routes
	if marketHandler != nil {
		api.HandleFunc("/market/price", marketHandler.GetPrice).Methods("GET")
		api.HandleFunc("/market/klines", marketHandler.GetKlines).Methods("GET")
	}

	// Sweep routes
	if sweepHandler != nil {
		// Основной endpoint под bearer-токеном
		liquidations := api.PathPrefix("/liquidations").Subrouter()
		if deps != nil {
			liquidations.Use(middleware.SweepAuth(deps.Security.SweepSecret))
		}
		liquidations.HandleFunc("/sweep", sweepHandler.TriggerSweep).Methods("GET")

		// Альтернативный триггер для внешних cron планировщиков,
		// которые не умеют выставлять заголовки. Охраняется только
		// секретностью сегмента пути
		if deps != nil && deps.Security.CronPath != "" {
			router.HandleFunc("/internal/tasks/"+deps.Security.CronPath,
				sweepHandler.TriggerCronSweep).Methods("GET", "POST")
		}
	}

	// Deposit webhook (вне /api/v1: внешний контракт провайдера)
	if depositHandler != nil {
		router.HandleFunc("/webhooks/deposit", depositHandler.HandleDeposit).Methods("POST")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
