package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memeperp/internal/api"
	"memeperp/internal/config"
	"memeperp/internal/engine"
	"memeperp/internal/oracle"
	"memeperp/internal/repository"
	"memeperp/internal/service"
	"memeperp/internal/websocket"
	"memeperp/pkg/retry"
	"memeperp/pkg/utils"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// .env опционален: в production конфигурация приходит из окружения
	_ = godotenv.Load()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		utils.Fatal("Failed to connect to database", utils.Err(err))
	}
	defer db.Close()

	utils.Info("Connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	positionRepo := repository.NewPositionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Ценовой оракул
	priceOracle := oracle.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.RateLimit, cfg.Oracle.RateBurst)

	// WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Инициализация сервисов
	positionService := service.NewPositionService(positionRepo, ledgerRepo, priceOracle, hub, cfg.Trading)
	ledgerService := service.NewLedgerService(ledgerRepo, hub, cfg.Security.SystemActorID)
	userService := service.NewUserService(userRepo, cfg.Trading.InitialBalance)

	// Движок ликвидаций: координатор + watcher + серверный цикл
	coordinator := engine.NewCoordinator(
		positionRepo,
		priceOracle,
		ledgerService,
		hub,
		cfg.Engine.OracleTimeout,
		logger.Logger.Named("sweep"),
	)
	watcher := engine.NewWatcher(coordinator, hub, cfg.Engine.WatcherInterval, logger.Logger.Named("watcher"))
	janitor := engine.NewJanitor(positionRepo, cfg.Engine.PositionRetention, cfg.Engine.JanitorInterval, logger.Logger.Named("janitor"))

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go watcher.Run(bgCtx)
	go janitor.Run(bgCtx)
	go runServerSweep(bgCtx, coordinator, cfg.Engine.SweepInterval)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		PositionService: positionService,
		LedgerService:   ledgerService,
		UserService:     userService,
		PriceOracle:     priceOracle,
		SweepRunner:     coordinator,
		Hub:             hub,
		Security:        cfg.Security,
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		utils.Info("Starting server", utils.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				utils.Fatal("Server failed", utils.Err(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				utils.Fatal("Server failed", utils.Err(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Info("Shutting down server...")

	// Останавливаем фоновые циклы и отключаем WS клиентов
	bgCancel()
	hub.Stop()
	oracle.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		utils.Fatal("Server forced to shutdown", utils.Err(err))
	}

	utils.Info("Server exited")
}

// runServerSweep - авторитетный серверный цикл ликвидаций.
// Тикает всегда, независимо от подключенных клиентов
func runServerSweep(ctx context.Context, coordinator *engine.Coordinator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := coordinator.Sweep(ctx, "server"); err != nil {
				utils.Error("server sweep failed", utils.Err(err))
			}
		}
	}
}

// initDatabase создает подключение к базе данных.
// Ping повторяется с экспоненциальным backoff: при старте в docker-compose
// postgres может подняться позже приложения
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = 10
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		utils.Warn("database not ready, retrying",
			utils.Int("attempt", attempt),
			utils.Err(err),
			utils.Any("delay", delay.String()),
		)
	}

	if err := retry.Do(ctx, func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return db.PingContext(pingCtx)
	}, retryCfg); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
