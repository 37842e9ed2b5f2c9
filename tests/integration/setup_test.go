// Package integration contains integration tests for the perpetuals engine.
//
// These tests verify the correct interaction between components:
// - API integration tests: full HTTP request cycle
// - WebSocket tests: connection, broadcast messaging
// - Database tests: transactional settlement, idempotency guards
//
// Tests require a reachable PostgreSQL instance configured via TEST_DB_*
// environment variables and skip themselves when the database is unavailable.
package integration

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"memeperp/internal/api"
	"memeperp/internal/config"
	"memeperp/internal/engine"
	"memeperp/internal/oracle"
	"memeperp/internal/repository"
	"memeperp/internal/service"
	"memeperp/internal/websocket"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Secrets used by the test server routes
const (
	testSweepSecret   = "integration-sweep-secret"
	testCronPath      = "cron-3f9a1c"
	testWebhookSecret = "integration-webhook-secret"
	testSystemActorID = 1
)

// TestConfig contains configuration for integration tests
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer encapsulates all components needed for integration testing
type TestServer struct {
	DB          *sql.DB
	Router      *mux.Router
	Server      *httptest.Server
	Hub         *websocket.Hub
	Feed        *PriceFeedStub
	Oracle      *oracle.Client
	Repos       *TestRepositories
	Services    *TestServices
	Coordinator *engine.Coordinator
	Trading     config.TradingConfig
	Cleanup     func()
}

// TestRepositories contains all repository instances for testing
type TestRepositories struct {
	Position *repository.PositionRepository
	Ledger   *repository.LedgerRepository
	User     *repository.UserRepository
}

// TestServices contains all service instances for testing
type TestServices struct {
	Position *service.PositionService
	Ledger   *service.LedgerService
	User     *service.UserService
}

// PriceFeedStub is an in-process Binance-compatible price feed.
// Prices are mutable so tests can move the market past liquidation
// thresholds and observe sweep behavior.
type PriceFeedStub struct {
	mu     sync.Mutex
	prices map[string]float64
	server *httptest.Server
}

// NewPriceFeedStub starts a stub feed with a few meme tickers preloaded
func NewPriceFeedStub() *PriceFeedStub {
	f := &PriceFeedStub{
		prices: map[string]float64{
			"DOGEUSDT": 0.25,
			"PEPEUSDT": 0.0000012,
			"SHIBUSDT": 0.000027,
		},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// URL returns the base URL of the stub feed
func (f *PriceFeedStub) URL() string {
	return f.server.URL
}

// Close shuts down the stub feed
func (f *PriceFeedStub) Close() {
	f.server.Close()
}

// SetPrice moves the quoted price for a symbol
func (f *PriceFeedStub) SetPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

func (f *PriceFeedStub) handle(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	f.mu.Lock()
	price, ok := f.prices[symbol]
	f.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": -1121,
			"msg":  "Invalid symbol.",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/ticker/price":
		json.NewEncoder(w).Encode(map[string]string{
			"symbol": symbol,
			"price":  strconv.FormatFloat(price, 'f', -1, 64),
		})
	case "/klines":
		// Single flat candle at the current price is enough for API tests
		openTime := time.Now().Add(-time.Hour).UnixMilli()
		quoted := strconv.FormatFloat(price, 'f', -1, 64)
		json.NewEncoder(w).Encode([][]interface{}{
			{openTime, quoted, quoted, quoted, quoted, "0"},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "memeperp_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	cfg := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := sql.Open(cfg.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer creates a complete test server with all components
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	if err := initTestTables(db); err != nil {
		dbCleanup()
		t.Skipf("Skipping integration test: cannot initialize tables: %v", err)
		return nil
	}
	if err := truncateTestTables(db); err != nil {
		dbCleanup()
		t.Fatalf("cannot truncate tables: %v", err)
		return nil
	}

	hub := websocket.NewHub()
	go hub.Run()

	feed := NewPriceFeedStub()
	priceOracle := oracle.NewClient(feed.URL(), 1000, 1000)

	repos := &TestRepositories{
		Position: repository.NewPositionRepository(db),
		Ledger:   repository.NewLedgerRepository(db),
		User:     repository.NewUserRepository(db),
	}

	trading := config.TradingConfig{
		MaintenanceMarginRate: 0.05,
		SpreadRate:            0.001,
		FeeRate:               0.0005,
		MaxLeverage:           100,
		MinCollateral:         1,
		InitialBalance:        10000,
	}

	services := &TestServices{
		Position: service.NewPositionService(repos.Position, repos.Ledger, priceOracle, hub, trading),
		Ledger:   service.NewLedgerService(repos.Ledger, hub, testSystemActorID),
		User:     service.NewUserService(repos.User, trading.InitialBalance),
	}

	coordinator := engine.NewCoordinator(
		repos.Position,
		priceOracle,
		services.Ledger,
		hub,
		2*time.Second,
		zap.NewNop(),
	)

	deps := &api.Dependencies{
		PositionService: services.Position,
		LedgerService:   services.Ledger,
		UserService:     services.User,
		PriceOracle:     priceOracle,
		SweepRunner:     coordinator,
		Hub:             hub,
		Security: config.SecurityConfig{
			SweepSecret:   testSweepSecret,
			CronPath:      testCronPath,
			WebhookSecret: testWebhookSecret,
		},
	}

	router := api.SetupRoutes(deps)
	server := httptest.NewServer(router)

	ts := &TestServer{
		DB:          db,
		Router:      router,
		Server:      server,
		Hub:         hub,
		Feed:        feed,
		Oracle:      priceOracle,
		Repos:       repos,
		Services:    services,
		Coordinator: coordinator,
		Trading:     trading,
	}

	ts.Cleanup = func() {
		server.Close()
		hub.Stop()
		feed.Close()
		if err := truncateTestTables(db); err != nil {
			log.Printf("Error truncating tables: %v", err)
		}
		dbCleanup()
	}

	return ts
}

// initTestTables creates the schema used by the test suite
func initTestTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(32) NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			pair_symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(5) NOT NULL CHECK (direction IN ('long', 'short')),
			collateral DOUBLE PRECISION NOT NULL,
			leverage DOUBLE PRECISION NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			liquidation_price DOUBLE PRECISION NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed', 'liquidated')),
			exit_price DOUBLE PRECISION,
			pnl DOUBLE PRECISION,
			close_reason VARCHAR(20),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			closed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_user_id ON positions(user_id)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			entry_type VARCHAR(20) NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			reference VARCHAR(128) NOT NULL UNIQUE,
			description TEXT,
			position_id INTEGER REFERENCES positions(id) ON DELETE SET NULL,
			actor_id INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_id ON ledger_entries(user_id)`,
		`CREATE TABLE IF NOT EXISTS deposit_events (
			reference VARCHAR(128) PRIMARY KEY,
			user_id INTEGER NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}

	return nil
}

// truncateTestTables wipes all rows between tests
func truncateTestTables(db *sql.DB) error {
	_, err := db.Exec(`TRUNCATE TABLE deposit_events, ledger_entries, positions, users RESTART IDENTITY CASCADE`)
	return err
}
