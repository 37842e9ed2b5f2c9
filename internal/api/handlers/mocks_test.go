package handlers

import (
	"context"

	"memeperp/internal/engine"
	"memeperp/internal/models"
	"memeperp/internal/oracle"
	"memeperp/internal/service"
)

// ============ Mock реализации сервисов для тестирования handlers ============

// MockPositionService - мок сервиса позиций с инъекцией результатов
type MockPositionService struct {
	position      *models.Position
	positions     []*models.Position
	openPositions []*models.Position
	err           error

	lastOpenReq   *service.OpenPositionRequest
	lastUserID    int
	lastPosID     int
	openListCalls int
}

var _ service.PositionServiceInterface = (*MockPositionService)(nil)

func (m *MockPositionService) OpenPosition(ctx context.Context, req *service.OpenPositionRequest) (*models.Position, error) {
	m.lastOpenReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.position, nil
}

func (m *MockPositionService) ClosePosition(ctx context.Context, userID, positionID int) (*models.Position, error) {
	m.lastUserID = userID
	m.lastPosID = positionID
	if m.err != nil {
		return nil, m.err
	}
	return m.position, nil
}

func (m *MockPositionService) GetPosition(ctx context.Context, userID, positionID int) (*models.Position, error) {
	m.lastUserID = userID
	m.lastPosID = positionID
	if m.err != nil {
		return nil, m.err
	}
	return m.position, nil
}

func (m *MockPositionService) ListPositions(ctx context.Context, userID, limit int) ([]*models.Position, error) {
	m.lastUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.positions, nil
}

func (m *MockPositionService) ListOpenPositions(ctx context.Context, userID int) ([]*models.Position, error) {
	m.lastUserID = userID
	m.openListCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.openPositions, nil
}

// MockLedgerService - мок сервиса леджера
type MockLedgerService struct {
	balance float64
	entries []*models.LedgerEntry
	err     error

	lastReference string
	lastUserID    int
	lastAmount    float64
	creditCalls   int
}

var _ service.LedgerServiceInterface = (*MockLedgerService)(nil)

func (m *MockLedgerService) ProcessExternalCredit(ctx context.Context, reference string, userID int, amount float64) error {
	m.creditCalls++
	m.lastReference = reference
	m.lastUserID = userID
	m.lastAmount = amount
	return m.err
}

func (m *MockLedgerService) GetBalance(ctx context.Context, userID int) (float64, error) {
	m.lastUserID = userID
	if m.err != nil {
		return 0, m.err
	}
	return m.balance, nil
}

func (m *MockLedgerService) GetLedger(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error) {
	m.lastUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

// MockUserService - мок сервиса пользователей
type MockUserService struct {
	user *models.User
	err  error
}

var _ service.UserServiceInterface = (*MockUserService)(nil)

func (m *MockUserService) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func (m *MockUserService) GetUser(ctx context.Context, id int) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

// MockPriceOracle - мок ценового оракула
type MockPriceOracle struct {
	price  float64
	klines []oracle.Kline
	err    error

	lastSymbol string
}

var _ service.PriceOracleInterface = (*MockPriceOracle)(nil)

func (m *MockPriceOracle) GetPrice(ctx context.Context, symbol string) (float64, error) {
	m.lastSymbol = symbol
	if m.err != nil {
		return 0, m.err
	}
	return m.price, nil
}

func (m *MockPriceOracle) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]oracle.Kline, error) {
	m.lastSymbol = symbol
	if m.err != nil {
		return nil, m.err
	}
	return m.klines, nil
}

// MockSweepRunner - мок координатора sweep
type MockSweepRunner struct {
	result *engine.Result
	err    error

	calls    int
	triggers []string
}

var _ SweepRunner = (*MockSweepRunner)(nil)

func (m *MockSweepRunner) Sweep(ctx context.Context, trigger string) (*engine.Result, error) {
	m.calls++
	m.triggers = append(m.triggers, trigger)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
