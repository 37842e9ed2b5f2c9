package service

import (
	"context"
	"sync"
	"time"

	"memeperp/internal/models"
	"memeperp/internal/oracle"
	"memeperp/internal/repository"
)

// ============ Mock PositionRepository ============

type MockPositionRepository struct {
	positions map[int]*models.Position
	getErr    error
}

func NewMockPositionRepository() *MockPositionRepository {
	return &MockPositionRepository{positions: make(map[int]*models.Position)}
}

func (m *MockPositionRepository) add(p *models.Position) {
	m.positions[p.ID] = p
}

func (m *MockPositionRepository) GetByID(ctx context.Context, id int) (*models.Position, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.positions[id]
	if !ok {
		return nil, repository.ErrPositionNotFound
	}
	return p, nil
}

func (m *MockPositionRepository) GetOpen(ctx context.Context) ([]*models.Position, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Position
	for _, p := range m.positions {
		if p.IsOpen() {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockPositionRepository) GetByUser(ctx context.Context, userID, limit int) ([]*models.Position, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Position
	for _, p := range m.positions {
		if p.UserID == userID && len(result) < limit {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockPositionRepository) GetOpenByUser(ctx context.Context, userID int) ([]*models.Position, error) {
	var result []*models.Position
	for _, p := range m.positions {
		if p.UserID == userID && p.IsOpen() {
			result = append(result, p)
		}
	}
	return result, nil
}

// ============ Mock LedgerRepository ============

// MockLedgerRepository имитирует атомарный леджер поверх карт в памяти.
// Мьютекс нужен тестам конкурентных расчетов
type MockLedgerRepository struct {
	mu        sync.Mutex
	balances  map[int]float64
	entries   []*models.LedgerEntry
	deposits  map[string]bool
	nextPosID int

	openErr   error
	closeErr  error
	creditErr error
}

func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{
		balances:  make(map[int]float64),
		deposits:  make(map[string]bool),
		nextPosID: 1,
	}
}

func (m *MockLedgerRepository) GetBalance(ctx context.Context, userID int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[userID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	return balance, nil
}

func (m *MockLedgerRepository) ListEntries(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.LedgerEntry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].UserID == userID {
			result = append(result, m.entries[i])
		}
	}
	return result, nil
}

func (m *MockLedgerRepository) OpenPosition(ctx context.Context, p *models.Position, fee float64) error {
	if m.openErr != nil {
		return m.openErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[p.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}
	totalDebit := p.Collateral + fee
	if balance < totalDebit {
		return repository.ErrInsufficientBalance
	}

	m.balances[p.UserID] = balance - totalDebit
	p.ID = m.nextPosID
	m.nextPosID++
	p.Status = models.PositionStatusOpen
	p.CreatedAt = time.Now()

	m.entries = append(m.entries, &models.LedgerEntry{
		UserID:    p.UserID,
		EntryType: models.EntryTypeOpen,
		Amount:    -totalDebit,
		PositionID: &p.ID,
	})
	return nil
}

func (m *MockLedgerRepository) ClosePosition(ctx context.Context, p *models.Position, exitPrice, pnl, payout float64, reason string, actorID int) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !p.IsOpen() {
		return repository.ErrPositionAlreadyClosed
	}

	status := models.PositionStatusClosed
	entryType := models.EntryTypeClose
	if reason == models.CloseReasonLiquidation {
		status = models.PositionStatusLiquidated
		entryType = models.EntryTypeLiquidation
	}

	if payout > 0 {
		m.balances[p.UserID] += payout
	}

	closedAt := time.Now()
	p.Status = status
	p.ExitPrice = &exitPrice
	p.Pnl = &pnl
	p.CloseReason = reason
	p.ClosedAt = &closedAt

	entry := &models.LedgerEntry{
		UserID:     p.UserID,
		EntryType:  entryType,
		Amount:     payout,
		PositionID: &p.ID,
	}
	if actorID > 0 {
		entry.ActorID = &actorID
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockLedgerRepository) ProcessExternalCredit(ctx context.Context, reference string, userID int, amount float64) error {
	if m.creditErr != nil {
		return m.creditErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deposits[reference] {
		return repository.ErrDepositAlreadyProcessed
	}
	if _, ok := m.balances[userID]; !ok {
		return repository.ErrUserNotFound
	}

	m.deposits[reference] = true
	m.balances[userID] += amount
	m.entries = append(m.entries, &models.LedgerEntry{
		UserID:    userID,
		EntryType: models.EntryTypeDeposit,
		Amount:    amount,
		Reference: reference,
	})
	return nil
}

// ============ Mock UserRepository ============

type MockUserRepository struct {
	users     map[string]*models.User
	createErr error
	nextID    int
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*models.User), nextID: 1}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Username]; exists {
		return repository.ErrUsernameTaken
	}
	user.ID = m.nextID
	m.nextID++
	user.CreatedAt = time.Now()
	m.users[user.Username] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

// ============ Mock EventBroadcaster ============

// MockEventBroadcaster записывает разосланные доменные события
type MockEventBroadcaster struct {
	mu              sync.Mutex
	positionUpdates []*models.Position
	balanceUpdates  []balanceUpdate
}

type balanceUpdate struct {
	userID  int
	balance float64
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) BroadcastPositionUpdate(p *models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionUpdates = append(m.positionUpdates, p)
}

func (m *MockEventBroadcaster) BroadcastBalanceUpdate(userID int, balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceUpdates = append(m.balanceUpdates, balanceUpdate{userID, balance})
}

// ============ Mock PriceOracle ============

type MockPriceOracle struct {
	prices map[string]float64
	err    error
}

func NewMockPriceOracle() *MockPriceOracle {
	return &MockPriceOracle{prices: make(map[string]float64)}
}

func (m *MockPriceOracle) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, oracle.ErrSymbolNotFound
	}
	return price, nil
}

func (m *MockPriceOracle) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]oracle.Kline, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []oracle.Kline{}, nil
}
