package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"memeperp/internal/config"
	"memeperp/internal/engine"
	"memeperp/internal/models"
	"memeperp/internal/repository"
	"memeperp/pkg/utils"
)

// Ошибки сервиса позиций
var (
	ErrInvalidSymbol      = errors.New("invalid pair symbol")
	ErrInvalidDirection   = errors.New("direction must be long or short")
	ErrInvalidLeverage    = errors.New("invalid leverage")
	ErrInvalidCollateral  = errors.New("invalid collateral")
	ErrPositionNotFound   = errors.New("position not found")
	ErrPositionNotOwned   = errors.New("position belongs to another user")
	ErrPositionNotOpen    = errors.New("position is not open")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrUnknownUser        = errors.New("user not found")
)

// OpenPositionRequest - запрос на открытие позиции
type OpenPositionRequest struct {
	UserID     int     `json:"user_id"`
	PairSymbol string  `json:"pair_symbol"`
	Direction  string  `json:"direction"`
	Collateral float64 `json:"collateral"`
	Leverage   float64 `json:"leverage"`
}

// PositionService предоставляет бизнес-логику торговли позициями.
//
// Отвечает за:
// - Валидацию и открытие позиций по цене оракула со спредом
// - Ручное закрытие с расчетом PnL и выплаты
// - Чтение позиций пользователя
//
// Денежные эффекты делегируются леджеру: сервис только считает
// цены и суммы, атомарность обеспечивает репозиторий.
// Успешные изменения транслируются в WS поток best-effort
type PositionService struct {
	positions PositionRepositoryInterface
	ledger    LedgerRepositoryInterface
	oracle    PriceOracleInterface
	events    EventBroadcaster
	trading   config.TradingConfig
}

// NewPositionService создает новый экземпляр PositionService
func NewPositionService(
	positions PositionRepositoryInterface,
	ledger LedgerRepositoryInterface,
	priceOracle PriceOracleInterface,
	events EventBroadcaster,
	trading config.TradingConfig,
) *PositionService {
	return &PositionService{
		positions: positions,
		ledger:    ledger,
		oracle:    priceOracle,
		events:    events,
		trading:   trading,
	}
}

// notifyPositionChanged транслирует изменение позиции и свежий баланс
// владельца. Сбой чтения баланса глушится: рассылка не должна
// превращать успешную операцию в ошибочную
func (s *PositionService) notifyPositionChanged(ctx context.Context, position *models.Position) {
	if s.events == nil {
		return
	}
	s.events.BroadcastPositionUpdate(position)
	if balance, err := s.ledger.GetBalance(ctx, position.UserID); err == nil {
		s.events.BroadcastBalanceUpdate(position.UserID, balance)
	}
}

// OpenPosition открывает позицию по текущей цене оракула.
//
// Цена входа сдвигается спредом против трейдера, комиссия берется
// от номинала (collateral × leverage) и списывается вместе с залогом.
// Цена ликвидации фиксируется в момент открытия и больше не меняется.
//
// Возвращает ErrInsufficientFunds, если баланса не хватает на залог
// плюс комиссию
func (s *PositionService) OpenPosition(ctx context.Context, req *OpenPositionRequest) (*models.Position, error) {
	symbol, err := normalizeSymbol(req.PairSymbol)
	if err != nil {
		return nil, err
	}

	direction := strings.ToLower(strings.TrimSpace(req.Direction))
	if direction != models.DirectionLong && direction != models.DirectionShort {
		return nil, ErrInvalidDirection
	}

	if req.Leverage < 1 || req.Leverage > s.trading.MaxLeverage {
		return nil, fmt.Errorf("%w: must be between 1 and %v", ErrInvalidLeverage, s.trading.MaxLeverage)
	}

	if req.Collateral < s.trading.MinCollateral {
		return nil, fmt.Errorf("%w: minimum is %v", ErrInvalidCollateral, s.trading.MinCollateral)
	}

	markPrice, err := s.oracle.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	entryPrice := engine.SpreadAdjustedPrice(markPrice, direction, false, s.trading.SpreadRate)
	fee := engine.Fee(req.Collateral, req.Leverage, s.trading.FeeRate)

	position := &models.Position{
		UserID:           req.UserID,
		PairSymbol:       symbol,
		Direction:        direction,
		Collateral:       req.Collateral,
		Leverage:         req.Leverage,
		EntryPrice:       entryPrice,
		LiquidationPrice: engine.LiquidationPrice(direction, entryPrice, req.Leverage, s.trading.MaintenanceMarginRate),
	}

	if err := s.ledger.OpenPosition(ctx, position, fee); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance):
			return nil, ErrInsufficientFunds
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUnknownUser
		}
		return nil, err
	}

	s.notifyPositionChanged(ctx, position)

	return position, nil
}

// ClosePosition закрывает позицию пользователя по рынку.
//
// Цена выхода сдвигается спредом против трейдера, комиссия берется
// от номинала. Выплата = залог + PnL - комиссия, но не меньше нуля:
// трейдер не может потерять больше залога.
//
// Конкурирует с ликвидацией за статус open: если sweep успел раньше,
// возвращается ErrPositionNotOpen
func (s *PositionService) ClosePosition(ctx context.Context, userID, positionID int) (*models.Position, error) {
	position, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		if errors.Is(err, repository.ErrPositionNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	if position.UserID != userID {
		return nil, ErrPositionNotOwned
	}
	if !position.IsOpen() {
		return nil, ErrPositionNotOpen
	}

	markPrice, err := s.oracle.GetPrice(ctx, position.PairSymbol)
	if err != nil {
		return nil, err
	}

	exitPrice := engine.SpreadAdjustedPrice(markPrice, position.Direction, true, s.trading.SpreadRate)
	pnl := engine.PositionPnl(position, exitPrice)
	fee := engine.Fee(position.Collateral, position.Leverage, s.trading.FeeRate)

	payout := position.Collateral + pnl - fee
	if payout < 0 {
		payout = 0
	}

	// actorID 0: закрытие инициировано самим трейдером
	err = s.ledger.ClosePosition(ctx, position, exitPrice, pnl, payout, models.CloseReasonManual, 0)
	if err != nil {
		if errors.Is(err, repository.ErrPositionAlreadyClosed) {
			return nil, ErrPositionNotOpen
		}
		return nil, err
	}

	s.notifyPositionChanged(ctx, position)

	return position, nil
}

// GetPosition возвращает позицию пользователя по ID
func (s *PositionService) GetPosition(ctx context.Context, userID, positionID int) (*models.Position, error) {
	position, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		if errors.Is(err, repository.ErrPositionNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	if position.UserID != userID {
		return nil, ErrPositionNotOwned
	}

	return position, nil
}

// ListPositions возвращает позиции пользователя, новые первыми.
// limit ограничен диапазоном [1, 200], по умолчанию 50
func (s *PositionService) ListPositions(ctx context.Context, userID, limit int) ([]*models.Position, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	positions, err := s.positions.GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	if positions == nil {
		positions = []*models.Position{}
	}

	return positions, nil
}

// ListOpenPositions возвращает только открытые позиции пользователя.
// Открытых позиций немного по построению, лимит не нужен
func (s *PositionService) ListOpenPositions(ctx context.Context, userID int) ([]*models.Position, error) {
	positions, err := s.positions.GetOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if positions == nil {
		positions = []*models.Position{}
	}

	return positions, nil
}

// normalizeSymbol валидирует и нормализует торговый символ
func normalizeSymbol(symbol string) (string, error) {
	normalized, err := utils.NormalizeSymbol(symbol)
	if err != nil {
		return "", ErrInvalidSymbol
	}
	return normalized, nil
}
