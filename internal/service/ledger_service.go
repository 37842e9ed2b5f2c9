package service

import (
	"context"
	"errors"
	"strings"

	"memeperp/internal/engine"
	"memeperp/internal/models"
	"memeperp/internal/repository"
	"memeperp/pkg/utils"
)

// Ошибки сервиса леджера
var (
	ErrInvalidDepositReference = errors.New("deposit reference is missing or malformed")
	ErrInvalidDepositAmount    = errors.New("deposit amount must be positive")
	ErrInvalidDepositUser      = errors.New("deposit user id must be positive")
	ErrDepositAlreadyProcessed = errors.New("deposit already processed")
)

// LedgerService предоставляет бизнес-логику денежных операций.
//
// Отвечает за:
// - Расчет ликвидаций (реализует engine.Settler)
// - Зачисление внешних депозитов с идемпотентной защитой
// - Чтение баланса и истории леджера
//
// systemActorID атрибуцирует записи журнала, порожденные самой
// платформой (ликвидации), в отличие от действий трейдера
type LedgerService struct {
	ledger        LedgerRepositoryInterface
	events        EventBroadcaster
	systemActorID int
}

// NewLedgerService создает новый экземпляр LedgerService
func NewLedgerService(ledger LedgerRepositoryInterface, events EventBroadcaster, systemActorID int) *LedgerService {
	return &LedgerService{
		ledger:        ledger,
		events:        events,
		systemActorID: systemActorID,
	}
}

// SettleLiquidation рассчитывает ликвидацию позиции.
//
// Залог конфискуется целиком: выплата трейдеру нулевая независимо
// от того, насколько цена ушла за порог. Из двух конкурентных
// расчетов эффект применяет только первый, второй наблюдает
// SettlementAlreadySettled. Запись журнала атрибуцируется
// системному актору - инициатор не трейдер, а движок
func (s *LedgerService) SettleLiquidation(ctx context.Context, p *models.Position, markPrice float64) (engine.SettlementOutcome, error) {
	pnl := engine.PositionPnl(p, markPrice)
	if pnl < -p.Collateral {
		pnl = -p.Collateral
	}

	err := s.ledger.ClosePosition(ctx, p, markPrice, pnl, 0, models.CloseReasonLiquidation, s.systemActorID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPositionAlreadyClosed):
			return engine.SettlementAlreadySettled, nil
		case errors.Is(err, repository.ErrPositionNotFound):
			return engine.SettlementNotFound, nil
		}
		return "", err
	}

	return engine.SettlementSettled, nil
}

// ProcessExternalCredit зачисляет внешний депозит на баланс.
//
// reference - внешний идентификатор перевода, уникальный на стороне
// провайдера. Повторная доставка того же reference возвращает
// ErrDepositAlreadyProcessed без второго зачисления
func (s *LedgerService) ProcessExternalCredit(ctx context.Context, reference string, userID int, amount float64) error {
	reference = strings.TrimSpace(reference)
	if err := utils.ValidateReference(reference); err != nil {
		return ErrInvalidDepositReference
	}
	if userID <= 0 {
		return ErrInvalidDepositUser
	}
	if amount <= 0 {
		return ErrInvalidDepositAmount
	}

	err := s.ledger.ProcessExternalCredit(ctx, reference, userID, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDepositAlreadyProcessed):
			return ErrDepositAlreadyProcessed
		case errors.Is(err, repository.ErrUserNotFound):
			return ErrUnknownUser
		}
		return err
	}

	if s.events != nil {
		if balance, err := s.ledger.GetBalance(ctx, userID); err == nil {
			s.events.BroadcastBalanceUpdate(userID, balance)
		}
	}

	return nil
}

// GetBalance возвращает текущий баланс пользователя
func (s *LedgerService) GetBalance(ctx context.Context, userID int) (float64, error) {
	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrUnknownUser
		}
		return 0, err
	}

	return balance, nil
}

// GetLedger возвращает историю леджера пользователя, новые первыми.
// limit ограничен диапазоном [1, 500], по умолчанию 100
func (s *LedgerService) GetLedger(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	entries, err := s.ledger.ListEntries(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	if entries == nil {
		entries = []*models.LedgerEntry{}
	}

	return entries, nil
}
