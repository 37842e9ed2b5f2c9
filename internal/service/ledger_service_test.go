package service

import (
	"context"
	"errors"
	"testing"

	"memeperp/internal/engine"
	"memeperp/internal/models"
)

// testSystemActorID - актор платформы для записей, порожденных движком
const testSystemActorID = 1

func TestLedgerServiceSettleLiquidation(t *testing.T) {
	breachedLong := func() *models.Position {
		return &models.Position{
			ID: 1, UserID: 7, PairSymbol: "DOGEUSDT", Direction: models.DirectionLong,
			Collateral: 100, Leverage: 10, EntryPrice: 100, LiquidationPrice: 92.5,
			Status: models.PositionStatusOpen,
		}
	}

	t.Run("first settlement wins, second observes", func(t *testing.T) {
		ledger := NewMockLedgerRepository()
		ledger.balances[7] = 500
		svc := NewLedgerService(ledger, nil, testSystemActorID)

		p := breachedLong()
		outcome, err := svc.SettleLiquidation(context.Background(), p, 92.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != engine.SettlementSettled {
			t.Fatalf("outcome = %s, expected settled", outcome)
		}

		outcome, err = svc.SettleLiquidation(context.Background(), p, 91.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != engine.SettlementAlreadySettled {
			t.Errorf("outcome = %s, expected already_settled", outcome)
		}
	})

	t.Run("collateral fully forfeited", func(t *testing.T) {
		ledger := NewMockLedgerRepository()
		ledger.balances[7] = 500
		svc := NewLedgerService(ledger, nil, testSystemActorID)

		if _, err := svc.SettleLiquidation(context.Background(), breachedLong(), 92.0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Баланс не меняется: залог списан при открытии, выплаты нет
		balance, _ := ledger.GetBalance(context.Background(), 7)
		if balance != 500 {
			t.Errorf("balance = %f, expected unchanged 500", balance)
		}
	})

	t.Run("recorded loss capped at collateral", func(t *testing.T) {
		ledger := NewMockLedgerRepository()
		ledger.balances[7] = 500
		svc := NewLedgerService(ledger, nil, testSystemActorID)

		// Цена рухнула далеко за порог: нереализованный убыток больше залога
		p := breachedLong()
		if _, err := svc.SettleLiquidation(context.Background(), p, 10.0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Pnl == nil || *p.Pnl != -100 {
			t.Errorf("pnl = %v, expected -100 (capped at collateral)", p.Pnl)
		}
	})

	t.Run("ledger entry attributed to system actor", func(t *testing.T) {
		ledger := NewMockLedgerRepository()
		ledger.balances[7] = 500
		svc := NewLedgerService(ledger, nil, testSystemActorID)

		if _, err := svc.SettleLiquidation(context.Background(), breachedLong(), 92.0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entries, _ := ledger.ListEntries(context.Background(), 7, 10)
		if len(entries) != 1 {
			t.Fatalf("entries = %d, expected 1", len(entries))
		}
		// Ликвидацию инициировал движок, а не трейдер
		if entries[0].ActorID == nil || *entries[0].ActorID != testSystemActorID {
			t.Errorf("actor_id = %v, expected system actor %d", entries[0].ActorID, testSystemActorID)
		}
	})

	t.Run("repository failure propagates", func(t *testing.T) {
		ledger := NewMockLedgerRepository()
		ledger.closeErr = errors.New("database error")
		svc := NewLedgerService(ledger, nil, testSystemActorID)

		_, err := svc.SettleLiquidation(context.Background(), breachedLong(), 92.0)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestLedgerServiceProcessExternalCredit(t *testing.T) {
	t.Run("credit then redelivery", func(t *testing.T) {
		ledger := NewMockLedgerRepository()
		ledger.balances[7] = 100
		svc := NewLedgerService(ledger, nil, testSystemActorID)

		if err := svc.ProcessExternalCredit(context.Background(), "dep-abc", 7, 250); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		balance, _ := ledger.GetBalance(context.Background(), 7)
		if balance != 350 {
			t.Fatalf("balance = %f, expected 350", balance)
		}

		// Повторная доставка того же reference: без второго зачисления
		err := svc.ProcessExternalCredit(context.Background(), "dep-abc", 7, 250)
		if !errors.Is(err, ErrDepositAlreadyProcessed) {
			t.Errorf("expected ErrDepositAlreadyProcessed, got %v", err)
		}
		balance, _ = ledger.GetBalance(context.Background(), 7)
		if balance != 350 {
			t.Errorf("balance = %f, expected still 350", balance)
		}
	})

	t.Run("credited balance broadcast to sessions", func(t *testing.T) {
		ledger := NewMockLedgerRepository()
		ledger.balances[7] = 100
		events := NewMockEventBroadcaster()
		svc := NewLedgerService(ledger, events, testSystemActorID)

		if err := svc.ProcessExternalCredit(context.Background(), "dep-xyz", 7, 250); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(events.balanceUpdates) != 1 {
			t.Fatalf("balance updates = %d, expected 1", len(events.balanceUpdates))
		}
		update := events.balanceUpdates[0]
		if update.userID != 7 || update.balance != 350 {
			t.Errorf("broadcast = %+v, expected {7 350}", update)
		}

		// Повторная доставка не зачисляет и не транслирует
		_ = svc.ProcessExternalCredit(context.Background(), "dep-xyz", 7, 250)
		if len(events.balanceUpdates) != 1 {
			t.Errorf("balance updates after redelivery = %d, expected still 1", len(events.balanceUpdates))
		}
	})

	t.Run("validation", func(t *testing.T) {
		svc := NewLedgerService(NewMockLedgerRepository(), nil, testSystemActorID)

		tests := []struct {
			name      string
			reference string
			userID    int
			amount    float64
			expected  error
		}{
			{"empty reference", "", 7, 100, ErrInvalidDepositReference},
			{"blank reference", "   ", 7, 100, ErrInvalidDepositReference},
			{"zero user", "dep-1", 0, 100, ErrInvalidDepositUser},
			{"negative user", "dep-1", -5, 100, ErrInvalidDepositUser},
			{"zero amount", "dep-1", 7, 0, ErrInvalidDepositAmount},
			{"negative amount", "dep-1", 7, -100, ErrInvalidDepositAmount},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := svc.ProcessExternalCredit(context.Background(), tt.reference, tt.userID, tt.amount)
				if !errors.Is(err, tt.expected) {
					t.Errorf("expected %v, got %v", tt.expected, err)
				}
			})
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := NewLedgerService(NewMockLedgerRepository(), nil, testSystemActorID)

		err := svc.ProcessExternalCredit(context.Background(), "dep-1", 999, 100)
		if !errors.Is(err, ErrUnknownUser) {
			t.Errorf("expected ErrUnknownUser, got %v", err)
		}
	})
}

func TestLedgerServiceGetLedger(t *testing.T) {
	ledger := NewMockLedgerRepository()
	ledger.balances[7] = 0
	svc := NewLedgerService(ledger, nil, testSystemActorID)

	if err := svc.ProcessExternalCredit(context.Background(), "dep-1", 7, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := svc.GetLedger(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].EntryType != models.EntryTypeDeposit {
		t.Errorf("entry type = %s, expected deposit", entries[0].EntryType)
	}

	// Пустая история - пустой срез, не nil
	empty, err := svc.GetLedger(context.Background(), 8, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty == nil {
		t.Error("expected empty slice, got nil")
	}
}
