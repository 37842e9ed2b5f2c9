package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memeperp/internal/models"
)

// Ошибки леджера
var (
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrPositionAlreadyClosed   = errors.New("position already closed")
	ErrDepositAlreadyProcessed = errors.New("deposit already processed")
)

// LedgerRepository - атомарные денежные операции.
// Каждая операция выполняется в одной транзакции: изменение баланса,
// изменение позиции и запись в леджер фиксируются вместе или не фиксируются вовсе
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository создает новый экземпляр репозитория
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetBalance возвращает текущий баланс пользователя
func (r *LedgerRepository) GetBalance(ctx context.Context, userID int) (float64, error) {
	query := `SELECT balance FROM users WHERE id = $1`

	var balance float64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	return balance, nil
}

// ListEntries возвращает записи леджера пользователя, новые первыми
func (r *LedgerRepository) ListEntries(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, user_id, entry_type, amount, reference, description, position_id, actor_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry := &models.LedgerEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.EntryType,
			&entry.Amount,
			&entry.Reference,
			&entry.Description,
			&entry.PositionID,
			&entry.ActorID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// OpenPosition атомарно списывает маржу и комиссию, создает позицию
// и запись в леджере. Списание условное: баланс не уходит в минус
func (r *LedgerRepository) OpenPosition(ctx context.Context, p *models.Position, fee float64) error {
	totalDebit := p.Collateral + fee

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	debitQuery := `
		UPDATE users
		SET balance = balance - $1
		WHERE id = $2 AND balance >= $1`

	result, err := tx.ExecContext(ctx, debitQuery, totalDebit, p.UserID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		// Либо пользователя нет, либо не хватает средств - различаем
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, p.UserID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrInsufficientBalance
	}

	p.Status = models.PositionStatusOpen
	p.CreatedAt = time.Now()

	insertQuery := `
		INSERT INTO positions (user_id, pair_symbol, direction, collateral, leverage, entry_price, liquidation_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err = tx.QueryRowContext(
		ctx,
		insertQuery,
		p.UserID,
		p.PairSymbol,
		p.Direction,
		p.Collateral,
		p.Leverage,
		p.EntryPrice,
		p.LiquidationPrice,
		p.Status,
		p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return err
	}

	entryQuery := `
		INSERT INTO ledger_entries (user_id, entry_type, amount, reference, description, position_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	description := fmt.Sprintf("open %s %s x%.0f", p.Direction, p.PairSymbol, p.Leverage)
	_, err = tx.ExecContext(
		ctx,
		entryQuery,
		p.UserID,
		models.EntryTypeOpen,
		-totalDebit,
		"open-"+uuid.NewString(),
		description,
		p.ID,
		p.CreatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ClosePosition атомарно закрывает позицию и применяет денежный эффект.
// Условие status = 'open' в UPDATE делает операцию идемпотентной:
// из двух конкурентных закрытий эффект применяет только первое,
// второе получает ErrPositionAlreadyClosed
func (r *LedgerRepository) ClosePosition(ctx context.Context, p *models.Position, exitPrice, pnl, payout float64, reason string, actorID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	closedAt := time.Now()

	closeQuery := `
		UPDATE positions
		SET status = $1, exit_price = $2, pnl = $3, close_reason = $4, closed_at = $5
		WHERE id = $6 AND status = $7`

	status := models.PositionStatusClosed
	entryType := models.EntryTypeClose
	if reason == models.CloseReasonLiquidation {
		status = models.PositionStatusLiquidated
		entryType = models.EntryTypeLiquidation
	}

	result, err := tx.ExecContext(ctx, closeQuery, status, exitPrice, pnl, reason, closedAt, p.ID, models.PositionStatusOpen)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM positions WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrPositionNotFound
		}
		return ErrPositionAlreadyClosed
	}

	if payout > 0 {
		creditQuery := `UPDATE users SET balance = balance + $1 WHERE id = $2`
		if _, err := tx.ExecContext(ctx, creditQuery, payout, p.UserID); err != nil {
			return err
		}
	}

	entryQuery := `
		INSERT INTO ledger_entries (user_id, entry_type, amount, reference, description, position_id, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	// actor_id NULL - запись порождена действием самого трейдера,
	// ненулевой actorID атрибуцирует запись системному актору
	actor := sql.NullInt64{Int64: int64(actorID), Valid: actorID > 0}

	description := fmt.Sprintf("%s %s %s at %.8f", reason, p.Direction, p.PairSymbol, exitPrice)
	_, err = tx.ExecContext(
		ctx,
		entryQuery,
		p.UserID,
		entryType,
		payout,
		reason+"-"+uuid.NewString(),
		description,
		p.ID,
		actor,
		closedAt,
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	p.Status = status
	p.ExitPrice = &exitPrice
	p.Pnl = &pnl
	p.CloseReason = reason
	p.ClosedAt = &closedAt

	return nil
}

// ProcessExternalCredit атомарно зачисляет внешний депозит.
// Уникальность reference в deposit_events - страж идемпотентности:
// повторная доставка того же reference дает ErrDepositAlreadyProcessed
// без второго зачисления
func (r *LedgerRepository) ProcessExternalCredit(ctx context.Context, reference string, userID int, amount float64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()

	guardQuery := `
		INSERT INTO deposit_events (reference, user_id, amount, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (reference) DO NOTHING`

	result, err := tx.ExecContext(ctx, guardQuery, reference, userID, amount, now)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrDepositAlreadyProcessed
	}

	creditQuery := `UPDATE users SET balance = balance + $1 WHERE id = $2`

	result, err = tx.ExecContext(ctx, creditQuery, amount, userID)
	if err != nil {
		return err
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	entryQuery := `
		INSERT INTO ledger_entries (user_id, entry_type, amount, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.ExecContext(
		ctx,
		entryQuery,
		userID,
		models.EntryTypeDeposit,
		amount,
		reference,
		"external deposit",
		now,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}
