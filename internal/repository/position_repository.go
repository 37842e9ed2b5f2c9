package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"memeperp/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("position not found")
)

const positionColumns = `id, user_id, pair_symbol, direction, collateral, leverage, entry_price, liquidation_price, status, exit_price, pnl, close_reason, created_at, closed_at`

// PositionRepository - работа с таблицей positions
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func scanPosition(row interface{ Scan(...interface{}) error }) (*models.Position, error) {
	p := &models.Position{}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.PairSymbol,
		&p.Direction,
		&p.Collateral,
		&p.Leverage,
		&p.EntryPrice,
		&p.LiquidationPrice,
		&p.Status,
		&p.ExitPrice,
		&p.Pnl,
		&p.CloseReason,
		&p.CreatedAt,
		&p.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByID возвращает позицию по ID
func (r *PositionRepository) GetByID(ctx context.Context, id int) (*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE id = $1`

	p, err := scanPosition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	return p, nil
}

// GetOpen возвращает все открытые позиции.
// Источник данных для sweep: порядок стабильный, чтобы два
// конкурентных прохода обходили позиции одинаково
func (r *PositionRepository) GetOpen(ctx context.Context) ([]*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, models.PositionStatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return positions, nil
}

// GetByUser возвращает позиции пользователя, новые первыми
func (r *PositionRepository) GetByUser(ctx context.Context, userID, limit int) ([]*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return positions, nil
}

// GetOpenByUser возвращает открытые позиции пользователя
func (r *PositionRepository) GetOpenByUser(ctx context.Context, userID int) ([]*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE user_id = $1 AND status = $2
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID, models.PositionStatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return positions, nil
}

// CountOpen возвращает количество открытых позиций
func (r *PositionRepository) CountOpen(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM positions WHERE status = $1`

	var count int
	err := r.db.QueryRowContext(ctx, query, models.PositionStatusOpen).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// DeleteOlderThan удаляет закрытые позиции старше указанной даты
func (r *PositionRepository) DeleteOlderThan(ctx context.Context, timestamp time.Time) (int64, error) {
	query := `DELETE FROM positions WHERE status != $1 AND closed_at < $2`

	result, err := r.db.ExecContext(ctx, query, models.PositionStatusOpen, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
