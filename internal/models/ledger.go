package models

import "time"

// LedgerEntry представляет одну запись журнала балансов
//
// Журнал append-only: записи никогда не изменяются и не удаляются.
// Reference уникален и связывает запись с её причинным событием:
// для депозитов — внешний идентификатор платежа, для внутренних событий
// (открытие, закрытие, ликвидация) — сгенерированная ссылка вида
// "position:<id>:<reason>" или UUID.
type LedgerEntry struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	EntryType   string    `json:"entry_type" db:"entry_type"`
	Amount      float64   `json:"amount" db:"amount"` // знак: + зачисление, - списание
	Reference   string    `json:"reference" db:"reference"`
	Description string    `json:"description,omitempty" db:"description"`
	PositionID  *int      `json:"position_id,omitempty" db:"position_id"`
	ActorID     *int      `json:"actor_id,omitempty" db:"actor_id"` // NULL - действие трейдера, иначе системный актор
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Типы записей журнала
const (
	EntryTypeDeposit     = "deposit"      // внешнее пополнение баланса
	EntryTypeOpen        = "open"         // списание залога и комиссии при открытии
	EntryTypeClose       = "close"        // возврат средств при ручном закрытии
	EntryTypeLiquidation = "liquidation"  // фиксация убытка при ликвидации
)

// DepositEvent представляет idempotency guard для внешних зачислений
//
// Существование записи после успешной транзакции — доказательство того,
// что событие уже применено. Создаётся в той же транзакции, что и
// изменение баланса, которое она защищает.
type DepositEvent struct {
	Reference   string    `json:"reference" db:"reference"`
	UserID      int       `json:"user_id" db:"user_id"`
	Amount      float64   `json:"amount" db:"amount"`
	ProcessedAt time.Time `json:"processed_at" db:"processed_at"`
}
