package handlers

import (
	"errors"
	"net/http"

	"memeperp/internal/service"
)

// LedgerHandler обрабатывает запросы баланса и истории леджера.
//
// Endpoints:
// - GET /api/v1/balance?user_id=
// - GET /api/v1/ledger?user_id=&limit=
type LedgerHandler struct {
	ledgerService service.LedgerServiceInterface
}

// NewLedgerHandler создает новый LedgerHandler с внедрением зависимостей
func NewLedgerHandler(ledgerService service.LedgerServiceInterface) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// GetBalance возвращает текущий баланс пользователя
// GET /api/v1/balance?user_id=
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt(r, "user_id", 0)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	balance, err := h.ledgerService.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownUser) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"balance": balance,
	})
}

// GetLedger возвращает историю леджера пользователя
// GET /api/v1/ledger?user_id=&limit=
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt(r, "user_id", 0)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	entries, err := h.ledgerService.GetLedger(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get ledger")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
