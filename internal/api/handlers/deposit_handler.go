package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"memeperp/internal/service"
	"memeperp/pkg/crypto"
)

// maxWebhookBody ограничивает размер тела webhook-запроса
const maxWebhookBody = 1 << 16

// DepositHandler обрабатывает депозитный webhook платежного провайдера.
//
// POST /webhooks/deposit
//
// Подпись: HMAC-SHA512 сырого тела в заголовке X-Signature (hex).
// Проверка выполняется ДО разбора JSON: неподписанное тело не парсим.
//
// Провайдер ретраит до первого успешного ответа, поэтому:
// - повторная доставка обработанного reference - 200, не ошибка
// - внутренний сбой - 5xx, чтобы провайдер повторил доставку
type DepositHandler struct {
	ledgerService service.LedgerServiceInterface
	secret        []byte
}

// NewDepositHandler создает новый DepositHandler
func NewDepositHandler(ledgerService service.LedgerServiceInterface, secret string) *DepositHandler {
	return &DepositHandler{
		ledgerService: ledgerService,
		secret:        []byte(secret),
	}
}

// depositPayload - тело webhook после проверки подписи
type depositPayload struct {
	Reference string  `json:"reference"`
	UserID    int     `json:"user_id"`
	Amount    float64 `json:"amount"`
}

// HandleDeposit проверяет подпись и зачисляет депозит
func (h *DepositHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}

	signature := r.Header.Get("X-Signature")
	if !crypto.VerifyHMAC512(body, signature, h.secret) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload depositPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	err = h.ledgerService.ProcessExternalCredit(r.Context(), payload.Reference, payload.UserID, payload.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDepositAlreadyProcessed):
			// Уже зачислено: отвечаем успехом, чтобы провайдер не ретраил
			writeJSON(w, http.StatusOK, SuccessResponse{Message: "already processed"})
			return
		case errors.Is(err, service.ErrInvalidDepositReference),
			errors.Is(err, service.ErrInvalidDepositUser),
			errors.Is(err, service.ErrInvalidDepositAmount):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, service.ErrUnknownUser):
			writeError(w, http.StatusBadRequest, "unknown user")
			return
		}
		// Внутренний сбой: 5xx заставит провайдера повторить доставку
		writeError(w, http.StatusInternalServerError, "failed to process deposit")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "credited"})
}
