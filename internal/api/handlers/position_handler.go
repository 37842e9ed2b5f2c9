package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"memeperp/internal/models"
	"memeperp/internal/oracle"
	"memeperp/internal/service"
)

// PositionHandler обрабатывает HTTP запросы торговли позициями.
//
// Endpoints:
// - POST /api/v1/positions - открыть позицию
// - GET  /api/v1/positions?user_id=&limit=&status=open - позиции пользователя
// - GET  /api/v1/positions/{id}?user_id= - одна позиция
// - POST /api/v1/positions/{id}/close - закрыть по рынку
type PositionHandler struct {
	positionService service.PositionServiceInterface
}

// NewPositionHandler создает новый PositionHandler с внедрением зависимостей
func NewPositionHandler(positionService service.PositionServiceInterface) *PositionHandler {
	return &PositionHandler{positionService: positionService}
}

// OpenPosition открывает позицию по текущей цене оракула
// POST /api/v1/positions
func (h *PositionHandler) OpenPosition(w http.ResponseWriter, r *http.Request) {
	var req service.OpenPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	position, err := h.positionService.OpenPosition(r.Context(), &req)
	if err != nil {
		h.writeOpenError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, position)
}

func (h *PositionHandler) writeOpenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSymbol),
		errors.Is(err, service.ErrInvalidDirection),
		errors.Is(err, service.ErrInvalidLeverage),
		errors.Is(err, service.ErrInvalidCollateral):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, service.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, oracle.ErrSymbolNotFound):
		writeError(w, http.StatusBadRequest, "unknown trading pair")
	case errors.Is(err, oracle.ErrOracleUnavailable):
		writeError(w, http.StatusBadGateway, "price oracle unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "failed to open position")
	}
}

// GetPositions возвращает позиции пользователя
// GET /api/v1/positions?user_id=&limit=&status=open
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt(r, "user_id", 0)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && status != models.PositionStatusOpen {
		writeError(w, http.StatusBadRequest, "status filter supports only open")
		return
	}

	var positions []*models.Position
	if status == models.PositionStatusOpen {
		positions, err = h.positionService.ListOpenPositions(r.Context(), userID)
	} else {
		var limit int
		limit, err = queryInt(r, "limit", 50)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		positions, err = h.positionService.ListPositions(r.Context(), userID, limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	writeJSON(w, http.StatusOK, positions)
}

// GetPosition возвращает одну позицию пользователя
// GET /api/v1/positions/{id}?user_id=
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	positionID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}

	userID, err := queryInt(r, "user_id", 0)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	position, err := h.positionService.GetPosition(r.Context(), userID, positionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPositionNotFound),
			errors.Is(err, service.ErrPositionNotOwned):
			// Чужая позиция неотличима от несуществующей
			writeError(w, http.StatusNotFound, "position not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get position")
		}
		return
	}

	writeJSON(w, http.StatusOK, position)
}

// closeRequest - тело запроса на закрытие позиции
type closeRequest struct {
	UserID int `json:"user_id"`
}

// ClosePosition закрывает позицию по рынку
// POST /api/v1/positions/{id}/close
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	positionID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}

	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	position, err := h.positionService.ClosePosition(r.Context(), req.UserID, positionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPositionNotFound),
			errors.Is(err, service.ErrPositionNotOwned):
			writeError(w, http.StatusNotFound, "position not found")
		case errors.Is(err, service.ErrPositionNotOpen):
			// Ликвидация или другой запрос успели раньше
			writeError(w, http.StatusConflict, "position is not open")
		case errors.Is(err, oracle.ErrOracleUnavailable):
			writeError(w, http.StatusBadGateway, "price oracle unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "failed to close position")
		}
		return
	}

	writeJSON(w, http.StatusOK, position)
}
