package handlers

import (
	"errors"
	"net/http"

	"memeperp/internal/oracle"
	"memeperp/internal/service"
)

// MarketHandler проксирует рыночные данные оракула для UI.
//
// Endpoints:
// - GET /api/v1/market/price?symbol=
// - GET /api/v1/market/klines?symbol=&interval=&limit=
type MarketHandler struct {
	priceOracle service.PriceOracleInterface
}

// NewMarketHandler создает новый MarketHandler
func NewMarketHandler(priceOracle service.PriceOracleInterface) *MarketHandler {
	return &MarketHandler{priceOracle: priceOracle}
}

// GetPrice возвращает текущую цену пары
// GET /api/v1/market/price?symbol=
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	price, err := h.priceOracle.GetPrice(r.Context(), symbol)
	if err != nil {
		h.writeOracleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"price":  price,
	})
}

// GetKlines возвращает исторические свечи пары
// GET /api/v1/market/klines?symbol=&interval=&limit=
func (h *MarketHandler) GetKlines(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1h"
	}

	limit, err := queryInt(r, "limit", 100)
	if err != nil || limit <= 0 || limit > 1000 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	klines, err := h.priceOracle.GetKlines(r.Context(), symbol, interval, limit)
	if err != nil {
		h.writeOracleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, klines)
}

func (h *MarketHandler) writeOracleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, oracle.ErrSymbolNotFound):
		writeError(w, http.StatusNotFound, "unknown trading pair")
	case errors.Is(err, oracle.ErrOracleUnavailable):
		writeError(w, http.StatusBadGateway, "price oracle unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "failed to query market data")
	}
}
