// Package oracle предоставляет адаптер внешнего ценового оракула.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"memeperp/pkg/ratelimit"
)

// Ошибки оракула
var (
	// ErrOracleUnavailable - внешний фид недоступен, вернул мусор или
	// не уложился в бюджет времени. Пара пропускается до следующего sweep.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrSymbolNotFound - фид не знает такой тикер
	ErrSymbolNotFound = errors.New("symbol not found")
)

// OracleError представляет ошибку от внешнего фида
type OracleError struct {
	Code     string
	Message  string
	Original error
}

func (e *OracleError) Error() string {
	return "oracle: " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *OracleError) Unwrap() error {
	return e.Original
}

// Код ошибки Binance-совместимого API для неизвестного символа
const codeInvalidSymbol = -1121

// Kline представляет одну свечу исторических данных
type Kline struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
}

// Client - адаптер ценового оракула поверх Binance-совместимого REST API
//
// Чистый query-слой без состояния: НИКОГДА не кэширует цены между
// вызовами (решение о ликвидации обязано опираться на свежие данные)
// и не делает retry внутри себя - политика повторов принадлежит
// вызывающему, для sweep это просто следующий запуск по расписанию.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
}

// NewClient создает новый адаптер оракула
// Использует глобальный HTTP клиент с connection pooling
func NewClient(baseURL string, rate, burst float64) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: feedHTTPClient(),
		limiter:    ratelimit.NewRateLimiter(rate, burst),
	}
}

// NewClientWithHTTP создает адаптер с кастомным http.Client (для тестов)
func NewClientWithHTTP(baseURL string, httpClient *http.Client, rate, burst float64) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    ratelimit.NewRateLimiter(rate, burst),
	}
}

// GetPrice возвращает текущую цену тикера
//
// GET /ticker/price?symbol=<PAIR> -> {"symbol": "...", "price": "0.123"}
//
// Возвращает:
//   - ErrSymbolNotFound если фид не знает тикер
//   - ErrOracleUnavailable при сетевой ошибке, таймауте или мусорном ответе
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := c.doGet(ctx, "/ticker/price", url.Values{"symbol": {symbol}})
	if err != nil {
		return 0, err
	}

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, &OracleError{Message: "malformed ticker response", Original: errors.Join(ErrOracleUnavailable, err)}
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil || price <= 0 {
		return 0, &OracleError{
			Message:  fmt.Sprintf("invalid price %q for %s", resp.Price, symbol),
			Original: ErrOracleUnavailable,
		}
	}

	return price, nil
}

// GetKlines возвращает исторические свечи тикера
//
// GET /klines?symbol=<PAIR>&interval=1h&limit=100
// Каждая строка: [openTime, open, high, low, close, ...],
// цена закрытия - элемент с индексом 4.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}

	body, err := c.doGet(ctx, "/klines", params)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &OracleError{Message: "malformed klines response", Original: errors.Join(ErrOracleUnavailable, err)}
	}

	klines := make([]Kline, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			return nil, &OracleError{Message: "short kline row", Original: ErrOracleUnavailable}
		}

		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, &OracleError{Message: "malformed kline open time", Original: errors.Join(ErrOracleUnavailable, err)}
		}

		k := Kline{OpenTime: time.UnixMilli(openTime)}

		// open, high, low, close приходят строками
		fields := []*float64{&k.Open, &k.High, &k.Low, &k.Close}
		for i, dst := range fields {
			var s string
			if err := json.Unmarshal(row[i+1], &s); err != nil {
				return nil, &OracleError{Message: "malformed kline price", Original: errors.Join(ErrOracleUnavailable, err)}
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &OracleError{Message: "malformed kline price", Original: errors.Join(ErrOracleUnavailable, err)}
			}
			*dst = v
		}

		klines = append(klines, k)
	}

	return klines, nil
}

// doGet выполняет GET запрос к оракулу и возвращает тело ответа
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	// Token bucket защищает от превышения лимитов внешнего API
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &OracleError{Message: "rate limit wait cancelled", Original: errors.Join(ErrOracleUnavailable, err)}
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &OracleError{Message: "build request", Original: errors.Join(ErrOracleUnavailable, err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Сетевая ошибка или таймаут контекста - fail fast, без retry
		return nil, &OracleError{Message: "request failed", Original: errors.Join(ErrOracleUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &OracleError{Message: "read response", Original: errors.Join(ErrOracleUnavailable, err)}
	}

	if resp.StatusCode != http.StatusOK {
		// Binance-совместимые API возвращают {"code": ..., "msg": ...}
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code == codeInvalidSymbol {
			return nil, &OracleError{
				Code:     strconv.Itoa(apiErr.Code),
				Message:  apiErr.Msg,
				Original: ErrSymbolNotFound,
			}
		}
		return nil, &OracleError{
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Original: ErrOracleUnavailable,
		}
	}

	return body, nil
}
