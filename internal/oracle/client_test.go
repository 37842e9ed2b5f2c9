package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClientWithHTTP(server.URL, server.Client(), 1000, 1000)
	return client, server
}

func TestClient_GetPrice(t *testing.T) {
	t.Run("успешное получение цены", func(t *testing.T) {
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/ticker/price" {
				t.Errorf("неожиданный путь: %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("symbol"); got != "DOGEUSDT" {
				t.Errorf("symbol = %q, ожидалось DOGEUSDT", got)
			}
			w.Write([]byte(`{"symbol":"DOGEUSDT","price":"0.12345"}`))
		})
		defer server.Close()

		price, err := client.GetPrice(context.Background(), "DOGEUSDT")
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if price != 0.12345 {
			t.Errorf("price = %v, ожидалось 0.12345", price)
		}
	})

	t.Run("неизвестный символ", func(t *testing.T) {
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		})
		defer server.Close()

		_, err := client.GetPrice(context.Background(), "NOPEUSDT")
		if !errors.Is(err, ErrSymbolNotFound) {
			t.Errorf("ожидалась ErrSymbolNotFound, получено: %v", err)
		}
	})

	t.Run("мусорный ответ", func(t *testing.T) {
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json at all`))
		})
		defer server.Close()

		_, err := client.GetPrice(context.Background(), "DOGEUSDT")
		if !errors.Is(err, ErrOracleUnavailable) {
			t.Errorf("ожидалась ErrOracleUnavailable, получено: %v", err)
		}
	})

	t.Run("нулевая цена считается невалидной", func(t *testing.T) {
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"symbol":"DOGEUSDT","price":"0"}`))
		})
		defer server.Close()

		_, err := client.GetPrice(context.Background(), "DOGEUSDT")
		if !errors.Is(err, ErrOracleUnavailable) {
			t.Errorf("ожидалась ErrOracleUnavailable, получено: %v", err)
		}
	})

	t.Run("таймаут - fail fast без retry", func(t *testing.T) {
		requests := 0
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			requests++
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{"symbol":"DOGEUSDT","price":"0.1"}`))
		})
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := client.GetPrice(ctx, "DOGEUSDT")
		if !errors.Is(err, ErrOracleUnavailable) {
			t.Errorf("ожидалась ErrOracleUnavailable, получено: %v", err)
		}
		if requests > 1 {
			t.Errorf("адаптер не должен делать retry, запросов: %d", requests)
		}
	})

	t.Run("ошибка 5xx от фида", func(t *testing.T) {
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		defer server.Close()

		_, err := client.GetPrice(context.Background(), "DOGEUSDT")
		if !errors.Is(err, ErrOracleUnavailable) {
			t.Errorf("ожидалась ErrOracleUnavailable, получено: %v", err)
		}

		var oerr *OracleError
		if !errors.As(err, &oerr) {
			t.Fatal("ошибка должна быть типа *OracleError")
		}
		if oerr.Code != "502" {
			t.Errorf("code = %q, ожидалось 502", oerr.Code)
		}
	})
}

func TestClient_GetKlines(t *testing.T) {
	t.Run("успешный парсинг свечей", func(t *testing.T) {
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/klines" {
				t.Errorf("неожиданный путь: %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("interval") != "1h" || q.Get("limit") != "100" {
				t.Errorf("неожиданные параметры: %v", q)
			}
			// Формат Binance: [openTime, open, high, low, close, volume, ...]
			w.Write([]byte(`[
				[1700000000000, "0.10", "0.12", "0.09", "0.11", "1000"],
				[1700003600000, "0.11", "0.13", "0.10", "0.12", "2000"]
			]`))
		})
		defer server.Close()

		klines, err := client.GetKlines(context.Background(), "DOGEUSDT", "1h", 100)
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}

		if len(klines) != 2 {
			t.Fatalf("len(klines) = %d, ожидалось 2", len(klines))
		}

		// Цена закрытия - элемент с индексом 4
		if klines[0].Close != 0.11 {
			t.Errorf("close = %v, ожидалось 0.11", klines[0].Close)
		}
		if klines[1].High != 0.13 {
			t.Errorf("high = %v, ожидалось 0.13", klines[1].High)
		}
		if klines[0].OpenTime.UnixMilli() != 1700000000000 {
			t.Errorf("open_time = %v", klines[0].OpenTime)
		}
	})

	t.Run("короткая строка свечи", func(t *testing.T) {
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[[1700000000000, "0.10"]]`))
		})
		defer server.Close()

		_, err := client.GetKlines(context.Background(), "DOGEUSDT", "1h", 100)
		if !errors.Is(err, ErrOracleUnavailable) {
			t.Errorf("ожидалась ErrOracleUnavailable, получено: %v", err)
		}
	})
}

// Адаптер не должен кэшировать цены между вызовами: два последовательных
// запроса обязаны дойти до фида
func TestClient_GetPriceNoCaching(t *testing.T) {
	requests := 0
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"symbol":"DOGEUSDT","price":"0.1"}`))
	})
	defer server.Close()

	for i := 0; i < 2; i++ {
		if _, err := client.GetPrice(context.Background(), "DOGEUSDT"); err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}

	if requests != 2 {
		t.Errorf("ожидалось 2 запроса к фиду, было %d", requests)
	}
}
