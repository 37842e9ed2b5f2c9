package oracle

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// Таймауты транспорта к фиду. Решения о ликвидации принимаются по
// свежим данным, поэтому бюджеты жёсткие: лучше быстро отказать и
// пропустить тикер до следующего sweep, чем держать проход на
// зависшем соединении
const (
	connectTimeout  = 3 * time.Second
	responseTimeout = 5 * time.Second
	totalTimeout    = 10 * time.Second
	keepAlive       = 30 * time.Second
	idleConnTimeout = 90 * time.Second
)

var (
	sharedClient     *http.Client
	sharedClientOnce sync.Once
)

// feedHTTPClient возвращает общий http.Client для всех адаптеров оракула.
// Один транспорт на процесс: connection pool переиспользуется между
// sweep-проходами и ручными запросами котировок
func feedHTTPClient() *http.Client {
	sharedClientOnce.Do(func() {
		sharedClient = newFeedHTTPClient()
	})
	return sharedClient
}

func newFeedHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: keepAlive,
	}

	transport := &http.Transport{
		// Запрос с коротким бюджетом (oracle timeout внутри sweep)
		// не должен ждать полный connectTimeout на установке соединения
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if deadline, ok := ctx.Deadline(); ok {
				if remaining := time.Until(deadline); remaining < connectTimeout {
					shortDialer := &net.Dialer{
						Timeout:   remaining,
						KeepAlive: keepAlive,
					}
					return shortDialer.DialContext(ctx, network, addr)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},

		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     idleConnTimeout,

		TLSHandshakeTimeout: connectTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		// Ответы фида маленькие, сжатие только добавляет latency
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: time.Second,
		ResponseHeaderTimeout: responseTimeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   totalTimeout, // страховочный общий потолок
	}
}

// CloseIdleConnections закрывает простаивающие соединения общего
// транспорта. Вызывается при graceful shutdown
func CloseIdleConnections() {
	if sharedClient != nil {
		sharedClient.CloseIdleConnections()
	}
}
