package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"memeperp/pkg/utils"
)

// SweepAuth - middleware для защиты sweep endpoint bearer-токеном
//
// Назначение:
// Сравнивает Authorization: Bearer <token> с настроенным секретом.
// Сравнение constant-time для предотвращения timing attacks.
//
// Режимы:
// - Секрет настроен: несовпадение или отсутствие токена - 401.
// - Секрет пуст: запросы пропускаются без проверки. Это осознанный
//   ослабленный режим для dev-развертываний, логируется при каждом
//   запросе как предупреждение.
func SweepAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				utils.Warn("sweep endpoint called without configured secret (relaxed mode)",
					utils.String("remote_addr", r.RemoteAddr))
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return auth[len(prefix):]
}
