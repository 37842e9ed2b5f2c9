package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignHMAC512 вычисляет HMAC-SHA512 подпись тела сообщения.
// Возвращает hex-представление подписи
func SignHMAC512(body, secret []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC512 проверяет hex-подпись тела сообщения.
// Сравнение constant-time
func VerifyHMAC512(body []byte, signature string, secret []byte) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
