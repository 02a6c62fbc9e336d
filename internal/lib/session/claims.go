package session

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/blog-auth/internal/models"
)

// claims описывает содержимое подписанной cookie.
//
// IssuedAtMs дублирует iat с точностью до миллисекунд: по нему сравнивается
// отметка отзыва сессий пользователя.
type claims struct {
	Identity   models.Identity `json:"idt"`
	IssuedAtMs int64           `json:"iat_ms"`
	jwt.RegisteredClaims
}
