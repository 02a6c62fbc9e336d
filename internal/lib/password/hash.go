// Package password реализует функции для безопасного хеширования и проверки паролей.
//
// Hasher.Hash создает bcrypt-хеш пароля с фиксированным коэффициентом сложности.
// Hasher.Verify сравнивает bcrypt-хеш с введённым паролем за постоянное время.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost - коэффициент сложности bcrypt по умолчанию.
const DefaultCost = 12

// MaxLength - максимальная длина пароля в байтах, которую учитывает bcrypt.
const MaxLength = 72

// ErrTooLong возвращается, если пароль длиннее MaxLength байт.
var ErrTooLong = errors.New("password exceeds 72 bytes")

// Hasher хэширует и проверяет пароли с заданным коэффициентом сложности.
type Hasher struct {
	cost int
}

// NewHasher создает Hasher. Значение cost вне допустимого для bcrypt диапазона
// заменяется на DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost возвращает коэффициент сложности.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash принимает пароль пользователя и возвращает его bcrypt‑хэш.
//
// Используется для безопасного хранения паролей в базе данных.
func (h *Hasher) Hash(plaintext string) (string, error) {
	const op = "password.Hash"
	if len(plaintext) > MaxLength {
		return "", fmt.Errorf("%s: %w", op, ErrTooLong)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Verify сообщает, соответствует ли пароль хэшу.
//
// Несовпадение и повреждённый хэш дают false, а не ошибку.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
