// Package session реализует подписанную cookie-сессию.
//
// Сессия - это значение: обработчик читает её из запроса (Read), изменяет
// (Set, Destroy) и фиксирует (Commit), получая значение заголовка Set-Cookie.
// Содержимое cookie подписано HMAC-SHA256 и принимается только после
// проверки подписи; отсутствующая или повреждённая cookie даёт пустую сессию.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/blog-auth/internal/models"
)

// ErrEmptySecret возвращается при создании менеджера без ключа подписи.
var ErrEmptySecret = errors.New("session: empty secret key")

// Session - состояние сессии одного запроса.
type Session struct {
	ID        string
	Identity  models.Identity
	IssuedAt  time.Time
	ExpiresAt time.Time

	dirty     bool
	destroyed bool
}

// Authenticated сообщает, привязана ли сессия к пользователю.
func (s Session) Authenticated() bool {
	return !s.destroyed && !s.Identity.IsZero()
}

// Modified сообщает, что сессию нужно зафиксировать в ответе.
func (s Session) Modified() bool {
	return s.dirty
}

// Options - параметры cookie.
type Options struct {
	CookieName string
	SecretKey  string
	TTL        time.Duration
	Secure     bool
}

// Manager выдаёт, читает и уничтожает сессии.
type Manager struct {
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// NewManager создаёт Manager.
func NewManager(opts Options) (*Manager, error) {
	const op = "session.NewManager"
	if opts.SecretKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	return &Manager{
		cookieName: opts.CookieName,
		secret:     []byte(opts.SecretKey),
		ttl:        opts.TTL,
		secure:     opts.Secure,
		now:        time.Now,
	}, nil
}

// CookieName возвращает имя cookie сессии.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// TTL возвращает время жизни сессии.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Read извлекает сессию из cookie запроса. Любая ошибка разбора даёт пустую сессию.
func (m *Manager) Read(r *http.Request) Session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return Session{}
	}
	s, err := m.parse(cookie.Value)
	if err != nil {
		return Session{}
	}
	return s
}

// Set привязывает сессию к пользователю. Возвращается новая сессия
// со свежим идентификатором и сроком действия.
func (m *Manager) Set(_ Session, identity models.Identity) Session {
	now := m.now()
	return Session{
		ID:        uuid.NewString(),
		Identity:  identity,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
		dirty:     true,
	}
}

// Destroy помечает сессию уничтоженной.
func (m *Manager) Destroy(s Session) Session {
	return Session{
		ID:        s.ID,
		dirty:     true,
		destroyed: true,
	}
}

// Commit возвращает значение заголовка Set-Cookie для сессии.
func (m *Manager) Commit(s Session) (string, error) {
	const op = "session.Commit"

	if s.destroyed || s.Identity.IsZero() {
		return m.expired().String(), nil
	}

	c := claims{
		Identity:   s.Identity,
		IssuedAtMs: s.IssuedAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.Identity.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	cookie := &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  s.ExpiresAt.UTC(),
		MaxAge:   int(s.ExpiresAt.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	return cookie.String(), nil
}

func (m *Manager) expired() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) parse(value string) (Session, error) {
	const op = "session.parse"

	token, err := jwt.ParseWithClaims(value, &claims{}, func(_ *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Session{}, fmt.Errorf("%s: invalid token", op)
	}
	if c.Identity.IsZero() || c.Subject != c.Identity.ID {
		return Session{}, fmt.Errorf("%s: identity mismatch", op)
	}

	return Session{
		ID:        c.ID,
		Identity:  c.Identity,
		IssuedAt:  time.UnixMilli(c.IssuedAtMs),
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
