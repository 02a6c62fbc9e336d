// Package middlewarectx содержит HTTP middleware для работы с сессией.
//
// LoadSession читает подписанную cookie и кладёт сессию в контекст запроса.
// RequireAuth пропускает дальше только аутентифицированных пользователей и
// добавляет их идентичность в контекст; иначе отвечает 401 или перенаправляет
// на страницу входа, если так настроено. Сбой проверки сессии даёт 500.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/blog-auth/internal/http/response"
	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	services "github.com/magabrotheeeer/blog-auth/internal/services/auth"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// SessionKey - ключ для сессии в контексте
	SessionKey Key = "session"
	// IdentityKey - ключ для идентичности пользователя в контексте
	IdentityKey Key = "identity"
)

// SessionReader читает сессию из запроса.
type SessionReader interface {
	Read(r *http.Request) session.Session
}

// Authenticator проверяет сессию.
type Authenticator interface {
	IsAuthenticated(ctx context.Context, s session.Session, p services.Policy) services.Outcome
}

// LoadSession возвращает middleware, который кладёт сессию запроса в контекст.
func LoadSession(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), SessionKey, sessions.Read(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom возвращает сессию из контекста. Без LoadSession сессия пустая.
func SessionFrom(ctx context.Context) session.Session {
	s, _ := ctx.Value(SessionKey).(session.Session)
	return s
}

// IdentityFrom возвращает идентичность, положенную RequireAuth.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(models.Identity)
	return id, ok && !id.IsZero()
}

// RequireAuth возвращает middleware, который пропускает только аутентифицированные запросы.
//
// Если failureRedirect не пуст, неаутентифицированный запрос получает 303 на этот адрес.
func RequireAuth(log *slog.Logger, auth Authenticator, failureRedirect string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireAuth"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			out := auth.IsAuthenticated(r.Context(), SessionFrom(r.Context()), services.Policy{
				FailureRedirect: failureRedirect,
			})

			switch out.Kind {
			case services.Authenticated:
				ctx := context.WithValue(r.Context(), IdentityKey, out.Identity)
				next.ServeHTTP(w, r.WithContext(ctx))
			case services.RedirectRequested:
				log.Info("not signed in, redirecting", slog.String("target", out.Target))
				http.Redirect(w, r, out.Target, http.StatusSeeOther)
			case services.CheckFailed:
				log.Error("failed to check session", sl.Err(out.Err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
			default:
				log.Info("not signed in")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("not signed in"))
			}
		})
	}
}
