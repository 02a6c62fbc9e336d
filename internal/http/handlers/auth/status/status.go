// Package status отвечает на GET /signin: уже вошедший пользователь
// перенаправляется, остальным сообщается, что вход не выполнен.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/blog-auth/internal/http/middlewarectx"
	"github.com/magabrotheeeer/blog-auth/internal/http/response"
	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	services "github.com/magabrotheeeer/blog-auth/internal/services/auth"
)

// Authenticator проверяет сессию.
type Authenticator interface {
	IsAuthenticated(ctx context.Context, s session.Session, p services.Policy) services.Outcome
}

type Handler struct {
	log             *slog.Logger
	auth            Authenticator
	successRedirect string
}

func New(log *slog.Logger, auth Authenticator, successRedirect string) *Handler {
	return &Handler{
		log:             log,
		auth:            auth,
		successRedirect: successRedirect,
	}
}

// ServeHTTP godoc
// @Summary Состояние входа
// @Description Перенаправляет вошедшего пользователя, иначе возвращает authenticated=false.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Вход не выполнен"
// @Success 303 "Пользователь уже вошёл"
// @Failure 500 {object} response.ErrorResponse "Сбой проверки сессии"
// @Router /signin [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	out := h.auth.IsAuthenticated(r.Context(), middlewarectx.SessionFrom(r.Context()), services.Policy{
		SuccessRedirect: h.successRedirect,
	})

	switch out.Kind {
	case services.RedirectRequested:
		log.Info("already signed in, redirecting", slog.String("target", out.Target))
		http.Redirect(w, r, out.Target, http.StatusSeeOther)
	case services.CheckFailed:
		log.Error("failed to check session", sl.Err(out.Err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
	case services.Authenticated:
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"authenticated": true,
			"identity":      out.Identity,
		}))
	default:
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"authenticated": false,
		}))
	}
}
