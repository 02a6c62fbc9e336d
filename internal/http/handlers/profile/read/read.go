package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/blog-auth/internal/http/middlewarectx"
	"github.com/magabrotheeeer/blog-auth/internal/http/response"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	services "github.com/magabrotheeeer/blog-auth/internal/services/account"
)

type Service interface {
	GetProfile(ctx context.Context, actor models.Identity, targetUID string) (*models.Profile, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Профиль пользователя
// @Description Возвращает имя, почту, аватар, роль и биографию. Доступно только владельцу.
// @Tags Account
// @Produce  json
// @Param id path string true "UUID пользователя"
// @Success 200 {object} response.Response "Профиль"
// @Failure 401 {object} response.ErrorResponse "Вход не выполнен"
// @Failure 403 {object} response.ErrorResponse "Чужая учётная запись"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/{id}/profile [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actor, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		log.Error("identity not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("not signed in"))
		return
	}
	targetUID := chi.URLParam(r, "id")

	profile, err := h.service.GetProfile(r.Context(), actor, targetUID)
	switch {
	case errors.Is(err, services.ErrForbidden):
		log.Warn("attempt to read another user's profile", slog.String("target_uid", targetUID))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.FieldError(err.Error(), "userId", "does not match the signed-in user"))
		return
	case errors.Is(err, services.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(err.Error()))
		return
	case err != nil:
		log.Error("failed to read profile", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read profile"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(profile))
}
