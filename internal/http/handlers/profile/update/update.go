package update

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
	"github.com/magabrotheeeer/blog-auth/internal/lib/metrics"
	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/models"
	services "github.com/magabrotheeeer/blog-auth/internal/services/account"
)

type Service interface {
	UpdateProfile(ctx context.Context, actor models.Identity, targetUID string, req services.UpdateProfileRequest) (models.Identity, error)
}

// Sessions переиздаёт сессию с обновлённой идентичностью.
type Sessions interface {
	Set(s session.Session, identity models.Identity) session.Session
	Commit(s session.Session) (string, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	sessions Sessions
	metrics  *metrics.Metrics
}

func New(log *slog.Logger, service Service, sessions Sessions, m *metrics.Metrics) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		sessions: sessions,
		metrics:  m,
	}
}

// ServeHTTP godoc
// @Summary Изменение профиля
// @Description Меняет имя, аватар и биографию. Доступно только владельцу. Cookie сессии переиздаётся.
// @Tags Account
// @Accept  json
// @Produce  json
// @Param id path string true "UUID пользователя"
// @Param request body services.UpdateProfileRequest true "Новые данные профиля"
// @Success 200 {object} response.Response "Профиль изменён"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Вход не выполнен"
// @Failure 403 {object} response.ErrorResponse "Чужая учётная запись"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/{id}/profile [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.update"

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

	if err := services.Authorize(actor, targetUID); err != nil {
		h.forbidden(w, r, log, targetUID)
		return
	}

	var req services.UpdateProfileRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	identity, err := h.service.UpdateProfile(r.Context(), actor, targetUID, req)
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			h.metrics.ProfileUpdates.WithLabelValues(metrics.ResultInvalid).Inc()
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verr.Result))
		case errors.Is(err, services.ErrForbidden):
			h.forbidden(w, r, log, targetUID)
		case errors.Is(err, services.ErrUserNotFound):
			h.metrics.ProfileUpdates.WithLabelValues(metrics.ResultFailure).Inc()
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			log.Error("failed to update profile", sl.Err(err))
			h.metrics.ProfileUpdates.WithLabelValues(metrics.ResultError).Inc()
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not update profile"))
		}
		return
	}

	cookie, err := h.sessions.Commit(h.sessions.Set(middlewarectx.SessionFrom(r.Context()), identity))
	if err != nil {
		log.Error("failed to commit session", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	w.Header().Add("Set-Cookie", cookie)

	h.metrics.ProfileUpdates.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Info("profile updated", slog.String("user_uid", targetUID))
	render.JSON(w, r, response.StatusOKWithData(identity))
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request, log *slog.Logger, targetUID string) {
	log.Warn("attempt to update another user's profile", slog.String("target_uid", targetUID))
	h.metrics.ProfileUpdates.WithLabelValues(metrics.ResultForbidden).Inc()
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, response.FieldError(services.ErrForbidden.Error(), "userId", "does not match the signed-in user"))
}
