package signup

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/blog-auth/internal/http/middlewarectx"
	"github.com/magabrotheeeer/blog-auth/internal/http/response"
	"github.com/magabrotheeeer/blog-auth/internal/lib/metrics"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	services "github.com/magabrotheeeer/blog-auth/internal/services/auth"
)

type Handler struct {
	log      *slog.Logger
	service  Service
	sessions SessionCommitter
	metrics  *metrics.Metrics
}

func New(log *slog.Logger, service Service, sessions SessionCommitter, m *metrics.Metrics) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		sessions: sessions,
		metrics:  m,
	}
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Description Создаёт пользователя с ролью user и сразу выдаёт cookie сессии.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body services.RegisterRequest true "Данные нового пользователя"
// @Success 201 {object} response.Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Почта уже занята"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /signup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signup"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req services.RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	sess, identity, err := h.service.Register(r.Context(), middlewarectx.SessionFrom(r.Context()), req)
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			log.Info("validation failed", slog.Any("fields", verr.Result.Fields()))
			h.metrics.SignUps.WithLabelValues(metrics.ResultInvalid).Inc()
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verr.Result))
		case errors.Is(err, services.ErrEmailTaken):
			log.Info("email already registered")
			h.metrics.SignUps.WithLabelValues(metrics.ResultFailure).Inc()
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.FieldError(err.Error(), "email", "is already registered"))
		default:
			log.Error("registration failed", sl.Err(err))
			h.metrics.SignUps.WithLabelValues(metrics.ResultError).Inc()
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to register user"))
		}
		return
	}

	cookie, err := h.sessions.Commit(sess)
	if err != nil {
		log.Error("failed to commit session", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	w.Header().Add("Set-Cookie", cookie)

	h.metrics.SignUps.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Info("user registered", slog.String("user_uid", identity.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(identity))
}
