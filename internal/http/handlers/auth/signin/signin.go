// Package signin реализует HTTP-обработчик входа по почте и паролю.
//
// При успешной аутентификации выдаётся новая сессия в cookie и возвращается
// идентичность пользователя. Неверная почта и неверный пароль дают один и тот же ответ.
package signin

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

// Handler обрабатывает HTTP-запросы входа.
type Handler struct {
	log      *slog.Logger     // Логгер для записи операций и ошибок
	service  Service          // Сервис аутентификации
	sessions SessionCommitter // Формирует cookie сессии
	metrics  *metrics.Metrics
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, sessions SessionCommitter, m *metrics.Metrics) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		sessions: sessions,
		metrics:  m,
	}
}

// ServeHTTP godoc
// @Summary Вход пользователя
// @Description Проверяет почту и пароль. Выдаёт cookie сессии и возвращает идентичность пользователя.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body services.Credentials true "Учетные данные пользователя"
// @Success 200 {object} response.Response "Успешный вход"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверная почта или пароль"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /signin [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signin"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req services.Credentials
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if res := h.service.ValidateCredentials(req); !res.OK() {
		log.Info("validation failed", slog.Any("fields", res.Fields()))
		h.metrics.SignIns.WithLabelValues(metrics.ResultInvalid).Inc()
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(res))
		return
	}

	sess, identity, err := h.service.Authenticate(r.Context(), middlewarectx.SessionFrom(r.Context()), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			log.Info("sign-in rejected")
			h.metrics.SignIns.WithLabelValues(metrics.ResultFailure).Inc()
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error(services.ErrInvalidCredentials.Error()))
			return
		}
		log.Error("sign-in failed", sl.Err(err))
		h.metrics.SignIns.WithLabelValues(metrics.ResultError).Inc()
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	cookie, err := h.sessions.Commit(sess)
	if err != nil {
		log.Error("failed to commit session", sl.Err(err))
		h.metrics.SignIns.WithLabelValues(metrics.ResultError).Inc()
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	w.Header().Add("Set-Cookie", cookie)

	h.metrics.SignIns.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Info("sign-in success", slog.String("user_uid", identity.ID))
	render.JSON(w, r, response.StatusOKWithData(identity))
}
