// Package signout реализует выход: сессия уничтожается, cookie истекает.
package signout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/blog-auth/internal/http/middlewarectx"
	"github.com/magabrotheeeer/blog-auth/internal/http/response"
	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
)

// Sessions уничтожает и фиксирует сессию.
type Sessions interface {
	Destroy(s session.Session) session.Session
	Commit(s session.Session) (string, error)
}

type Handler struct {
	log      *slog.Logger
	sessions Sessions
}

func New(log *slog.Logger, sessions Sessions) *Handler {
	return &Handler{
		log:      log,
		sessions: sessions,
	}
}

// ServeHTTP godoc
// @Summary Выход пользователя
// @Description Уничтожает сессию и возвращает истекшую cookie.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Сессия завершена"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /signout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess := middlewarectx.SessionFrom(r.Context())
	cookie, err := h.sessions.Commit(h.sessions.Destroy(sess))
	if err != nil {
		log.Error("failed to commit session", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	w.Header().Add("Set-Cookie", cookie)

	log.Info("signed out", slog.String("user_uid", sess.Identity.ID))
	render.JSON(w, r, response.OK())
}
