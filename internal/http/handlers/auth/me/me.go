// Package me возвращает идентичность текущего пользователя.
package me

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/blog-auth/internal/http/middlewarectx"
	"github.com/magabrotheeeer/blog-auth/internal/http/response"
)

type Handler struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Текущий пользователь
// @Description Возвращает идентичность из сессии без обращения к базе.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Идентичность пользователя"
// @Failure 401 {object} response.ErrorResponse "Вход не выполнен"
// @Router /me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		h.log.Error("identity not found in context", slog.String("op", "handlers.auth.me"))
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("not signed in"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(identity))
}
