// Package logout забывает токен пользователя в сессии портала.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Logout(ctx context.Context, key portal.Key)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Выход
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/session [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	key, ok := middlewarectx.SessionKey(r.Context())
	if !ok {
		log.Error("session key missing in context")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("session not found"))
		return
	}

	h.service.Logout(r.Context(), key)
	log.Info("session logged out")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"authenticated": false,
	}))
}
