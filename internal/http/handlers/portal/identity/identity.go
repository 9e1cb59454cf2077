// Package identity отдаёт идентичность устройства текущей сессии.
package identity

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Identity(ctx context.Context, key portal.Key, clientIP string) *models.PortalIdentity
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Идентичность устройства
// @Description Возвращает MAC и IP из редиректа хотспота либо найденные по IP клиента.
// @Tags Portal
// @Produce json
// @Success 200 {object} response.Response
// @Router /identity [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portal.identity"

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

	identity := h.service.Identity(r.Context(), key, middlewarectx.ClientIP(r))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"identity": identity,
	}))
}
