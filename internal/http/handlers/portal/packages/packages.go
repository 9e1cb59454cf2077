// Package packages отдаёт каталог тарифных пакетов.
package packages

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

// Handler возвращает список пакетов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service источник каталога.
type Service interface {
	Packages(ctx context.Context, key portal.Key) ([]models.PackageOffer, error)
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список пакетов
// @Tags Packages
// @Produce json
// @Success 200 {object} response.Response
// @Failure 502 {object} response.ErrorResponse
// @Router /packages [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portal.packages"

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

	offers, err := h.service.Packages(r.Context(), key)
	if err != nil {
		log.Error("failed to list packages", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Debug("packages listed", slog.Int("count", len(offers)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"packages": offers,
	}))
}
