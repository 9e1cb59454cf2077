// Package capture принимает редирект хотспота на портал.
//
// Хотспот передаёт параметры устройства в строке запроса (mac, ip, chap-id,
// link-login и т.д.). Handler сохраняет их как идентичность сессии, чтобы
// последующие оплаты и активации не требовали ввода MAC вручную.
package capture

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

// Handler обрабатывает редирект хотспота.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service сохраняет идентичность из параметров редиректа.
type Service interface {
	CapturePortal(ctx context.Context, key portal.Key, params url.Values) (*models.PortalIdentity, error)
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Приём редиректа хотспота
// @Description Сохраняет MAC, IP и параметры CHAP из строки запроса в сессию.
// @Tags Portal
// @Produce json
// @Param mac query string false "MAC устройства"
// @Param ip query string false "IP устройства"
// @Success 200 {object} response.Response
// @Failure 500 {object} response.ErrorResponse
// @Router /portal [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portal.capture"

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

	identity, err := h.service.CapturePortal(r.Context(), key, r.URL.Query())
	if err != nil {
		log.Error("failed to capture portal identity", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not save device identity"))
		return
	}

	log.Info("portal identity captured", slog.Bool("present", identity != nil))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"identity": identity,
	}))
}
