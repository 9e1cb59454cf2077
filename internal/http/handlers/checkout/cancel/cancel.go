// Package cancel останавливает опрос текущей оплаты. Сохранённый ID платежа
// не удаляется: после перезагрузки страницы опрос продолжится.
package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	CancelCheckout(ctx context.Context, key portal.Key) checkout.Snapshot
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отмена опроса оплаты
// @Tags Checkout
// @Produce json
// @Success 200 {object} response.Response
// @Router /checkout/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.cancel"

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

	snap := h.service.CancelCheckout(r.Context(), key)
	log.Info("checkout cancelled")
	render.JSON(w, r, response.OKWithData(snap))
}
