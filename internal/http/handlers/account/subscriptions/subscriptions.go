// Package subscriptions отдаёт подписки пользователя со статусом на момент запроса.
package subscriptions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

// Handler возвращает список подписок.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service источник подписок.
type Service interface {
	Subscriptions(ctx context.Context, key portal.Key) ([]portal.SubscriptionView, error)
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Подписки пользователя
// @Description Статус active заменяется на expired, если срок подписки уже прошёл.
// @Tags Account
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /account/subscriptions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.subscriptions"

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

	subs, err := h.service.Subscriptions(r.Context(), key)
	if err != nil {
		log.Info("failed to list subscriptions", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscriptions": subs,
	}))
}
