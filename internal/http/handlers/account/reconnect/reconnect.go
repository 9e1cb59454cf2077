// Package reconnect переподключает устройство к активным подпискам пользователя.
package reconnect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

// Request MAC устройства. Без него используется MAC из идентичности сессии.
type Request struct {
	MAC *string `json:"mac,omitempty"`
}

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	ReconnectDevice(ctx context.Context, key portal.Key, mac *string, clientIP string) (*gateway.ReconnectResponse, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Переподключение устройства
// @Tags Account
// @Accept json
// @Produce json
// @Param request body Request false "MAC устройства"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /account/reconnect [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.reconnect"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	res, err := h.service.ReconnectDevice(r.Context(), key, req.MAC, middlewarectx.ClientIP(r))
	if err != nil {
		log.Info("device not reconnected", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("device reconnected", slog.Int("subscriptions", len(res.Results)))
	render.JSON(w, r, response.OKWithData(res))
}
