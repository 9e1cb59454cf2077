// Package voucher активирует ваучер на устройстве.
//
// Вход не обязателен: гость активирует ваучер по MAC из редиректа хотспота
// или по MAC, введённому вручную.
package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

// Request код ваучера и, при необходимости, MAC устройства.
type Request struct {
	Code       string  `json:"code" validate:"required,max=64"`
	PackageKey string  `json:"packageKey" validate:"max=64"`
	MAC        *string `json:"mac,omitempty"`
}

// Handler обрабатывает активацию ваучера.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service активирует ваучер.
type Service interface {
	RedeemVoucher(ctx context.Context, key portal.Key, code, packageKey string, mac *string, clientIP string) error
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Активация ваучера
// @Tags Redeem
// @Accept json
// @Produce json
// @Param request body Request true "Ваучер"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /redeem/voucher [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.redeem.voucher"

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
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		log.Error("validator misuse", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	if err := h.service.RedeemVoucher(r.Context(), key, req.Code, req.PackageKey, req.MAC, middlewarectx.ClientIP(r)); err != nil {
		log.Info("voucher not redeemed", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("voucher redeemed")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "Voucher activated. You are now connected.",
	}))
}
