// Package start запускает оплату пакета через M-Pesa.
//
// Handler декодирует телефон и ключ пакета, передаёт их автомату оплаты
// сессии и возвращает снимок состояния. Ошибки ввода возвращаются с именем
// поля, отказ шлюза отражается в самом снимке (состояние failed).
package start

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

// Request входные данные оплаты. Формат телефона проверяет автомат оплаты.
type Request struct {
	Phone      string `json:"phone" validate:"required,max=32"`
	PackageKey string `json:"packageKey" validate:"required,max=64"`
}

// Handler обрабатывает запуск оплаты.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service запускает оплату сессии.
type Service interface {
	StartCheckout(ctx context.Context, key portal.Key, phone, packageKey, clientIP string) (checkout.Snapshot, error)
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
// @Summary Запуск оплаты
// @Description Отправляет STK push на телефон и начинает опрос статуса платежа.
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body Request true "Телефон и пакет"
// @Success 202 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.start"

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
			log.Info("validation failed", sl.Err(err))
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		log.Error("validator misuse", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	snap, err := h.service.StartCheckout(r.Context(), key, req.Phone, req.PackageKey, middlewarectx.ClientIP(r))
	if err != nil {
		log.Info("checkout not started", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("checkout started",
		slog.String("state", string(snap.State)),
		slog.String("payment_id", snap.PaymentID),
	)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response.OKWithData(snap))
}
