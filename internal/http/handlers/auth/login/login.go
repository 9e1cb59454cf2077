// Package login привязывает токен пользователя к сессии портала.
//
// Токен выдаёт сервис учётных записей. Он принимается из заголовка
// Authorization: Bearer или из тела запроса. После входа сессия выполняет
// отложенные привязки гостевых платежей к аккаунту.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/hotspot-portal/internal/auth"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/response"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

// Request тело запроса, если токен не передан в заголовке.
type Request struct {
	Token string `json:"token" validate:"required"`
}

// Handler обрабатывает вход.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service принимает токен пользователя.
type Service interface {
	Login(ctx context.Context, key portal.Key, token string) (auth.User, error)
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
// @Summary Вход в сессию портала
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request false "Токен, если нет заголовка Authorization"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/session [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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
	if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		req.Token = strings.TrimSpace(token)
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("missing token"))
			return
		}
		log.Error("validator misuse", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	user, err := h.service.Login(r.Context(), key, req.Token)
	if err != nil {
		log.Info("login rejected", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("session authenticated", slog.String("user_uid", user.UID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user": user,
	}))
}
