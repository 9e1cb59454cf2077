package response

import (
	"errors"
	"net/http"

	"github.com/magabrotheeeer/hotspot-portal/internal/auth"
	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/redemption"
	"github.com/magabrotheeeer/hotspot-portal/internal/validate"
)

// MsgGatewayUnavailable текст для сетевых ошибок шлюза.
const MsgGatewayUnavailable = "Service temporarily unavailable. Please try again."

// FromError подбирает HTTP-статус и тело ответа для ошибки сервиса.
// Ошибки ввода и ответы шлюза показываются пользователю как есть.
func FromError(err error) (int, ErrorResponse) {
	var fieldErr *validate.FieldError
	var gwErr *gateway.Error

	switch {
	case errors.As(err, &fieldErr):
		return http.StatusUnprocessableEntity, FieldError(fieldErr.Field, fieldErr.Message)
	case errors.Is(err, redemption.ErrUnauthenticated):
		return http.StatusUnauthorized, Error("Please sign in to continue")
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, Error("invalid or expired token")
	case errors.Is(err, checkout.ErrCancelled):
		return http.StatusConflict, Error("checkout was cancelled")
	case errors.As(err, &gwErr):
		status := http.StatusBadGateway
		switch {
		case gwErr.Rejected:
			status = http.StatusUnprocessableEntity
		case gwErr.StatusCode >= 400 && gwErr.StatusCode < 500:
			status = gwErr.StatusCode
		}
		return status, Error(gwErr.Message)
	default:
		return http.StatusBadGateway, Error(MsgGatewayUnavailable)
	}
}
