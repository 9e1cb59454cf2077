package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/hotspot-portal/internal/auth"
	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/redemption"
	"github.com/magabrotheeeer/hotspot-portal/internal/validate"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   ErrorResponse
	}{
		{
			name:       "field error",
			err:        &validate.FieldError{Field: "mac", Message: validate.MsgMacInvalid},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   FieldError("mac", validate.MsgMacInvalid),
		},
		{
			name:       "unauthenticated",
			err:        redemption.ErrUnauthenticated,
			wantStatus: http.StatusUnauthorized,
			wantBody:   Error("Please sign in to continue"),
		},
		{
			name:       "bad token",
			err:        fmt.Errorf("auth.Authenticate: %w", auth.ErrInvalidToken),
			wantStatus: http.StatusUnauthorized,
			wantBody:   Error("invalid or expired token"),
		},
		{
			name:       "cancelled",
			err:        checkout.ErrCancelled,
			wantStatus: http.StatusConflict,
			wantBody:   Error("checkout was cancelled"),
		},
		{
			name:       "gateway client error passes status",
			err:        fmt.Errorf("redemption.Redeem: %w", &gateway.Error{StatusCode: 404, Message: "Voucher not found"}),
			wantStatus: http.StatusNotFound,
			wantBody:   Error("Voucher not found"),
		},
		{
			name:       "ok false rejection",
			err:        fmt.Errorf("redemption.Redeem: %w", &gateway.Error{StatusCode: 200, Message: "Voucher already used", Rejected: true}),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   Error("Voucher already used"),
		},
		{
			name:       "malformed success body",
			err:        &gateway.Error{StatusCode: 200, Message: "Invalid response (HTTP 200): <html>"},
			wantStatus: http.StatusBadGateway,
			wantBody:   Error("Invalid response (HTTP 200): <html>"),
		},
		{
			name:       "gateway server error",
			err:        &gateway.Error{StatusCode: 502, Message: "Request failed (HTTP 502): <html>"},
			wantStatus: http.StatusBadGateway,
			wantBody:   Error("Request failed (HTTP 502): <html>"),
		},
		{
			name:       "network error",
			err:        errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusBadGateway,
			wantBody:   Error(MsgGatewayUnavailable),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}
