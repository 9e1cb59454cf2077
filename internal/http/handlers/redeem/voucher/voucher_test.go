package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
	"github.com/magabrotheeeer/hotspot-portal/internal/validate"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) RedeemVoucher(ctx context.Context, key portal.Key, code, packageKey string, mac *string, clientIP string) error {
	return m.Called(ctx, key, code, packageKey, mac, clientIP).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestVoucherHandler(t *testing.T) {
	key := portal.Key{SessionID: "sid", ClientID: "cid"}

	tests := []struct {
		name       string
		body       string
		mockErr    error
		callsSvc   bool
		wantStatus int
		wantError  string
		wantField  string
	}{
		{
			name:       "guest redeems with captured mac",
			body:       `{"code":"ABC-123"}`,
			callsSvc:   true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "manual mac rejected",
			body:       `{"code":"ABC-123","mac":"zz"}`,
			mockErr:    &validate.FieldError{Field: "mac", Message: "Enter a valid MAC address (e.g. AA:BB:CC:DD:EE:FF)"},
			callsSvc:   true,
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "mac",
		},
		{
			name:       "gateway message passed through",
			body:       `{"code":"USED-1"}`,
			mockErr:    &gateway.Error{StatusCode: http.StatusBadRequest, Message: "Voucher already used"},
			callsSvc:   true,
			wantStatus: http.StatusBadRequest,
			wantError:  "Voucher already used",
		},
		{
			name:       "rejected in ok false body",
			body:       `{"code":"USED-2"}`,
			mockErr:    &gateway.Error{StatusCode: http.StatusOK, Message: "Voucher expired", Rejected: true},
			callsSvc:   true,
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Voucher expired",
		},
		{
			name:       "network failure",
			body:       `{"code":"ABC-123"}`,
			mockErr:    errors.New("context deadline exceeded"),
			callsSvc:   true,
			wantStatus: http.StatusBadGateway,
			wantError:  "Service temporarily unavailable. Please try again.",
		},
		{
			name:       "empty code",
			body:       `{"code":""}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "field Code is a required field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.callsSvc {
				var req Request
				require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
				svc.On("RedeemVoucher", mock.Anything, key, req.Code, req.PackageKey, req.MAC, "192.0.2.1").
					Return(tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/redeem/voucher", strings.NewReader(tt.body))
			req = req.WithContext(middlewarectx.WithSessionKey(req.Context(), key))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			}
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, got["field"])
			}
			svc.AssertExpectations(t)
		})
	}
}
