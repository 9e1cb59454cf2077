package start

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
	"github.com/magabrotheeeer/hotspot-portal/internal/validate"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) StartCheckout(ctx context.Context, key portal.Key, phone, packageKey, clientIP string) (checkout.Snapshot, error) {
	args := m.Called(ctx, key, phone, packageKey, clientIP)
	snap, _ := args.Get(0).(checkout.Snapshot)
	return snap, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestStartHandler(t *testing.T) {
	key := portal.Key{SessionID: "sid", ClientID: "cid"}

	tests := []struct {
		name       string
		body       any
		mockSnap   checkout.Snapshot
		mockErr    error
		callsSvc   bool
		wantStatus int
		wantError  string
		wantField  string
		wantState  string
	}{
		{
			name:       "payment initiated",
			body:       Request{Phone: "0712345678", PackageKey: "daily"},
			mockSnap:   checkout.Snapshot{State: checkout.StatePolling, PaymentID: "pay-1"},
			callsSvc:   true,
			wantStatus: http.StatusAccepted,
			wantState:  "polling",
		},
		{
			name:       "gateway refused the push",
			body:       Request{Phone: "0712345678", PackageKey: "daily"},
			mockSnap:   checkout.Snapshot{State: checkout.StateFailed, Message: checkout.MsgStartFailed},
			callsSvc:   true,
			wantStatus: http.StatusAccepted,
			wantState:  "failed",
		},
		{
			name:       "invalid phone reported with field",
			body:       Request{Phone: "12", PackageKey: "daily"},
			mockErr:    &validate.FieldError{Field: "phone", Message: "Enter a valid Kenyan phone number"},
			callsSvc:   true,
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Enter a valid Kenyan phone number",
			wantField:  "phone",
		},
		{
			name:       "superseded by cancel",
			body:       Request{Phone: "0712345678", PackageKey: "daily"},
			mockErr:    checkout.ErrCancelled,
			callsSvc:   true,
			wantStatus: http.StatusConflict,
			wantError:  "checkout was cancelled",
		},
		{
			name:       "missing package",
			body:       Request{Phone: "0712345678"},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "field PackageKey is a required field",
		},
		{
			name:       "broken json",
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.callsSvc {
				req := tt.body.(Request)
				svc.On("StartCheckout", mock.Anything, key, req.Phone, req.PackageKey, "192.0.2.1").
					Return(tt.mockSnap, tt.mockErr).Once()
			}

			var raw []byte
			if s, ok := tt.body.(string); ok {
				raw = []byte(s)
			} else {
				var err error
				raw, err = json.Marshal(tt.body)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(raw))
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123")
			req = req.WithContext(middlewarectx.WithSessionKey(ctx, key))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))

			if tt.wantError != "" {
				assert.Equal(t, "Error", got["status"])
				assert.Equal(t, tt.wantError, got["error"])
				if tt.wantField != "" {
					assert.Equal(t, tt.wantField, got["field"])
				}
			} else {
				data, ok := got["data"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, tt.wantState, data["state"])
			}
			svc.AssertExpectations(t)
		})
	}
}
