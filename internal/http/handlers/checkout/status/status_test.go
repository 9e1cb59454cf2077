package status

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CheckoutStatus(ctx context.Context, key portal.Key) checkout.Snapshot {
	return m.Called(ctx, key).Get(0).(checkout.Snapshot)
}

func TestStatusHandler(t *testing.T) {
	key := portal.Key{SessionID: "sid", ClientID: "cid"}
	svc := new(MockService)
	svc.On("CheckoutStatus", mock.Anything, key).Return(checkout.Snapshot{
		State:     checkout.StateSuccess,
		PaymentID: "pay-1",
		Payment:   &models.Payment{ID: "pay-1", Status: models.PaymentSuccess, PackageKey: "daily"},
		Polls:     4,
	}).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout", nil)
	req = req.WithContext(middlewarectx.WithSessionKey(req.Context(), key))
	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data checkout.Snapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, checkout.StateSuccess, got.Data.State)
	assert.Equal(t, 4, got.Data.Polls)
	require.NotNil(t, got.Data.Payment)
	assert.Equal(t, "daily", got.Data.Payment.PackageKey)
	svc.AssertExpectations(t)
}
