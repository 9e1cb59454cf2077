package checkout_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/checkout/checkouttest"
	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) StartCheckout(ctx context.Context, req gateway.StartCheckoutRequest) (*gateway.StartCheckoutResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.StartCheckoutResponse), args.Error(1)
}

func (m *MockGateway) CheckStatus(ctx context.Context, paymentID string) (*gateway.StatusResponse, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.StatusResponse), args.Error(1)
}

type fakeCatalog map[string]models.PackageOffer

func (c fakeCatalog) Offer(_ context.Context, key string) (models.PackageOffer, bool, error) {
	o, ok := c[key]
	return o, ok, nil
}

type memStore struct {
	mu sync.Mutex
	id string
}

func (s *memStore) Save(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}

func (s *memStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, nil
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	return nil
}

type recorder struct {
	mu     sync.Mutex
	states []checkout.State
}

func (r *recorder) Observe(s checkout.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func strPtr(s string) *string { return &s }

var testCatalog = fakeCatalog{"1h": {Key: "1h", Name: "1 hour"}}

type fixture struct {
	gw      *MockGateway
	store   *memStore
	sched   *checkouttest.Scheduler
	m       *checkout.Machine
	success []string
	mu      sync.Mutex
}

func newFixture(t *testing.T, cfg checkout.Config, opts ...checkout.Option) *fixture {
	t.Helper()
	f := &fixture{
		gw:    new(MockGateway),
		store: &memStore{},
		sched: checkouttest.NewScheduler(),
	}
	opts = append(opts, checkout.WithSuccessHandler(checkout.SuccessFunc(func(_ context.Context, id string) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.success = append(f.success, id)
	})))
	f.m = checkout.New(f.gw, testCatalog, f.store, f.sched, cfg, newNoopLogger(), opts...)
	return f
}

func (f *fixture) successes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.success...)
}

func pending() *gateway.StatusResponse {
	return &gateway.StatusResponse{Status: models.PaymentPending}
}

var defaultCfg = checkout.Config{PollInterval: 3 * time.Second, MaxPolls: 100, Timeout: 5 * time.Minute}

func TestMachine_PendingThenSuccess(t *testing.T) {
	f := newFixture(t, defaultCfg)
	identity := &models.PortalIdentity{MAC: strPtr("AA:BB:CC:DD:EE:FF"), IP: strPtr("10.0.0.5")}

	f.gw.On("StartCheckout", mock.Anything, gateway.StartCheckoutRequest{
		Phone:      "0712345678",
		PackageKey: "1h",
		MAC:        identity.MAC,
		IP:         identity.IP,
	}).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(pending(), nil).Times(3)
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(&gateway.StatusResponse{Status: models.PaymentSuccess}, nil).Once()

	snap, err := f.m.Start(context.Background(), "0712 345 678", "1h", identity)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatePolling, snap.State)
	assert.Equal(t, "p1", snap.PaymentID)

	stored, _ := f.store.Load(context.Background())
	assert.Equal(t, "p1", stored)

	f.sched.Advance(2 * time.Minute)

	snap = f.m.Snapshot()
	assert.Equal(t, checkout.StateSuccess, snap.State)
	assert.Equal(t, 4, snap.Polls)
	assert.Equal(t, 0, f.sched.Pending())
	assert.Equal(t, []string{"p1"}, f.successes())
	f.gw.AssertNumberOfCalls(t, "CheckStatus", 4)
	f.gw.AssertExpectations(t)
}

func TestMachine_FailedStatusUsesGatewayMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  *gateway.StatusResponse
		message string
	}{
		{
			name:    "gateway message",
			status:  &gateway.StatusResponse{Status: models.PaymentFailed, ErrorMessage: "Insufficient balance"},
			message: "Insufficient balance",
		},
		{
			name:    "fallback message",
			status:  &gateway.StatusResponse{Status: models.PaymentFailed},
			message: checkout.MsgPaymentFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultCfg)
			f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
			f.gw.On("CheckStatus", mock.Anything, "p1").Return(tt.status, nil).Once()

			_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
			require.NoError(t, err)
			f.sched.Advance(time.Minute)

			snap := f.m.Snapshot()
			assert.Equal(t, checkout.StateFailed, snap.State)
			assert.Equal(t, tt.message, snap.Message)
			assert.Empty(t, f.successes())
			assert.Equal(t, 0, f.sched.Pending())
		})
	}
}

func TestMachine_PollCeilingTimesOut(t *testing.T) {
	f := newFixture(t, checkout.Config{PollInterval: 3 * time.Second, MaxPolls: 100, Timeout: time.Hour})
	f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(pending(), nil)

	_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
	require.NoError(t, err)

	f.sched.Advance(300 * time.Second)

	snap := f.m.Snapshot()
	assert.Equal(t, checkout.StateTimedOut, snap.State)
	assert.Equal(t, checkout.MsgTimedOut, snap.Message)
	assert.Equal(t, 100, snap.Polls)
	// 100 опросов и контрольная проверка.
	f.gw.AssertNumberOfCalls(t, "CheckStatus", 101)
	assert.Equal(t, 0, f.sched.Pending())

	f.sched.Advance(time.Hour)
	f.gw.AssertNumberOfCalls(t, "CheckStatus", 101)
	assert.Equal(t, checkout.StateTimedOut, f.m.Snapshot().State)
}

func TestMachine_FinalCheckCanStillSucceed(t *testing.T) {
	f := newFixture(t, checkout.Config{PollInterval: 3 * time.Second, MaxPolls: 2, Timeout: time.Hour})
	f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(pending(), nil).Twice()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(&gateway.StatusResponse{Status: models.PaymentSuccess}, nil).Once()

	_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
	require.NoError(t, err)
	f.sched.Advance(6 * time.Second)

	assert.Equal(t, checkout.StateSuccess, f.m.Snapshot().State)
	assert.Equal(t, []string{"p1"}, f.successes())
}

func TestMachine_DeadlineTimesOut(t *testing.T) {
	f := newFixture(t, checkout.Config{PollInterval: 3 * time.Second, MaxPolls: 100, Timeout: 10 * time.Second})
	f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(pending(), nil)

	_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
	require.NoError(t, err)
	f.sched.Advance(10 * time.Second)

	snap := f.m.Snapshot()
	assert.Equal(t, checkout.StateTimedOut, snap.State)
	// опросы на 3, 6, 9 секундах и контрольная проверка на 10.
	f.gw.AssertNumberOfCalls(t, "CheckStatus", 4)
	assert.Equal(t, 0, f.sched.Pending())
}

func TestMachine_DeadlineDuringInflightPoll(t *testing.T) {
	f := newFixture(t, checkout.Config{PollInterval: 3 * time.Second, MaxPolls: 100, Timeout: 10 * time.Second})
	f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(pending(), nil).Twice()
	// третий опрос отвечает медленно: дедлайн наступает, пока он в полёте.
	f.gw.On("CheckStatus", mock.Anything, "p1").Run(func(mock.Arguments) {
		f.sched.Advance(2 * time.Second)
	}).Return(pending(), nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(pending(), nil).Once()

	_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
	require.NoError(t, err)
	f.sched.Advance(9 * time.Second)

	snap := f.m.Snapshot()
	assert.Equal(t, checkout.StateTimedOut, snap.State)
	assert.Equal(t, 3, snap.Polls)
	f.gw.AssertNumberOfCalls(t, "CheckStatus", 4)
	assert.Equal(t, 0, f.sched.Pending())
	f.gw.AssertExpectations(t)
}

func TestMachine_CancelStopsTimers(t *testing.T) {
	f := newFixture(t, defaultCfg)
	f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(pending(), nil).Once()

	_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
	require.NoError(t, err)
	f.sched.Advance(3 * time.Second)

	f.m.Cancel()
	assert.Equal(t, 0, f.sched.Pending())

	f.sched.Advance(time.Hour)
	assert.Equal(t, checkout.Snapshot{State: checkout.StateIdle}, f.m.Snapshot())
	f.gw.AssertNumberOfCalls(t, "CheckStatus", 1)

	// Cancel не трогает сохранённый платёж, Reset очищает его.
	stored, _ := f.store.Load(context.Background())
	assert.Equal(t, "p1", stored)
	require.NoError(t, f.m.Reset(context.Background()))
	stored, _ = f.store.Load(context.Background())
	assert.Empty(t, stored)
}

func TestMachine_StaleResponseAfterRestartIgnored(t *testing.T) {
	f := newFixture(t, defaultCfg)
	f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
	f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p2"}, nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Run(func(mock.Arguments) {
		f.m.Cancel()
		_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
		require.NoError(t, err)
	}).Return(&gateway.StatusResponse{Status: models.PaymentSuccess}, nil).Once()

	_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
	require.NoError(t, err)
	f.sched.Advance(3 * time.Second)

	snap := f.m.Snapshot()
	assert.Equal(t, checkout.StatePolling, snap.State)
	assert.Equal(t, "p2", snap.PaymentID)
	assert.Equal(t, 0, snap.Polls)
	assert.Empty(t, f.successes())
	// таймеры только нового платежа
	assert.Equal(t, 2, f.sched.Pending())
}

func TestMachine_StartFailure(t *testing.T) {
	tests := []struct {
		name    string
		resp    *gateway.StartCheckoutResponse
		err     error
		message string
	}{
		{
			name:    "gateway error message",
			err:     &gateway.Error{StatusCode: 400, Message: "Phone not registered for mobile money"},
			message: "Phone not registered for mobile money",
		},
		{
			name:    "network error",
			err:     errors.New("dial tcp: connection refused"),
			message: checkout.MsgStartFailed,
		},
		{
			name:    "no payment id",
			resp:    &gateway.StartCheckoutResponse{Message: "Service unavailable"},
			message: "Service unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultCfg)
			if tt.resp != nil {
				f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(tt.resp, nil).Once()
			} else {
				f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			}

			snap, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
			require.NoError(t, err)
			assert.Equal(t, checkout.StateFailed, snap.State)
			assert.Equal(t, tt.message, snap.Message)
			assert.Equal(t, 0, f.sched.Pending())

			stored, _ := f.store.Load(context.Background())
			assert.Empty(t, stored)
		})
	}
}

func TestMachine_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name       string
		phone      string
		packageKey string
		field      string
	}{
		{name: "short phone", phone: "0712", packageKey: "1h", field: "phone"},
		{name: "empty phone", phone: "", packageKey: "1h", field: "phone"},
		{name: "no package", phone: "0712345678", packageKey: " ", field: "packageKey"},
		{name: "unknown package", phone: "0712345678", packageKey: "10y", field: "packageKey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultCfg)

			snap, err := f.m.Start(context.Background(), tt.phone, tt.packageKey, nil)

			var verr *checkout.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, checkout.StateIdle, snap.State)
			f.gw.AssertNotCalled(t, "StartCheckout", mock.Anything, mock.Anything)
		})
	}
}

func TestMachine_ResumeIsIdempotent(t *testing.T) {
	f := newFixture(t, defaultCfg)
	f.gw.On("CheckStatus", mock.Anything, "p9").Return(pending(), nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p9").Return(&gateway.StatusResponse{Status: models.PaymentSuccess}, nil).Once()
	require.NoError(t, f.store.Save(context.Background(), "p9"))

	snap, resumed, err := f.m.ResumePending(context.Background())
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, checkout.StatePolling, snap.State)

	f.m.Resume(context.Background(), "p9")
	assert.Equal(t, 2, f.sched.Pending())

	f.sched.Advance(6 * time.Second)
	assert.Equal(t, checkout.StateSuccess, f.m.Snapshot().State)
	f.gw.AssertNumberOfCalls(t, "CheckStatus", 2)
	assert.Equal(t, []string{"p9"}, f.successes())
}

func TestMachine_ResumePendingNothingStored(t *testing.T) {
	f := newFixture(t, defaultCfg)

	snap, resumed, err := f.m.ResumePending(context.Background())
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, checkout.StateIdle, snap.State)
	assert.Equal(t, 0, f.sched.Pending())
}

func TestMachine_AcknowledgeClearsOnlyMatchingPayment(t *testing.T) {
	f := newFixture(t, defaultCfg)
	require.NoError(t, f.store.Save(context.Background(), "p2"))

	require.NoError(t, f.m.Acknowledge(context.Background(), "p1"))
	stored, _ := f.store.Load(context.Background())
	assert.Equal(t, "p2", stored)

	require.NoError(t, f.m.Acknowledge(context.Background(), "p2"))
	stored, _ = f.store.Load(context.Background())
	assert.Empty(t, stored)
}

func TestMachine_PollErrorsKeepPolling(t *testing.T) {
	f := newFixture(t, defaultCfg)
	f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(nil, errors.New("timeout")).Twice()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(&gateway.StatusResponse{Status: models.PaymentSuccess}, nil).Once()

	_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
	require.NoError(t, err)
	f.sched.Advance(9 * time.Second)

	snap := f.m.Snapshot()
	assert.Equal(t, checkout.StateSuccess, snap.State)
	assert.Equal(t, 3, snap.Polls)
}

func TestMachine_ObserversSeeTransitions(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, defaultCfg, checkout.WithObservers(rec))
	f.gw.On("StartCheckout", mock.Anything, mock.Anything).Return(&gateway.StartCheckoutResponse{PaymentID: "p1"}, nil).Once()
	f.gw.On("CheckStatus", mock.Anything, "p1").Return(&gateway.StatusResponse{Status: models.PaymentSuccess}, nil).Once()

	_, err := f.m.Start(context.Background(), "0712345678", "1h", nil)
	require.NoError(t, err)
	f.sched.Advance(3 * time.Second)

	assert.Equal(t, []checkout.State{
		checkout.StateInitiating,
		checkout.StatePolling,
		checkout.StateSuccess,
	}, rec.states)
}
