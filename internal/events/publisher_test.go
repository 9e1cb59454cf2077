package events

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, mandatory, immediate, msg).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestPublisher_Observe(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		snap    checkout.Snapshot
		wantKey string
	}{
		{
			name: "success",
			snap: checkout.Snapshot{
				State:     checkout.StateSuccess,
				PaymentID: "p1",
				Polls:     4,
				Payment:   &models.Payment{ID: "p1", Phone: "0712345678", PackageKey: "1h", MAC: "AA:BB:CC:DD:EE:FF"},
			},
			wantKey: "payment.success",
		},
		{
			name:    "failed",
			snap:    checkout.Snapshot{State: checkout.StateFailed, PaymentID: "p2", Message: "Insufficient balance"},
			wantKey: "payment.failed",
		},
		{
			name:    "timed out",
			snap:    checkout.Snapshot{State: checkout.StateTimedOut, PaymentID: "p3", Polls: 100},
			wantKey: "payment.timed_out",
		},
		{name: "polling is not published", snap: checkout.Snapshot{State: checkout.StatePolling, PaymentID: "p4"}},
		{name: "start failure has no payment", snap: checkout.Snapshot{State: checkout.StateFailed, Message: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := new(MockChannel)
			p := NewPublisher(ch, "portal", newNoopLogger())
			p.now = func() time.Time { return fixed }

			var body []byte
			if tt.wantKey != "" {
				ch.On("Publish", "portal", tt.wantKey, false, false, mock.Anything).
					Run(func(args mock.Arguments) {
						body = args.Get(4).(amqp.Publishing).Body
					}).Return(nil).Once()
			}

			p.Observe(tt.snap)

			ch.AssertExpectations(t)
			if tt.wantKey == "" {
				ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			var got PaymentOutcome
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, tt.snap.PaymentID, got.PaymentID)
			assert.Equal(t, string(tt.snap.State), got.State)
			assert.Equal(t, tt.snap.Polls, got.Polls)
			assert.True(t, fixed.Equal(got.OccurredAt))
			if tt.snap.Payment != nil {
				assert.Equal(t, "1h", got.PackageKey)
			}
		})
	}
}

func TestPublisher_BrokerErrorIsSwallowed(t *testing.T) {
	ch := new(MockChannel)
	ch.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("channel closed")).Once()
	p := NewPublisher(ch, "portal", newNoopLogger())

	assert.NotPanics(t, func() {
		p.Observe(checkout.Snapshot{State: checkout.StateSuccess, PaymentID: "p1"})
	})
	ch.AssertExpectations(t)
}
