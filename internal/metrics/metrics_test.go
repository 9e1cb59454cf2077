package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe(checkout.Snapshot{State: checkout.StateInitiating})
	m.Observe(checkout.Snapshot{State: checkout.StatePolling, PaymentID: "p1"})
	m.Observe(checkout.Snapshot{State: checkout.StateSuccess, PaymentID: "p1", Polls: 4})
	m.Observe(checkout.Snapshot{State: checkout.StateFailed, Message: "start failed"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkoutTransitions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkoutTransitions.WithLabelValues("polling")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.checkoutPolls))

	m.ObserveRedemption("voucher", "ok")
	m.ObserveRedemption("voucher", "ok")
	m.ObserveRedemption("points", "rejected")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.redemptions.WithLabelValues("voucher", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.redemptions.WithLabelValues("points", "rejected")))

	m.SetActiveSessions(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))
}
