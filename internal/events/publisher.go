// Package events публикует терминальные исходы оплаты в RabbitMQ.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
)

// PaymentOutcome тело события.
type PaymentOutcome struct {
	PaymentID  string    `json:"paymentId"`
	State      string    `json:"state"`
	Phone      string    `json:"phone,omitempty"`
	PackageKey string    `json:"packageKey,omitempty"`
	MAC        string    `json:"mac,omitempty"`
	Message    string    `json:"message,omitempty"`
	Polls      int       `json:"polls"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher наблюдатель автомата оплаты, публикующий исходы.
type Publisher struct {
	ch       rabbitmq.Channel
	exchange string
	log      *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// NewPublisher создаёт Publisher поверх открытого канала.
func NewPublisher(ch rabbitmq.Channel, exchange string, log *slog.Logger) *Publisher {
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		log:      log,
		now:      time.Now,
	}
}

// Observe публикует снимок, если он терминальный. Ошибка брокера только логируется.
func (p *Publisher) Observe(s checkout.Snapshot) {
	const op = "events.Observe"

	key, ok := routingKey(s.State)
	if !ok || s.PaymentID == "" {
		return
	}
	msg := PaymentOutcome{
		PaymentID:  s.PaymentID,
		State:      string(s.State),
		Message:    s.Message,
		Polls:      s.Polls,
		OccurredAt: p.now().UTC(),
	}
	if s.Payment != nil {
		msg.Phone = s.Payment.Phone
		msg.PackageKey = s.Payment.PackageKey
		msg.MAC = s.Payment.MAC
	}

	p.mu.Lock()
	err := rabbitmq.PublishMessage(p.ch, p.exchange, key, msg)
	p.mu.Unlock()
	if err != nil {
		p.log.Error("failed to publish payment outcome",
			slog.String("op", op),
			slog.String("payment_id", s.PaymentID),
			sl.Err(err),
		)
	}
}

func routingKey(s checkout.State) (string, bool) {
	switch s {
	case checkout.StateSuccess:
		return rabbitmq.RoutingPaymentSuccess, true
	case checkout.StateFailed:
		return rabbitmq.RoutingPaymentFailed, true
	case checkout.StateTimedOut:
		return rabbitmq.RoutingPaymentTimedOut, true
	}
	return "", false
}
