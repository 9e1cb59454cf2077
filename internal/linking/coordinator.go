// Package linking привязывает успешные гостевые платежи к аккаунту пользователя.
//
// Если в момент успеха пользователь не вошёл, привязка откладывается до
// события входа. ID платежа остаётся в долговременном хранилище до привязки,
// поэтому после перезагрузки страницы сверка возобновится и платёж не потеряется.
package linking

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
)

// AlreadyLinkedMessage ответ шлюза на повторную привязку тем же пользователем.
const AlreadyLinkedMessage = "Already linked to you"

const linkTimeout = 15 * time.Second

// Linker эндпоинт привязки платежа.
type Linker interface {
	LinkPayment(ctx context.Context, token, paymentID string) (*gateway.OKResponse, error)
}

// AuthSource наблюдаемое состояние входа.
type AuthSource interface {
	Token() (string, bool)
	Subscribe(l func(authenticated bool)) (unsubscribe func())
}

// Acknowledger очищает сохранённый ID после привязки.
type Acknowledger interface {
	Acknowledge(ctx context.Context, paymentID string) error
}

// Coordinator привязывает каждый успешный платёж не более одного раза.
type Coordinator struct {
	linker Linker
	auth   AuthSource
	ack    Acknowledger
	log    *slog.Logger

	mu          sync.Mutex
	linked      map[string]bool
	inflight    map[string]bool
	deferred    []string
	unsubscribe func()
}

// New создаёт координатор.
func New(linker Linker, auth AuthSource, ack Acknowledger, log *slog.Logger) *Coordinator {
	return &Coordinator{
		linker:   linker,
		auth:     auth,
		ack:      ack,
		log:      log,
		linked:   make(map[string]bool),
		inflight: make(map[string]bool),
	}
}

// OnPaymentSuccess привязывает платёж сразу или откладывает до входа.
// Ошибки привязки только логируются: доступ уже оплачен на стороне шлюза.
func (c *Coordinator) OnPaymentSuccess(ctx context.Context, paymentID string) {
	const op = "linking.OnPaymentSuccess"
	log := c.log.With(slog.String("op", op), slog.String("payment_id", paymentID))

	c.mu.Lock()
	if paymentID == "" || c.linked[paymentID] || c.inflight[paymentID] {
		c.mu.Unlock()
		return
	}
	token, ok := c.auth.Token()
	if !ok {
		c.deferLocked(paymentID)
		// Вход между Token и Subscribe подписчик уже не увидит.
		if _, ok = c.auth.Token(); !ok {
			c.mu.Unlock()
			log.Info("user not signed in, linking deferred")
			return
		}
		ids := c.takeDeferredLocked()
		c.mu.Unlock()
		for _, id := range ids {
			c.OnPaymentSuccess(ctx, id)
		}
		return
	}
	c.inflight[paymentID] = true
	c.mu.Unlock()

	linked := c.link(ctx, log, token, paymentID)

	c.mu.Lock()
	delete(c.inflight, paymentID)
	if linked {
		c.linked[paymentID] = true
	}
	c.mu.Unlock()

	if !linked {
		return
	}
	if err := c.ack.Acknowledge(ctx, paymentID); err != nil {
		log.Error("failed to clear pending payment", sl.Err(err))
	}
}

func (c *Coordinator) link(ctx context.Context, log *slog.Logger, token, paymentID string) bool {
	ctx, cancel := context.WithTimeout(ctx, linkTimeout)
	defer cancel()

	resp, err := c.linker.LinkPayment(ctx, token, paymentID)
	if err != nil {
		if isAlreadyLinked(gateway.Message(err, "")) {
			log.Info("payment already linked")
			return true
		}
		log.Error("failed to link payment", sl.Err(err))
		return false
	}
	if resp.OK || isAlreadyLinked(resp.Message) {
		log.Info("payment linked")
		return true
	}
	log.Error("gateway refused to link payment", slog.String("message", resp.Message))
	return false
}

func isAlreadyLinked(msg string) bool {
	return strings.EqualFold(strings.TrimSpace(msg), AlreadyLinkedMessage)
}

func (c *Coordinator) deferLocked(paymentID string) {
	for _, id := range c.deferred {
		if id == paymentID {
			return
		}
	}
	c.deferred = append(c.deferred, paymentID)
	if c.unsubscribe == nil {
		c.unsubscribe = c.auth.Subscribe(c.onAuthChange)
	}
}

func (c *Coordinator) onAuthChange(authenticated bool) {
	if !authenticated {
		return
	}
	c.mu.Lock()
	ids := c.takeDeferredLocked()
	c.mu.Unlock()

	for _, id := range ids {
		c.OnPaymentSuccess(context.Background(), id)
	}
}

// takeDeferredLocked забирает отложенные ID и снимает подписку на вход.
func (c *Coordinator) takeDeferredLocked() []string {
	ids := c.deferred
	c.deferred = nil
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	return ids
}

// Pending ID платежей, ожидающих входа пользователя.
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deferred...)
}

// Close отписывается от событий входа.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.deferred = nil
}
