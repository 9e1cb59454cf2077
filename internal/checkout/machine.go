// Package checkout реализует жизненный цикл мобильного платежа: запуск,
// опрос статуса с фиксированным интервалом, ограничение по числу опросов и
// по времени, терминальные состояния и передачу успешного платежа на привязку.
//
// Один Machine ведёт не более одного платежа. Новый платёж, Cancel или Reset
// увеличивают эпоху: таймеры и ответы предыдущего платежа после этого ничего
// не меняют.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
	"github.com/magabrotheeeer/hotspot-portal/internal/validate"
)

// Gateway эндпоинты шлюза, нужные для оплаты.
type Gateway interface {
	StartCheckout(ctx context.Context, req gateway.StartCheckoutRequest) (*gateway.StartCheckoutResponse, error)
	CheckStatus(ctx context.Context, paymentID string) (*gateway.StatusResponse, error)
}

// Catalog проверяет, что пакет существует.
type Catalog interface {
	Offer(ctx context.Context, key string) (models.PackageOffer, bool, error)
}

// PendingStore долговременное хранилище ID незавершённого платежа одного браузера.
// Load возвращает пустую строку, если ничего не сохранено.
type PendingStore interface {
	Save(ctx context.Context, paymentID string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// SuccessHandler получает ID успешно оплаченного платежа.
type SuccessHandler interface {
	OnPaymentSuccess(ctx context.Context, paymentID string)
}

// SuccessFunc адаптер функции к SuccessHandler.
type SuccessFunc func(ctx context.Context, paymentID string)

// OnPaymentSuccess вызывает f.
func (f SuccessFunc) OnPaymentSuccess(ctx context.Context, paymentID string) {
	f(ctx, paymentID)
}

// Observer получает каждый новый снимок состояния.
type Observer interface {
	Observe(s Snapshot)
}

// Config параметры опроса.
type Config struct {
	PollInterval   time.Duration
	MaxPolls       int
	Timeout        time.Duration
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 100
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	return c
}

// Option настраивает Machine.
type Option func(*Machine)

// WithSuccessHandler задаёт получателя успешных платежей.
func WithSuccessHandler(h SuccessHandler) Option {
	return func(m *Machine) { m.onSuccess = h }
}

// WithObservers добавляет наблюдателей за состоянием.
func WithObservers(obs ...Observer) Option {
	return func(m *Machine) { m.observers = append(m.observers, obs...) }
}

// Machine конечный автомат оплаты одной сессии портала.
type Machine struct {
	gw        Gateway
	catalog   Catalog
	store     PendingStore
	sched     Scheduler
	cfg       Config
	log       *slog.Logger
	onSuccess SuccessHandler
	observers []Observer

	mu          sync.Mutex
	snap        Snapshot
	epoch       uint64
	pollTimer   Timer
	deadline    Timer
	inflight    bool
	deadlineHit bool
	queued      []Snapshot
}

// New создаёт автомат в состоянии idle.
func New(gw Gateway, catalog Catalog, store PendingStore, sched Scheduler, cfg Config, log *slog.Logger, opts ...Option) *Machine {
	if sched == nil {
		sched = RealScheduler{}
	}
	m := &Machine{
		gw:      gw,
		catalog: catalog,
		store:   store,
		sched:   sched,
		cfg:     cfg.withDefaults(),
		log:     log,
		snap:    Snapshot{State: StateIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot возвращает текущее состояние.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Start запускает новый платёж. Ввод проверяется до обращения к шлюзу;
// при ошибке ввода возвращается *ValidationError и состояние не меняется.
// Отказ шлюза не является ошибкой метода: автомат переходит в failed.
func (m *Machine) Start(ctx context.Context, phone, packageKey string, identity *models.PortalIdentity) (Snapshot, error) {
	const op = "checkout.Start"
	log := m.log.With(slog.String("op", op))

	if res := validate.ValidatePhone(phone); !res.IsValid {
		return m.Snapshot(), &ValidationError{Field: "phone", Message: res.Message}
	}
	packageKey = strings.TrimSpace(packageKey)
	if packageKey == "" {
		return m.Snapshot(), &ValidationError{Field: "packageKey", Message: "Please select a package", Err: ErrUnknownPackage}
	}
	if _, found, err := m.catalog.Offer(ctx, packageKey); err != nil {
		return m.Snapshot(), fmt.Errorf("%s: %w", op, err)
	} else if !found {
		return m.Snapshot(), &ValidationError{Field: "packageKey", Message: "Unknown package", Err: ErrUnknownPackage}
	}

	req := gateway.StartCheckoutRequest{
		Phone:      validate.NormalizePhone(phone),
		PackageKey: packageKey,
	}
	if identity != nil {
		req.MAC = identity.MAC
		req.IP = identity.IP
	}

	m.mu.Lock()
	m.cancelLocked()
	m.setLocked(transition(m.snap, event{kind: evStart}))
	epoch := m.epoch
	m.unlockAndNotify()

	resp, err := m.gw.StartCheckout(ctx, req)

	m.mu.Lock()
	if epoch != m.epoch {
		snap := m.snap
		m.mu.Unlock()
		log.Info("checkout superseded before gateway answered")
		return snap, ErrCancelled
	}
	if err != nil || resp == nil || resp.PaymentID == "" {
		msg := gateway.Message(err, MsgStartFailed)
		if err == nil && resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		if err != nil {
			log.Error("failed to start checkout", sl.Err(err))
		} else {
			log.Error("gateway returned no payment id")
		}
		m.setLocked(transition(m.snap, event{kind: evInitiateFailed, message: msg}))
		snap := m.snap
		m.unlockAndNotify()
		return snap, nil
	}

	if err := m.store.Save(ctx, resp.PaymentID); err != nil {
		log.Error("failed to persist pending payment", slog.String("payment_id", resp.PaymentID), sl.Err(err))
	}
	m.setLocked(transition(m.snap, event{kind: evInitiated, payment: models.Payment{
		ID:         resp.PaymentID,
		Phone:      req.Phone,
		PackageKey: req.PackageKey,
		MAC:        identity.MACValue(),
		IP:         identity.IPValue(),
	}}))
	m.beginPollingLocked(epoch)
	snap := m.snap
	m.unlockAndNotify()

	log.Info("checkout started", slog.String("payment_id", resp.PaymentID))
	return snap, nil
}

// Resume продолжает опрос платежа paymentID, например после перезагрузки
// страницы. Повторный Resume того же платежа во время опроса ничего не делает.
func (m *Machine) Resume(ctx context.Context, paymentID string) Snapshot {
	m.mu.Lock()
	if paymentID == "" || (m.snap.PaymentID == paymentID && m.snap.State == StatePolling) {
		snap := m.snap
		m.mu.Unlock()
		return snap
	}
	m.cancelLocked()
	m.setLocked(transition(m.snap, event{kind: evResume, payment: models.Payment{ID: paymentID}}))
	m.beginPollingLocked(m.epoch)
	snap := m.snap
	m.unlockAndNotify()

	m.log.Info("checkout resumed", slog.String("op", "checkout.Resume"), slog.String("payment_id", paymentID))
	return snap
}

// ResumePending продолжает опрос сохранённого платежа. Сохранённый ID —
// только подсказка: итог всегда берётся из свежего опроса.
func (m *Machine) ResumePending(ctx context.Context) (Snapshot, bool, error) {
	const op = "checkout.ResumePending"
	id, err := m.store.Load(ctx)
	if err != nil {
		return m.Snapshot(), false, fmt.Errorf("%s: %w", op, err)
	}
	if id == "" {
		return m.Snapshot(), false, nil
	}
	return m.Resume(ctx, id), true, nil
}

// Cancel останавливает оба таймера и возвращает автомат в idle.
// Ответы, пришедшие после отмены, отбрасываются.
func (m *Machine) Cancel() {
	m.mu.Lock()
	m.cancelLocked()
	m.unlockAndNotify()
}

// Reset — «попробовать снова»: Cancel и очистка сохранённого платежа.
func (m *Machine) Reset(ctx context.Context) error {
	const op = "checkout.Reset"
	m.mu.Lock()
	m.cancelLocked()
	err := m.store.Clear(ctx)
	m.unlockAndNotify()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Acknowledge очищает сохранённый платёж, если это paymentID.
// Вызывается после привязки платежа к аккаунту.
func (m *Machine) Acknowledge(ctx context.Context, paymentID string) error {
	const op = "checkout.Acknowledge"
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if stored != paymentID {
		return nil
	}
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Machine) beginPollingLocked(epoch uint64) {
	m.inflight = false
	m.deadlineHit = false
	m.pollTimer = m.sched.AfterFunc(m.cfg.PollInterval, func() { m.tick(epoch) })
	m.deadline = m.sched.AfterFunc(m.cfg.Timeout, func() { m.expire(epoch) })
}

func (m *Machine) stopTimersLocked() {
	stopTimer(m.pollTimer)
	stopTimer(m.deadline)
	m.pollTimer = nil
	m.deadline = nil
}

func (m *Machine) cancelLocked() {
	m.stopTimersLocked()
	m.epoch++
	m.inflight = false
	m.deadlineHit = false
	if m.snap.State != StateIdle {
		m.setLocked(transition(m.snap, event{kind: evCancel}))
	}
}

// tick очередной опрос по интервалу.
func (m *Machine) tick(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.snap.State != StatePolling || m.inflight {
		m.mu.Unlock()
		return
	}
	m.inflight = true
	m.mu.Unlock()
	m.check(epoch, false)
}

// expire абсолютный таймаут. Если опрос уже идёт, контрольную проверку
// выполнит он после получения ответа.
func (m *Machine) expire(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.snap.State != StatePolling {
		m.mu.Unlock()
		return
	}
	m.deadlineHit = true
	m.deadline = nil
	if m.inflight {
		m.mu.Unlock()
		return
	}
	stopTimer(m.pollTimer)
	m.pollTimer = nil
	m.inflight = true
	m.mu.Unlock()
	m.check(epoch, true)
}

// check выполняет запрос статуса. Вызывающий уже выставил inflight.
// Одновременно для эпохи выполняется не больше одного запроса.
func (m *Machine) check(epoch uint64, final bool) {
	const op = "checkout.check"
	log := m.log.With(slog.String("op", op))

	for {
		m.mu.Lock()
		paymentID := m.snap.PaymentID
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
		status, err := m.gw.CheckStatus(ctx, paymentID)
		cancel()

		m.mu.Lock()
		if epoch != m.epoch {
			m.mu.Unlock()
			log.Debug("discarding status of cancelled payment", slog.String("payment_id", paymentID))
			return
		}
		m.inflight = false

		if err != nil {
			log.Warn("payment status check failed",
				slog.String("payment_id", paymentID),
				slog.Bool("final", final),
				sl.Err(err),
			)
			m.setLocked(transition(m.snap, event{kind: evPollError, final: final}))
		} else {
			m.setLocked(transition(m.snap, event{kind: evStatus, status: status, final: final}))
		}

		if m.snap.State.IsTerminal() {
			m.stopTimersLocked()
			snap := m.snap
			m.unlockAndNotify()
			log.Info("payment reached terminal state",
				slog.String("payment_id", snap.PaymentID),
				slog.String("state", string(snap.State)),
				slog.Int("polls", snap.Polls),
			)
			if snap.State == StateSuccess && m.onSuccess != nil {
				m.onSuccess.OnPaymentSuccess(context.Background(), snap.PaymentID)
			}
			return
		}

		if m.deadlineHit || m.snap.Polls >= m.cfg.MaxPolls {
			stopTimer(m.pollTimer)
			m.pollTimer = nil
			m.inflight = true
			final = true
			m.unlockAndNotify()
			continue
		}

		m.pollTimer = m.sched.AfterFunc(m.cfg.PollInterval, func() { m.tick(epoch) })
		m.unlockAndNotify()
		return
	}
}

func (m *Machine) setLocked(next Snapshot) {
	if next == m.snap {
		return
	}
	m.snap = next
	m.queued = append(m.queued, next)
}

// unlockAndNotify отпускает мьютекс и уведомляет наблюдателей вне блокировки.
func (m *Machine) unlockAndNotify() {
	queued := m.queued
	m.queued = nil
	m.mu.Unlock()
	for _, s := range queued {
		for _, o := range m.observers {
			o.Observe(s)
		}
	}
}
