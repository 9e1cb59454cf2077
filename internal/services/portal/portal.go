// Package portal держит сессии портала и собирает для каждой из них автомат
// оплаты, состояние входа, координатор привязки и каталог. Хендлеры работают
// только через Service.
package portal

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/magabrotheeeer/hotspot-portal/internal/auth"
	"github.com/magabrotheeeer/hotspot-portal/internal/catalog"
	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/linking"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
	"github.com/magabrotheeeer/hotspot-portal/internal/redemption"
)

// Key идентифицирует сессию: SessionID живёт до закрытия браузера,
// ClientID — долговременный идентификатор браузера.
type Key struct {
	SessionID string
	ClientID  string
}

// Gateway эндпоинты шлюза, используемые напрямую сессией.
type Gateway interface {
	checkout.Gateway
	linking.Linker
	GetSubscriptions(ctx context.Context, token string) ([]models.Subscription, error)
}

// IdentityResolver идентичность устройства сессии.
type IdentityResolver interface {
	Capture(ctx context.Context, sessionID string, params url.Values) (*models.PortalIdentity, error)
	Resolve(ctx context.Context, sessionID, clientIP string) *models.PortalIdentity
}

// PendingStores выдаёт долговременное хранилище платежа браузера.
type PendingStores interface {
	PendingPayments(clientID string) checkout.PendingStore
}

// PendingFunc адаптер функции к PendingStores.
type PendingFunc func(clientID string) checkout.PendingStore

// PendingPayments вызывает f.
func (f PendingFunc) PendingPayments(clientID string) checkout.PendingStore {
	return f(clientID)
}

// StaleCleaner удаляет давно не обновлявшиеся платежи.
type StaleCleaner interface {
	DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SessionGauge учёт числа сессий.
type SessionGauge interface {
	SetActiveSessions(n int)
}

// Deps зависимости сервиса.
type Deps struct {
	Gateway    Gateway
	Identity   IdentityResolver
	Catalog    *catalog.Catalog
	Pending    PendingStores
	Tokens     auth.TokenParser
	Redemption *redemption.Service
	Scheduler  checkout.Scheduler
	Observers  []checkout.Observer
	Cleaner    StaleCleaner
	Gauge      SessionGauge
}

// Config параметры сервиса.
type Config struct {
	Checkout      checkout.Config
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	PendingMaxAge time.Duration
}

// Session граф объектов одной сессии портала.
type Session struct {
	Key         Key
	Auth        *auth.Session
	Machine     *checkout.Machine
	Coordinator *linking.Coordinator
	Catalog     *catalog.View

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.Machine.Cancel()
	s.Coordinator.Close()
}

// SubscriptionView подписка со статусом, вычисленным на момент ответа.
type SubscriptionView struct {
	models.Subscription
	EffectiveStatus string `json:"effectiveStatus"`
}

// Service реестр сессий и фасад для хендлеров.
type Service struct {
	deps Deps
	cfg  Config
	log  *slog.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// New создаёт Service.
func New(deps Deps, cfg Config, log *slog.Logger) *Service {
	if deps.Scheduler == nil {
		deps.Scheduler = checkout.RealScheduler{}
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.PendingMaxAge <= 0 {
		cfg.PendingMaxAge = 7 * 24 * time.Hour
	}
	return &Service{
		deps:     deps,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Session возвращает сессию, создавая её при первом обращении. Новая сессия
// сразу продолжает опрос сохранённого платежа браузера.
func (s *Service) Session(ctx context.Context, key Key) *Session {
	const op = "portal.Session"

	s.mu.Lock()
	sess, ok := s.sessions[key.SessionID]
	if ok {
		s.mu.Unlock()
		sess.touch(s.now())
		return sess
	}
	sess = s.newSessionLocked(key)
	s.sessions[key.SessionID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	if s.deps.Gauge != nil {
		s.deps.Gauge.SetActiveSessions(n)
	}
	if _, resumed, err := sess.Machine.ResumePending(ctx); err != nil {
		s.log.Error("failed to resume pending payment", slog.String("op", op), sl.Err(err))
	} else if resumed {
		s.log.Info("resumed pending payment", slog.String("op", op), slog.String("payment_id", sess.Machine.Snapshot().PaymentID))
	}
	return sess
}

func (s *Service) newSessionLocked(key Key) *Session {
	log := s.log.With(slog.String("session_id", key.SessionID))
	sess := &Session{
		Key:      key,
		Auth:     auth.NewSession(s.deps.Tokens),
		Catalog:  s.deps.Catalog.ForSession(key.SessionID),
		lastSeen: s.now(),
	}

	var coordinator *linking.Coordinator
	opts := []checkout.Option{
		checkout.WithSuccessHandler(checkout.SuccessFunc(func(ctx context.Context, paymentID string) {
			coordinator.OnPaymentSuccess(ctx, paymentID)
		})),
		checkout.WithObservers(s.deps.Observers...),
	}
	sess.Machine = checkout.New(
		s.deps.Gateway,
		sess.Catalog,
		s.deps.Pending.PendingPayments(key.ClientID),
		s.deps.Scheduler,
		s.cfg.Checkout,
		log,
		opts...,
	)
	coordinator = linking.New(s.deps.Gateway, sess.Auth, sess.Machine, log)
	sess.Coordinator = coordinator
	return sess
}

// Len число сессий в памяти.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep закрывает сессии, простаивающие дольше IdleTimeout, и возвращает их число.
// Сохранённый платёж браузера остаётся в хранилище и будет продолжен новой сессией.
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range idle {
		sess.close()
	}
	if s.deps.Gauge != nil {
		s.deps.Gauge.SetActiveSessions(n)
	}
	return len(idle)
}

// Run периодически выполняет Sweep и чистку старых платежей до отмены ctx.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Service) runSweep(ctx context.Context) {
	const op = "portal.runSweep"
	log := s.log.With(slog.String("op", op))

	if n := s.Sweep(); n > 0 {
		log.Info("closed idle sessions", slog.Int("count", n))
	}
	if s.deps.Cleaner == nil {
		return
	}
	n, err := s.deps.Cleaner.DeleteStale(ctx, s.cfg.PendingMaxAge)
	if err != nil {
		log.Error("failed to delete stale pending payments", sl.Err(err))
		return
	}
	if n > 0 {
		log.Info("deleted stale pending payments", slog.Int64("count", n))
	}
}

// Close закрывает все сессии.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

// CapturePortal сохраняет идентичность из параметров редиректа хотспота.
func (s *Service) CapturePortal(ctx context.Context, key Key, params url.Values) (*models.PortalIdentity, error) {
	s.Session(ctx, key)
	return s.deps.Identity.Capture(ctx, key.SessionID, params)
}

// Identity возвращает идентичность устройства сессии.
func (s *Service) Identity(ctx context.Context, key Key, clientIP string) *models.PortalIdentity {
	s.Session(ctx, key)
	return s.deps.Identity.Resolve(ctx, key.SessionID, clientIP)
}

// Packages список пакетов.
func (s *Service) Packages(ctx context.Context, key Key) ([]models.PackageOffer, error) {
	return s.Session(ctx, key).Catalog.List(ctx)
}

// StartCheckout запускает оплату с идентичностью устройства сессии.
func (s *Service) StartCheckout(ctx context.Context, key Key, phone, packageKey, clientIP string) (checkout.Snapshot, error) {
	sess := s.Session(ctx, key)
	identity := s.deps.Identity.Resolve(ctx, key.SessionID, clientIP)
	return sess.Machine.Start(ctx, phone, packageKey, identity)
}

// CheckoutStatus текущее состояние оплаты.
func (s *Service) CheckoutStatus(ctx context.Context, key Key) checkout.Snapshot {
	return s.Session(ctx, key).Machine.Snapshot()
}

// CancelCheckout останавливает опрос.
func (s *Service) CancelCheckout(ctx context.Context, key Key) checkout.Snapshot {
	m := s.Session(ctx, key).Machine
	m.Cancel()
	return m.Snapshot()
}

// ResetCheckout останавливает опрос и забывает сохранённый платёж.
func (s *Service) ResetCheckout(ctx context.Context, key Key) (checkout.Snapshot, error) {
	m := s.Session(ctx, key).Machine
	if err := m.Reset(ctx); err != nil {
		return m.Snapshot(), err
	}
	return m.Snapshot(), nil
}

// RedeemVoucher активирует ваучер. Если mac не передан, берётся из идентичности сессии.
func (s *Service) RedeemVoucher(ctx context.Context, key Key, code, packageKey string, mac *string, clientIP string) error {
	sess := s.Session(ctx, key)
	mac, ip := s.device(ctx, key, mac, clientIP)
	token, _ := sess.Auth.Token()
	return s.deps.Redemption.Redeem(ctx, token, code, mac, ip, packageKey)
}

// UsePoints покупает пакет за баллы.
func (s *Service) UsePoints(ctx context.Context, key Key, packageKey string, mac *string, clientIP string) error {
	sess := s.Session(ctx, key)
	mac, ip := s.device(ctx, key, mac, clientIP)
	token, _ := sess.Auth.Token()
	return s.deps.Redemption.UsePoints(ctx, token, packageKey, mac, ip)
}

// ClaimFreeTrial активирует пробный период.
func (s *Service) ClaimFreeTrial(ctx context.Context, key Key, mac *string, clientIP string) error {
	sess := s.Session(ctx, key)
	mac, _ = s.device(ctx, key, mac, clientIP)
	token, _ := sess.Auth.Token()
	return s.deps.Redemption.ClaimFreeTrial(ctx, token, deref(mac))
}

// ReconnectDevice переподключает устройство.
func (s *Service) ReconnectDevice(ctx context.Context, key Key, mac *string, clientIP string) (*gateway.ReconnectResponse, error) {
	sess := s.Session(ctx, key)
	mac, ip := s.device(ctx, key, mac, clientIP)
	token, _ := sess.Auth.Token()
	return s.deps.Redemption.ReconnectDevice(ctx, token, deref(mac), ip)
}

// Subscriptions подписки пользователя со статусом на текущий момент.
func (s *Service) Subscriptions(ctx context.Context, key Key) ([]SubscriptionView, error) {
	const op = "portal.Subscriptions"

	token, ok := s.Session(ctx, key).Auth.Token()
	if !ok {
		return nil, redemption.ErrUnauthenticated
	}
	subs, err := s.deps.Gateway.GetSubscriptions(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	views := make([]SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, SubscriptionView{Subscription: sub, EffectiveStatus: sub.EffectiveStatus(now)})
	}
	return views, nil
}

// Login запоминает токен пользователя. Отложенные привязки выполняются сразу.
func (s *Service) Login(ctx context.Context, key Key, token string) (auth.User, error) {
	return s.Session(ctx, key).Auth.Authenticate(token)
}

// Logout забывает токен пользователя.
func (s *Service) Logout(ctx context.Context, key Key) {
	s.Session(ctx, key).Auth.Logout()
}

// device возвращает MAC из запроса или из идентичности сессии и IP устройства.
func (s *Service) device(ctx context.Context, key Key, mac *string, clientIP string) (*string, *string) {
	identity := s.deps.Identity.Resolve(ctx, key.SessionID, clientIP)
	var ip *string
	if identity != nil {
		ip = identity.IP
		if mac == nil {
			mac = identity.MAC
		}
	}
	return mac, ip
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
