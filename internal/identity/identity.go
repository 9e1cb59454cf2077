// Package identity определяет устройство пользователя по параметрам редиректа
// хотспота или автоопределению шлюза и хранит результат в сессии портала.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
	"github.com/magabrotheeeer/hotspot-portal/internal/validate"
)

const keyPrefix = "portal:identity:"

// Store сессионное хранилище (redis с TTL сессии).
type Store interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Detector автоопределение устройства на стороне шлюза.
type Detector interface {
	DetectDevice(ctx context.Context, clientIP string) (*gateway.DetectResponse, error)
}

// Resolver единственный, кто пишет PortalIdentity сессии.
type Resolver struct {
	store    Store
	detector Detector
	ttl      time.Duration
	log      *slog.Logger
}

// NewResolver создаёт Resolver. ttl — время жизни сессии портала.
func NewResolver(store Store, detector Detector, ttl time.Duration, log *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		detector: detector,
		ttl:      ttl,
		log:      log,
	}
}

// Capture извлекает идентичность из параметров редиректа. Возвращает nil,
// если нет ни mac, ни ip, ни chap-id, чтобы посторонняя навигация не затёрла
// ранее сохранённые данные пустыми.
func Capture(params url.Values) *models.PortalIdentity {
	mac := strings.TrimSpace(params.Get("mac"))
	ip := strings.TrimSpace(params.Get("ip"))
	chapID := params.Get("chap-id")
	if mac == "" && ip == "" && chapID == "" {
		return nil
	}

	id := &models.PortalIdentity{
		ChapID:        chapID,
		ChapChallenge: params.Get("chap-challenge"),
		LinkLogin:     params.Get("link-login"),
		LinkOrig:      params.Get("link-orig"),
		Username:      params.Get("username"),
		Password:      params.Get("password"),
		Error:         params.Get("error"),
	}
	if mac != "" {
		normalized := validate.NormalizeMac(mac)
		id.MAC = &normalized
	}
	if ip != "" {
		id.IP = &ip
	}
	return id
}

// Capture сохраняет идентичность из параметров редиректа в сессию sessionID.
// Если параметров нет, ничего не пишет и возвращает nil.
func (r *Resolver) Capture(ctx context.Context, sessionID string, params url.Values) (*models.PortalIdentity, error) {
	const op = "identity.Capture"
	id := Capture(params)
	if id == nil {
		return nil, nil
	}
	if err := r.store.Set(ctx, keyPrefix+sessionID, id, r.ttl); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.log.Debug("portal identity captured",
		slog.String("op", op),
		slog.String("mac", id.MACValue()),
		slog.String("ip", id.IPValue()),
	)
	return id, nil
}

// Get возвращает сохранённую идентичность или nil. Ошибки чтения и разбора
// только логируются.
func (r *Resolver) Get(ctx context.Context, sessionID string) *models.PortalIdentity {
	const op = "identity.Get"
	var id models.PortalIdentity
	found, err := r.store.Get(ctx, keyPrefix+sessionID, &id)
	if err != nil {
		r.log.Warn("failed to read portal identity", slog.String("op", op), sl.Err(err))
		return nil
	}
	if !found {
		return nil
	}
	return &id
}

// Clear удаляет идентичность сессии.
func (r *Resolver) Clear(ctx context.Context, sessionID string) error {
	const op = "identity.Clear"
	if err := r.store.Invalidate(ctx, keyPrefix+sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Resolve возвращает сохранённую идентичность, а если её нет — спрашивает
// шлюз по IP клиента. Найденное устройство сохраняется в сессию.
func (r *Resolver) Resolve(ctx context.Context, sessionID, clientIP string) *models.PortalIdentity {
	const op = "identity.Resolve"
	log := r.log.With(slog.String("op", op))

	if id := r.Get(ctx, sessionID); id != nil {
		return id
	}
	if r.detector == nil || clientIP == "" {
		return nil
	}

	detected, err := r.detector.DetectDevice(ctx, clientIP)
	if err != nil {
		log.Warn("device auto-detection failed", sl.Err(err))
		return nil
	}
	params := url.Values{}
	if detected.MAC != nil {
		params.Set("mac", *detected.MAC)
	}
	if detected.IP != nil {
		params.Set("ip", *detected.IP)
	}
	id, err := r.Capture(ctx, sessionID, params)
	if err != nil {
		log.Warn("failed to store detected identity", sl.Err(err))
		return Capture(params)
	}
	return id
}
