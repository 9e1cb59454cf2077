// Package redemption активирует пакеты по ваучеру или за баллы и выполняет
// прочие разовые действия с устройством: бесплатный пробный период и переподключение.
//
// Каждое действие — один запрос к шлюзу без автомата состояний. MAC, если указан,
// проверяется до запроса; текст ошибки шлюза возвращается пользователю как есть.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
	"github.com/magabrotheeeer/hotspot-portal/internal/validate"
)

// ErrUnauthenticated действие требует входа в аккаунт.
var ErrUnauthenticated = errors.New("authentication required")

// Kinds действий для метрик.
const (
	KindVoucher   = "voucher"
	KindPoints    = "points"
	KindFreeTrial = "free_trial"
	KindReconnect = "reconnect"
)

// Outcomes действий для метрик.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Gateway эндпоинты шлюза для разовых действий.
type Gateway interface {
	RedeemVoucher(ctx context.Context, token string, req gateway.RedeemVoucherRequest) error
	UsePoints(ctx context.Context, token string, req gateway.UsePointsRequest) error
	ClaimFreeTrial(ctx context.Context, token, mac string) error
	ReconnectDevice(ctx context.Context, token, mac string, ip *string) (*gateway.ReconnectResponse, error)
}

// Recorder получает исход каждого действия.
type Recorder interface {
	ObserveRedemption(kind, outcome string)
}

// Service выполняет разовые действия с пакетами.
type Service struct {
	gw       Gateway
	log      *slog.Logger
	recorder Recorder
}

// Option настраивает Service.
type Option func(*Service)

// WithRecorder подключает учёт исходов.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// New создаёт Service.
func New(gw Gateway, log *slog.Logger, opts ...Option) *Service {
	s := &Service{gw: gw, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Redeem активирует ваучер. Токен необязателен: ваучер можно погасить и гостем.
func (s *Service) Redeem(ctx context.Context, token, code string, mac, ip *string, packageKey string) (err error) {
	const op = "redemption.Redeem"
	defer func() { s.observe(KindVoucher, err) }()

	if err := validate.ValidateVoucherCode(code).Check("code"); err != nil {
		return err
	}
	mac, err = checkedMAC(mac)
	if err != nil {
		return err
	}

	req := gateway.RedeemVoucherRequest{
		Code:       validate.NormalizeVoucherCode(code),
		MAC:        mac,
		IP:         ip,
		PackageKey: strings.TrimSpace(packageKey),
	}
	if err := s.gw.RedeemVoucher(ctx, token, req); err != nil {
		s.log.Error("voucher redemption failed", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("voucher redeemed", slog.String("op", op), slog.String("package", req.PackageKey))
	return nil
}

// UsePoints покупает пакет за баллы. Достаточность баланса проверяет шлюз.
func (s *Service) UsePoints(ctx context.Context, token, packageKey string, mac, ip *string) (err error) {
	const op = "redemption.UsePoints"
	defer func() { s.observe(KindPoints, err) }()

	if token == "" {
		return ErrUnauthenticated
	}
	packageKey = strings.TrimSpace(packageKey)
	if packageKey == "" {
		return &validate.FieldError{Field: "packageKey", Message: "Please select a package"}
	}
	mac, err = checkedMAC(mac)
	if err != nil {
		return err
	}

	if err := s.gw.UsePoints(ctx, token, gateway.UsePointsRequest{PackageKey: packageKey, MAC: mac, IP: ip}); err != nil {
		s.log.Error("points redemption failed", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("package bought with points", slog.String("op", op), slog.String("package", packageKey))
	return nil
}

// ClaimFreeTrial активирует пробный период для устройства. MAC обязателен.
func (s *Service) ClaimFreeTrial(ctx context.Context, token, mac string) (err error) {
	const op = "redemption.ClaimFreeTrial"
	defer func() { s.observe(KindFreeTrial, err) }()

	if token == "" {
		return ErrUnauthenticated
	}
	if err := validate.ValidateMac(mac).Check("mac"); err != nil {
		return err
	}
	if err := s.gw.ClaimFreeTrial(ctx, token, validate.NormalizeMac(mac)); err != nil {
		s.log.Error("free trial claim failed", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReconnectDevice повторно авторизует устройство на хотспоте по активным подпискам.
func (s *Service) ReconnectDevice(ctx context.Context, token, mac string, ip *string) (_ *gateway.ReconnectResponse, err error) {
	const op = "redemption.ReconnectDevice"
	defer func() { s.observe(KindReconnect, err) }()

	if token == "" {
		return nil, ErrUnauthenticated
	}
	if err := validate.ValidateMac(mac).Check("mac"); err != nil {
		return nil, err
	}
	resp, err := s.gw.ReconnectDevice(ctx, token, validate.NormalizeMac(mac), ip)
	if err != nil {
		s.log.Error("device reconnect failed", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

// CanAfford подсказка для интерфейса: хватает ли кэшированного баланса.
// Решение всё равно принимает шлюз, UsePoints эту проверку не выполняет.
func CanAfford(balance int, offer models.PackageOffer) bool {
	return offer.PointsRequired > 0 && balance >= offer.PointsRequired
}

// checkedMAC проверяет необязательный MAC и возвращает нормализованное значение.
func checkedMAC(mac *string) (*string, error) {
	if mac == nil || strings.TrimSpace(*mac) == "" {
		return nil, nil
	}
	if err := validate.ValidateMac(*mac).Check("mac"); err != nil {
		return nil, err
	}
	normalized := validate.NormalizeMac(*mac)
	return &normalized, nil
}

func (s *Service) observe(kind string, err error) {
	if s.recorder == nil {
		return
	}
	var fieldErr *validate.FieldError
	var gwErr *gateway.Error
	switch {
	case err == nil:
		s.recorder.ObserveRedemption(kind, OutcomeOK)
	case errors.As(err, &fieldErr), errors.Is(err, ErrUnauthenticated):
		s.recorder.ObserveRedemption(kind, OutcomeInvalid)
	case errors.As(err, &gwErr):
		s.recorder.ObserveRedemption(kind, OutcomeRejected)
	default:
		s.recorder.ObserveRedemption(kind, OutcomeError)
	}
}
