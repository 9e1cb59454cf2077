// Package gateway HTTP-клиент шлюза активации: платежи, ваучеры, баллы,
// привязка платежей к аккаунту, пробный период и переподключение устройств.
//
// Все эндпоинты возвращают JSON даже на не-2xx статусах; клиент пытается его
// разобрать и в противном случае возвращает *Error с кодом и началом тела.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/hotspot-portal/internal/models"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 1 << 20
)

// Client клиент шлюза активации.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт собственный *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit ограничивает частоту исходящих запросов.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewClient создаёт клиент шлюза с базовым адресом baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartCheckout запускает мобильный платёж и возвращает ID платежа.
func (c *Client) StartCheckout(ctx context.Context, req StartCheckoutRequest) (*StartCheckoutResponse, error) {
	var resp StartCheckoutResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/start", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckStatus возвращает текущий статус платежа.
func (c *Client) CheckStatus(ctx context.Context, paymentID string) (*StatusResponse, error) {
	var resp StatusResponse
	path := "/checkout/status/" + url.PathEscape(paymentID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case models.PaymentPending, models.PaymentSuccess, models.PaymentFailed:
	default:
		return nil, &Error{StatusCode: http.StatusOK, Message: fmt.Sprintf("unknown payment status %q", resp.Status)}
	}
	return &resp, nil
}

// RedeemVoucher активирует ваучер. token может быть пустым.
func (c *Client) RedeemVoucher(ctx context.Context, token string, req RedeemVoucherRequest) error {
	return c.doOK(ctx, "/vouchers/redeem", token, req)
}

// UsePoints покупает пакет за баллы аккаунта.
func (c *Client) UsePoints(ctx context.Context, token string, req UsePointsRequest) error {
	return c.doOK(ctx, "/points/use", token, req)
}

// LinkPayment привязывает гостевой платёж к аккаунту владельца token.
// Ответ {ok:false} на 2xx возвращается как результат, а не как ошибка.
func (c *Client) LinkPayment(ctx context.Context, token, paymentID string) (*OKResponse, error) {
	var resp OKResponse
	if err := c.do(ctx, http.MethodPost, "/payments/link", token, linkPaymentRequest{PaymentID: paymentID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClaimFreeTrial активирует пробный период для устройства.
func (c *Client) ClaimFreeTrial(ctx context.Context, token, mac string) error {
	return c.doOK(ctx, "/free-trial/claim", token, claimFreeTrialRequest{MAC: mac})
}

// ReconnectDevice повторно авторизует устройство на роутере по активным подпискам.
func (c *Client) ReconnectDevice(ctx context.Context, token, mac string, ip *string) (*ReconnectResponse, error) {
	var resp ReconnectResponse
	if err := c.do(ctx, http.MethodPost, "/devices/reconnect", token, reconnectRequest{MAC: mac, IP: ip}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSubscriptions возвращает подписки аккаунта.
func (c *Client) GetSubscriptions(ctx context.Context, token string) ([]models.Subscription, error) {
	var resp []models.Subscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListPackages возвращает каталог пакетов.
func (c *Client) ListPackages(ctx context.Context) ([]models.PackageOffer, error) {
	var resp []models.PackageOffer
	if err := c.do(ctx, http.MethodGet, "/packages", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// DetectDevice определяет MAC/IP устройства по IP клиента.
func (c *Client) DetectDevice(ctx context.Context, clientIP string) (*DetectResponse, error) {
	var resp DetectResponse
	path := "/devices/detect?ip=" + url.QueryEscape(clientIP)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doOK(ctx context.Context, path, token string, body any) error {
	var resp OKResponse
	if err := c.do(ctx, http.MethodPost, path, token, body, &resp); err != nil {
		return err
	}
	if !resp.OK {
		msg := resp.Message
		if msg == "" {
			msg = "Request was rejected"
		}
		return &Error{StatusCode: http.StatusOK, Message: msg, Rejected: true}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	const op = "gateway.do"

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s %s: %w", op, method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		snippet := truncate(strings.TrimSpace(string(raw)), snippetLimit)
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Invalid response (HTTP %d): %s", resp.StatusCode, snippet),
			Snippet:    snippet,
		}
	}
	return nil
}
