package gateway

import "github.com/magabrotheeeer/hotspot-portal/internal/models"

// StartCheckoutRequest запрос на запуск мобильного платежа.
// MAC и IP передаются как null, если устройство не определено.
type StartCheckoutRequest struct {
	Phone      string  `json:"phone"`
	PackageKey string  `json:"packageKey"`
	MAC        *string `json:"mac"`
	IP         *string `json:"ip"`
}

// StartCheckoutResponse ответ на запуск платежа.
type StartCheckoutResponse struct {
	PaymentID string `json:"paymentId"`
	Message   string `json:"message,omitempty"`
}

// StatusResponse текущий статус платежа.
type StatusResponse struct {
	Status       models.PaymentStatus `json:"status"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
	Phone        string               `json:"phone,omitempty"`
	PackageKey   string               `json:"packageKey,omitempty"`
	MAC          string               `json:"mac,omitempty"`
	IP           string               `json:"ip,omitempty"`
}

// RedeemVoucherRequest запрос на активацию ваучера.
type RedeemVoucherRequest struct {
	Code       string  `json:"code"`
	MAC        *string `json:"mac"`
	IP         *string `json:"ip"`
	PackageKey string  `json:"packageKey,omitempty"`
}

// UsePointsRequest запрос на покупку пакета за баллы.
type UsePointsRequest struct {
	PackageKey string  `json:"packageKey"`
	MAC        *string `json:"mac"`
	IP         *string `json:"ip"`
}

// OKResponse общий ответ вида {ok, message}.
type OKResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ReconnectItem результат переподключения по одной подписке.
type ReconnectItem struct {
	Success          bool   `json:"success"`
	PackageName      string `json:"packageName"`
	Message          string `json:"message"`
	TechnicalDetails string `json:"technicalDetails,omitempty"`
}

// ReconnectResponse ответ на переподключение устройства.
type ReconnectResponse struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	Results []ReconnectItem `json:"results,omitempty"`
}

// DetectResponse результат автоопределения устройства по IP клиента.
type DetectResponse struct {
	MAC *string `json:"mac"`
	IP  *string `json:"ip"`
}

type linkPaymentRequest struct {
	PaymentID string `json:"paymentId"`
}

type claimFreeTrialRequest struct {
	MAC string `json:"mac"`
}

type reconnectRequest struct {
	MAC string  `json:"mac"`
	IP  *string `json:"ip"`
}
