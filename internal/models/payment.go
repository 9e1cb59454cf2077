package models

// PaymentStatus статус платежа, как его сообщает шлюз.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// IsTerminal сообщает, что платёж больше не изменит статус.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// Payment последний наблюдаемый снимок платежа. Создаётся и изменяется только
// на стороне шлюза, портал хранит лишь ID и результат последнего опроса.
type Payment struct {
	ID           string        `json:"id"`
	Status       PaymentStatus `json:"status"`
	Phone        string        `json:"phone,omitempty"`
	PackageKey   string        `json:"packageKey,omitempty"`
	MAC          string        `json:"mac,omitempty"`
	IP           string        `json:"ip,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}
