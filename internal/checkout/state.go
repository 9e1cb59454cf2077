package checkout

import (
	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
)

// State состояние оплаты.
type State string

const (
	StateIdle       State = "idle"
	StateInitiating State = "initiating"
	StatePolling    State = "polling"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// IsTerminal сообщает, что для текущего платежа автоматических переходов больше не будет.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateTimedOut
}

// Сообщения терминальных состояний.
const (
	MsgStartFailed   = "Could not start the payment. Please try again."
	MsgPaymentFailed = "Payment failed. Please try again."
	MsgTimedOut      = "We could not confirm your payment yet. It may still be processing; please check your account later."
)

// Snapshot то, что видит UI: состояние, ID платежа и последний снимок статуса.
type Snapshot struct {
	State     State           `json:"state"`
	PaymentID string          `json:"paymentId,omitempty"`
	Payment   *models.Payment `json:"payment,omitempty"`
	Polls     int             `json:"polls"`
	Message   string          `json:"message,omitempty"`
}

type eventKind int

const (
	evCancel eventKind = iota
	evStart
	evInitiated
	evInitiateFailed
	evResume
	evStatus
	evPollError
)

type event struct {
	kind    eventKind
	payment models.Payment
	status  *gateway.StatusResponse
	message string
	// final — результат контрольной проверки после исчерпания лимита опросов или таймаута.
	final bool
}

// transition единственная функция переходов. Чистая: таймеры, хранилище и
// передачу успеха выполняет Machine по результату перехода.
func transition(s Snapshot, ev event) Snapshot {
	switch ev.kind {
	case evCancel:
		return Snapshot{State: StateIdle}

	case evStart:
		if s.State != StateIdle && !s.State.IsTerminal() {
			return s
		}
		return Snapshot{State: StateInitiating}

	case evInitiated:
		if s.State != StateInitiating {
			return s
		}
		p := ev.payment
		p.Status = models.PaymentPending
		return Snapshot{State: StatePolling, PaymentID: p.ID, Payment: &p}

	case evInitiateFailed:
		if s.State != StateInitiating {
			return s
		}
		msg := ev.message
		if msg == "" {
			msg = MsgStartFailed
		}
		return Snapshot{State: StateFailed, Message: msg}

	case evResume:
		if s.State != StateIdle && !s.State.IsTerminal() {
			return s
		}
		return Snapshot{
			State:     StatePolling,
			PaymentID: ev.payment.ID,
			Payment:   &models.Payment{ID: ev.payment.ID, Status: models.PaymentPending},
		}

	case evStatus:
		if s.State != StatePolling || ev.status == nil {
			return s
		}
		next := s
		if !ev.final {
			next.Polls++
		}
		next.Payment = mergePayment(s.Payment, s.PaymentID, ev.status)
		switch ev.status.Status {
		case models.PaymentSuccess:
			next.State = StateSuccess
			next.Message = ""
		case models.PaymentFailed:
			next.State = StateFailed
			next.Message = ev.status.ErrorMessage
			if next.Message == "" {
				next.Message = MsgPaymentFailed
			}
		default:
			if ev.final {
				next.State = StateTimedOut
				next.Message = MsgTimedOut
			}
		}
		return next

	case evPollError:
		if s.State != StatePolling {
			return s
		}
		next := s
		if ev.final {
			next.State = StateTimedOut
			next.Message = MsgTimedOut
			return next
		}
		next.Polls++
		return next
	}
	return s
}

func mergePayment(prev *models.Payment, id string, st *gateway.StatusResponse) *models.Payment {
	p := models.Payment{ID: id}
	if prev != nil {
		p = *prev
	}
	p.Status = st.Status
	p.ErrorMessage = st.ErrorMessage
	if st.Phone != "" {
		p.Phone = st.Phone
	}
	if st.PackageKey != "" {
		p.PackageKey = st.PackageKey
	}
	if st.MAC != "" {
		p.MAC = st.MAC
	}
	if st.IP != "" {
		p.IP = st.IP
	}
	return &p
}
