// Package payment отвечает за платёжные сессии внешнего процессора.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound возвращается, когда процессор не знает сессию.
var ErrSessionNotFound = errors.New("payment session not found")

// Outcome - итог платёжной сессии с точки зрения заказа.
type Outcome int

const (
	// OutcomePending - сессия ещё открыта, оплата не завершена.
	OutcomePending Outcome = iota
	// OutcomePaid - оплата получена.
	OutcomePaid
	// OutcomeFailed - сессия истекла или завершилась без оплаты.
	OutcomeFailed
)

// Статусы сессии процессора.
const (
	SessionOpen     = "open"
	SessionComplete = "complete"
	SessionExpired  = "expired"

	PaymentPaid              = "paid"
	PaymentUnpaid            = "unpaid"
	PaymentNoPaymentRequired = "no_payment_required"
)

// Границы срока жизни Checkout сессии у процессора.
const (
	MinSessionTTL = 30 * time.Minute
	MaxSessionTTL = 24 * time.Hour
)

// SessionTTL приводит срок ожидания оплаты к допустимому для процессора.
func SessionTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl < MinSessionTTL:
		return MinSessionTTL
	case ttl > MaxSessionTTL:
		return MaxSessionTTL
	default:
		return ttl
	}
}

// CheckoutRequest описывает платёжную сессию для заказа.
type CheckoutRequest struct {
	OrderID     uuid.UUID
	Title       string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	// ExpiresAt - момент, после которого сессию нельзя оплатить. Нулевое значение оставляет срок процессора.
	ExpiresAt time.Time
}

// Session - состояние платёжной сессии.
type Session struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	OrderID       string
}

// Outcome переводит состояние сессии в итог для заказа.
func (s *Session) Outcome() Outcome {
	switch s.Status {
	case SessionExpired:
		return OutcomeFailed
	case SessionComplete:
		if s.PaymentStatus == PaymentPaid || s.PaymentStatus == PaymentNoPaymentRequired {
			return OutcomePaid
		}
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

// Gateway - платёжный процессор.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}
