package valueobject

import (
	"time"

	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

// OrderStatus - общий статус заказа.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "Pending"
	OrderStatusPaymentConfirmed OrderStatus = "Payment Confirmed"
	OrderStatusInProgress       OrderStatus = "In Progress"
	OrderStatusReview           OrderStatus = "Review"
	OrderStatusRevision         OrderStatus = "Revision"
	OrderStatusCompleted        OrderStatus = "Completed"
	OrderStatusCancelled        OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusPaymentConfirmed, OrderStatusCancelled},
	OrderStatusPaymentConfirmed: {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress:       {OrderStatusReview, OrderStatusCancelled},
	OrderStatusReview:           {OrderStatusRevision, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusRevision:         {OrderStatusReview, OrderStatusCancelled},
	OrderStatusCompleted:        {},
	OrderStatusCancelled:        {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	return contains(orderTransitions[s], newStatus)
}

// AllowedNext возвращает статусы, в которые можно перейти из текущего.
func (s OrderStatus) AllowedNext() []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[s]...)
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус заказа: %q", status)
	}
	return s, nil
}

// PaymentStatus отслеживает только оплату со стороны покупателя.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "Pending"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusFailed   PaymentStatus = "Failed"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:     {PaymentStatusRefunded},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) CanTransitionTo(newStatus PaymentStatus) bool {
	return contains(paymentTransitions[s], newStatus)
}

// ClientStatus - отметка покупателя о приёмке работы.
type ClientStatus string

const (
	ClientStatusPending   ClientStatus = "Pending"
	ClientStatusDelivered ClientStatus = "Delivered"
)

func NewClientStatus(status string) (ClientStatus, error) {
	switch s := ClientStatus(status); s {
	case ClientStatusPending, ClientStatusDelivered:
		return s, nil
	}
	return "", apperror.Validation("некорректный статус клиента: %q", status)
}

// FreelancerStatus - отметка исполнителя о ходе работы.
type FreelancerStatus string

const (
	FreelancerStatusPending    FreelancerStatus = "Pending"
	FreelancerStatusInProgress FreelancerStatus = "In Progress"
	FreelancerStatusCompleted  FreelancerStatus = "Completed"
)

func NewFreelancerStatus(status string) (FreelancerStatus, error) {
	switch s := FreelancerStatus(status); s {
	case FreelancerStatusPending, FreelancerStatusInProgress, FreelancerStatusCompleted:
		return s, nil
	}
	return "", apperror.Validation("некорректный статус исполнителя: %q", status)
}

// ApplicationStatus - статус отклика на вакансию.
type ApplicationStatus string

const (
	ApplicationStatusPending            ApplicationStatus = "Pending"
	ApplicationStatusUnderReview        ApplicationStatus = "Under Review"
	ApplicationStatusAccepted           ApplicationStatus = "Accepted"
	ApplicationStatusInterviewScheduled ApplicationStatus = "Interview Scheduled"
	ApplicationStatusHired              ApplicationStatus = "Hired"
	ApplicationStatusDeclined           ApplicationStatus = "Declined"
	ApplicationStatusRejected           ApplicationStatus = "Rejected"
)

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusPending: {
		ApplicationStatusUnderReview, ApplicationStatusAccepted, ApplicationStatusInterviewScheduled,
		ApplicationStatusDeclined, ApplicationStatusRejected,
	},
	ApplicationStatusUnderReview: {
		ApplicationStatusAccepted, ApplicationStatusInterviewScheduled,
		ApplicationStatusDeclined, ApplicationStatusRejected,
	},
	ApplicationStatusAccepted: {
		ApplicationStatusInterviewScheduled, ApplicationStatusHired,
		ApplicationStatusDeclined, ApplicationStatusRejected,
	},
	ApplicationStatusInterviewScheduled: {
		ApplicationStatusAccepted, ApplicationStatusHired,
		ApplicationStatusDeclined, ApplicationStatusRejected,
	},
	ApplicationStatusHired:    {},
	ApplicationStatusDeclined: {},
	ApplicationStatusRejected: {},
}

func (s ApplicationStatus) IsValid() bool {
	_, ok := applicationTransitions[s]
	return ok
}

func (s ApplicationStatus) IsTerminal() bool {
	return s.IsValid() && len(applicationTransitions[s]) == 0
}

func (s ApplicationStatus) CanTransitionTo(newStatus ApplicationStatus) bool {
	return contains(applicationTransitions[s], newStatus)
}

// AllowedNext возвращает быстрые действия для текущего статуса.
func (s ApplicationStatus) AllowedNext() []ApplicationStatus {
	return append([]ApplicationStatus(nil), applicationTransitions[s]...)
}

func NewApplicationStatus(status string) (ApplicationStatus, error) {
	s := ApplicationStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус отклика: %q", status)
	}
	return s, nil
}

// GigStatus - статус модерации услуги.
type GigStatus string

const (
	GigStatusPending  GigStatus = "pending"
	GigStatusActive   GigStatus = "active"
	GigStatusRejected GigStatus = "rejected"
)

// PostStatus - статус модерации вакансии.
type PostStatus string

const (
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusRejected PostStatus = "rejected"
	PostStatusClosed   PostStatus = "closed"
)

// NextChangedAt возвращает отметку времени для новой записи истории,
// строго большую предыдущей. Точность PostgreSQL - микросекунды.
func NextChangedAt(last, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if last.IsZero() || now.After(last) {
		return now
	}
	return last.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
