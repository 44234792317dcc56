package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

// Order описывает покупку пакета услуги.
type Order struct {
	ID               uuid.UUID                    `db:"id" json:"id"`
	ServiceID        uuid.UUID                    `db:"service_id" json:"serviceId"`
	ClientID         uuid.UUID                    `db:"client_id" json:"clientId"`
	FreelancerID     uuid.UUID                    `db:"freelancer_id" json:"freelancerId"`
	SelectedPackage  string                       `db:"selected_package" json:"selectedPackage"`
	PackageDetails   Package                      `db:"package_details" json:"packageDetails"`
	TotalAmount      float64                      `db:"total_amount" json:"totalAmount"`
	Currency         string                       `db:"currency" json:"currency"`
	Requirements     string                       `db:"requirements" json:"requirements"`
	Deadline         time.Time                    `db:"deadline" json:"deadline"`
	Status           valueobject.OrderStatus      `db:"status" json:"status"`
	PaymentStatus    valueobject.PaymentStatus    `db:"payment_status" json:"paymentStatus"`
	ClientStatus     valueobject.ClientStatus     `db:"client_status" json:"clientStatus"`
	FreelancerStatus valueobject.FreelancerStatus `db:"freelancer_status" json:"freelancerStatus"`
	PaymentSessionID *string                      `db:"payment_session_id" json:"paymentSessionId,omitempty"`
	PaidAt           *time.Time                   `db:"paid_at" json:"-"`
	FreelancerAmount *float64                     `db:"freelancer_amount" json:"-"`
	WebsiteFee       *float64                     `db:"website_fee" json:"-"`
	PaymentDetails   *PaymentDetails              `db:"-" json:"paymentDetails,omitempty"`
	CreatedAt        time.Time                    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time                    `db:"updated_at" json:"updatedAt"`
}

// PaymentDetails заполняется только после выплаты исполнителю.
type PaymentDetails struct {
	PaidAt           time.Time `json:"paidAt"`
	FreelancerAmount float64   `json:"freelancerAmount"`
	WebsiteFee       float64   `json:"websiteFee"`
	TotalAmount      float64   `json:"totalAmount"`
}

// Hydrate собирает PaymentDetails из колонок выплаты.
func (o *Order) Hydrate() {
	if o.PaidAt == nil {
		o.PaymentDetails = nil
		return
	}
	details := &PaymentDetails{PaidAt: *o.PaidAt, TotalAmount: o.TotalAmount}
	if o.FreelancerAmount != nil {
		details.FreelancerAmount = *o.FreelancerAmount
	}
	if o.WebsiteFee != nil {
		details.WebsiteFee = *o.WebsiteFee
	}
	o.PaymentDetails = details
}

// IsPaidOut сообщает, что выплата исполнителю уже произведена.
func (o *Order) IsPaidOut() bool {
	return o.PaidAt != nil
}

// IsParticipant проверяет, что пользователь - покупатель или исполнитель заказа.
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return o.ClientID == userID || o.FreelancerID == userID
}

// Counterpart возвращает вторую сторону заказа.
func (o *Order) Counterpart(userID uuid.UUID) uuid.UUID {
	if o.ClientID == userID {
		return o.FreelancerID
	}
	return o.ClientID
}
