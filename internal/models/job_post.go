package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

// JobPost описывает вакансию клиента.
type JobPost struct {
	ID              uuid.UUID              `db:"id" json:"id"`
	ClientID        uuid.UUID              `db:"client_id" json:"clientId"`
	Title           string                 `db:"title" json:"title"`
	Description     string                 `db:"description" json:"description"`
	Budget          float64                `db:"budget" json:"budget"`
	Status          valueobject.PostStatus `db:"status" json:"status"`
	RejectionReason *string                `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time              `db:"updated_at" json:"updatedAt"`
}

// IsOpen сообщает, что на вакансию можно откликнуться.
func (p *JobPost) IsOpen() bool {
	return p.Status == valueobject.PostStatusApproved
}
