package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

// Package описывает покупаемый пакет услуги.
type Package struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	DeliveryTime int     `json:"deliveryTime"`
	Revisions    int     `json:"revisions"`
}

func (p *Package) Scan(src any) error { return scanJSON(src, p) }

func (p Package) Value() (driver.Value, error) { return valueJSON(p) }

// PackageSet - пакеты услуги по ключу basic/standard/premium.
type PackageSet map[string]Package

func (s *PackageSet) Scan(src any) error {
	*s = PackageSet{}
	return scanJSON(src, s)
}

func (s PackageSet) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return valueJSON(s)
}

// Gig описывает услугу фрилансера.
type Gig struct {
	ID              uuid.UUID             `db:"id" json:"id"`
	FreelancerID    uuid.UUID             `db:"freelancer_id" json:"freelancerId"`
	Title           string                `db:"title" json:"title"`
	Description     string                `db:"description" json:"description"`
	Category        string                `db:"category" json:"category"`
	Packages        PackageSet            `db:"packages" json:"packages"`
	Status          valueobject.GigStatus `db:"status" json:"status"`
	IsActive        bool                  `db:"is_active" json:"isActive"`
	RejectionReason *string               `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time             `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time             `db:"updated_at" json:"updatedAt"`
}

// IsPurchasable сообщает, что услуга одобрена и доступна для заказа.
func (g *Gig) IsPurchasable() bool {
	return g.IsActive && g.Status == valueobject.GigStatusActive
}
