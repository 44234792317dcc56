package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

// ErrGigNotFound возвращается, когда услуга не найдена.
var ErrGigNotFound = errors.New("gig not found")

// GigRepository отвечает за таблицу gigs.
type GigRepository struct {
	db *sqlx.DB
}

// NewGigRepository создаёт экземпляр репозитория.
func NewGigRepository(db *sqlx.DB) *GigRepository {
	return &GigRepository{db: db}
}

// Create сохраняет новую услугу со статусом pending.
func (r *GigRepository) Create(ctx context.Context, gig *models.Gig) error {
	query := `
		INSERT INTO gigs (freelancer_id, title, description, category, packages, status, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, is_active, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		gig.FreelancerID, gig.Title, gig.Description, gig.Category, gig.Packages, gig.Status,
	).Scan(&gig.ID, &gig.IsActive, &gig.CreatedAt, &gig.UpdatedAt); err != nil {
		return fmt.Errorf("gig repository: create %w", err)
	}

	return nil
}

// GetByID возвращает услугу по идентификатору.
func (r *GigRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	return common.GetByID[models.Gig](ctx, r.db, "gigs", id, ErrGigNotFound)
}

// List возвращает услуги с заданным статусом; пустой статус - все услуги.
func (r *GigRepository) List(ctx context.Context, status valueobject.GigStatus, activeOnly bool, limit, offset int) ([]models.Gig, error) {
	gigs := []models.Gig{}
	query := `
		SELECT * FROM gigs
		WHERE ($1 = '' OR status = $1) AND (NOT $2 OR is_active)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	if err := r.db.SelectContext(ctx, &gigs, query, status, activeOnly, limit, offset); err != nil {
		return nil, fmt.Errorf("gig repository: list %w", err)
	}

	return gigs, nil
}

// UpdatePackages заменяет пакеты услуги. Уже оформленные заказы хранят свой снимок.
func (r *GigRepository) UpdatePackages(ctx context.Context, id uuid.UUID, packages models.PackageSet) (*models.Gig, error) {
	var gig models.Gig
	query := `UPDATE gigs SET packages = $2, updated_at = NOW() WHERE id = $1 RETURNING *`
	if err := r.db.GetContext(ctx, &gig, query, id, packages); err != nil {
		return nil, notFoundOr(err, ErrGigNotFound, "gig repository: update packages")
	}
	return &gig, nil
}

// SetStatus меняет статус модерации услуги.
func (r *GigRepository) SetStatus(ctx context.Context, id uuid.UUID, status valueobject.GigStatus, reason *string) (*models.Gig, error) {
	var gig models.Gig
	query := `
		UPDATE gigs SET status = $2, rejection_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &gig, query, id, status, reason); err != nil {
		return nil, notFoundOr(err, ErrGigNotFound, "gig repository: set status")
	}
	return &gig, nil
}

// Delete удаляет услугу. Услуги с заказами только деактивируются.
func (r *GigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var hasOrders bool
		if err := tx.GetContext(ctx, &hasOrders, `SELECT EXISTS (SELECT 1 FROM orders WHERE service_id = $1)`, id); err != nil {
			return fmt.Errorf("gig repository: check orders %w", err)
		}

		query := `DELETE FROM gigs WHERE id = $1`
		if hasOrders {
			query = `UPDATE gigs SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
		}

		res, err := tx.ExecContext(ctx, query, id)
		if err != nil {
			return fmt.Errorf("gig repository: delete %w", err)
		}
		return common.ExpectAffected(res, ErrGigNotFound)
	})
}

// CountByStatus возвращает количество услуг по статусам.
func (r *GigRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countGrouped(ctx, r.db, `SELECT status AS key, COUNT(*) AS count FROM gigs GROUP BY status`)
}
