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

// ErrPostNotFound возвращается, когда вакансия не найдена.
var ErrPostNotFound = errors.New("job post not found")

// JobPostRepository отвечает за таблицу job_posts.
type JobPostRepository struct {
	db *sqlx.DB
}

// NewJobPostRepository создаёт экземпляр репозитория.
func NewJobPostRepository(db *sqlx.DB) *JobPostRepository {
	return &JobPostRepository{db: db}
}

// Create сохраняет вакансию.
func (r *JobPostRepository) Create(ctx context.Context, post *models.JobPost) error {
	query := `
		INSERT INTO job_posts (client_id, title, description, budget, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		post.ClientID, post.Title, post.Description, post.Budget, post.Status,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return fmt.Errorf("job post repository: create %w", err)
	}

	return nil
}

// GetByID возвращает вакансию по идентификатору.
func (r *JobPostRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.JobPost, error) {
	return common.GetByID[models.JobPost](ctx, r.db, "job_posts", id, ErrPostNotFound)
}

// List возвращает вакансии с заданным статусом; пустой статус - все вакансии.
func (r *JobPostRepository) List(ctx context.Context, status valueobject.PostStatus, limit, offset int) ([]models.JobPost, error) {
	posts := []models.JobPost{}
	query := `
		SELECT * FROM job_posts
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &posts, query, status, limit, offset); err != nil {
		return nil, fmt.Errorf("job post repository: list %w", err)
	}

	return posts, nil
}

// ListByClient возвращает вакансии клиента.
func (r *JobPostRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.JobPost, error) {
	posts := []models.JobPost{}
	query := `SELECT * FROM job_posts WHERE client_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &posts, query, clientID); err != nil {
		return nil, fmt.Errorf("job post repository: list by client %w", err)
	}

	return posts, nil
}

// SetStatus меняет статус модерации вакансии.
func (r *JobPostRepository) SetStatus(ctx context.Context, id uuid.UUID, status valueobject.PostStatus, reason *string) (*models.JobPost, error) {
	var post models.JobPost
	query := `
		UPDATE job_posts SET status = $2, rejection_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &post, query, id, status, reason); err != nil {
		return nil, notFoundOr(err, ErrPostNotFound, "job post repository: set status")
	}
	return &post, nil
}

// Delete удаляет вакансию вместе с откликами.
func (r *JobPostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM job_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("job post repository: delete %w", err)
	}
	return common.ExpectAffected(res, ErrPostNotFound)
}

// CountByStatus возвращает количество вакансий по статусам.
func (r *JobPostRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countGrouped(ctx, r.db, `SELECT status AS key, COUNT(*) AS count FROM job_posts GROUP BY status`)
}
