package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

var (
	// ErrApplicationNotFound возвращается, когда отклик не найден или отозван.
	ErrApplicationNotFound = errors.New("job application not found")
	// ErrDuplicateApplication возвращается при повторном активном отклике на вакансию.
	ErrDuplicateApplication = errors.New("job application already exists")
	// ErrApplicationStateChanged возвращается, когда статус отклика изменился параллельно.
	ErrApplicationStateChanged = errors.New("job application state changed")
)

// ApplicationRepository отвечает за таблицы job_applications и application_status_history.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository создаёт экземпляр репозитория.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create сохраняет отклик и первую запись истории в одной транзакции.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.JobApplication, initial models.StatusHistoryEntry) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO job_applications (
				post_id, applicant_id, client_id, full_name, email, phone_number,
				professional_title, cover_letter, portfolio_link, attachments, status
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(
			ctx, query,
			app.PostID, app.ApplicantID, app.ClientID, app.FullName, app.Email, app.PhoneNumber,
			app.ProfessionalTitle, app.CoverLetter, app.PortfolioLink, app.Attachments, app.Status,
		).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt); err != nil {
			if common.IsUniqueViolation(err) {
				return ErrDuplicateApplication
			}
			return fmt.Errorf("application repository: create %w", err)
		}

		initial.ApplicationID = app.ID
		if err := insertHistory(ctx, tx, &initial); err != nil {
			return err
		}
		app.StatusHistory = []models.StatusHistoryEntry{initial}
		return nil
	})
}

// GetByID возвращает активный (не отозванный) отклик.
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.JobApplication, error) {
	var app models.JobApplication
	query := `SELECT * FROM job_applications WHERE id = $1 AND withdrawn_at IS NULL`
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, notFoundOr(err, ErrApplicationNotFound, "application repository: get by id")
	}
	return &app, nil
}

// HasActive проверяет, есть ли у кандидата активный отклик на вакансию.
func (r *ApplicationRepository) HasActive(ctx context.Context, postID, applicantID uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM job_applications
			WHERE post_id = $1 AND applicant_id = $2 AND withdrawn_at IS NULL
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, postID, applicantID); err != nil {
		return false, fmt.Errorf("application repository: has active %w", err)
	}
	return exists, nil
}

// ListByApplicant возвращает отклики кандидата.
func (r *ApplicationRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.JobApplication, error) {
	apps := []models.JobApplication{}
	query := `
		SELECT * FROM job_applications
		WHERE applicant_id = $1 AND withdrawn_at IS NULL
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &apps, query, applicantID); err != nil {
		return nil, fmt.Errorf("application repository: list by applicant %w", err)
	}
	return apps, nil
}

// ListByPost возвращает отклики на вакансию.
func (r *ApplicationRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.JobApplication, error) {
	apps := []models.JobApplication{}
	query := `
		SELECT * FROM job_applications
		WHERE post_id = $1 AND withdrawn_at IS NULL
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &apps, query, postID); err != nil {
		return nil, fmt.Errorf("application repository: list by post %w", err)
	}
	return apps, nil
}

// ListHistory возвращает историю статусов в хронологическом порядке.
func (r *ApplicationRepository) ListHistory(ctx context.Context, applicationID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	history := []models.StatusHistoryEntry{}
	query := `
		SELECT id, application_id, status, changed_at, changed_by, reason, feedback
		FROM application_status_history
		WHERE application_id = $1
		ORDER BY changed_at ASC
	`
	if err := r.db.SelectContext(ctx, &history, query, applicationID); err != nil {
		return nil, fmt.Errorf("application repository: list history %w", err)
	}
	return history, nil
}

// LastChangedAt возвращает время последней записи истории или нулевое время.
func (r *ApplicationRepository) LastChangedAt(ctx context.Context, applicationID uuid.UUID) (time.Time, error) {
	var last sql.NullTime
	query := `SELECT MAX(changed_at) FROM application_status_history WHERE application_id = $1`
	if err := r.db.GetContext(ctx, &last, query, applicationID); err != nil {
		return time.Time{}, fmt.Errorf("application repository: last changed at %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

// ApplyStatusChange меняет статус и добавляет ровно одну запись истории.
// Отклик блокируется на время транзакции; если статус уже не change.From, изменение отклоняется.
func (r *ApplicationRepository) ApplyStatusChange(ctx context.Context, id uuid.UUID, change models.StatusChange) (*models.JobApplication, error) {
	var updated models.JobApplication

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var current string
		lockQuery := `SELECT status FROM job_applications WHERE id = $1 AND withdrawn_at IS NULL FOR UPDATE`
		if err := tx.GetContext(ctx, &current, lockQuery, id); err != nil {
			return notFoundOr(err, ErrApplicationNotFound, "application repository: lock")
		}
		if current != string(change.From) {
			return ErrApplicationStateChanged
		}

		entry := change.Entry
		entry.ApplicationID = id
		if err := insertHistory(ctx, tx, &entry); err != nil {
			return err
		}

		query := `
			UPDATE job_applications
			SET status = $2,
				interview_details = COALESCE($3, interview_details),
				client_feedback = COALESCE($4, client_feedback),
				updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`
		if err := tx.GetContext(ctx, &updated, query, id, entry.Status, change.InterviewDetails, change.Feedback); err != nil {
			return fmt.Errorf("application repository: update status %w", err)
		}
		updated.StatusHistory = []models.StatusHistoryEntry{entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Withdraw мягко удаляет отклик, только пока он в статусе Pending.
func (r *ApplicationRepository) Withdraw(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE job_applications SET withdrawn_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'Pending' AND withdrawn_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("application repository: withdraw %w", err)
	}
	return common.ExpectAffected(res, ErrApplicationStateChanged)
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, entry *models.StatusHistoryEntry) error {
	query := `
		INSERT INTO application_status_history (application_id, status, changed_at, changed_by, reason, feedback)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		entry.ApplicationID, entry.Status, entry.ChangedAt, entry.ChangedBy, entry.Reason, entry.Feedback,
	).Scan(&entry.ID); err != nil {
		if common.IsUniqueViolation(err) {
			return ErrApplicationStateChanged
		}
		return fmt.Errorf("application repository: insert history %w", err)
	}
	return nil
}
