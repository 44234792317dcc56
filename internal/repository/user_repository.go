package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

var (
	// ErrUserNotFound возвращается, когда запись пользователя не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound возвращается, когда сессия отозвана или не существует.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmailTaken возвращается при повторной регистрации email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken возвращается, когда имя пользователя уже занято.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrUserHasOrders возвращается при удалении пользователя, участвующего в заказах.
	ErrUserHasOrders = errors.New("user has orders")
)

const userColumns = `id, email, username, password_hash, role, is_active, last_login_at, created_at, updated_at`

// UserRepository отвечает за работу с таблицами users и user_sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, username, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.Username, user.PasswordHash, user.Role,
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err) {
			if common.ViolatedConstraint(err) == "users_username_key" {
				return ErrUsernameTaken
			}
			return ErrEmailTaken
		}
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// UpsertAdmin создаёт администратора или обновляет пароль существующего.
func (r *UserRepository) UpsertAdmin(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, username, password_hash, role, is_active)
		VALUES ($1, $2, $3, 'admin', TRUE)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
			role = 'admin',
			is_active = TRUE,
			updated_at = NOW()
		RETURNING ` + userColumns

	if err := r.db.GetContext(ctx, user, query, user.Email, user.Username, user.PasswordHash); err != nil {
		return fmt.Errorf("user repository: upsert admin %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}

	return &user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}

	return &user, nil
}

// List возвращает пользователей, опционально фильтруя по роли.
func (r *UserRepository) List(ctx context.Context, role string, limit, offset int) ([]models.User, error) {
	users := []models.User{}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &users, query, role, limit, offset); err != nil {
		return nil, fmt.Errorf("user repository: list %w", err)
	}

	return users, nil
}

// SetActive блокирует или разблокирует пользователя.
func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("user repository: set active %w", err)
	}
	return common.ExpectAffected(res, ErrUserNotFound)
}

// Delete удаляет пользователя.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return ErrUserHasOrders
		}
		return fmt.Errorf("user repository: delete %w", err)
	}
	return common.ExpectAffected(res, ErrUserNotFound)
}

// CountByRole возвращает количество пользователей по ролям.
func (r *UserRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	return countGrouped(ctx, r.db, `SELECT role AS key, COUNT(*) AS count FROM users GROUP BY role`)
}

// UpdateLastLoginAt обновляет время последнего входа.
func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("user repository: update last login %w", err)
	}
	return nil
}

// CreateSession сохраняет refresh токен.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO user_sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		session.UserID, session.RefreshToken, session.UserAgent, session.IPAddress, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}

	return nil
}

// DeleteSession удаляет сессию по refresh токену.
func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return common.ExpectAffected(res, ErrSessionNotFound)
}

// DeleteUserSessions отзывает все сессии пользователя.
func (r *UserRepository) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("user repository: delete user sessions %w", err)
	}
	return nil
}

type groupedCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// countGrouped выполняет запрос вида SELECT x AS key, COUNT(*) AS count ... GROUP BY x.
func countGrouped(ctx context.Context, db *sqlx.DB, query string, args ...any) (map[string]int, error) {
	var rows []groupedCount
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count grouped: %w", err)
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}
