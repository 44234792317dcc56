package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

var (
	// ErrOrderNotFound возвращается, когда заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderStateChanged возвращается, когда условное обновление не нашло заказ в ожидаемом состоянии.
	ErrOrderStateChanged = errors.New("order state changed")
)

// OrderListState фильтр заказов для администратора.
type OrderListState string

const (
	OrderListAll     OrderListState = ""
	OrderListCurrent OrderListState = "current"
	OrderListPast    OrderListState = "past"
)

// OrderRepository отвечает за таблицу orders.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository создаёт экземпляр репозитория.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create сохраняет заказ вместе со снимком пакета.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			service_id, client_id, freelancer_id, selected_package, package_details,
			total_amount, currency, requirements, deadline,
			status, payment_status, client_status, freelancer_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		order.ServiceID, order.ClientID, order.FreelancerID, order.SelectedPackage, order.PackageDetails,
		order.TotalAmount, order.Currency, order.Requirements, order.Deadline,
		order.Status, order.PaymentStatus, order.ClientStatus, order.FreelancerStatus,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}

	return nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getOne(ctx, "order repository: get by id", ErrOrderNotFound, `SELECT * FROM orders WHERE id = $1`, id)
}

// GetBySessionID возвращает заказ по идентификатору платёжной сессии.
func (r *OrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.getOne(ctx, "order repository: get by session", ErrOrderNotFound, `SELECT * FROM orders WHERE payment_session_id = $1`, sessionID)
}

// SetPaymentSession привязывает платёжную сессию к заказу.
func (r *OrderRepository) SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET payment_session_id = $2, updated_at = NOW() WHERE id = $1`, id, sessionID)
	if err != nil {
		return fmt.Errorf("order repository: set payment session %w", err)
	}
	return common.ExpectAffected(res, ErrOrderNotFound)
}

// ResolvePayment фиксирует результат оплаты. Обновляет только заказ, ожидающий оплаты.
// Отменённый заказ остаётся отменённым.
func (r *OrderRepository) ResolvePayment(ctx context.Context, id uuid.UUID, payment valueobject.PaymentStatus, status valueobject.OrderStatus) (*models.Order, error) {
	query := `
		UPDATE orders
		SET payment_status = $2,
			status = CASE WHEN status = 'Cancelled' THEN status ELSE $3 END,
			updated_at = NOW()
		WHERE id = $1 AND payment_status = 'Pending'
		RETURNING *
	`
	return r.getOne(ctx, "order repository: resolve payment", ErrOrderStateChanged, query, id, payment, status)
}

// ListForUser возвращает заказы, где пользователь покупатель или исполнитель.
func (r *OrderRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	query := `
		SELECT * FROM orders
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, "order repository: list for user", query, userID, limit, offset)
}

// List возвращает все заказы. current - без выплаты, past - с выплатой.
func (r *OrderRepository) List(ctx context.Context, state OrderListState, limit, offset int) ([]models.Order, error) {
	query := `
		SELECT * FROM orders
		WHERE $1 = ''
			OR ($1 = 'current' AND paid_at IS NULL)
			OR ($1 = 'past' AND paid_at IS NOT NULL)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, "order repository: list", query, state, limit, offset)
}

// UpdateStatus меняет общий статус, если заказ всё ещё в статусе from и выплата не произведена.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) (*models.Order, error) {
	query := `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND paid_at IS NULL
		RETURNING *
	`
	return r.getOne(ctx, "order repository: update status", ErrOrderStateChanged, query, id, from, to)
}

// UpdateClientStatus меняет отметку покупателя.
func (r *OrderRepository) UpdateClientStatus(ctx context.Context, id uuid.UUID, status valueobject.ClientStatus) (*models.Order, error) {
	query := `
		UPDATE orders SET client_status = $2, updated_at = NOW()
		WHERE id = $1 AND paid_at IS NULL AND status <> 'Cancelled'
		RETURNING *
	`
	return r.getOne(ctx, "order repository: update client status", ErrOrderStateChanged, query, id, status)
}

// UpdateFreelancerStatus меняет отметку исполнителя.
func (r *OrderRepository) UpdateFreelancerStatus(ctx context.Context, id uuid.UUID, status valueobject.FreelancerStatus) (*models.Order, error) {
	query := `
		UPDATE orders SET freelancer_status = $2, updated_at = NOW()
		WHERE id = $1 AND paid_at IS NULL AND status <> 'Cancelled'
		RETURNING *
	`
	return r.getOne(ctx, "order repository: update freelancer status", ErrOrderStateChanged, query, id, status)
}

// ReleasePayout фиксирует выплату исполнителю. Повторная выплата невозможна.
func (r *OrderRepository) ReleasePayout(ctx context.Context, id uuid.UUID, payout valueobject.Payout, paidAt time.Time) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = 'Completed',
			payment_status = 'Paid',
			paid_at = $2,
			freelancer_amount = $3,
			website_fee = $4,
			updated_at = NOW()
		WHERE id = $1
			AND paid_at IS NULL
			AND payment_status = 'Paid'
			AND client_status = 'Delivered'
			AND freelancer_status = 'Completed'
			AND status <> 'Cancelled'
		RETURNING *
	`
	return r.getOne(ctx, "order repository: release payout", ErrOrderStateChanged, query, id, paidAt, payout.FreelancerAmount, payout.WebsiteFee)
}

// ExpireStale отменяет неоплаченные заказы, созданные раньше before.
func (r *OrderRepository) ExpireStale(ctx context.Context, before time.Time) ([]models.Order, error) {
	query := `
		UPDATE orders
		SET payment_status = 'Failed', status = 'Cancelled', updated_at = NOW()
		WHERE payment_status = 'Pending' AND status = 'Pending' AND created_at < $1
		RETURNING *
	`
	return r.list(ctx, "order repository: expire stale", query, before)
}

// CountByStatus возвращает количество заказов по общему статусу.
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countGrouped(ctx, r.db, `SELECT status AS key, COUNT(*) AS count FROM orders GROUP BY status`)
}

// Revenue возвращает оборот (оплаченные заказы) и доход площадки (комиссии по выплатам).
func (r *OrderRepository) Revenue(ctx context.Context) (gross float64, platform float64, err error) {
	var row struct {
		Gross    float64 `db:"gross"`
		Platform float64 `db:"platform"`
	}
	query := `
		SELECT
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'Paid'), 0) AS gross,
			COALESCE(SUM(website_fee) FILTER (WHERE paid_at IS NOT NULL), 0) AS platform
		FROM orders
	`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("order repository: revenue %w", err)
	}
	return row.Gross, row.Platform, nil
}

func (r *OrderRepository) getOne(ctx context.Context, op string, notFound error, query string, args ...any) (*models.Order, error) {
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, args...); err != nil {
		return nil, notFoundOr(err, notFound, op)
	}
	order.Hydrate()
	return &order, nil
}

func (r *OrderRepository) list(ctx context.Context, op, query string, args ...any) ([]models.Order, error) {
	orders := []models.Order{}
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("%s %w", op, err)
	}
	for i := range orders {
		orders[i].Hydrate()
	}
	return orders, nil
}
