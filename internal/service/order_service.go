package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/events"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/payment"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

// OrderRepository описывает хранилище заказов.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error
	ResolvePayment(ctx context.Context, id uuid.UUID, payment valueobject.PaymentStatus, status valueobject.OrderStatus) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	List(ctx context.Context, state repository.OrderListState, limit, offset int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) (*models.Order, error)
	UpdateClientStatus(ctx context.Context, id uuid.UUID, status valueobject.ClientStatus) (*models.Order, error)
	UpdateFreelancerStatus(ctx context.Context, id uuid.UUID, status valueobject.FreelancerStatus) (*models.Order, error)
	ReleasePayout(ctx context.Context, id uuid.UUID, payout valueobject.Payout, paidAt time.Time) (*models.Order, error)
	ExpireStale(ctx context.Context, before time.Time) ([]models.Order, error)
}

// GigReader даёт доступ к услугам при оформлении заказа.
type GigReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
}

// OrderServiceConfig - параметры платёжных сессий.
type OrderServiceConfig struct {
	Currency    string
	SuccessURL  string
	CancelURL   string
	CheckoutTTL time.Duration
}

// CheckoutInput - данные для оформления заказа.
type CheckoutInput struct {
	ServiceID       string
	SelectedPackage string
	Requirements    string
	Deadline        string
}

// CheckoutResult - ссылка на платёжную страницу и созданный заказ.
type CheckoutResult struct {
	SessionURL string    `json:"session_url"`
	OrderID    uuid.UUID `json:"order_id"`
}

// checkoutExpiryGrace - запас после закрытия сессии процессором до отмены заказа.
const checkoutExpiryGrace = time.Minute

var (
	errOrderStateChanged = apperror.New(apperror.ErrCodeConflict, "заказ был изменён, обновите данные")
	errAlreadyPaidOut    = apperror.New(apperror.ErrCodeConflict, "выплата по заказу уже произведена")
	errOrderNotPaid      = apperror.Validation("заказ ещё не оплачен")
)

// OrderService управляет жизненным циклом заказа: оплата, статусы, выплата.
type OrderService struct {
	repo    OrderRepository
	gigs    GigReader
	gateway payment.Gateway
	cfg     OrderServiceConfig
	emitter emitter
	now     func() time.Time
}

// NewOrderService создаёт сервис заказов. notifier и publisher могут быть nil.
func NewOrderService(
	repo OrderRepository,
	gigs GigReader,
	gateway payment.Gateway,
	notifier Notifier,
	publisher events.Publisher,
	cfg OrderServiceConfig,
) *OrderService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &OrderService{
		repo:    repo,
		gigs:    gigs,
		gateway: gateway,
		cfg:     cfg,
		emitter: emitter{notifier: notifier, publisher: publisher, log: logger.WithComponent("orders")},
		now:     time.Now,
	}
}

// CreateCheckout создаёт заказ со снимком пакета и открывает платёжную сессию.
func (s *OrderService) CreateCheckout(ctx context.Context, actor Actor, in CheckoutInput) (*CheckoutResult, error) {
	if actor.Role != models.RoleClient && actor.Role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "заказ может оформить только клиент или фрилансер")
	}

	for _, field := range []struct{ name, value string }{
		{"serviceId", in.ServiceID},
		{"selectedPackage", in.SelectedPackage},
		{"requirements", in.Requirements},
		{"deadline", in.Deadline},
	} {
		if err := validation.ValidateRequired(field.name, field.value); err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
	}

	serviceID, err := uuid.Parse(strings.TrimSpace(in.ServiceID))
	if err != nil {
		return nil, apperror.Validation("поле serviceId должно быть UUID")
	}
	requirements := strings.TrimSpace(in.Requirements)
	if err := validation.ValidateLength("requirements", requirements, 0, validation.MaxRequirementsLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	deadline, err := validation.ParseDate("deadline", in.Deadline)
	if err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	gig, err := s.gigs.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repository.ErrGigNotFound) {
			return nil, apperror.ErrGigNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить услугу")
	}
	if !gig.IsPurchasable() {
		return nil, apperror.Validation("услуга недоступна для заказа")
	}
	if gig.FreelancerID == actor.UserID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "нельзя заказать собственную услугу")
	}

	packageKey := strings.ToLower(strings.TrimSpace(in.SelectedPackage))
	pkg, ok := gig.Packages[packageKey]
	if !ok {
		return nil, apperror.Validation("пакет %q недоступен", in.SelectedPackage)
	}

	total, err := valueobject.TotalWithFee(pkg.Price)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ServiceID:        gig.ID,
		ClientID:         actor.UserID,
		FreelancerID:     gig.FreelancerID,
		SelectedPackage:  packageKey,
		PackageDetails:   pkg,
		TotalAmount:      total,
		Currency:         s.cfg.Currency,
		Requirements:     requirements,
		Deadline:         deadline,
		Status:           valueobject.OrderStatusPending,
		PaymentStatus:    valueobject.PaymentStatusPending,
		ClientStatus:     valueobject.ClientStatusPending,
		FreelancerStatus: valueobject.FreelancerStatusPending,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать заказ")
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		OrderID:     order.ID,
		Title:       fmt.Sprintf("%s (%s)", gig.Title, pkg.Name),
		AmountCents: valueobject.ToCents(total),
		Currency:    order.Currency,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
		ExpiresAt:   s.now().Add(payment.SessionTTL(s.cfg.CheckoutTTL)),
	})
	if err != nil {
		s.failCheckout(ctx, order, err)
		return nil, apperror.Wrap(err, apperror.ErrCodePayment, "платёжный сервис недоступен, попробуйте позже")
	}

	if err := s.repo.SetPaymentSession(ctx, order.ID, session.ID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить платёжную сессию")
	}

	s.emitter.emit(ctx, events.OrderCreated, orderEventData(order))

	return &CheckoutResult{SessionURL: session.URL, OrderID: order.ID}, nil
}

// failCheckout отменяет заказ, для которого не удалось открыть платёжную сессию.
func (s *OrderService) failCheckout(ctx context.Context, order *models.Order, cause error) {
	log := s.emitter.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"error":    cause.Error(),
	})
	log.Error("order service: не удалось создать платёжную сессию")

	if _, err := s.repo.ResolvePayment(ctx, order.ID, valueobject.PaymentStatusFailed, valueobject.OrderStatusCancelled); err != nil {
		log.WithField("resolve_error", err.Error()).Warn("order service: не удалось отменить заказ")
	}
}

// Verify запрашивает у процессора итог сессии и фиксирует статус оплаты.
// Повторная проверка уже решённого заказа возвращает его без изменений.
func (s *OrderService) Verify(ctx context.Context, actor Actor, sessionID string) (*models.Order, error) {
	if err := validation.ValidateRequired("session_id", sessionID); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	sessionID = strings.TrimSpace(sessionID)
	order, err := s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, s.mapRepoErr(err, "не удалось загрузить заказ")
	}
	if order.ClientID != actor.UserID && !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "подтвердить оплату может только покупатель")
	}
	if order.PaymentStatus == valueobject.PaymentStatusFailed {
		s.checkLatePayment(ctx, order, sessionID)
		return order, nil
	}
	if order.PaymentStatus != valueobject.PaymentStatusPending {
		return order, nil
	}

	session, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, apperror.Wrap(err, apperror.ErrCodePayment, "платёжная сессия не найдена")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodePayment, "платёжный сервис недоступен, попробуйте позже")
	}
	if session.OrderID != "" && session.OrderID != order.ID.String() {
		return nil, apperror.New(apperror.ErrCodePayment, "платёжная сессия относится к другому заказу")
	}

	var (
		paymentStatus valueobject.PaymentStatus
		status        valueobject.OrderStatus
		eventType     string
	)
	switch session.Outcome() {
	case payment.OutcomePaid:
		paymentStatus, status, eventType = valueobject.PaymentStatusPaid, valueobject.OrderStatusPaymentConfirmed, events.OrderPaymentConfirmed
	case payment.OutcomeFailed:
		paymentStatus, status, eventType = valueobject.PaymentStatusFailed, valueobject.OrderStatusCancelled, events.OrderPaymentFailed
	default:
		return order, nil
	}

	resolved, err := s.repo.ResolvePayment(ctx, order.ID, paymentStatus, status)
	if err != nil {
		if errors.Is(err, repository.ErrOrderStateChanged) {
			// оплату уже зафиксировал параллельный запрос
			return s.reload(ctx, order.ID)
		}
		return nil, s.mapRepoErr(err, "не удалось сохранить статус оплаты")
	}

	s.emitter.log.WithFields(logrus.Fields{
		"order_id":       resolved.ID,
		"payment_status": resolved.PaymentStatus,
		"status":         resolved.Status,
	}).Info("order service: оплата подтверждена процессором")

	if resolved.PaymentStatus == valueobject.PaymentStatusPaid && resolved.Status == valueobject.OrderStatusCancelled {
		s.emitter.log.WithField("order_id", resolved.ID).Warn("order service: оплачен отменённый заказ, требуется ручной возврат")
	}

	s.emitter.emit(ctx, eventType, orderEventData(resolved), resolved.ClientID, resolved.FreelancerID)
	return resolved, nil
}

// checkLatePayment сверяет отменённый заказ с процессором: деньги, пришедшие после отмены,
// требуют ручного возврата. Заказ при этом не меняется.
func (s *OrderService) checkLatePayment(ctx context.Context, order *models.Order, sessionID string) {
	log := s.emitter.log.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"session_id": sessionID,
	})

	session, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		log.WithField("error", err.Error()).Warn("order service: не удалось сверить отменённый заказ с процессором")
		return
	}
	if session.Outcome() != payment.OutcomePaid {
		return
	}

	log.WithField("total_amount", order.TotalAmount).Warn("order service: оплата получена после отмены заказа, требуется ручной возврат")
	s.emitter.emit(ctx, events.OrderRefundRequired, orderEventData(order))
}

// List возвращает заказы пользователя. Администратор видит все заказы.
func (s *OrderService) List(ctx context.Context, actor Actor, limit, offset int) ([]models.Order, error) {
	limit, offset = normalizePage(limit, offset)

	var (
		orders []models.Order
		err    error
	)
	if actor.IsAdmin() {
		orders, err = s.repo.List(ctx, repository.OrderListAll, limit, offset)
	} else {
		orders, err = s.repo.ListForUser(ctx, actor.UserID, limit, offset)
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить заказы")
	}
	return orders, nil
}

// AdminOrders возвращает заказы для панели администратора: current - без выплаты, past - с выплатой.
func (s *OrderService) AdminOrders(ctx context.Context, actor Actor, state string, limit, offset int) ([]models.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	listState := repository.OrderListState(strings.ToLower(strings.TrimSpace(state)))
	switch listState {
	case repository.OrderListAll, repository.OrderListCurrent, repository.OrderListPast:
	default:
		return nil, apperror.Validation("параметр state должен быть current или past")
	}

	limit, offset = normalizePage(limit, offset)
	orders, err := s.repo.List(ctx, listState, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить заказы")
	}
	return orders, nil
}

// Get возвращает заказ участнику или администратору.
func (s *OrderService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoErr(err, "не удалось загрузить заказ")
	}
	if !order.IsParticipant(actor.UserID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// UpdateStatus меняет общий статус заказа по таблице переходов.
// Администратор может выполнить переход вне таблицы.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, status string) (*models.Order, error) {
	to, err := valueobject.NewOrderStatus(status)
	if err != nil {
		return nil, err
	}

	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.IsPaidOut() {
		return nil, errAlreadyPaidOut
	}
	if order.Status == to {
		return nil, apperror.Validation("заказ уже в статусе %q", to)
	}
	if !actor.IsAdmin() && !order.Status.CanTransitionTo(to) {
		return nil, apperror.Validation("недопустимый переход статуса заказа: %q → %q", order.Status, to)
	}
	if requiresPayment(to) && order.PaymentStatus != valueobject.PaymentStatusPaid {
		return nil, errOrderNotPaid
	}

	updated, err := s.repo.UpdateStatus(ctx, id, order.Status, to)
	if err != nil {
		return nil, s.mapRepoErr(err, "не удалось изменить статус заказа")
	}

	s.emitter.log.WithFields(logrus.Fields{
		"order_id": id,
		"from":     order.Status,
		"to":       to,
		"actor":    actor.UserID,
	}).Info("order service: статус заказа изменён")

	s.emitter.emit(ctx, events.OrderStatusChanged, orderEventData(updated), s.recipients(actor, updated)...)
	return updated, nil
}

// UpdateClientStatus меняет отметку покупателя. Доступно только покупателю.
func (s *OrderService) UpdateClientStatus(ctx context.Context, actor Actor, id uuid.UUID, status string) (*models.Order, error) {
	clientStatus, err := valueobject.NewClientStatus(status)
	if err != nil {
		return nil, err
	}

	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.ClientID != actor.UserID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "статус покупателя меняет только покупатель")
	}
	if err := checkPartyUpdate(order, clientStatus != valueobject.ClientStatusPending); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateClientStatus(ctx, id, clientStatus)
	if err != nil {
		return nil, s.mapRepoErr(err, "не удалось изменить статус покупателя")
	}

	s.emitter.emit(ctx, events.OrderStatusChanged, orderEventData(updated), updated.FreelancerID)
	return updated, nil
}

// UpdateFreelancerStatus меняет отметку исполнителя. Доступно только исполнителю.
func (s *OrderService) UpdateFreelancerStatus(ctx context.Context, actor Actor, id uuid.UUID, status string) (*models.Order, error) {
	freelancerStatus, err := valueobject.NewFreelancerStatus(status)
	if err != nil {
		return nil, err
	}

	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.FreelancerID != actor.UserID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "статус исполнителя меняет только исполнитель")
	}
	if err := checkPartyUpdate(order, freelancerStatus != valueobject.FreelancerStatusPending); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateFreelancerStatus(ctx, id, freelancerStatus)
	if err != nil {
		return nil, s.mapRepoErr(err, "не удалось изменить статус исполнителя")
	}

	s.emitter.emit(ctx, events.OrderStatusChanged, orderEventData(updated), updated.ClientID)
	return updated, nil
}

// ReleasePayout переводит деньги исполнителю. Суммы считаются по сохранённому totalAmount,
// переданные клиентом значения только сверяются.
func (s *OrderService) ReleasePayout(ctx context.Context, actor Actor, id uuid.UUID, claimed *valueobject.Payout) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "выплату может произвести только администратор")
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoErr(err, "не удалось загрузить заказ")
	}
	if order.IsPaidOut() {
		return nil, errAlreadyPaidOut
	}
	if order.Status == valueobject.OrderStatusCancelled {
		return nil, apperror.New(apperror.ErrCodeConflict, "заказ отменён")
	}
	if order.PaymentStatus != valueobject.PaymentStatusPaid {
		return nil, errOrderNotPaid
	}
	if order.ClientStatus != valueobject.ClientStatusDelivered || order.FreelancerStatus != valueobject.FreelancerStatusCompleted {
		return nil, apperror.Validation("выплата возможна после отметок Delivered от покупателя и Completed от исполнителя")
	}

	payout := valueobject.SplitPayout(order.TotalAmount)
	if claimed != nil && !claimed.Matches(payout) {
		s.emitter.log.WithFields(logrus.Fields{
			"order_id":           id,
			"claimed_total":      claimed.TotalAmount,
			"claimed_freelancer": claimed.FreelancerAmount,
			"claimed_fee":        claimed.WebsiteFee,
			"freelancer_amount":  payout.FreelancerAmount,
			"website_fee":        payout.WebsiteFee,
		}).Warn("order service: суммы выплаты от клиента не совпадают с расчётом")
	}

	paid, err := s.repo.ReleasePayout(ctx, id, payout, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrOrderStateChanged) {
			current, reloadErr := s.reload(ctx, id)
			if reloadErr == nil && current.IsPaidOut() {
				return nil, errAlreadyPaidOut
			}
			return nil, errOrderStateChanged
		}
		return nil, s.mapRepoErr(err, "не удалось произвести выплату")
	}

	s.emitter.log.WithFields(logrus.Fields{
		"order_id":          id,
		"freelancer_amount": payout.FreelancerAmount,
		"website_fee":       payout.WebsiteFee,
	}).Info("order service: выплата исполнителю произведена")

	s.emitter.emit(ctx, events.OrderPayoutReleased, orderEventData(paid), paid.FreelancerID, paid.ClientID)
	return paid, nil
}

// ExpireAbandonedCheckouts отменяет заказы, платёжная сессия которых уже закрыта процессором.
func (s *OrderService) ExpireAbandonedCheckouts(ctx context.Context) (int, error) {
	before := s.now().Add(-payment.SessionTTL(s.cfg.CheckoutTTL) - checkoutExpiryGrace)

	expired, err := s.repo.ExpireStale(ctx, before)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отменить просроченные заказы")
	}

	for i := range expired {
		s.emitter.emit(ctx, events.OrderPaymentFailed, orderEventData(&expired[i]), expired[i].ClientID)
	}
	return len(expired), nil
}

func (s *OrderService) reload(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoErr(err, "не удалось загрузить заказ")
	}
	return order, nil
}

// recipients - стороны заказа, которых нужно уведомить, кроме инициатора.
func (s *OrderService) recipients(actor Actor, order *models.Order) []uuid.UUID {
	if order.IsParticipant(actor.UserID) {
		return []uuid.UUID{order.Counterpart(actor.UserID)}
	}
	return []uuid.UUID{order.ClientID, order.FreelancerID}
}

func (s *OrderService) mapRepoErr(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.ErrOrderNotFound
	case errors.Is(err, repository.ErrOrderStateChanged):
		return errOrderStateChanged
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, message)
	}
}

// requiresPayment сообщает, что статус означает работу над оплаченным заказом.
func requiresPayment(status valueobject.OrderStatus) bool {
	return status != valueobject.OrderStatusPending && status != valueobject.OrderStatusCancelled
}

// checkPartyUpdate проверяет, что отметку стороны ещё можно менять.
func checkPartyUpdate(order *models.Order, needsPayment bool) error {
	if order.IsPaidOut() {
		return errAlreadyPaidOut
	}
	if order.Status == valueobject.OrderStatusCancelled {
		return apperror.New(apperror.ErrCodeConflict, "заказ отменён")
	}
	if needsPayment && order.PaymentStatus != valueobject.PaymentStatusPaid {
		return errOrderNotPaid
	}
	return nil
}

func orderEventData(order *models.Order) map[string]any {
	return map[string]any{
		"orderId":          order.ID,
		"status":           order.Status,
		"paymentStatus":    order.PaymentStatus,
		"clientStatus":     order.ClientStatus,
		"freelancerStatus": order.FreelancerStatus,
		"totalAmount":      order.TotalAmount,
	}
}
