package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/events"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
	"github.com/ignatzorin/gigmarket-backend/internal/ws"
)

// UserAdminRepository описывает операции администратора над пользователями.
type UserAdminRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, role string, limit, offset int) ([]models.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error
	CountByRole(ctx context.Context) (map[string]int, error)
}

// OrderStatsRepository даёт агрегаты по заказам.
type OrderStatsRepository interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
	Revenue(ctx context.Context) (gross float64, platform float64, err error)
}

// Analytics - сводка для панели администратора.
type Analytics struct {
	UsersByRole     map[string]int `json:"usersByRole"`
	GigsByStatus    map[string]int `json:"gigsByStatus"`
	PostsByStatus   map[string]int `json:"postsByStatus"`
	OrdersByStatus  map[string]int `json:"ordersByStatus"`
	GrossVolume     float64        `json:"grossVolume"`
	PlatformRevenue float64        `json:"platformRevenue"`
}

// ModerationService - модерация контента, управление пользователями и аналитика.
type ModerationService struct {
	gigs    GigRepository
	posts   JobPostRepository
	users   UserAdminRepository
	orders  OrderStatsRepository
	emitter emitter
}

// NewModerationService создаёт сервис модерации. notifier и publisher могут быть nil.
func NewModerationService(
	gigs GigRepository,
	posts JobPostRepository,
	users UserAdminRepository,
	orders OrderStatsRepository,
	notifier Notifier,
	publisher events.Publisher,
) *ModerationService {
	return &ModerationService{
		gigs:    gigs,
		posts:   posts,
		users:   users,
		orders:  orders,
		emitter: emitter{notifier: notifier, publisher: publisher, log: logger.WithComponent("moderation")},
	}
}

// ApprovePost одобряет вакансию.
func (s *ModerationService) ApprovePost(ctx context.Context, actor Actor, id uuid.UUID) (*models.JobPost, error) {
	return s.setPostStatus(ctx, actor, id, valueobject.PostStatusApproved, nil)
}

// RejectPost отклоняет вакансию. Причина обязательна.
func (s *ModerationService) RejectPost(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.JobPost, error) {
	r, err := rejectionReason(reason)
	if err != nil {
		return nil, err
	}
	return s.setPostStatus(ctx, actor, id, valueobject.PostStatusRejected, r)
}

func (s *ModerationService) setPostStatus(ctx context.Context, actor Actor, id uuid.UUID, status valueobject.PostStatus, reason *string) (*models.JobPost, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	post, err := s.posts.SetStatus(ctx, id, status, reason)
	if err != nil {
		return nil, mapPostErr(err, "не удалось изменить статус вакансии")
	}

	s.emitter.emit(ctx, events.PostModerated, moderationEventData(post.ID, string(post.Status), post.RejectionReason), post.ClientID)
	return post, nil
}

// DeletePost удаляет вакансию вместе с откликами.
func (s *ModerationService) DeletePost(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperror.ErrForbidden
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return mapPostErr(err, "не удалось удалить вакансию")
	}
	return nil
}

// ApproveGig одобряет услугу, после чего её можно заказать.
func (s *ModerationService) ApproveGig(ctx context.Context, actor Actor, id uuid.UUID) (*models.Gig, error) {
	return s.setGigStatus(ctx, actor, id, valueobject.GigStatusActive, nil)
}

// RejectGig отклоняет услугу. Причина обязательна.
func (s *ModerationService) RejectGig(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.Gig, error) {
	r, err := rejectionReason(reason)
	if err != nil {
		return nil, err
	}
	return s.setGigStatus(ctx, actor, id, valueobject.GigStatusRejected, r)
}

func (s *ModerationService) setGigStatus(ctx context.Context, actor Actor, id uuid.UUID, status valueobject.GigStatus, reason *string) (*models.Gig, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	gig, err := s.gigs.SetStatus(ctx, id, status, reason)
	if err != nil {
		return nil, mapGigErr(err, "не удалось изменить статус услуги")
	}

	s.emitter.emit(ctx, events.GigModerated, moderationEventData(gig.ID, string(gig.Status), gig.RejectionReason), gig.FreelancerID)
	return gig, nil
}

// DeleteGig удаляет услугу. Услуга с заказами только снимается с витрины.
func (s *ModerationService) DeleteGig(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperror.ErrForbidden
	}
	if err := s.gigs.Delete(ctx, id); err != nil {
		return mapGigErr(err, "не удалось удалить услугу")
	}
	return nil
}

// ListUsers возвращает пользователей, опционально с фильтром по роли.
func (s *ModerationService) ListUsers(ctx context.Context, actor Actor, role string, limit, offset int) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	role = strings.TrimSpace(role)
	if role != "" {
		if _, ok := models.ValidRoles[role]; !ok {
			return nil, apperror.Validation("неизвестная роль %q", role)
		}
	}

	limit, offset = normalizePage(limit, offset)
	users, err := s.users.List(ctx, role, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить пользователей")
	}
	return users, nil
}

// BlockUser блокирует пользователя, завершает все его сессии и сообщает открытым вкладкам.
func (s *ModerationService) BlockUser(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.manageableUser(ctx, actor, id, "нельзя заблокировать"); err != nil {
		return err
	}

	if err := s.users.SetActive(ctx, id, false); err != nil {
		return mapUserErr(err, "не удалось заблокировать пользователя")
	}
	if err := s.users.DeleteUserSessions(ctx, id); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось завершить сессии пользователя")
	}

	s.emitter.log.WithFields(logrus.Fields{
		"user_id": id,
		"admin":   actor.UserID,
	}).Info("moderation service: пользователь заблокирован")

	s.emitter.push(id, ws.EventAuthChanged, map[string]string{"reason": "blocked"})
	return nil
}

// UnblockUser снимает блокировку.
func (s *ModerationService) UnblockUser(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperror.ErrForbidden
	}
	if err := s.users.SetActive(ctx, id, true); err != nil {
		return mapUserErr(err, "не удалось разблокировать пользователя")
	}
	return nil
}

// DeleteUser удаляет пользователя. Участников заказов удалить нельзя, их можно заблокировать.
func (s *ModerationService) DeleteUser(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.manageableUser(ctx, actor, id, "нельзя удалить"); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserHasOrders) {
			return apperror.New(apperror.ErrCodeConflict, "пользователь участвует в заказах, его можно только заблокировать")
		}
		return mapUserErr(err, "не удалось удалить пользователя")
	}

	s.emitter.push(id, ws.EventAuthChanged, map[string]string{"reason": "deleted"})
	return nil
}

// manageableUser проверяет, что администратор может блокировать или удалять пользователя.
func (s *ModerationService) manageableUser(ctx context.Context, actor Actor, id uuid.UUID, action string) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if actor.UserID == id {
		return nil, apperror.Validation("%s самого себя", action)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserErr(err, "не удалось загрузить пользователя")
	}
	if user.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, action+" администратора")
	}
	return user, nil
}

// Analytics собирает сводку параллельными запросами.
func (s *ModerationService) Analytics(ctx context.Context, actor Actor) (*Analytics, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	var result Analytics
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		result.UsersByRole, err = s.users.CountByRole(gctx)
		return err
	})
	g.Go(func() (err error) {
		result.GigsByStatus, err = s.gigs.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		result.PostsByStatus, err = s.posts.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		result.OrdersByStatus, err = s.orders.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		result.GrossVolume, result.PlatformRevenue, err = s.orders.Revenue(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось собрать аналитику")
	}
	result.GrossVolume = valueobject.Round2(result.GrossVolume)
	result.PlatformRevenue = valueobject.Round2(result.PlatformRevenue)
	return &result, nil
}

func rejectionReason(reason string) (*string, error) {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateRequired("rejectionReason", reason); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateLength("rejectionReason", reason, 0, validation.MaxReasonLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	return &reason, nil
}

func mapUserErr(err error, message string) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperror.ErrUserNotFound
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, message)
}

func moderationEventData(id uuid.UUID, status string, reason *string) map[string]any {
	data := map[string]any{"id": id, "status": status}
	if reason != nil {
		data["rejectionReason"] = *reason
	}
	return data
}
