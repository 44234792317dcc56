package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/events"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/ws"
)

type mockUserAdminRepository struct {
	mock.Mock
}

func (m *mockUserAdminRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*models.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserAdminRepository) List(ctx context.Context, role string, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, role, limit, offset)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *mockUserAdminRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *mockUserAdminRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserAdminRepository) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockUserAdminRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]int), args.Error(1)
}

type mockOrderStats struct {
	mock.Mock
}

func (m *mockOrderStats) CountByStatus(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *mockOrderStats) Revenue(ctx context.Context) (float64, float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

type moderationFixture struct {
	service   *ModerationService
	gigs      *mockGigRepository
	posts     *mockJobPostRepository
	users     *mockUserAdminRepository
	orders    *mockOrderStats
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

func newModerationFixture() *moderationFixture {
	f := &moderationFixture{
		gigs:      &mockGigRepository{},
		posts:     &mockJobPostRepository{},
		users:     &mockUserAdminRepository{},
		orders:    &mockOrderStats{},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	f.service = NewModerationService(f.gigs, f.posts, f.users, f.orders, f.notifier, f.publisher)
	return f
}

func TestModerationService_RequiresAdmin(t *testing.T) {
	f := newModerationFixture()
	ctx := context.Background()
	id := uuid.New()

	_, err := f.service.ApprovePost(ctx, clientActor(), id)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.service.ApproveGig(ctx, freelancerActor(), id)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.ErrorIs(t, f.service.BlockUser(ctx, clientActor(), id), apperror.ErrForbidden)
	assert.ErrorIs(t, f.service.DeleteUser(ctx, clientActor(), id), apperror.ErrForbidden)
	_, err = f.service.Analytics(ctx, freelancerActor())
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	f.posts.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestModerationService_ApprovePost(t *testing.T) {
	f := newModerationFixture()
	clientID := uuid.New()
	post := &models.JobPost{ID: uuid.New(), ClientID: clientID, Status: valueobject.PostStatusApproved}
	f.posts.On("SetStatus", mock.Anything, post.ID, valueobject.PostStatusApproved, (*string)(nil)).Return(post, nil)

	got, err := f.service.ApprovePost(context.Background(), adminActor(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.PostStatusApproved, got.Status)
	assert.Equal(t, []string{events.PostModerated}, f.notifier.eventsFor(clientID))
	assert.Equal(t, []string{events.PostModerated}, f.publisher.types())
}

func TestModerationService_RejectGig(t *testing.T) {
	t.Run("без причины", func(t *testing.T) {
		f := newModerationFixture()
		_, err := f.service.RejectGig(context.Background(), adminActor(), uuid.New(), "   ")
		requireAppCode(t, err, apperror.ErrCodeValidation)
		f.gigs.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("с причиной", func(t *testing.T) {
		f := newModerationFixture()
		freelancerID := uuid.New()
		gig := &models.Gig{ID: uuid.New(), FreelancerID: freelancerID, Status: valueobject.GigStatusRejected, RejectionReason: strPtr("нет описания")}
		f.gigs.On("SetStatus", mock.Anything, gig.ID, valueobject.GigStatusRejected, mock.MatchedBy(func(r *string) bool {
			return r != nil && *r == "нет описания"
		})).Return(gig, nil)

		got, err := f.service.RejectGig(context.Background(), adminActor(), gig.ID, " нет описания ")
		require.NoError(t, err)
		assert.Equal(t, valueobject.GigStatusRejected, got.Status)
		assert.Equal(t, []string{events.GigModerated}, f.notifier.eventsFor(freelancerID))
	})
}

func TestModerationService_DeleteGig_NotFound(t *testing.T) {
	f := newModerationFixture()
	id := uuid.New()
	f.gigs.On("Delete", mock.Anything, id).Return(repository.ErrGigNotFound)

	err := f.service.DeleteGig(context.Background(), adminActor(), id)
	assert.ErrorIs(t, err, apperror.ErrGigNotFound)
}

func TestModerationService_BlockUser(t *testing.T) {
	t.Run("блокировка завершает сессии и уведомляет вкладки", func(t *testing.T) {
		f := newModerationFixture()
		target := &models.User{ID: uuid.New(), Role: models.RoleFreelancer, IsActive: true}
		f.users.On("GetByID", mock.Anything, target.ID).Return(target, nil)
		f.users.On("SetActive", mock.Anything, target.ID, false).Return(nil)
		f.users.On("DeleteUserSessions", mock.Anything, target.ID).Return(nil)

		require.NoError(t, f.service.BlockUser(context.Background(), adminActor(), target.ID))
		f.users.AssertExpectations(t)
		assert.Equal(t, []string{ws.EventAuthChanged}, f.notifier.eventsFor(target.ID))
	})

	t.Run("нельзя заблокировать себя", func(t *testing.T) {
		f := newModerationFixture()
		admin := adminActor()

		err := f.service.BlockUser(context.Background(), admin, admin.UserID)
		requireAppCode(t, err, apperror.ErrCodeValidation)
		f.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("нельзя заблокировать администратора", func(t *testing.T) {
		f := newModerationFixture()
		other := &models.User{ID: uuid.New(), Role: models.RoleAdmin, IsActive: true}
		f.users.On("GetByID", mock.Anything, other.ID).Return(other, nil)

		err := f.service.BlockUser(context.Background(), adminActor(), other.ID)
		requireAppCode(t, err, apperror.ErrCodeForbidden)
		f.users.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("пользователь не найден", func(t *testing.T) {
		f := newModerationFixture()
		id := uuid.New()
		f.users.On("GetByID", mock.Anything, id).Return(nil, repository.ErrUserNotFound)

		err := f.service.BlockUser(context.Background(), adminActor(), id)
		assert.ErrorIs(t, err, apperror.ErrUserNotFound)
	})
}

func TestModerationService_DeleteUser_WithOrders(t *testing.T) {
	f := newModerationFixture()
	target := &models.User{ID: uuid.New(), Role: models.RoleClient}
	f.users.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	f.users.On("Delete", mock.Anything, target.ID).Return(repository.ErrUserHasOrders)

	err := f.service.DeleteUser(context.Background(), adminActor(), target.ID)
	requireAppCode(t, err, apperror.ErrCodeConflict)
	assert.Empty(t, f.notifier.eventsFor(target.ID))
}

func TestModerationService_ListUsers_UnknownRole(t *testing.T) {
	f := newModerationFixture()

	_, err := f.service.ListUsers(context.Background(), adminActor(), "moderator", 10, 0)
	requireAppCode(t, err, apperror.ErrCodeValidation)
	f.users.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestModerationService_Analytics(t *testing.T) {
	t.Run("сводка", func(t *testing.T) {
		f := newModerationFixture()
		f.users.On("CountByRole", mock.Anything).Return(map[string]int{"client": 3, "freelancer": 2}, nil)
		f.gigs.On("CountByStatus", mock.Anything).Return(map[string]int{"active": 4}, nil)
		f.posts.On("CountByStatus", mock.Anything).Return(map[string]int{"pending": 1}, nil)
		f.orders.On("CountByStatus", mock.Anything).Return(map[string]int{"Completed": 2}, nil)
		f.orders.On("Revenue", mock.Anything).Return(210.0, 10.0, nil)

		got, err := f.service.Analytics(context.Background(), adminActor())
		require.NoError(t, err)
		assert.Equal(t, 3, got.UsersByRole["client"])
		assert.Equal(t, 4, got.GigsByStatus["active"])
		assert.Equal(t, 1, got.PostsByStatus["pending"])
		assert.Equal(t, 2, got.OrdersByStatus["Completed"])
		assert.Equal(t, 210.0, got.GrossVolume)
		assert.Equal(t, 10.0, got.PlatformRevenue)
	})

	t.Run("ошибка одного запроса", func(t *testing.T) {
		f := newModerationFixture()
		f.users.On("CountByRole", mock.Anything).Return(map[string]int{}, nil)
		f.gigs.On("CountByStatus", mock.Anything).Return(map[string]int{}, errors.New("connection reset"))
		f.posts.On("CountByStatus", mock.Anything).Return(map[string]int{}, nil)
		f.orders.On("CountByStatus", mock.Anything).Return(map[string]int{}, nil)
		f.orders.On("Revenue", mock.Anything).Return(0.0, 0.0, nil)

		_, err := f.service.Analytics(context.Background(), adminActor())
		requireAppCode(t, err, apperror.ErrCodeDatabaseError)
	})
}
