package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/ws"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	sessions     map[string]*models.Session
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		sessions:     make(map[string]*models.Session),
	}
}

func (m *mockAuthRepository) Create(_ context.Context, user *models.User) error {
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrEmailTaken
	}
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) CreateSession(_ context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	m.sessions[session.RefreshToken] = session
	return nil
}

func (m *mockAuthRepository) DeleteSession(_ context.Context, refreshToken string) error {
	if _, ok := m.sessions[refreshToken]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(m.sessions, refreshToken)
	return nil
}

func (m *mockAuthRepository) UpdateLastLoginAt(_ context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func newTestAuthService() (*AuthService, *mockAuthRepository, *recordingNotifier) {
	repo := newMockAuthRepository()
	notifier := &recordingNotifier{}
	tokens := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	return NewAuthService(repo, tokens, notifier), repo, notifier
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	service, repo, _ := newTestAuthService()
	ctx := context.Background()

	res, err := service.Register(ctx, RegisterInput{
		Email:    "Test@Example.com",
		Password: "Password123",
		Role:     models.RoleClient,
	}, SessionMeta{IP: "127.0.0.1"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.User.ID)
	assert.Equal(t, "test@example.com", res.User.Email)
	assert.Equal(t, "test", res.User.Username)
	assert.Len(t, repo.sessions, 1)

	loginRes, err := service.Login(ctx, LoginInput{
		Email:    "test@example.com",
		Password: "Password123",
	}, SessionMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, loginRes.TokenPair.AccessToken)
	assert.NotNil(t, repo.usersByID[res.User.ID].LastLoginAt)
}

func TestAuthService_RegisterRejectsAdminRole(t *testing.T) {
	service, _, _ := newTestAuthService()

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "boss@example.com",
		Password: "Password123",
		Role:     models.RoleAdmin,
	}, SessionMeta{})

	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	service, _, _ := newTestAuthService()
	ctx := context.Background()
	in := RegisterInput{Email: "dup@example.com", Password: "Password123"}

	_, err := service.Register(ctx, in, SessionMeta{})
	require.NoError(t, err)

	_, err = service.Register(ctx, in, SessionMeta{})
	assert.True(t, apperror.IsConflict(err))
}

func TestAuthService_LoginFailures(t *testing.T) {
	service, repo, _ := newTestAuthService()
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.MinCost)
	blocked := &models.User{ID: uuid.New(), Email: "blocked@example.com", PasswordHash: string(hash), Role: models.RoleFreelancer}
	repo.usersByEmail[blocked.Email] = blocked
	repo.usersByID[blocked.ID] = blocked

	_, err := service.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "Password123"}, SessionMeta{})
	assert.Equal(t, apperror.ErrInvalidCredentials, err)

	_, err = service.Login(ctx, LoginInput{Email: blocked.Email, Password: "wrong"}, SessionMeta{})
	assert.Equal(t, apperror.ErrInvalidCredentials, err)

	_, err = service.Login(ctx, LoginInput{Email: blocked.Email, Password: "Password123"}, SessionMeta{})
	assert.True(t, apperror.IsForbidden(err))
	assert.Empty(t, repo.sessions)
}

func TestAuthService_Refresh(t *testing.T) {
	service, repo, _ := newTestAuthService()
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "user@example.com", Role: models.RoleFreelancer, IsActive: true}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user

	tokenPair, accessExp, refreshExp, err := service.tokenManager.GeneratePair(user)
	require.NoError(t, err)
	assert.True(t, accessExp.Before(refreshExp), "access должен истекать раньше refresh")

	repo.sessions[tokenPair.RefreshToken] = &models.Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	newPair, err := service.Refresh(ctx, tokenPair.RefreshToken, SessionMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, tokenPair.RefreshToken, newPair.RefreshToken)

	// старый токен отозван
	_, err = service.Refresh(ctx, tokenPair.RefreshToken, SessionMeta{})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}

func TestAuthService_RefreshRejectsGarbage(t *testing.T) {
	service, _, _ := newTestAuthService()

	_, err := service.Refresh(context.Background(), "not-a-jwt", SessionMeta{})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}

func TestAuthService_LogoutPushesAuthChanged(t *testing.T) {
	service, repo, notifier := newTestAuthService()
	ctx := context.Background()

	res, err := service.Register(ctx, RegisterInput{Email: "out@example.com", Password: "Password123"}, SessionMeta{})
	require.NoError(t, err)
	require.Len(t, repo.sessions, 1)

	require.NoError(t, service.Logout(ctx, res.User.ID, res.TokenPair.RefreshToken))

	assert.Empty(t, repo.sessions)
	assert.Equal(t, []string{ws.EventAuthChanged}, notifier.eventsFor(res.User.ID))

	// повторный выход не является ошибкой
	assert.NoError(t, service.Logout(ctx, res.User.ID, res.TokenPair.RefreshToken))
}

func TestAuthService_LogoutIgnoresForeignToken(t *testing.T) {
	service, repo, _ := newTestAuthService()
	ctx := context.Background()

	victim, err := service.Register(ctx, RegisterInput{Email: "victim@example.com", Password: "Password123"}, SessionMeta{})
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, uuid.New(), victim.TokenPair.RefreshToken))
	assert.Len(t, repo.sessions, 1)
}

func TestTokenManager_ParseAccess(t *testing.T) {
	tokens := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleClient}

	pair, _, _, err := tokens.GeneratePair(user)
	require.NoError(t, err)

	userID, role, err := tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleClient, role)

	// refresh токен подписан другим секретом и не годится как access
	_, _, err = tokens.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)
}
