package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

// GigRepository описывает хранилище услуг.
type GigRepository interface {
	Create(ctx context.Context, gig *models.Gig) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	List(ctx context.Context, status valueobject.GigStatus, activeOnly bool, limit, offset int) ([]models.Gig, error)
	UpdatePackages(ctx context.Context, id uuid.UUID, packages models.PackageSet) (*models.Gig, error)
	SetStatus(ctx context.Context, id uuid.UUID, status valueobject.GigStatus, reason *string) (*models.Gig, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// JobPostRepository описывает хранилище вакансий.
type JobPostRepository interface {
	Create(ctx context.Context, post *models.JobPost) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.JobPost, error)
	List(ctx context.Context, status valueobject.PostStatus, limit, offset int) ([]models.JobPost, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.JobPost, error)
	SetStatus(ctx context.Context, id uuid.UUID, status valueobject.PostStatus, reason *string) (*models.JobPost, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// CreateGigInput - данные новой услуги.
type CreateGigInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Packages    models.PackageSet `json:"packages"`
}

// CreatePostInput - данные новой вакансии.
type CreatePostInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Budget      float64 `json:"budget"`
}

// CatalogService отвечает за услуги фрилансеров и вакансии клиентов.
type CatalogService struct {
	gigs  GigRepository
	posts JobPostRepository
}

// NewCatalogService создаёт сервис каталога.
func NewCatalogService(gigs GigRepository, posts JobPostRepository) *CatalogService {
	return &CatalogService{gigs: gigs, posts: posts}
}

// CreateGig создаёт услугу. Новая услуга ждёт модерации.
func (s *CatalogService) CreateGig(ctx context.Context, actor Actor, in CreateGigInput) (*models.Gig, error) {
	if actor.Role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать услуги может только фрилансер")
	}

	title := strings.TrimSpace(in.Title)
	if err := validation.ValidateTitle(title); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	category := strings.TrimSpace(in.Category)
	if err := validation.ValidateRequired("category", category); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	packages, err := normalizePackages(in.Packages)
	if err != nil {
		return nil, err
	}

	gig := &models.Gig{
		FreelancerID: actor.UserID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Category:     category,
		Packages:     packages,
		Status:       valueobject.GigStatusPending,
	}
	if err := s.gigs.Create(ctx, gig); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать услугу")
	}
	return gig, nil
}

// ListGigs возвращает одобренные активные услуги.
func (s *CatalogService) ListGigs(ctx context.Context, limit, offset int) ([]models.Gig, error) {
	limit, offset = normalizePage(limit, offset)
	gigs, err := s.gigs.List(ctx, valueobject.GigStatusActive, true, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить услуги")
	}
	return gigs, nil
}

// GetGig возвращает услугу. Неодобренную услугу видят только автор и администратор.
func (s *CatalogService) GetGig(ctx context.Context, actor Actor, id uuid.UUID) (*models.Gig, error) {
	gig, err := s.loadGig(ctx, id)
	if err != nil {
		return nil, err
	}
	if !gig.IsPurchasable() && gig.FreelancerID != actor.UserID && !actor.IsAdmin() {
		return nil, apperror.ErrGigNotFound
	}
	return gig, nil
}

// UpdateGigPackages заменяет пакеты услуги. Оформленные заказы сохраняют свой снимок пакета.
func (s *CatalogService) UpdateGigPackages(ctx context.Context, actor Actor, id uuid.UUID, packages models.PackageSet) (*models.Gig, error) {
	gig, err := s.loadGig(ctx, id)
	if err != nil {
		return nil, err
	}
	if gig.FreelancerID != actor.UserID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "менять пакеты может только автор услуги")
	}

	normalized, err := normalizePackages(packages)
	if err != nil {
		return nil, err
	}

	updated, err := s.gigs.UpdatePackages(ctx, id, normalized)
	if err != nil {
		return nil, mapGigErr(err, "не удалось обновить пакеты")
	}
	return updated, nil
}

// CreatePost создаёт вакансию. Новая вакансия ждёт модерации.
func (s *CatalogService) CreatePost(ctx context.Context, actor Actor, in CreatePostInput) (*models.JobPost, error) {
	if actor.Role != models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать вакансии может только клиент")
	}

	title := strings.TrimSpace(in.Title)
	if err := validation.ValidateTitle(title); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateBudget(in.Budget); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	post := &models.JobPost{
		ClientID:    actor.UserID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Budget:      valueobject.Round2(in.Budget),
		Status:      valueobject.PostStatusPending,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать вакансию")
	}
	return post, nil
}

// ListPosts возвращает одобренные вакансии.
func (s *CatalogService) ListPosts(ctx context.Context, limit, offset int) ([]models.JobPost, error) {
	limit, offset = normalizePage(limit, offset)
	posts, err := s.posts.List(ctx, valueobject.PostStatusApproved, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить вакансии")
	}
	return posts, nil
}

// GetPost возвращает вакансию. Неодобренную вакансию видят только автор и администратор.
func (s *CatalogService) GetPost(ctx context.Context, actor Actor, id uuid.UUID) (*models.JobPost, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status != valueobject.PostStatusApproved && post.ClientID != actor.UserID && !actor.IsAdmin() {
		return nil, apperror.ErrPostNotFound
	}
	return post, nil
}

// ListMyPosts возвращает вакансии текущего клиента во всех статусах.
func (s *CatalogService) ListMyPosts(ctx context.Context, actor Actor) ([]models.JobPost, error) {
	posts, err := s.posts.ListByClient(ctx, actor.UserID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить вакансии")
	}
	return posts, nil
}

func (s *CatalogService) loadGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	gig, err := s.gigs.GetByID(ctx, id)
	if err != nil {
		return nil, mapGigErr(err, "не удалось загрузить услугу")
	}
	return gig, nil
}

func (s *CatalogService) loadPost(ctx context.Context, id uuid.UUID) (*models.JobPost, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, mapPostErr(err, "не удалось загрузить вакансию")
	}
	return post, nil
}

// normalizePackages проверяет пакеты услуги: ключи basic/standard/premium, положительная цена, срок.
func normalizePackages(packages models.PackageSet) (models.PackageSet, error) {
	if len(packages) == 0 {
		return nil, apperror.Validation("поле packages обязательно")
	}

	out := make(models.PackageSet, len(packages))
	for rawKey, pkg := range packages {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		if _, ok := models.ValidPackageKeys[key]; !ok {
			return nil, apperror.Validation("неизвестный пакет %q: допустимы basic, standard, premium", rawKey)
		}
		if err := validation.ValidatePrice(pkg.Price); err != nil {
			return nil, apperror.Validation("пакет %s: %s", key, err.Error())
		}
		if err := validation.ValidateDeliveryTime(pkg.DeliveryTime); err != nil {
			return nil, apperror.Validation("пакет %s: %s", key, err.Error())
		}
		if pkg.Revisions < 0 {
			return nil, apperror.Validation("пакет %s: количество правок не может быть отрицательным", key)
		}

		pkg.Name = strings.TrimSpace(pkg.Name)
		if pkg.Name == "" {
			pkg.Name = strings.ToUpper(key[:1]) + key[1:]
		}
		pkg.Price = valueobject.Round2(pkg.Price)
		out[key] = pkg
	}
	return out, nil
}

func mapGigErr(err error, message string) error {
	if errors.Is(err, repository.ErrGigNotFound) {
		return apperror.ErrGigNotFound
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, message)
}

func mapPostErr(err error, message string) error {
	if errors.Is(err, repository.ErrPostNotFound) {
		return apperror.ErrPostNotFound
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, message)
}
