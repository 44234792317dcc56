package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/http/middleware"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryGigs - хранилище услуг в памяти для тестов хэндлеров.
type memoryGigs struct {
	mu   sync.Mutex
	gigs map[uuid.UUID]*models.Gig
}

func newMemoryGigs() *memoryGigs {
	return &memoryGigs{gigs: make(map[uuid.UUID]*models.Gig)}
}

func (m *memoryGigs) Create(_ context.Context, gig *models.Gig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gig.ID = uuid.New()
	gig.IsActive = true
	m.gigs[gig.ID] = gig
	return nil
}

func (m *memoryGigs) GetByID(_ context.Context, id uuid.UUID) (*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gig, ok := m.gigs[id]
	if !ok {
		return nil, repository.ErrGigNotFound
	}
	cp := *gig
	return &cp, nil
}

func (m *memoryGigs) List(_ context.Context, status valueobject.GigStatus, _ bool, _, _ int) ([]models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Gig{}
	for _, g := range m.gigs {
		if g.Status == status {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *memoryGigs) UpdatePackages(_ context.Context, id uuid.UUID, packages models.PackageSet) (*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gig, ok := m.gigs[id]
	if !ok {
		return nil, repository.ErrGigNotFound
	}
	gig.Packages = packages
	cp := *gig
	return &cp, nil
}

func (m *memoryGigs) SetStatus(_ context.Context, id uuid.UUID, status valueobject.GigStatus, reason *string) (*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gig, ok := m.gigs[id]
	if !ok {
		return nil, repository.ErrGigNotFound
	}
	gig.Status = status
	gig.RejectionReason = reason
	cp := *gig
	return &cp, nil
}

func (m *memoryGigs) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gigs[id]; !ok {
		return repository.ErrGigNotFound
	}
	delete(m.gigs, id)
	return nil
}

func (m *memoryGigs) CountByStatus(context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

// withActor имитирует AuthMiddleware.
func withActor(userID uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetActor(c, userID, role)
		c.Next()
	}
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func gigPayload() map[string]any {
	return map[string]any{
		"title":       "Вёрстка лендинга",
		"description": "Адаптивная вёрстка по макету Figma за три дня.",
		"category":    "frontend",
		"packages": map[string]any{
			"basic": map[string]any{"price": 100, "deliveryTime": 3, "revisions": 1},
		},
	}
}

func TestGigHandler_CreateAndGet(t *testing.T) {
	gigs := newMemoryGigs()
	h := NewGigHandler(service.NewCatalogService(gigs, nil))
	freelancerID := uuid.New()

	r := gin.New()
	r.POST("/gigs", withActor(freelancerID, models.RoleFreelancer), h.Create)
	r.GET("/gigs/:id", withActor(uuid.New(), models.RoleClient), h.Get)

	w := doJSON(r, http.MethodPost, "/gigs", gigPayload())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Gig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, valueobject.GigStatusPending, created.Status)
	assert.Equal(t, freelancerID, created.FreelancerID)

	w = doJSON(r, http.MethodGet, "/gigs/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "услуга не найдена", errorOf(t, w))
}

func TestGigHandler_Create_ClientForbidden(t *testing.T) {
	h := NewGigHandler(service.NewCatalogService(newMemoryGigs(), nil))

	r := gin.New()
	r.POST("/gigs", withActor(uuid.New(), models.RoleClient), h.Create)

	w := doJSON(r, http.MethodPost, "/gigs", gigPayload())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGigHandler_Create_InvalidPackages(t *testing.T) {
	h := NewGigHandler(service.NewCatalogService(newMemoryGigs(), nil))

	r := gin.New()
	r.POST("/gigs", withActor(uuid.New(), models.RoleFreelancer), h.Create)

	payload := gigPayload()
	payload["packages"] = map[string]any{"gold": map[string]any{"price": 10, "deliveryTime": 1}}
	w := doJSON(r, http.MethodPost, "/gigs", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "gold")
}

func TestAdminHandler_RejectGigRequiresReason(t *testing.T) {
	gigs := newMemoryGigs()
	gig := &models.Gig{FreelancerID: uuid.New(), Status: valueobject.GigStatusPending}
	require.NoError(t, gigs.Create(context.Background(), gig))

	h := NewAdminHandler(service.NewModerationService(gigs, nil, nil, nil, nil, nil))
	r := gin.New()
	r.PUT("/gigs/admin/:id/reject", withActor(uuid.New(), models.RoleAdmin), h.RejectGig)
	r.PUT("/gigs/admin/:id/approve", withActor(uuid.New(), models.RoleAdmin), h.ApproveGig)

	w := doJSON(r, http.MethodPut, "/gigs/admin/"+gig.ID.String()+"/reject", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/gigs/admin/"+gig.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stored, err := gigs.GetByID(context.Background(), gig.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPurchasable())
}

func TestHandlers_Unauthorized(t *testing.T) {
	r := gin.New()
	orders := NewOrderHandler(nil)
	apps := NewApplicationHandler(nil)
	auth := NewAuthHandler(nil)
	r.POST("/orders/stripe", orders.Checkout)
	r.POST("/job-applications", apps.Submit)
	r.GET("/auth/me", auth.Me)

	for _, path := range []string{"/orders/stripe", "/job-applications"} {
		w := doJSON(r, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := doJSON(r, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderHandler_InvalidOrderID(t *testing.T) {
	h := NewOrderHandler(nil)
	r := gin.New()
	r.GET("/orders/:id", withActor(uuid.New(), models.RoleClient), h.GetOrder)

	w := doJSON(r, http.MethodGet, "/orders/42", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_UpdateStatus_MissingStatus(t *testing.T) {
	h := NewOrderHandler(nil)
	r := gin.New()
	r.PATCH("/orders/:id/status", withActor(uuid.New(), models.RoleClient), h.UpdateStatus)

	w := doJSON(r, http.MethodPatch, "/orders/"+uuid.NewString()+"/status", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_SendMoney_MalformedBody(t *testing.T) {
	h := NewOrderHandler(nil)
	r := gin.New()
	r.PUT("/orders/:id/send-money-to-freelancer", withActor(uuid.New(), models.RoleAdmin), h.SendMoneyToFreelancer)

	req := httptest.NewRequest(http.MethodPut, "/orders/"+uuid.NewString()+"/send-money-to-freelancer", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplicationHandler_Submit_RequiresMultipart(t *testing.T) {
	h := NewApplicationHandler(nil)
	r := gin.New()
	r.POST("/job-applications", withActor(uuid.New(), models.RoleFreelancer), h.Submit)

	w := doJSON(r, http.MethodPost, "/job-applications", map[string]string{"postId": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ожидается multipart/form-data", errorOf(t, w))
}

func TestApplicationHandler_DownloadAttachment_BadIndex(t *testing.T) {
	h := NewApplicationHandler(nil)
	r := gin.New()
	r.GET("/job-applications/:id/attachments/:index", withActor(uuid.New(), models.RoleClient), h.DownloadAttachment)

	w := doJSON(r, http.MethodGet, "/job-applications/"+uuid.NewString()+"/attachments/first", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Register_BadJSON(t *testing.T) {
	h := NewAuthHandler(nil)
	r := gin.New()
	r.POST("/auth/register", h.Register)

	w := doJSON(r, http.MethodPost, "/auth/register", map[string]string{"email": "a@b.c"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthHandler_ReportsFailedCheck(t *testing.T) {
	h := NewHealthHandler(nil).WithCheck("broker", func(context.Context) error {
		return assert.AnError
	})
	r := gin.New()
	r.GET("/health", h.Health)

	w := doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Contains(t, body.Checks["broker"], "unhealthy")
}
