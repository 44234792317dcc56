package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// GigHandler обслуживает услуги фрилансеров.
type GigHandler struct {
	catalog *service.CatalogService
}

// NewGigHandler создаёт хэндлер услуг.
func NewGigHandler(catalog *service.CatalogService) *GigHandler {
	return &GigHandler{catalog: catalog}
}

// Create обрабатывает POST /gigs.
func (h *GigHandler) Create(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req service.CreateGigInput
	if !common.BindJSON(c, &req) {
		return
	}

	gig, err := h.catalog.CreateGig(c.Request.Context(), actor, req)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gig)
}

// List обрабатывает GET /gigs.
func (h *GigHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	gigs, err := h.catalog.ListGigs(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gigs)
}

// Get обрабатывает GET /gigs/:id.
func (h *GigHandler) Get(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	gig, err := h.catalog.GetGig(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gig)
}

// UpdatePackages обрабатывает PUT /gigs/:id/packages.
func (h *GigHandler) UpdatePackages(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	var req struct {
		Packages models.PackageSet `json:"packages"`
	}
	if !common.BindJSON(c, &req) {
		return
	}

	gig, err := h.catalog.UpdateGigPackages(c.Request.Context(), actor, id, req.Packages)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gig)
}
