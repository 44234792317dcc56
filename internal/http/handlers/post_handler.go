package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// PostHandler обслуживает вакансии клиентов.
type PostHandler struct {
	catalog *service.CatalogService
}

// NewPostHandler создаёт хэндлер вакансий.
func NewPostHandler(catalog *service.CatalogService) *PostHandler {
	return &PostHandler{catalog: catalog}
}

// Create обрабатывает POST /posts.
func (h *PostHandler) Create(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req service.CreatePostInput
	if !common.BindJSON(c, &req) {
		return
	}

	post, err := h.catalog.CreatePost(c.Request.Context(), actor, req)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

// List обрабатывает GET /posts.
func (h *PostHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	posts, err := h.catalog.ListPosts(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

// ListMine обрабатывает GET /posts/my.
func (h *PostHandler) ListMine(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	posts, err := h.catalog.ListMyPosts(c.Request.Context(), actor)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

// Get обрабатывает GET /posts/:id.
func (h *PostHandler) Get(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	post, err := h.catalog.GetPost(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}
