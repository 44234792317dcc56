package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// AdminHandler - модерация вакансий, услуг и пользователей.
type AdminHandler struct {
	moderation *service.ModerationService
}

// NewAdminHandler создаёт хэндлер администратора.
func NewAdminHandler(moderation *service.ModerationService) *AdminHandler {
	return &AdminHandler{moderation: moderation}
}

type rejectRequest struct {
	RejectionReason string `json:"rejectionReason"`
}

// ApprovePost обрабатывает PUT /posts/admin/:id/approve.
func (h *AdminHandler) ApprovePost(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	post, err := h.moderation.ApprovePost(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// RejectPost обрабатывает PUT /posts/admin/:id/reject.
func (h *AdminHandler) RejectPost(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if !common.BindJSON(c, &req) {
		return
	}

	post, err := h.moderation.RejectPost(c.Request.Context(), actor, id, req.RejectionReason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost обрабатывает DELETE /posts/admin/:id.
func (h *AdminHandler) DeletePost(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	if err := h.moderation.DeletePost(c.Request.Context(), actor, id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "вакансия удалена"})
}

// ApproveGig обрабатывает PUT /gigs/admin/:id/approve.
func (h *AdminHandler) ApproveGig(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	gig, err := h.moderation.ApproveGig(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// RejectGig обрабатывает PUT /gigs/admin/:id/reject.
func (h *AdminHandler) RejectGig(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if !common.BindJSON(c, &req) {
		return
	}

	gig, err := h.moderation.RejectGig(c.Request.Context(), actor, id, req.RejectionReason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// DeleteGig обрабатывает DELETE /gigs/admin/:id.
func (h *AdminHandler) DeleteGig(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	if err := h.moderation.DeleteGig(c.Request.Context(), actor, id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "услуга удалена"})
}

// ListUsers обрабатывает GET /admin/users?role=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	users, err := h.moderation.ListUsers(c.Request.Context(), actor, c.Query("role"), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// BlockUser обрабатывает PUT /admin/users/:id/block.
func (h *AdminHandler) BlockUser(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	if err := h.moderation.BlockUser(c.Request.Context(), actor, id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "пользователь заблокирован"})
}

// UnblockUser обрабатывает PUT /admin/users/:id/unblock.
func (h *AdminHandler) UnblockUser(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	if err := h.moderation.UnblockUser(c.Request.Context(), actor, id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "пользователь разблокирован"})
}

// DeleteUser обрабатывает DELETE /admin/users/:id.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	if err := h.moderation.DeleteUser(c.Request.Context(), actor, id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "пользователь удалён"})
}

// Analytics обрабатывает GET /admin/analytics.
func (h *AdminHandler) Analytics(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	stats, err := h.moderation.Analytics(c.Request.Context(), actor)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
