package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// OrderHandler обслуживает оформление, оплату и статусы заказов.
type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler создаёт новый хэндлер.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Checkout обрабатывает POST /orders/stripe.
func (h *OrderHandler) Checkout(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req struct {
		ServiceID       string `json:"serviceId"`
		SelectedPackage string `json:"selectedPackage"`
		Requirements    string `json:"requirements"`
		Deadline        string `json:"deadline"`
	}
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.orders.CreateCheckout(c.Request.Context(), actor, service.CheckoutInput{
		ServiceID:       req.ServiceID,
		SelectedPackage: req.SelectedPackage,
		Requirements:    req.Requirements,
		Deadline:        req.Deadline,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Verify обрабатывает POST /orders/verify.
func (h *OrderHandler) Verify(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if !common.BindJSON(c, &req) {
		return
	}

	order, err := h.orders.Verify(c.Request.Context(), actor, req.SessionID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders обрабатывает GET /orders/all.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	orders, err := h.orders.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetOrder обрабатывает GET /orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	order, err := h.orders.Get(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus обрабатывает PATCH /orders/:id/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	h.changeStatus(c, h.orders.UpdateStatus)
}

// UpdateClientStatus обрабатывает PATCH /orders/:id/client-status.
func (h *OrderHandler) UpdateClientStatus(c *gin.Context) {
	h.changeStatus(c, h.orders.UpdateClientStatus)
}

// UpdateFreelancerStatus обрабатывает PATCH /orders/:id/freelancer-status.
func (h *OrderHandler) UpdateFreelancerStatus(c *gin.Context) {
	h.changeStatus(c, h.orders.UpdateFreelancerStatus)
}

func (h *OrderHandler) changeStatus(c *gin.Context, apply func(ctx context.Context, actor service.Actor, id uuid.UUID, status string) (*models.Order, error)) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	var req statusRequest
	if !common.BindJSON(c, &req) {
		return
	}

	order, err := apply(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// SendMoneyToFreelancer обрабатывает PUT /orders/:id/send-money-to-freelancer.
// Суммы из тела не обязательны: сервер пересчитывает выплату сам.
func (h *OrderHandler) SendMoneyToFreelancer(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c)
	if !ok {
		return
	}

	var claimed *valueobject.Payout
	var body valueobject.Payout
	if err := c.ShouldBindJSON(&body); err == nil {
		claimed = &body
	} else if !errors.Is(err, io.EOF) {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	order, err := h.orders.ReleasePayout(c.Request.Context(), actor, id, claimed)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// AdminOrders обрабатывает GET /admin/orders?state=current|past.
func (h *OrderHandler) AdminOrders(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	orders, err := h.orders.AdminOrders(c.Request.Context(), actor, c.Query("state"), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}
