// Package handler exposes the orders API over HTTP. The handlers validate
// shape at the boundary (uuid format, known enum values) and translate the
// service error taxonomy to HTTP statuses; business rules live in the domain.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/benko325/delivery-platform/cmd/orders/server/service"
	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderHandler struct {
	Service *service.Service
}

func NewOrderHandler(svc *service.Service) *OrderHandler {
	return &OrderHandler{Service: svc}
}

func (h *OrderHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/orders")
	{
		api.GET("", h.ListOrders)
		api.GET("/:id", h.GetOrder)
		api.POST("/:id/accept", h.AcceptOrder)
		api.POST("/:id/status", h.UpdateStatus)
		api.POST("/:id/cancel", h.CancelOrder)
	}
	r.GET("/health", h.Health)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	customerId := c.Query("customer_id")
	if customerId == "" {
		utils.SendError(c, http.StatusBadRequest, "MISSING_CUSTOMER_ID", "Missing Customer Id", "customer_id query parameter is required")
		return
	}

	orders, err := h.Service.ListOrders(c.Request.Context(), customerId)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Orders retrieved", orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderId := c.Param("id")
	if _, err := uuid.Parse(orderId); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid Order Id", "order id must be a uuid")
		return
	}

	order, err := h.Service.GetOrder(c.Request.Context(), orderId)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Order retrieved", order)
}

func (h *OrderHandler) AcceptOrder(c *gin.Context) {
	orderId := c.Param("id")
	if _, err := uuid.Parse(orderId); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid Order Id", "order id must be a uuid")
		return
	}

	var req models.AcceptOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}
	if req.DriverId == "" {
		utils.SendError(c, http.StatusBadRequest, "MISSING_DRIVER_ID", "Missing Driver Id", "driver_id is required")
		return
	}

	eta := time.Now().UTC().Add(time.Duration(req.EtaMinutes) * time.Minute)
	order, err := h.Service.AcceptOrder(c.Request.Context(), orderId, req.DriverId, eta)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Order accepted by driver", models.OrderResponse{
		OrderId:       order.OrderId,
		Status:        string(order.Status),
		Message:       "Driver " + req.DriverId + " accepted the order",
		CorrelationID: order.OrderId,
	})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderId := c.Param("id")
	if _, err := uuid.Parse(orderId); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid Order Id", "order id must be a uuid")
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	status := models.OrderStatus(req.Status)
	if !status.IsValid() {
		utils.SendError(c, http.StatusBadRequest, "INVALID_STATUS", "Invalid Status", "unknown order status: "+req.Status)
		return
	}

	order, err := h.Service.UpdateOrderStatus(c.Request.Context(), orderId, status)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Order status updated", models.OrderResponse{
		OrderId:       order.OrderId,
		Status:        string(order.Status),
		Message:       "Order moved to " + string(order.Status),
		CorrelationID: order.OrderId,
	})
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderId := c.Param("id")
	if _, err := uuid.Parse(orderId); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid Order Id", "order id must be a uuid")
		return
	}

	var req models.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	order, err := h.Service.CancelOrder(c.Request.Context(), orderId, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Order cancelled", models.OrderResponse{
		OrderId:       order.OrderId,
		Status:        string(order.Status),
		Message:       "Order cancelled: " + req.Reason,
		CorrelationID: order.OrderId,
	})
}

func (h *OrderHandler) Health(c *gin.Context) {
	utils.SendSuccess(c, http.StatusOK, "healthy", gin.H{"service": "order-svc"})
}

// respondError keeps the mapping from the error taxonomy to HTTP in one
// place. Conflicts surface as 409 so a caller can simply retry.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, svcerror.ErrNotFound):
		utils.SendNotFoundError(c, err.Error())
	case errors.Is(err, svcerror.ErrInvalidTransition), errors.Is(err, svcerror.ErrInvalidState):
		utils.SendError(c, http.StatusUnprocessableEntity, "INVALID_TRANSITION", "Order State Does Not Allow This", err.Error())
	case errors.Is(err, svcerror.ErrConflict):
		utils.SendConflictError(c, err.Error())
	case errors.Is(err, svcerror.ErrValidationError):
		utils.SendValidationError(c, err)
	default:
		utils.SendInternalError(c, "Failed to process order request")
	}
}
