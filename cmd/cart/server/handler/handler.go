package handler

import (
	"errors"
	"net/http"

	"github.com/benko325/delivery-platform/cmd/cart/server/service"
	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/models"
	"github.com/benko325/delivery-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	Service *service.CartService
}

func NewCartHandler(svc *service.CartService) *CartHandler {
	return &CartHandler{Service: svc}
}

func (h *CartHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/carts/:customerId")
	{
		api.GET("", h.GetCart)
		api.POST("/items", h.AddItem)
		api.DELETE("/items/:menuItemId", h.RemoveItem)
		api.POST("/checkout", h.Checkout)
	}
	r.GET("/health", h.Health)
}

func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.Service.GetCart(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, "Cart retrieved", cart)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req models.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	cart, err := h.Service.AddItem(c.Request.Context(), c.Param("customerId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, "Item added to cart", cart)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	cart, err := h.Service.RemoveItem(c.Request.Context(), c.Param("customerId"), c.Param("menuItemId"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, "Item removed from cart", cart)
}

func (h *CartHandler) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	evt, err := h.Service.Checkout(c.Request.Context(), c.Param("customerId"), req.DeliveryAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusAccepted, "Checkout submitted", models.OrderResponse{
		OrderId:       evt.CartId,
		Status:        "submitted",
		Message:       "Order is being processed",
		CorrelationID: evt.Metadata.CorrelationId,
	})
}

func (h *CartHandler) Health(c *gin.Context) {
	utils.SendSuccess(c, http.StatusOK, "healthy", gin.H{"service": "cart-svc"})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, svcerror.ErrNotFound):
		utils.SendNotFoundError(c, err.Error())
	case errors.Is(err, svcerror.ErrValidationError):
		utils.SendValidationError(c, err)
	default:
		utils.SendInternalError(c, "Failed to process cart request")
	}
}
