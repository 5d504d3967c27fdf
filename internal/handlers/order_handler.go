package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/repository"
)

// OrderManager is what the order endpoints need from the order service
type OrderManager interface {
	ListOrders(ctx context.Context, opts repository.ListOptions) ([]models.Order, int64, error)
	GetOrder(ctx context.Context, itemID string) (*models.Order, error)
	UpdateShipping(ctx context.Context, itemID string, update models.OrderUpdate) (*models.Order, error)
}

// OrderHandler handles order lookup and manual shipping corrections
type OrderHandler struct {
	service OrderManager
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(service OrderManager) *OrderHandler {
	return &OrderHandler{service: service}
}

// List returns orders filtered by platform, status, order id or a free-text search
func (h *OrderHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	opts := repository.ListOptions{
		Platform: c.Query("platform"),
		Status:   c.Query("status"),
		OrderID:  c.Query("orderId"),
		Search:   c.Query("search"),
		Limit:    limit,
		Offset:   offset,
	}

	orders, total, err := h.service.ListOrders(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  orders,
		"total": total,
	})
}

// Get returns a single order by item id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

// UpdateShipping applies a partial shipping update; the status is re-derived
func (h *OrderHandler) UpdateShipping(c *gin.Context) {
	var update models.OrderUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if update.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no shipping fields given"})
		return
	}

	order, err := h.service.UpdateShipping(c.Request.Context(), c.Param("itemId"), update)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}
