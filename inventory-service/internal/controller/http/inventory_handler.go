package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/director74/saga-orders/inventory-service/internal/repo"
	"github.com/director74/saga-orders/pkg/errors"
)

// InventoryHandler административное API остатков: просмотр и пополнение склада
type InventoryHandler struct {
	inventoryRepo *repo.InventoryRepository
}

// NewInventoryHandler создает новый обработчик остатков
func NewInventoryHandler(inventoryRepo *repo.InventoryRepository) *InventoryHandler {
	return &InventoryHandler{
		inventoryRepo: inventoryRepo,
	}
}

// UpsertStockRequest запрос на установку остатка товара
type UpsertStockRequest struct {
	Quantity int `json:"quantity" binding:"gte=0"`
}

// RegisterRoutes регистрирует маршруты
func (h *InventoryHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	router.GET("/inventory/:product_id", h.GetInventory)
	router.PUT("/inventory/:product_id", h.UpsertStock)
}

// GetInventory возвращает остаток товара
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("product_id"))
	if err != nil {
		c.JSON(errors.ToHTTPResponse(errors.NewBadRequestError("неверный ID продукта")))
		return
	}

	inventory, err := h.inventoryRepo.GetByProductID(c.Request.Context(), productID)
	if err != nil {
		if err == errors.ErrNotFound {
			c.JSON(errors.ToHTTPResponse(errors.NewNotFoundError("товар", productID)))
			return
		}
		c.JSON(errors.ToHTTPResponse(errors.NewInternalServerError(err)))
		return
	}

	c.JSON(http.StatusOK, inventory)
}

// UpsertStock устанавливает доступное количество товара
func (h *InventoryHandler) UpsertStock(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("product_id"))
	if err != nil {
		c.JSON(errors.ToHTTPResponse(errors.NewBadRequestError("неверный ID продукта")))
		return
	}

	var req UpsertStockRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	inventory, err := h.inventoryRepo.UpsertStock(c.Request.Context(), productID, req.Quantity)
	if err != nil {
		c.JSON(errors.ToHTTPResponse(errors.NewInternalServerError(err)))
		return
	}

	c.JSON(http.StatusOK, inventory)
}
