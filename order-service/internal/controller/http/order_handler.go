package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/director74/saga-orders/order-service/internal/entity"
	"github.com/director74/saga-orders/order-service/internal/usecase"
	"github.com/director74/saga-orders/pkg/errors"
	"github.com/director74/saga-orders/pkg/saga"
)

type OrderHandler struct {
	orchestrator *usecase.SagaOrchestrator
}

func NewOrderHandler(orchestrator *usecase.SagaOrchestrator) *OrderHandler {
	return &OrderHandler{
		orchestrator: orchestrator,
	}
}

func (h *OrderHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)
	router.POST("/orders", h.CreateOrder)
}

func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// CreateOrder принимает заказ и запускает сагу его оформления.
// Ответ возвращается сразу, итог оформления определяется сагой асинхронно
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req entity.CreateOrderRequest
	if !errors.BindJSON(c, &req) {
		return
	}

	order := saga.OrderData{
		OrderID:     uuid.New(),
		CustomerID:  req.CustomerID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		TotalAmount: req.TotalAmount,
	}

	transaction, err := h.orchestrator.StartSaga(c.Request.Context(), order)
	if err != nil {
		c.JSON(errors.ToHTTPResponse(errors.NewInternalServerError(err)))
		return
	}

	c.JSON(http.StatusOK, entity.CreateOrderResponse{
		OrderID: order.OrderID,
		SagaID:  transaction.ID,
		Status:  "started",
		Message: "сага оформления заказа запущена",
	})
}
