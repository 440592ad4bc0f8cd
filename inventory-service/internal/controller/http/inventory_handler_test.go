package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/director74/saga-orders/inventory-service/internal/entity"
	"github.com/director74/saga-orders/inventory-service/internal/repo"
)

func newTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&entity.Inventory{}))

	router := gin.New()
	NewInventoryHandler(repo.NewInventoryRepository(db)).RegisterRoutes(router)
	return router
}

func errorMessage(t *testing.T, body string) string {
	var response map[string]string
	assert.NoError(t, json.Unmarshal([]byte(body), &response))
	return response["error"]
}

func TestUpsertAndGetInventory(t *testing.T) {
	router := newTestRouter(t)
	productID := uuid.New()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/inventory/"+productID.String(),
		strings.NewReader(`{"quantity": 15}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/inventory/"+productID.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var inventory entity.Inventory
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &inventory))
	assert.Equal(t, 15, inventory.AvailableQuantity)
}

func TestGetInventoryBadProductID(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/inventory/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w.Body.String()), "неверный ID продукта")
}

func TestGetInventoryNotFound(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/inventory/"+uuid.New().String(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, errorMessage(t, w.Body.String()), "не найден")
}

func TestUpsertStockBadPayload(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/inventory/"+uuid.New().String(),
		strings.NewReader(`{"quantity": -3}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w.Body.String()), "Ошибка в JSON данных")
}
