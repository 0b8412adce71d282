package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/metrics"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"
	"example.com/backstage/services/warehouse/internal/services"
	"example.com/backstage/services/warehouse/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	adminToken    = "admin-secret"
	employeeToken = "employee-secret"
)

var driverID uint = 7

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*mockService, *gin.Engine) {
	t.Helper()

	svc := new(mockService)
	svc.On("Authenticate", mock.Anything, adminToken).
		Return(&models.APIKey{ID: 1, Role: models.RoleAdmin}, nil).Maybe()
	svc.On("Authenticate", mock.Anything, employeeToken).
		Return(&models.APIKey{ID: 2, Role: models.RoleEmployee, EmployeeID: &driverID}, nil).Maybe()
	svc.On("Authenticate", mock.Anything, mock.Anything).
		Return(nil, services.ErrUnauthorized).Maybe()

	cfg := config.Config{
		Environment:    "test",
		MetricsEnabled: true,
		Server:         config.ServerConfig{CorsEnabled: true, CorsOrigins: []string{"*"}},
		Pagination:     config.PaginationConfig{DefaultPageSize: 10, MaxPageSize: 100},
	}
	server := NewServer(cfg, svc, tracing.Disabled(), metrics.NewMetrics(), metrics.NewPrometheus())
	t.Cleanup(func() { svc.AssertExpectations(t) })
	return svc, server.Router()
}

func do(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthRequired(t *testing.T) {
	_, router := newTestServer(t)

	w := do(router, http.MethodGet, "/api/v1/trucks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(router, http.MethodGet, "/api/v1/trucks", "nope", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w)["code"])

	// employees cannot reach admin routes, admins cannot reach employee routes
	w = do(router, http.MethodGet, "/api/v1/trucks", employeeToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(router, http.MethodGet, "/api/v1/employee/shipments", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListTrucksPaginates(t *testing.T) {
	svc, router := newTestServer(t)
	svc.On("ListTrucks", mock.Anything, repositories.Page{Number: 2, Size: 100}).
		Return([]models.Truck{{ID: 3, LicensePlate: "KAA 001A"}}, int64(101), nil)

	w := do(router, http.MethodGet, "/api/v1/trucks?page=2&page_size=500", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(101), body["count"])
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(100), body["page_size"])
	assert.Len(t, body["results"], 1)
}

func TestBadPageIsRejected(t *testing.T) {
	_, router := newTestServer(t)

	w := do(router, http.MethodGet, "/api/v1/orders?page=zero", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
}

func TestCreateOrderMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.Error{Kind: services.ErrValidation, Message: "required_qty must be positive"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"transition", &services.Error{Kind: services.ErrInvalidTransition, Message: "cannot move order"}, http.StatusBadRequest, "INVALID_TRANSITION"},
		{"not found", &services.Error{Kind: services.ErrNotFound, Message: "product not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"conflict", &services.Error{Kind: services.ErrConflict, Message: "order changed"}, http.StatusConflict, "CONFLICT"},
		{"internal", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, router := newTestServer(t)
			in := services.CreateOrderInput{ProductID: 1, RequiredQty: 5}
			svc.On("CreateOrder", mock.Anything, in).Return(nil, tc.err)

			w := do(router, http.MethodPost, "/api/v1/orders", adminToken, in)
			assert.Equal(t, tc.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tc.code, body["code"])
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", body["error"])
			} else {
				assert.Equal(t, services.Message(tc.err), body["error"])
			}
		})
	}
}

func TestCreateOrderValidatesBody(t *testing.T) {
	_, router := newTestServer(t)

	w := do(router, http.MethodPost, "/api/v1/orders", adminToken, map[string]interface{}{"product_id": 1, "required_qty": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/v1/orders", adminToken, map[string]interface{}{"product_id": 1, "required_qty": 2, "status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateOrder(t *testing.T) {
	svc, router := newTestServer(t)
	status := "cancelled"
	svc.On("UpdateOrder", mock.Anything, uint(4), services.UpdateOrderInput{Status: &status}).
		Return(&models.Order{ID: 4, Status: models.OrderCancelled}, nil)

	w := do(router, http.MethodPatch, "/api/v1/orders/4", employeeToken, map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode(t, w)["status"])

	w = do(router, http.MethodPatch, "/api/v1/orders/4", adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPatch, "/api/v1/orders/abc", adminToken, map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateShipmentStatusUsesCallerEmployee(t *testing.T) {
	svc, router := newTestServer(t)
	in := services.UpdateShipmentStatusInput{ShipmentID: 9, Status: "delivered"}
	svc.On("UpdateShipmentStatus", mock.Anything, driverID, in).
		Return(&models.Shipment{ID: 9, Status: models.ShipmentDelivered}, nil)

	w := do(router, http.MethodPost, "/api/v1/update_shipment_status", employeeToken, in)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Shipment status updated", decode(t, w)["message"])
}

func TestUpdateShipmentStatusNotOwned(t *testing.T) {
	svc, router := newTestServer(t)
	in := services.UpdateShipmentStatusInput{ShipmentID: 9, Status: "delivered"}
	svc.On("UpdateShipmentStatus", mock.Anything, driverID, in).
		Return(nil, &services.Error{Kind: services.ErrNotFound, Message: "Shipment not found or unauthorized"})

	w := do(router, http.MethodPost, "/api/v1/update_shipment_status", employeeToken, in)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Shipment not found or unauthorized", decode(t, w)["error"])
}

func TestCreateShipmentWithoutTruck(t *testing.T) {
	svc, router := newTestServer(t)
	in := services.CreateShipmentInput{OrderID: 1, EmployeeID: 2}
	svc.On("CreateShipment", mock.Anything, in).
		Return(nil, &services.Error{Kind: services.ErrNoTruckAvailable, Message: "employee has no truck"})

	w := do(router, http.MethodPost, "/api/v1/shipments", adminToken, in)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_TRUCK_AVAILABLE", decode(t, w)["code"])
}

func TestListShipmentsScopesEmployees(t *testing.T) {
	svc, router := newTestServer(t)
	page := repositories.Page{Number: 1, Size: 10}
	svc.On("ListShipments", mock.Anything, uint(0), page).Return([]models.Shipment{{ID: 1}, {ID: 2}}, int64(2), nil)
	svc.On("ListShipments", mock.Anything, driverID, page).Return([]models.Shipment{{ID: 2}}, int64(1), nil)

	w := do(router, http.MethodGet, "/api/v1/shipments", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])

	w = do(router, http.MethodGet, "/api/v1/shipments", employeeToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestStoreQR(t *testing.T) {
	svc, router := newTestServer(t)
	text := "name=Widget|category=Tools|quantity=10"
	svc.On("IngestQR", mock.Anything, text).Return(&models.Product{ID: 1, Name: "Widget", AvailableQuantity: 10}, true, nil).Once()
	svc.On("IngestQR", mock.Anything, text).Return(&models.Product{ID: 1, Name: "Widget", AvailableQuantity: 20}, false, nil).Once()

	w := do(router, http.MethodPost, "/api/v1/store_qr", adminToken, StoreQRRequest{QRText: text})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, decode(t, w)["created"])

	w = do(router, http.MethodPost, "/api/v1/store_qr", adminToken, StoreQRRequest{QRText: text})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["created"])

	w = do(router, http.MethodPost, "/api/v1/store_qr", adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategoryStockIsPublic(t *testing.T) {
	svc, router := newTestServer(t)
	svc.On("CategoryStock", mock.Anything).Return([]repositories.CategoryStock{{ID: 1, Name: "Tools", Value: 3}}, nil)

	w := do(router, http.MethodGet, "/api/v1/category-stock", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stock []repositories.CategoryStock
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stock))
	assert.Equal(t, []repositories.CategoryStock{{ID: 1, Name: "Tools", Value: 3}}, stock)
}

func TestDeleteEmployee(t *testing.T) {
	svc, router := newTestServer(t)
	svc.On("DeleteEmployee", mock.Anything, uint(5)).Return(nil)
	svc.On("DeleteEmployee", mock.Anything, uint(6)).Return(&services.Error{Kind: services.ErrNotFound, Message: "employee not found"})

	w := do(router, http.MethodDelete, "/api/v1/employees/5", adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(router, http.MethodDelete, "/api/v1/employees/6", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	svc, router := newTestServer(t)
	svc.On("Ping", mock.Anything).Return(map[string]bool{"database": true, "cache": false})

	w := do(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, decode(t, w)["status"])
}

func TestMetricsEndpoints(t *testing.T) {
	_, router := newTestServer(t)

	w := do(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "gauges")

	w = do(router, http.MethodGet, "/metrics/prometheus", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRequestIDIsEchoed(t *testing.T) {
	svc, router := newTestServer(t)
	svc.On("CategoryStock", mock.Anything).Return([]repositories.CategoryStock{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/category-stock", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = do(router, http.MethodGet, "/api/v1/category-stock", "", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
