package api

import (
	"net/http"
	"strconv"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	defaultMovementLimit = 50
	defaultSearchSize    = 20
)

// Handler serves the warehouse API
type Handler struct {
	service    Service
	pagination config.PaginationConfig
}

// NewHandler creates a new API handler
func NewHandler(service Service, pagination config.PaginationConfig) *Handler {
	if pagination.DefaultPageSize <= 0 {
		pagination.DefaultPageSize = 10
	}
	return &Handler{service: service, pagination: pagination}
}

// RegisterRoutes registers the API routes under /api/v1
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")

	v1.GET("/category-stock", h.CategoryStock)

	admin := v1.Group("", APIKeyAuth(h.service, models.RoleAdmin))
	{
		admin.GET("/employees", h.ListEmployees)
		admin.POST("/employees", h.CreateEmployee)
		admin.DELETE("/employees/:id", h.DeleteEmployee)
		admin.POST("/employees/rebind", h.RebindEmployees)

		admin.GET("/retailers", h.ListRetailers)
		admin.POST("/retailers", h.CreateRetailer)

		admin.GET("/trucks", h.ListTrucks)
		admin.POST("/trucks", h.CreateTruck)

		admin.GET("/products", h.ListProducts)
		admin.POST("/products", h.CreateProduct)
		admin.GET("/products/:id/movements", h.ProductMovements)
		admin.GET("/stock", h.StockData)
		admin.POST("/store_qr", h.StoreQR)

		admin.GET("/count", h.Count)
		admin.POST("/shipments", h.CreateShipment)
	}

	authed := v1.Group("", APIKeyAuth(h.service))
	{
		authed.GET("/orders", h.ListOrders)
		authed.POST("/orders", h.CreateOrder)
		authed.PATCH("/orders/:id", h.UpdateOrder)
		authed.POST("/allocate-orders", h.AllocateOrders)
		authed.GET("/shipments", h.ListShipments)
		authed.GET("/shipments/search", h.SearchShipments)
	}

	employee := v1.Group("", APIKeyAuth(h.service, models.RoleEmployee))
	{
		employee.GET("/employee/me", h.Me)
		employee.GET("/employee/shipments", h.EmployeeShipments)
		employee.GET("/employee/orders", h.EmployeeOrders)
		employee.POST("/update_shipment_status", h.UpdateShipmentStatus)
	}
}

// bind decodes the JSON body, writing a 400 on failure
func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		WriteError(c, NewValidationError(err.Error()))
		return false
	}
	return true
}

// callerEmployee returns the employee an employee-role key acts for
func callerEmployee(c *gin.Context) (uint, bool) {
	key, ok := APIKeyFromContext(c)
	if !ok || key.EmployeeID == nil {
		WriteError(c, ErrForbidden)
		return 0, false
	}
	return *key.EmployeeID, true
}

func (h *Handler) ListProducts(c *gin.Context) {
	page, err := parsePage(c, h.pagination)
	if err != nil {
		WriteError(c, err)
		return
	}
	products, total, err := h.service.ListProducts(c.Request.Context(), page)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(page, total, products))
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req services.CreateProductInput
	if !bind(c, &req) {
		return
	}
	product, err := h.service.CreateProduct(c.Request.Context(), req)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// StockEntry is one row of the stock report
type StockEntry struct {
	ID                    uint                 `json:"id"`
	Name                  string               `json:"name"`
	Category              string               `json:"category"`
	AvailableQuantity     int64                `json:"available_quantity"`
	TotalRequiredQuantity int64                `json:"total_required_quantity"`
	TotalShipped          int64                `json:"total_shipped"`
	Status                models.ProductStatus `json:"status"`
}

// StockData reports stock and demand per product
func (h *Handler) StockData(c *gin.Context) {
	page, err := parsePage(c, h.pagination)
	if err != nil {
		WriteError(c, err)
		return
	}
	products, total, err := h.service.ListProducts(c.Request.Context(), page)
	if err != nil {
		WriteError(c, err)
		return
	}

	entries := make([]StockEntry, 0, len(products))
	for _, p := range products {
		entry := StockEntry{
			ID:                    p.ID,
			Name:                  p.Name,
			AvailableQuantity:     p.AvailableQuantity,
			TotalRequiredQuantity: p.TotalRequiredQuantity,
			TotalShipped:          p.TotalShipped,
			Status:                p.Status,
		}
		if p.Category != nil {
			entry.Category = p.Category.Name
		}
		entries = append(entries, entry)
	}
	c.JSON(http.StatusOK, pageResponse(page, total, entries))
}

func (h *Handler) CategoryStock(c *gin.Context) {
	stock, err := h.service.CategoryStock(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

// StoreQRRequest carries one decoded QR payload
type StoreQRRequest struct {
	QRText string `json:"qr_text" binding:"required"`
}

// StoreQR ingests a decoded QR payload
func (h *Handler) StoreQR(c *gin.Context) {
	var req StoreQRRequest
	if !bind(c, &req) {
		return
	}
	product, created, err := h.service.IngestQR(c.Request.Context(), req.QRText)
	if err != nil {
		WriteError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"created": created, "product": product})
}

func (h *Handler) ProductMovements(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		WriteError(c, err)
		return
	}
	limit := defaultMovementLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	movements, err := h.service.ProductMovements(c.Request.Context(), id, limit)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func (h *Handler) ListTrucks(c *gin.Context) {
	page, err := parsePage(c, h.pagination)
	if err != nil {
		WriteError(c, err)
		return
	}
	trucks, total, err := h.service.ListTrucks(c.Request.Context(), page)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(page, total, trucks))
}

func (h *Handler) CreateTruck(c *gin.Context) {
	var req services.CreateTruckInput
	if !bind(c, &req) {
		return
	}
	truck, err := h.service.CreateTruck(c.Request.Context(), req)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, truck)
}

func (h *Handler) ListEmployees(c *gin.Context) {
	page, err := parsePage(c, h.pagination)
	if err != nil {
		WriteError(c, err)
		return
	}
	employees, total, err := h.service.ListEmployees(c.Request.Context(), page)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(page, total, employees))
}

func (h *Handler) CreateEmployee(c *gin.Context) {
	var req services.CreateEmployeeInput
	if !bind(c, &req) {
		return
	}
	employee, err := h.service.CreateEmployee(c.Request.Context(), req)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, employee)
}

func (h *Handler) DeleteEmployee(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		WriteError(c, err)
		return
	}
	if err := h.service.DeleteEmployee(c.Request.Context(), id); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RebindEmployees runs the corrective truck binding pass on demand
func (h *Handler) RebindEmployees(c *gin.Context) {
	bound, err := h.service.BindPendingEmployees(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bound": bound})
}

// Me returns the calling employee with their truck
func (h *Handler) Me(c *gin.Context) {
	employeeID, ok := callerEmployee(c)
	if !ok {
		return
	}
	employee, err := h.service.GetEmployee(c.Request.Context(), employeeID)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func (h *Handler) ListRetailers(c *gin.Context) {
	page, err := parsePage(c, h.pagination)
	if err != nil {
		WriteError(c, err)
		return
	}
	retailers, total, err := h.service.ListRetailers(c.Request.Context(), page)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(page, total, retailers))
}

func (h *Handler) CreateRetailer(c *gin.Context) {
	var req services.CreateRetailerInput
	if !bind(c, &req) {
		return
	}
	retailer, err := h.service.CreateRetailer(c.Request.Context(), req)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, retailer)
}

func (h *Handler) Count(c *gin.Context) {
	counts, err := h.service.Counts(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
