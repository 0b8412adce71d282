package api

import (
	"net/http"
	"strconv"

	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListOrders(c *gin.Context) {
	page, err := parsePage(c, h.pagination)
	if err != nil {
		WriteError(c, err)
		return
	}
	orders, total, err := h.service.ListOrders(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(page, total, orders))
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderInput
	if !bind(c, &req) {
		return
	}
	order, err := h.service.CreateOrder(c.Request.Context(), req)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// UpdateOrder changes an order's status and/or required quantity
func (h *Handler) UpdateOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		WriteError(c, err)
		return
	}
	var req services.UpdateOrderInput
	if !bind(c, &req) {
		return
	}
	if req.Status == nil && req.RequiredQty == nil {
		WriteError(c, NewValidationError("status or required_qty is required"))
		return
	}

	order, err := h.service.UpdateOrder(c.Request.Context(), id, req)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) AllocateOrders(c *gin.Context) {
	result, err := h.service.AllocateOrders(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) CreateShipment(c *gin.Context) {
	var req services.CreateShipmentInput
	if !bind(c, &req) {
		return
	}
	shipment, err := h.service.CreateShipment(c.Request.Context(), req)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shipment)
}

// ListShipments lists every shipment for admins and only their own for employees
func (h *Handler) ListShipments(c *gin.Context) {
	var employeeID uint
	if key, ok := APIKeyFromContext(c); ok && key.Role == models.RoleEmployee {
		if key.EmployeeID == nil {
			WriteError(c, ErrForbidden)
			return
		}
		employeeID = *key.EmployeeID
	}
	h.listShipments(c, employeeID)
}

func (h *Handler) EmployeeShipments(c *gin.Context) {
	employeeID, ok := callerEmployee(c)
	if !ok {
		return
	}
	h.listShipments(c, employeeID)
}

func (h *Handler) listShipments(c *gin.Context, employeeID uint) {
	page, err := parsePage(c, h.pagination)
	if err != nil {
		WriteError(c, err)
		return
	}
	shipments, total, err := h.service.ListShipments(c.Request.Context(), employeeID, page)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(page, total, shipments))
}

func (h *Handler) EmployeeOrders(c *gin.Context) {
	employeeID, ok := callerEmployee(c)
	if !ok {
		return
	}
	page, err := parsePage(c, h.pagination)
	if err != nil {
		WriteError(c, err)
		return
	}
	orders, total, err := h.service.EmployeeOrders(c.Request.Context(), employeeID, page)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(page, total, orders))
}

// UpdateShipmentStatus lets an employee move one of their shipments
func (h *Handler) UpdateShipmentStatus(c *gin.Context) {
	employeeID, ok := callerEmployee(c)
	if !ok {
		return
	}
	var req services.UpdateShipmentStatusInput
	if !bind(c, &req) {
		return
	}
	shipment, err := h.service.UpdateShipmentStatus(c.Request.Context(), employeeID, req)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Shipment status updated", "shipment": shipment})
}

func (h *Handler) SearchShipments(c *gin.Context) {
	size := defaultSearchSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(c, NewValidationError("size must be a positive integer"))
			return
		}
		size = n
	}
	if h.pagination.MaxPageSize > 0 && size > h.pagination.MaxPageSize {
		size = h.pagination.MaxPageSize
	}

	docs, err := h.service.SearchShipments(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(docs), "results": docs})
}
