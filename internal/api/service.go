package api

import (
	"context"

	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"
	"example.com/backstage/services/warehouse/internal/services"
)

// Service is the slice of the warehouse service the HTTP layer calls
type Service interface {
	Authenticate(ctx context.Context, secret string) (*models.APIKey, error)

	CreateProduct(ctx context.Context, in services.CreateProductInput) (*models.Product, error)
	ListProducts(ctx context.Context, page repositories.Page) ([]models.Product, int64, error)
	CategoryStock(ctx context.Context) ([]repositories.CategoryStock, error)
	IngestQR(ctx context.Context, text string) (*models.Product, bool, error)
	ProductMovements(ctx context.Context, productID uint, limit int) ([]models.InventoryMovement, error)

	CreateTruck(ctx context.Context, in services.CreateTruckInput) (*models.Truck, error)
	ListTrucks(ctx context.Context, page repositories.Page) ([]models.Truck, int64, error)
	CreateEmployee(ctx context.Context, in services.CreateEmployeeInput) (*models.Employee, error)
	DeleteEmployee(ctx context.Context, id uint) error
	GetEmployee(ctx context.Context, id uint) (*models.Employee, error)
	ListEmployees(ctx context.Context, page repositories.Page) ([]models.Employee, int64, error)
	BindPendingEmployees(ctx context.Context) (int, error)
	CreateRetailer(ctx context.Context, in services.CreateRetailerInput) (*models.Retailer, error)
	ListRetailers(ctx context.Context, page repositories.Page) ([]models.Retailer, int64, error)

	CreateOrder(ctx context.Context, in services.CreateOrderInput) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uint, in services.UpdateOrderInput) (*models.Order, error)
	ListOrders(ctx context.Context, status string, page repositories.Page) ([]models.Order, int64, error)
	EmployeeOrders(ctx context.Context, employeeID uint, page repositories.Page) ([]models.Order, int64, error)
	CreateShipment(ctx context.Context, in services.CreateShipmentInput) (*models.Shipment, error)
	UpdateShipmentStatus(ctx context.Context, employeeID uint, in services.UpdateShipmentStatusInput) (*models.Shipment, error)
	ListShipments(ctx context.Context, employeeID uint, page repositories.Page) ([]models.Shipment, int64, error)
	SearchShipments(ctx context.Context, text string, size int) ([]map[string]interface{}, error)
	AllocateOrders(ctx context.Context) (*services.AllocationResult, error)

	Counts(ctx context.Context) (*services.Counts, error)
	Ping(ctx context.Context) map[string]bool
}

var _ Service = (*services.WarehouseService)(nil)
