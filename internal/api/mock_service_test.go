package api

import (
	"context"

	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"
	"example.com/backstage/services/warehouse/internal/services"

	"github.com/stretchr/testify/mock"
)

type mockService struct {
	mock.Mock
}

var _ Service = (*mockService)(nil)

func (m *mockService) Authenticate(ctx context.Context, secret string) (*models.APIKey, error) {
	args := m.Called(ctx, secret)
	key, _ := args.Get(0).(*models.APIKey)
	return key, args.Error(1)
}

func (m *mockService) CreateProduct(ctx context.Context, in services.CreateProductInput) (*models.Product, error) {
	args := m.Called(ctx, in)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Error(1)
}

func (m *mockService) ListProducts(ctx context.Context, page repositories.Page) ([]models.Product, int64, error) {
	args := m.Called(ctx, page)
	products, _ := args.Get(0).([]models.Product)
	return products, args.Get(1).(int64), args.Error(2)
}

func (m *mockService) CategoryStock(ctx context.Context) ([]repositories.CategoryStock, error) {
	args := m.Called(ctx)
	stock, _ := args.Get(0).([]repositories.CategoryStock)
	return stock, args.Error(1)
}

func (m *mockService) IngestQR(ctx context.Context, text string) (*models.Product, bool, error) {
	args := m.Called(ctx, text)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Bool(1), args.Error(2)
}

func (m *mockService) ProductMovements(ctx context.Context, productID uint, limit int) ([]models.InventoryMovement, error) {
	args := m.Called(ctx, productID, limit)
	movements, _ := args.Get(0).([]models.InventoryMovement)
	return movements, args.Error(1)
}

func (m *mockService) CreateTruck(ctx context.Context, in services.CreateTruckInput) (*models.Truck, error) {
	args := m.Called(ctx, in)
	truck, _ := args.Get(0).(*models.Truck)
	return truck, args.Error(1)
}

func (m *mockService) ListTrucks(ctx context.Context, page repositories.Page) ([]models.Truck, int64, error) {
	args := m.Called(ctx, page)
	trucks, _ := args.Get(0).([]models.Truck)
	return trucks, args.Get(1).(int64), args.Error(2)
}

func (m *mockService) CreateEmployee(ctx context.Context, in services.CreateEmployeeInput) (*models.Employee, error) {
	args := m.Called(ctx, in)
	e, _ := args.Get(0).(*models.Employee)
	return e, args.Error(1)
}

func (m *mockService) DeleteEmployee(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockService) GetEmployee(ctx context.Context, id uint) (*models.Employee, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*models.Employee)
	return e, args.Error(1)
}

func (m *mockService) ListEmployees(ctx context.Context, page repositories.Page) ([]models.Employee, int64, error) {
	args := m.Called(ctx, page)
	employees, _ := args.Get(0).([]models.Employee)
	return employees, args.Get(1).(int64), args.Error(2)
}

func (m *mockService) BindPendingEmployees(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockService) CreateRetailer(ctx context.Context, in services.CreateRetailerInput) (*models.Retailer, error) {
	args := m.Called(ctx, in)
	r, _ := args.Get(0).(*models.Retailer)
	return r, args.Error(1)
}

func (m *mockService) ListRetailers(ctx context.Context, page repositories.Page) ([]models.Retailer, int64, error) {
	args := m.Called(ctx, page)
	retailers, _ := args.Get(0).([]models.Retailer)
	return retailers, args.Get(1).(int64), args.Error(2)
}

func (m *mockService) CreateOrder(ctx context.Context, in services.CreateOrderInput) (*models.Order, error) {
	args := m.Called(ctx, in)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockService) UpdateOrder(ctx context.Context, id uint, in services.UpdateOrderInput) (*models.Order, error) {
	args := m.Called(ctx, id, in)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockService) ListOrders(ctx context.Context, status string, page repositories.Page) ([]models.Order, int64, error) {
	args := m.Called(ctx, status, page)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *mockService) EmployeeOrders(ctx context.Context, employeeID uint, page repositories.Page) ([]models.Order, int64, error) {
	args := m.Called(ctx, employeeID, page)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *mockService) CreateShipment(ctx context.Context, in services.CreateShipmentInput) (*models.Shipment, error) {
	args := m.Called(ctx, in)
	s, _ := args.Get(0).(*models.Shipment)
	return s, args.Error(1)
}

func (m *mockService) UpdateShipmentStatus(ctx context.Context, employeeID uint, in services.UpdateShipmentStatusInput) (*models.Shipment, error) {
	args := m.Called(ctx, employeeID, in)
	s, _ := args.Get(0).(*models.Shipment)
	return s, args.Error(1)
}

func (m *mockService) ListShipments(ctx context.Context, employeeID uint, page repositories.Page) ([]models.Shipment, int64, error) {
	args := m.Called(ctx, employeeID, page)
	shipments, _ := args.Get(0).([]models.Shipment)
	return shipments, args.Get(1).(int64), args.Error(2)
}

func (m *mockService) SearchShipments(ctx context.Context, text string, size int) ([]map[string]interface{}, error) {
	args := m.Called(ctx, text, size)
	docs, _ := args.Get(0).([]map[string]interface{})
	return docs, args.Error(1)
}

func (m *mockService) AllocateOrders(ctx context.Context) (*services.AllocationResult, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*services.AllocationResult)
	return r, args.Error(1)
}

func (m *mockService) Counts(ctx context.Context) (*services.Counts, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).(*services.Counts)
	return c, args.Error(1)
}

func (m *mockService) Ping(ctx context.Context) map[string]bool {
	args := m.Called(ctx)
	health, _ := args.Get(0).(map[string]bool)
	return health
}
