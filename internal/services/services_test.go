package services

import (
	"context"
	"sync"
	"testing"

	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/metrics"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event, ok := body.(messaging.Event); ok {
		p.events = append(p.events, event)
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *WarehouseService
	db        *gorm.DB
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	publisher := &recordingPublisher{}
	m := metrics.NewMetrics()
	svc := NewWarehouseService(db, db, Dependencies{
		Publisher:   publisher,
		EventsQueue: "warehouse-events",
		Metrics:     m,
	})
	return &fixture{svc: svc, db: db, publisher: publisher, metrics: m, ctx: context.Background()}
}

func (f *fixture) product(t *testing.T, name string, available int64) *models.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(f.ctx, CreateProductInput{Name: name, Category: "Tools", AvailableQuantity: available})
	require.NoError(t, err)
	return p
}

func (f *fixture) reloadProduct(t *testing.T, id uint) *models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.Take(&p, id).Error)
	return &p
}

func (f *fixture) reloadTruck(t *testing.T, id uint) *models.Truck {
	t.Helper()
	var truck models.Truck
	require.NoError(t, f.db.Take(&truck, id).Error)
	return &truck
}

func (f *fixture) reloadOrder(t *testing.T, id uint) *models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, f.db.Take(&o, id).Error)
	return &o
}

func (f *fixture) reloadEmployee(t *testing.T, id uint) *models.Employee {
	t.Helper()
	var e models.Employee
	require.NoError(t, f.db.Unscoped().Take(&e, id).Error)
	return &e
}

func (f *fixture) truck(t *testing.T, plate string, capacity int64) *models.Truck {
	t.Helper()
	truck, err := f.svc.CreateTruck(f.ctx, CreateTruckInput{LicensePlate: plate, Capacity: capacity})
	require.NoError(t, err)
	return truck
}

func (f *fixture) employee(t *testing.T, name string) *models.Employee {
	t.Helper()
	e, err := f.svc.CreateEmployee(f.ctx, CreateEmployeeInput{Name: name})
	require.NoError(t, err)
	return e
}

func (f *fixture) order(t *testing.T, productID uint, qty int64) *models.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(f.ctx, CreateOrderInput{ProductID: productID, RequiredQty: qty})
	require.NoError(t, err)
	return o
}

// activeRequired recomputes a product's active demand straight from its orders
func (f *fixture) activeRequired(t *testing.T, productID uint) int64 {
	t.Helper()
	var sum int64
	err := f.db.Model(&models.Order{}).
		Select("COALESCE(SUM(required_qty), 0)").
		Where("product_id = ? AND status IN ?", productID, []string{"pending", "allocated"}).
		Scan(&sum).Error
	require.NoError(t, err)
	return sum
}

func statusPtr(s models.OrderStatus) *string {
	v := string(s)
	return &v
}

func qtyPtr(v int64) *int64 {
	return &v
}
