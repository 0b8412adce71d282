package services

import (
	"context"

	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/rs/zerolog/log"
)

// allocationBatch caps how many pending orders one allocation run considers
const allocationBatch = 500

// Assignment pairs an order with the employee who will deliver it
type Assignment struct {
	OrderID    uint `json:"order_id"`
	EmployeeID uint `json:"employee_id"`
	TruckID    uint `json:"truck_id"`
	ShipmentID uint `json:"shipment_id,omitempty"`
}

// Allocator decides which pending orders go to which employees. It must not
// touch storage; the caller turns its plan into shipments.
type Allocator interface {
	Allocate(orders []models.Order, stock map[uint]int64, candidates []repositories.DispatchCandidate) []Assignment
}

// GreedyAllocator walks orders oldest first and gives each one to the best
// ranked free employee whose truck can carry it
type GreedyAllocator struct{}

// Allocate implements Allocator. Orders whose product lacks stock are
// skipped, and stock promised to earlier orders in the run is not reused.
func (GreedyAllocator) Allocate(orders []models.Order, stock map[uint]int64, candidates []repositories.DispatchCandidate) []Assignment {
	remaining := make(map[uint]int64, len(stock))
	for id, qty := range stock {
		remaining[id] = qty
	}
	used := make([]bool, len(candidates))

	var plan []Assignment
	for _, order := range orders {
		if remaining[order.ProductID] < order.RequiredQty {
			continue
		}
		for i, c := range candidates {
			if used[i] || c.Capacity < order.RequiredQty {
				continue
			}
			used[i] = true
			remaining[order.ProductID] -= order.RequiredQty
			plan = append(plan, Assignment{OrderID: order.ID, EmployeeID: c.EmployeeID, TruckID: c.TruckID})
			break
		}
	}
	return plan
}

// AllocationResult summarises one allocation run
type AllocationResult struct {
	Considered  int          `json:"considered"`
	Allocated   []Assignment `json:"allocated"`
	Unallocated int          `json:"unallocated"`
}

// allocate turns the allocator's plan into shipments inside the caller's
// transaction. Any failure rolls the whole run back.
func (s *WarehouseService) allocate(ctx context.Context, repos *repositories.Repositories, fx *effects) (*AllocationResult, error) {
	orders, err := repos.Orders.ListPendingForAllocation(ctx, allocationBatch)
	if err != nil {
		return nil, err
	}
	result := &AllocationResult{Considered: len(orders), Allocated: []Assignment{}}
	if len(orders) == 0 {
		return result, nil
	}

	candidates, err := repos.Employees.DispatchCandidates(ctx)
	if err != nil {
		return nil, err
	}

	stock := make(map[uint]int64)
	for _, order := range orders {
		if _, ok := stock[order.ProductID]; ok {
			continue
		}
		product, err := repos.Products.GetByID(ctx, order.ProductID)
		if err != nil {
			return nil, classify(err, "product")
		}
		stock[product.ID] = product.AvailableQuantity
	}

	now := s.now()
	for _, a := range s.allocator.Allocate(orders, stock, candidates) {
		shipment, err := createShipment(ctx, repos, a.OrderID, a.EmployeeID, now, fx)
		if err != nil {
			return nil, err
		}
		a.ShipmentID = shipment.ID
		a.TruckID = shipment.TruckID
		result.Allocated = append(result.Allocated, a)
	}
	result.Unallocated = result.Considered - len(result.Allocated)

	if len(result.Allocated) > 0 {
		fx.emit(messaging.EventOrdersAllocated, result)
	}
	log.Info().
		Int("considered", result.Considered).
		Int("allocated", len(result.Allocated)).
		Msg("Orders allocated")
	return result, nil
}
