package services

import (
	"context"

	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// bindBatch caps how many waiting employees one corrective pass binds
const bindBatch = 100

// bindTruck claims the lowest-ID free truck for the employee. When no truck is
// free the employee stays unbound and nil is returned without error; the
// corrective pass picks it up once a truck frees up.
func bindTruck(ctx context.Context, repos *repositories.Repositories, employeeID uint, fx *effects) (*models.Truck, error) {
	truck, err := repos.Trucks.ClaimFree(ctx)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Info().Uint("employee_id", employeeID).Msg("No free truck, employee left pending")
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "truck")
	}

	if err := repos.Employees.Bind(ctx, employeeID, truck.ID); err != nil {
		return nil, classify(err, "employee")
	}

	fx.emit(messaging.EventEmployeeBound, map[string]uint{
		"employee_id": employeeID,
		"truck_id":    truck.ID,
	})
	log.Info().Uint("employee_id", employeeID).Uint("truck_id", truck.ID).Msg("Truck bound to employee")
	return truck, nil
}

// releaseTruck unbinds the employee's truck and returns it to the pool.
// It runs even with a delivery in flight so the truck is never leaked.
func releaseTruck(ctx context.Context, repos *repositories.Repositories, employee *models.Employee, fx *effects) error {
	if !employee.Bound() {
		return nil
	}
	truckID := *employee.TruckID

	if err := repos.Employees.Unbind(ctx, employee.ID); err != nil {
		return err
	}
	if err := repos.Trucks.SetAvailable(ctx, truckID, true); err != nil {
		return classify(err, "truck")
	}

	fx.emit(messaging.EventTruckReleased, map[string]uint{
		"employee_id": employee.ID,
		"truck_id":    truckID,
	})
	log.Info().Uint("employee_id", employee.ID).Uint("truck_id", truckID).Msg("Truck released")
	return nil
}

// bindPending binds waiting employees in ID order until trucks run out
func bindPending(ctx context.Context, repos *repositories.Repositories, fx *effects) (int, error) {
	employees, err := repos.Employees.ListUnbound(ctx, bindBatch)
	if err != nil {
		return 0, err
	}

	bound := 0
	for _, employee := range employees {
		truck, err := bindTruck(ctx, repos, employee.ID, fx)
		if err != nil {
			return bound, err
		}
		if truck == nil {
			break
		}
		bound++
	}
	return bound, nil
}
