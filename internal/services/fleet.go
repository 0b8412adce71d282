package services

import (
	"context"
	"strings"

	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/rs/zerolog/log"
)

const defaultContact = "Not Provided"

// CreateTruckInput is the admin payload for a new truck
type CreateTruckInput struct {
	LicensePlate string `json:"license_plate" binding:"required,max=20"`
	Capacity     int64  `json:"capacity" binding:"required,gt=0"`
}

// CreateTruck registers a truck as available. Employees waiting for a truck
// are bound afterwards in a separate transaction.
func (s *WarehouseService) CreateTruck(ctx context.Context, in CreateTruckInput) (*models.Truck, error) {
	plate := strings.TrimSpace(in.LicensePlate)
	if plate == "" {
		return nil, validationErrorf("license_plate is required")
	}
	if in.Capacity <= 0 {
		return nil, validationErrorf("capacity must be a positive integer")
	}

	truck := &models.Truck{LicensePlate: plate, Capacity: in.Capacity, IsAvailable: true}
	err := s.inTx(ctx, "create-truck", func(repos *repositories.Repositories, fx *effects) error {
		fx.dirty = true
		return classify(repos.Trucks.Create(ctx, truck), "truck")
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.BindPendingEmployees(ctx); err != nil {
		log.Error().Err(err).Uint("truck_id", truck.ID).Msg("Failed to bind pending employees")
	}
	return truck, nil
}

// ListTrucks returns one page of trucks
func (s *WarehouseService) ListTrucks(ctx context.Context, page repositories.Page) ([]models.Truck, int64, error) {
	var (
		trucks []models.Truck
		total  int64
	)
	err := s.read(ctx, "list-trucks", func(ctx context.Context) error {
		var err error
		trucks, total, err = s.repos.Trucks.List(ctx, page)
		return err
	})
	return trucks, total, err
}

// CreateEmployeeInput is the admin payload for a new employee
type CreateEmployeeInput struct {
	Name             string `json:"name" binding:"required,max=255"`
	Contact          string `json:"contact" binding:"max=15"`
	ShipmentPriority int    `json:"shipment_priority" binding:"gte=0"`
}

// CreateEmployee creates an employee and binds a free truck in the same
// transaction. With no free truck the employee is created unbound.
func (s *WarehouseService) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*models.Employee, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationErrorf("name is required")
	}
	contact := strings.TrimSpace(in.Contact)
	if contact == "" {
		contact = defaultContact
	}

	employee := &models.Employee{Name: name, Contact: contact, ShipmentPriority: in.ShipmentPriority}
	err := s.inTx(ctx, "create-employee", func(repos *repositories.Repositories, fx *effects) error {
		if err := repos.Employees.Create(ctx, employee); err != nil {
			return classify(err, "employee")
		}
		fx.dirty = true

		truck, err := bindTruck(ctx, repos, employee.ID, fx)
		if err != nil {
			return err
		}
		if truck != nil {
			employee.TruckID = &truck.ID
			employee.Truck = truck
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return employee, nil
}

// DeleteEmployee releases the employee's truck and removes the employee
func (s *WarehouseService) DeleteEmployee(ctx context.Context, id uint) error {
	return s.inTx(ctx, "delete-employee", func(repos *repositories.Repositories, fx *effects) error {
		employee, err := repos.Employees.GetForUpdate(ctx, id)
		if err != nil {
			return classify(err, "employee")
		}
		if err := releaseTruck(ctx, repos, employee, fx); err != nil {
			return err
		}
		revoked, err := repos.APIKeys.DeleteForEmployee(ctx, id)
		if err != nil {
			return err
		}
		if revoked > 0 {
			log.Info().Uint("employee_id", id).Int64("keys", revoked).Msg("Revoked API keys of deleted employee")
		}
		fx.dirty = true
		return classify(repos.Employees.Delete(ctx, id), "employee")
	})
}

// GetEmployee returns an employee with its truck
func (s *WarehouseService) GetEmployee(ctx context.Context, id uint) (*models.Employee, error) {
	employee, err := s.repos.Employees.GetByID(ctx, id)
	return employee, classify(err, "employee")
}

// ListEmployees returns one page of employees
func (s *WarehouseService) ListEmployees(ctx context.Context, page repositories.Page) ([]models.Employee, int64, error) {
	var (
		employees []models.Employee
		total     int64
	)
	err := s.read(ctx, "list-employees", func(ctx context.Context) error {
		var err error
		employees, total, err = s.repos.Employees.List(ctx, page)
		return err
	})
	return employees, total, err
}

// BindPendingEmployees is the corrective pass that binds employees created
// while no truck was free
func (s *WarehouseService) BindPendingEmployees(ctx context.Context) (int, error) {
	var bound int
	err := s.inTx(ctx, "bind-pending-employees", func(repos *repositories.Repositories, fx *effects) error {
		var err error
		bound, err = bindPending(ctx, repos, fx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if bound > 0 {
		log.Info().Int("bound", bound).Msg("Pending employees bound to trucks")
	}
	return bound, nil
}

// CreateRetailerInput is the admin payload for a new retailer
type CreateRetailerInput struct {
	Name                  string  `json:"name" binding:"required,max=255"`
	Address               string  `json:"address" binding:"required"`
	Contact               string  `json:"contact" binding:"required,max=15"`
	DistanceFromWarehouse float64 `json:"distance_from_warehouse" binding:"gte=0"`
}

// CreateRetailer registers a retailer
func (s *WarehouseService) CreateRetailer(ctx context.Context, in CreateRetailerInput) (*models.Retailer, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Address) == "" {
		return nil, validationErrorf("name and address are required")
	}
	if in.DistanceFromWarehouse < 0 {
		return nil, validationErrorf("distance_from_warehouse cannot be negative")
	}

	retailer := &models.Retailer{
		Name:                  strings.TrimSpace(in.Name),
		Address:               strings.TrimSpace(in.Address),
		Contact:               strings.TrimSpace(in.Contact),
		DistanceFromWarehouse: in.DistanceFromWarehouse,
	}
	err := s.inTx(ctx, "create-retailer", func(repos *repositories.Repositories, fx *effects) error {
		fx.dirty = true
		return classify(repos.Retailers.Create(ctx, retailer), "retailer")
	})
	if err != nil {
		return nil, err
	}
	return retailer, nil
}

// ListRetailers returns one page of retailers
func (s *WarehouseService) ListRetailers(ctx context.Context, page repositories.Page) ([]models.Retailer, int64, error) {
	var (
		retailers []models.Retailer
		total     int64
	)
	err := s.read(ctx, "list-retailers", func(ctx context.Context) error {
		var err error
		retailers, total, err = s.repos.Retailers.List(ctx, page)
		return err
	})
	return retailers, total, err
}
