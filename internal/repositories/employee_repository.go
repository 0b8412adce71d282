package repositories

import (
	"context"

	"example.com/backstage/services/warehouse/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// EmployeeRepository provides access to employees
type EmployeeRepository struct {
	base
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db, readOnlyDB *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{base: newBase(db, readOnlyDB)}
}

// WithTx binds the repository to tx
func (r *EmployeeRepository) WithTx(tx *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{base: r.withTx(tx)}
}

// Create inserts an employee
func (r *EmployeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	return translate(r.db.WithContext(ctx).Create(employee).Error, "failed to create employee")
}

// GetByID gets an employee with its truck
func (r *EmployeeRepository) GetByID(ctx context.Context, id uint) (*models.Employee, error) {
	var employee models.Employee
	if err := r.db.WithContext(ctx).Preload("Truck").Take(&employee, id).Error; err != nil {
		return nil, translate(err, "failed to get employee")
	}
	return &employee, nil
}

// GetForUpdate gets an employee and locks its row for the rest of the transaction
func (r *EmployeeRepository) GetForUpdate(ctx context.Context, id uint) (*models.Employee, error) {
	var employee models.Employee
	if err := forUpdate(r.db.WithContext(ctx)).Take(&employee, id).Error; err != nil {
		return nil, translate(err, "failed to lock employee")
	}
	return &employee, nil
}

// List returns employees ordered by ID
func (r *EmployeeRepository) List(ctx context.Context, page Page) ([]models.Employee, int64, error) {
	var (
		employees []models.Employee
		total     int64
	)
	q := r.readOnlyDB.WithContext(ctx).Model(&models.Employee{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count employees")
	}
	if err := page.apply(q.Preload("Truck").Order("id")).Find(&employees).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to list employees")
	}
	return employees, total, nil
}

// ListUnbound returns employees waiting for a truck, oldest first
func (r *EmployeeRepository) ListUnbound(ctx context.Context, limit int) ([]models.Employee, error) {
	var employees []models.Employee
	err := r.db.WithContext(ctx).
		Where("truck_id IS NULL").
		Order("id").
		Limit(limit).
		Find(&employees).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list unbound employees")
	}
	return employees, nil
}

// Bind assigns truckID to an employee that holds no truck
func (r *EmployeeRepository) Bind(ctx context.Context, employeeID, truckID uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.Employee{}).
		Where("id = ? AND truck_id IS NULL", employeeID).
		Update("truck_id", truckID)
	if res.Error != nil {
		return translate(res.Error, "failed to bind truck")
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}

// Unbind clears the employee's truck
func (r *EmployeeRepository) Unbind(ctx context.Context, employeeID uint) error {
	err := r.db.WithContext(ctx).
		Model(&models.Employee{}).
		Where("id = ?", employeeID).
		Update("truck_id", nil).Error
	return errors.Wrap(err, "failed to unbind truck")
}

// Delete soft-deletes an employee
func (r *EmployeeRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Employee{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete employee")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DispatchCandidate is an employee whose truck can take a shipment now
type DispatchCandidate struct {
	EmployeeID       uint
	TruckID          uint
	Capacity         int64
	ShipmentPriority int
}

// DispatchCandidates returns bound employees with nothing in transit,
// best shipment priority first
func (r *EmployeeRepository) DispatchCandidates(ctx context.Context) ([]DispatchCandidate, error) {
	var rows []DispatchCandidate
	err := r.db.WithContext(ctx).
		Table("employees").
		Select("employees.id AS employee_id, trucks.id AS truck_id, trucks.capacity, employees.shipment_priority").
		Joins("JOIN trucks ON trucks.id = employees.truck_id").
		Where("employees.deleted_at IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM shipments WHERE shipments.employee_id = employees.id AND shipments.status = ?)",
			string(models.ShipmentInTransit)).
		Order("employees.shipment_priority, employees.id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list dispatch candidates")
	}
	return rows, nil
}

// Count returns the number of employees
func (r *EmployeeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.readOnlyDB.WithContext(ctx).Model(&models.Employee{}).Count(&n).Error
	return n, errors.Wrap(err, "failed to count employees")
}
