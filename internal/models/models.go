package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Category groups products; names are unique
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Products  []Product `gorm:"foreignKey:CategoryID" json:"-"`
}

// Truck is a delivery vehicle. IsAvailable tracks whether it is free for dispatch.
type Truck struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	LicensePlate string    `gorm:"size:20;not null;uniqueIndex" json:"license_plate"`
	Capacity     int64     `gorm:"not null" json:"capacity"`
	IsAvailable  bool      `gorm:"not null;index" json:"is_available"`
}

// Employee is a driver. TruckID is unique so a truck is bound to at most one employee.
type Employee struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	Name             string         `gorm:"size:255;not null" json:"name"`
	Contact          string         `gorm:"size:15;not null" json:"contact"`
	ShipmentPriority int            `gorm:"not null;default:0" json:"shipment_priority"`
	TruckID          *uint          `gorm:"uniqueIndex" json:"truck_id"`
	Truck            *Truck         `gorm:"foreignKey:TruckID" json:"truck,omitempty"`
}

// Bound reports whether the employee currently holds a truck
func (e *Employee) Bound() bool {
	return e.TruckID != nil
}

// Retailer receives orders
type Retailer struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Name                  string    `gorm:"size:255;not null" json:"name"`
	Address               string    `gorm:"type:text;not null" json:"address"`
	Contact               string    `gorm:"size:15;not null" json:"contact"`
	DistanceFromWarehouse float64   `gorm:"not null" json:"distance_from_warehouse"`
}

// Product carries the incrementally maintained demand aggregates
type Product struct {
	ID                    uint          `gorm:"primaryKey" json:"id"`
	CreatedAt             time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
	Name                  string        `gorm:"size:255;not null;uniqueIndex:idx_product_name_category" json:"name"`
	CategoryID            uint          `gorm:"not null;uniqueIndex:idx_product_name_category" json:"category_id"`
	Category              *Category     `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	AvailableQuantity     int64         `gorm:"not null" json:"available_quantity"`
	TotalShipped          int64         `gorm:"not null" json:"total_shipped"`
	TotalRequiredQuantity int64         `gorm:"not null" json:"total_required_quantity"`
	Status                ProductStatus `gorm:"size:20;not null" json:"status"`
}

// Order is demand for a product
type Order struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	ProductID   uint        `gorm:"not null;index" json:"product_id"`
	Product     *Product    `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	RequiredQty int64       `gorm:"not null" json:"required_qty"`
	Status      OrderStatus `gorm:"size:20;not null;index" json:"status"`
	OrderDate   time.Time   `gorm:"not null;index" json:"order_date"`
}

// Shipment is one delivery of an order by an employee and truck
type Shipment struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	OrderID      uint           `gorm:"not null;uniqueIndex" json:"order_id"`
	Order        *Order         `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	EmployeeID   uint           `gorm:"not null;index" json:"employee_id"`
	Employee     *Employee      `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
	TruckID      uint           `gorm:"not null;index" json:"truck_id"`
	Truck        *Truck         `gorm:"foreignKey:TruckID" json:"truck,omitempty"`
	Status       ShipmentStatus `gorm:"size:20;not null;index" json:"status"`
	ShipmentDate time.Time      `gorm:"not null" json:"shipment_date"`
	DeliveredAt  *time.Time     `json:"delivered_at"`
}

// RetailerOrder links a retailer to an order
type RetailerOrder struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	RetailerID uint        `gorm:"not null;uniqueIndex:idx_retailer_order" json:"retailer_id"`
	Retailer   *Retailer   `gorm:"foreignKey:RetailerID" json:"retailer,omitempty"`
	OrderID    uint        `gorm:"not null;uniqueIndex:idx_retailer_order" json:"order_id"`
	Order      *Order      `gorm:"foreignKey:OrderID" json:"-"`
	Status     OrderStatus `gorm:"size:20;not null" json:"status"`
	OrderDate  time.Time   `gorm:"not null" json:"order_date"`
}

// MovementKind classifies inventory ledger entries
type MovementKind string

const (
	MovementRestock MovementKind = "restock"
	MovementShipped MovementKind = "shipped"
)

// InventoryMovement is an append-only ledger of stock changes
type InventoryMovement struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
	ProductID uint         `gorm:"not null;index" json:"product_id"`
	Kind      MovementKind `gorm:"size:20;not null" json:"kind"`
	Quantity  int64        `gorm:"not null" json:"quantity"`
	Reference string       `gorm:"size:100" json:"reference"`
}

// Role gates API access
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// APIKey authenticates API callers
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	Name       string     `gorm:"size:100;not null" json:"name"`
	Key        string     `gorm:"column:key_hash;size:128;not null;uniqueIndex" json:"-"`
	Role       Role       `gorm:"size:20;not null" json:"role"`
	EmployeeID *uint      `gorm:"index" json:"employee_id"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// Expired reports whether the key is past its expiry
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// SetupModels runs migrations for every table the service owns
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Category{},
		&Truck{},
		&Employee{},
		&Retailer{},
		&Product{},
		&Order{},
		&Shipment{},
		&RetailerOrder{},
		&InventoryMovement{},
		&APIKey{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
