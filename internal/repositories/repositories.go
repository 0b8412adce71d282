package repositories

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Common repository errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrStaleWrite   = errors.New("row changed underneath the write")
	ErrDuplicateKey = errors.New("duplicate key violation")
)

// Page selects one page of a list query
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Size <= 0 {
		return db
	}
	return db.Offset(p.Offset()).Limit(p.Size)
}

// base carries the write and read handles every repository shares.
// Inside a transaction both point at the transaction.
type base struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func newBase(db, readOnlyDB *gorm.DB) base {
	if readOnlyDB == nil {
		readOnlyDB = db
	}
	return base{db: db, readOnlyDB: readOnlyDB}
}

func (b base) withTx(tx *gorm.DB) base {
	return base{db: tx, readOnlyDB: tx}
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrap(ErrDuplicateKey, msg)
	}
	return errors.Wrap(err, msg)
}

// Repositories bundles every repository over one pair of handles
type Repositories struct {
	Categories *CategoryRepository
	Products   *ProductRepository
	Trucks     *TruckRepository
	Employees  *EmployeeRepository
	Retailers  *RetailerRepository
	Orders     *OrderRepository
	Shipments  *ShipmentRepository
	Movements  *MovementRepository
	APIKeys    *APIKeyRepository
}

// New builds the repository set
func New(db, readOnlyDB *gorm.DB) *Repositories {
	return &Repositories{
		Categories: NewCategoryRepository(db, readOnlyDB),
		Products:   NewProductRepository(db, readOnlyDB),
		Trucks:     NewTruckRepository(db, readOnlyDB),
		Employees:  NewEmployeeRepository(db, readOnlyDB),
		Retailers:  NewRetailerRepository(db, readOnlyDB),
		Orders:     NewOrderRepository(db, readOnlyDB),
		Shipments:  NewShipmentRepository(db, readOnlyDB),
		Movements:  NewMovementRepository(db, readOnlyDB),
		APIKeys:    NewAPIKeyRepository(db, readOnlyDB),
	}
}

// WithTx returns the repository set bound to tx
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return New(tx, tx)
}
