package repositories

import (
	"context"

	"example.com/backstage/services/warehouse/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// statusExpr recomputes products.status in the same statement that moves the counters.
// Column references in a SET list see the pre-update row, so the pending
// adjustments are added explicitly.
func statusExpr(requiredDelta, availableDelta int64) clause.Expr {
	return gorm.Expr(
		"CASE WHEN total_required_quantity + ? > available_quantity + ? THEN ? ELSE ? END",
		requiredDelta, availableDelta, string(models.ProductOnDemand), string(models.ProductSufficient),
	)
}

// CategoryRepository provides access to categories
type CategoryRepository struct {
	base
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db, readOnlyDB *gorm.DB) *CategoryRepository {
	return &CategoryRepository{base: newBase(db, readOnlyDB)}
}

// WithTx binds the repository to tx
func (r *CategoryRepository) WithTx(tx *gorm.DB) *CategoryRepository {
	return &CategoryRepository{base: r.withTx(tx)}
}

// GetOrCreate returns the category called name, inserting it if needed.
// Concurrent callers converge on the same row through the unique name index.
func (r *CategoryRepository) GetOrCreate(ctx context.Context, name string) (*models.Category, error) {
	category := models.Category{Name: name}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&category).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert category")
	}

	if err := r.db.WithContext(ctx).Where("name = ?", name).Take(&category).Error; err != nil {
		return nil, translate(err, "failed to load category")
	}
	return &category, nil
}

// CategoryStock is a category with the number of products in it
type CategoryStock struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Stock returns every category with its product count
func (r *CategoryRepository) Stock(ctx context.Context) ([]CategoryStock, error) {
	var rows []CategoryStock
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.Category{}).
		Select("categories.id, categories.name, COUNT(products.id) AS value").
		Joins("LEFT JOIN products ON products.category_id = categories.id").
		Group("categories.id, categories.name").
		Order("categories.name").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate category stock")
	}
	return rows, nil
}

// ProductRepository provides access to products and their aggregates
type ProductRepository struct {
	base
}

// NewProductRepository creates a new product repository
func NewProductRepository(db, readOnlyDB *gorm.DB) *ProductRepository {
	return &ProductRepository{base: newBase(db, readOnlyDB)}
}

// WithTx binds the repository to tx
func (r *ProductRepository) WithTx(tx *gorm.DB) *ProductRepository {
	return &ProductRepository{base: r.withTx(tx)}
}

// Create inserts a product with its status derived from the initial counters
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	product.Status = models.DeriveProductStatus(product.TotalRequiredQuantity, product.AvailableQuantity)
	return translate(r.db.WithContext(ctx).Create(product).Error, "failed to create product")
}

// InsertIfAbsent inserts product unless (name, category) already exists.
// It reports whether this call created the row.
func (r *ProductRepository) InsertIfAbsent(ctx context.Context, product *models.Product) (bool, error) {
	product.Status = models.DeriveProductStatus(product.TotalRequiredQuantity, product.AvailableQuantity)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}, {Name: "category_id"}},
			DoNothing: true,
		}).
		Create(product)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to insert product")
	}
	return res.RowsAffected == 1, nil
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Preload("Category").Take(&product, id).Error
	if err != nil {
		return nil, translate(err, "failed to get product")
	}
	return &product, nil
}

// GetByNameAndCategory gets a product by its natural key
func (r *ProductRepository) GetByNameAndCategory(ctx context.Context, name string, categoryID uint) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("name = ? AND category_id = ?", name, categoryID).
		Take(&product).Error
	if err != nil {
		return nil, translate(err, "failed to get product by name")
	}
	return &product, nil
}

// List returns products ordered by name
func (r *ProductRepository) List(ctx context.Context, page Page) ([]models.Product, int64, error) {
	var (
		products []models.Product
		total    int64
	)
	q := r.readOnlyDB.WithContext(ctx).Model(&models.Product{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count products")
	}
	if err := page.apply(q.Preload("Category").Order("name, id")).Find(&products).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to list products")
	}
	return products, total, nil
}

// ApplyRequiredDelta moves total_required_quantity by delta and recomputes status atomically
func (r *ProductRepository) ApplyRequiredDelta(ctx context.Context, id uint, delta int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_required_quantity": gorm.Expr("total_required_quantity + ?", delta),
			"status":                  statusExpr(delta, 0),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to apply required delta")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordShipped adds delivered quantity to total_shipped
func (r *ProductRepository) RecordShipped(ctx context.Context, id uint, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_shipped": gorm.Expr("total_shipped + ?", qty),
			"status":        statusExpr(0, 0),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to record shipped quantity")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddStock increments available_quantity and recomputes status atomically
func (r *ProductRepository) AddStock(ctx context.Context, id uint, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"available_quantity": gorm.Expr("available_quantity + ?", qty),
			"status":             statusExpr(0, qty),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to add stock")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RequiredTotal is the recomputed active demand for one product
type RequiredTotal struct {
	ProductID uint
	Stored    int64
	Actual    int64
}

// AuditRequiredTotals recomputes Σ active required_qty per product and
// returns only the products whose stored aggregate disagrees
func (r *ProductRepository) AuditRequiredTotals(ctx context.Context) ([]RequiredTotal, error) {
	var rows []RequiredTotal
	err := r.readOnlyDB.WithContext(ctx).
		Table("products").
		Select(`products.id AS product_id,
			products.total_required_quantity AS stored,
			COALESCE(SUM(orders.required_qty), 0) AS actual`).
		Joins("LEFT JOIN orders ON orders.product_id = products.id AND orders.status IN ?",
			[]string{string(models.OrderPending), string(models.OrderAllocated)}).
		Group("products.id, products.total_required_quantity").
		Having("products.total_required_quantity <> COALESCE(SUM(orders.required_qty), 0)").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to audit required totals")
	}
	return rows, nil
}

// RepairRequiredTotal overwrites a drifted aggregate with its recomputed value
func (r *ProductRepository) RepairRequiredTotal(ctx context.Context, id uint, stored, actual int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND total_required_quantity = ?", id, stored).
		Updates(map[string]interface{}{
			"total_required_quantity": actual,
			"status":                  statusExpr(actual-stored, 0),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to repair required total")
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}
