package services

import (
	"context"
	"strings"

	"example.com/backstage/services/warehouse/internal/cache"
	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/rs/zerolog/log"
)

// CreateCategory returns the category called name, creating it if needed
func (s *WarehouseService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErrorf("category name is required")
	}

	var category *models.Category
	err := s.inTx(ctx, "create-category", func(repos *repositories.Repositories, fx *effects) error {
		var err error
		category, err = repos.Categories.GetOrCreate(ctx, name)
		fx.dirty = true
		return err
	})
	return category, err
}

// CreateProductInput is the admin payload for a new product
type CreateProductInput struct {
	Name              string `json:"name" binding:"required,max=255"`
	Category          string `json:"category" binding:"required,max=100"`
	AvailableQuantity int64  `json:"available_quantity" binding:"gte=0"`
}

// CreateProduct creates a product, creating its category on first use
func (s *WarehouseService) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Category) == "" {
		return nil, validationErrorf("name and category are required")
	}
	if in.AvailableQuantity < 0 {
		return nil, validationErrorf("available_quantity cannot be negative")
	}

	var product *models.Product
	err := s.inTx(ctx, "create-product", func(repos *repositories.Repositories, fx *effects) error {
		category, err := repos.Categories.GetOrCreate(ctx, strings.TrimSpace(in.Category))
		if err != nil {
			return err
		}
		product = &models.Product{
			Name:              strings.TrimSpace(in.Name),
			CategoryID:        category.ID,
			Category:          category,
			AvailableQuantity: in.AvailableQuantity,
		}
		if err := repos.Products.Create(ctx, product); err != nil {
			return classify(err, "product")
		}
		fx.indexProduct(product.ID)
		return nil
	})
	return product, err
}

// ListProducts returns one page of products
func (s *WarehouseService) ListProducts(ctx context.Context, page repositories.Page) ([]models.Product, int64, error) {
	var (
		products []models.Product
		total    int64
	)
	err := s.read(ctx, "list-products", func(ctx context.Context) error {
		var err error
		products, total, err = s.repos.Products.List(ctx, page)
		return err
	})
	return products, total, err
}

// CategoryStock returns every category with its product count
func (s *WarehouseService) CategoryStock(ctx context.Context) ([]repositories.CategoryStock, error) {
	var stock []repositories.CategoryStock
	if err := s.cache.Get(ctx, cache.CategoryStockKey, &stock); err == nil {
		s.metrics.IncrementCounter("cache_hits")
		return stock, nil
	}

	err := s.read(ctx, "category-stock", func(ctx context.Context) error {
		var err error
		stock, err = s.repos.Categories.Stock(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cache.CategoryStockKey, stock); err != nil && s.cache.Enabled() {
		log.Warn().Err(err).Msg("Failed to cache category stock")
	}
	return stock, nil
}

// IngestQR applies a scanned inventory payload: the category and product are
// created on first sight, and later scans add to available stock. Both
// paths recompute product status in the same write.
func (s *WarehouseService) IngestQR(ctx context.Context, text string) (*models.Product, bool, error) {
	payload, err := ParseQRPayload(text)
	if err != nil {
		return nil, false, err
	}

	var (
		product *models.Product
		created bool
	)
	err = s.inTx(ctx, "ingest-qr", func(repos *repositories.Repositories, fx *effects) error {
		category, err := repos.Categories.GetOrCreate(ctx, payload.Category)
		if err != nil {
			return err
		}

		candidate := &models.Product{
			Name:              payload.Name,
			CategoryID:        category.ID,
			AvailableQuantity: payload.Quantity,
		}
		created, err = repos.Products.InsertIfAbsent(ctx, candidate)
		if err != nil {
			return err
		}

		productID := candidate.ID
		if !created {
			existing, err := repos.Products.GetByNameAndCategory(ctx, payload.Name, category.ID)
			if err != nil {
				return classify(err, "product")
			}
			productID = existing.ID
			if err := repos.Products.AddStock(ctx, productID, payload.Quantity); err != nil {
				return classify(err, "product")
			}
		}

		err = repos.Movements.Append(ctx, &models.InventoryMovement{
			ProductID: productID,
			Kind:      models.MovementRestock,
			Quantity:  payload.Quantity,
			Reference: "qr",
		})
		if err != nil {
			return err
		}

		product, err = repos.Products.GetByID(ctx, productID)
		if err != nil {
			return classify(err, "product")
		}

		fx.indexProduct(productID)
		fx.emit(messaging.EventProductRestocked, map[string]interface{}{
			"product_id": productID,
			"quantity":   payload.Quantity,
			"created":    created,
		})
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	log.Info().
		Uint("product_id", product.ID).
		Str("name", product.Name).
		Int64("quantity", payload.Quantity).
		Bool("created", created).
		Msg("QR payload ingested")
	return product, created, nil
}

// ProductMovements returns the most recent stock movements of a product
func (s *WarehouseService) ProductMovements(ctx context.Context, productID uint, limit int) ([]models.InventoryMovement, error) {
	var movements []models.InventoryMovement
	err := s.read(ctx, "product-movements", func(ctx context.Context) error {
		if _, err := s.repos.Products.GetByID(ctx, productID); err != nil {
			return classify(err, "product")
		}
		var err error
		movements, err = s.repos.Movements.ListByProduct(ctx, productID, limit)
		return err
	})
	return movements, err
}
