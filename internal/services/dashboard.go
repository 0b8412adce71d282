package services

import (
	"context"

	"example.com/backstage/services/warehouse/internal/cache"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Counts are the dashboard totals
type Counts struct {
	OrdersPlaced       int64 `json:"orders_placed"`
	PendingOrders      int64 `json:"pending_orders"`
	EmployeesAvailable int64 `json:"employees_available"`
	RetailersAvailable int64 `json:"retailers_available"`
}

// Counts returns the dashboard totals, served from cache when possible
func (s *WarehouseService) Counts(ctx context.Context) (*Counts, error) {
	var counts Counts
	if err := s.cache.Get(ctx, cache.CountsKey, &counts); err == nil {
		s.metrics.IncrementCounter("cache_hits")
		return &counts, nil
	}

	err := s.read(ctx, "counts", func(ctx context.Context) error {
		var err error
		if counts.OrdersPlaced, err = s.repos.Orders.Count(ctx, ""); err != nil {
			return err
		}
		if counts.PendingOrders, err = s.repos.Orders.Count(ctx, models.OrderPending); err != nil {
			return err
		}
		if counts.EmployeesAvailable, err = s.repos.Employees.Count(ctx); err != nil {
			return err
		}
		counts.RetailersAvailable, err = s.repos.Retailers.Count(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cache.CountsKey, counts); err != nil && s.cache.Enabled() {
		log.Warn().Err(err).Msg("Failed to cache counts")
	}
	return &counts, nil
}

// AuditReport lists products whose stored demand aggregate drifted from the
// sum of their active orders
type AuditReport struct {
	Drifted  []repositories.RequiredTotal `json:"drifted"`
	Repaired int                          `json:"repaired"`
}

// AuditAggregates recomputes each product's active demand from its orders
// and reports drift. With repair set, drifted aggregates are overwritten
// unless they moved again since the audit read them.
func (s *WarehouseService) AuditAggregates(ctx context.Context, repair bool) (*AuditReport, error) {
	report := &AuditReport{}
	err := s.read(ctx, "audit-aggregates", func(ctx context.Context) error {
		var err error
		report.Drifted, err = s.repos.Products.AuditRequiredTotals(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SetGauge("aggregate_drift_products", int64(len(report.Drifted)))
	for _, d := range report.Drifted {
		log.Warn().
			Uint("product_id", d.ProductID).
			Int64("stored", d.Stored).
			Int64("actual", d.Actual).
			Msg("Required quantity aggregate drifted")
	}

	if !repair {
		return report, nil
	}

	for _, d := range report.Drifted {
		err := s.inTx(ctx, "repair-aggregate", func(repos *repositories.Repositories, fx *effects) error {
			if err := repos.Products.RepairRequiredTotal(ctx, d.ProductID, d.Stored, d.Actual); err != nil {
				return err
			}
			fx.indexProduct(d.ProductID)
			return nil
		})
		if errors.Is(err, repositories.ErrStaleWrite) {
			log.Info().Uint("product_id", d.ProductID).Msg("Aggregate moved during audit, skipping repair")
			continue
		}
		if err != nil {
			return report, err
		}
		report.Repaired++
	}
	return report, nil
}

// Ping checks the stores the service depends on
func (s *WarehouseService) Ping(ctx context.Context) map[string]bool {
	health := map[string]bool{"database": true, "cache": true}

	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		health["database"] = false
	}
	if err := s.cache.Ping(ctx); err != nil {
		health["cache"] = false
	}

	for component, ok := range health {
		s.metrics.SetHealth(component, ok)
	}
	return health
}
