package services

import (
	"context"

	"example.com/backstage/services/warehouse/internal/cache"
	"example.com/backstage/services/warehouse/internal/messaging"

	"github.com/rs/zerolog/log"
)

type requiredDelta struct {
	cascade string
	delta   int64
}

// effects collects what a transaction wants done once it has committed.
// Nothing in here runs if the transaction rolls back.
type effects struct {
	events    []messaging.Event
	shipments []uint
	products  []uint
	deltas    []requiredDelta
	dirty     bool
}

func (fx *effects) emit(eventType string, data interface{}) {
	fx.events = append(fx.events, messaging.NewEvent(eventType, data))
	fx.dirty = true
}

func (fx *effects) indexShipment(id uint) {
	fx.shipments = append(fx.shipments, id)
}

func (fx *effects) indexProduct(id uint) {
	for _, existing := range fx.products {
		if existing == id {
			return
		}
	}
	fx.products = append(fx.products, id)
}

func (fx *effects) recordDelta(cascade string, delta int64) {
	fx.deltas = append(fx.deltas, requiredDelta{cascade: cascade, delta: delta})
}

// flush runs the post-commit side effects. Failures are logged and never
// surface to the caller since the mutation has already committed.
func (s *WarehouseService) flush(ctx context.Context, fx *effects) {
	for _, d := range fx.deltas {
		s.metrics.RecordRequiredDelta(d.cascade, d.delta)
	}

	for _, event := range fx.events {
		if err := s.publisher.Publish(ctx, s.eventsQueue, event); err != nil {
			log.Error().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("Failed to publish event")
			s.metrics.IncrementCounter("events_publish_failed")
			continue
		}
		s.metrics.IncrementCounter("events_published")
	}

	if s.search.Enabled() {
		for _, id := range fx.shipments {
			shipment, err := s.repos.Shipments.GetByID(ctx, id)
			if err == nil {
				err = s.search.IndexShipment(ctx, shipment)
			}
			if err != nil {
				log.Error().Err(err).Uint("shipment_id", id).Msg("Failed to index shipment")
			}
		}
		for _, id := range fx.products {
			product, err := s.repos.Products.GetByID(ctx, id)
			if err == nil {
				err = s.search.IndexProduct(ctx, product)
			}
			if err != nil {
				log.Error().Err(err).Uint("product_id", id).Msg("Failed to index product")
			}
		}
	}

	if fx.dirty || len(fx.products) > 0 {
		if err := s.cache.Delete(ctx, cache.CountsKey, cache.CategoryStockKey); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate cache")
		}
	}
}
