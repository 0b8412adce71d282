package services

import (
	"context"
	"time"

	"example.com/backstage/services/warehouse/internal/cache"
	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/metrics"
	"example.com/backstage/services/warehouse/internal/repositories"
	"example.com/backstage/services/warehouse/internal/search"
	"example.com/backstage/services/warehouse/internal/tracing"

	"gorm.io/gorm"
)

// Dependencies are the collaborators of the warehouse service. Nil members
// fall back to disabled implementations.
type Dependencies struct {
	Cache       *cache.RedisCache
	Search      *search.ElasticClient
	Publisher   messaging.Publisher
	EventsQueue string
	Tracer      tracing.Tracer
	Metrics     *metrics.Metrics
	Allocator   Allocator
}

// WarehouseService is the single write path for warehouse state. Every
// mutation runs its cascades inside one database transaction.
type WarehouseService struct {
	db          *gorm.DB
	readOnlyDB  *gorm.DB
	repos       *repositories.Repositories
	cache       *cache.RedisCache
	search      *search.ElasticClient
	publisher   messaging.Publisher
	eventsQueue string
	tracer      tracing.Tracer
	metrics     *metrics.Metrics
	allocator   Allocator
	now         func() time.Time
}

// NewWarehouseService creates a new warehouse service
func NewWarehouseService(db, readOnlyDB *gorm.DB, deps Dependencies) *WarehouseService {
	if readOnlyDB == nil {
		readOnlyDB = db
	}
	if deps.Cache == nil {
		deps.Cache = cache.Disabled()
	}
	if deps.Search == nil {
		deps.Search = search.Disabled()
	}
	if deps.Publisher == nil {
		deps.Publisher = messaging.NoopPublisher{}
	}
	if deps.Tracer == nil {
		deps.Tracer = tracing.Disabled()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.GetMetricsCollector()
	}
	if deps.Allocator == nil {
		deps.Allocator = GreedyAllocator{}
	}

	return &WarehouseService{
		db:          db,
		readOnlyDB:  readOnlyDB,
		repos:       repositories.New(db, readOnlyDB),
		cache:       deps.Cache,
		search:      deps.Search,
		publisher:   deps.Publisher,
		eventsQueue: deps.EventsQueue,
		tracer:      deps.Tracer,
		metrics:     deps.Metrics,
		allocator:   deps.Allocator,
		now:         time.Now,
	}
}

// inTx runs fn in one database transaction traced as op. Post-commit
// effects run only when fn commits.
func (s *WarehouseService) inTx(ctx context.Context, op string, fn func(repos *repositories.Repositories, fx *effects) error) (err error) {
	ctx, trace := s.tracer.Begin(ctx, op)
	defer func() { trace.End(err) }()

	start := time.Now()
	fx := &effects{}

	endTx := trace.Segment("db-transaction")
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.repos.WithTx(tx), fx)
	})
	endTx()

	s.metrics.RecordOperation(op, start, err)
	if err != nil {
		return err
	}

	trace.Annotate("events", len(fx.events))
	endFlush := trace.Segment("post-commit")
	s.flush(ctx, fx)
	endFlush()
	return nil
}

// read runs a read-only operation with tracing and metrics
func (s *WarehouseService) read(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	ctx, trace := s.tracer.Begin(ctx, op)
	defer func() { trace.End(err) }()

	start := time.Now()
	err = fn(ctx)
	s.metrics.RecordOperation(op, start, err)
	return err
}
