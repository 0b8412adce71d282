package cmd

import (
	"os"
	"strings"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/cache"
	"example.com/backstage/services/warehouse/internal/database"
	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/metrics"
	"example.com/backstage/services/warehouse/internal/search"
	"example.com/backstage/services/warehouse/internal/services"
	"example.com/backstage/services/warehouse/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// app holds the process wide collaborators every command shares
type app struct {
	cfg        config.Config
	db         *gorm.DB
	readOnlyDB *gorm.DB
	cache      *cache.RedisCache
	search     *search.ElasticClient
	bus        *messaging.ServiceBusClient
	publisher  messaging.Publisher
	tracer     tracing.Tracer
	metrics    *metrics.Metrics
	prometheus *metrics.Prometheus
	service    *services.WarehouseService
}

// loadConfig reads configuration and applies its logging settings
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	configureLogging(cfg)
	return cfg, nil
}

func configureLogging(cfg config.Config) {
	if cfg.Environment == "development" || cfg.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level)); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}
}

// newApp connects the stores and builds the warehouse service. Optional
// backends that fail to start are logged and disabled.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		db:         db,
		readOnlyDB: readOnlyDB,
		metrics:    metrics.GetMetricsCollector(),
	}

	if cfg.MetricsEnabled {
		a.prometheus = metrics.NewPrometheus()
		a.metrics.AttachPrometheus(a.prometheus)
	}

	a.cache, err = cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		a.cache = cache.Disabled()
	}

	a.tracer, err = tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		a.tracer = tracing.Disabled()
	}

	a.search, err = search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		a.search = search.Disabled()
	}

	a.publisher = messaging.NoopPublisher{}
	if cfg.Azure.Enabled {
		a.bus, err = messaging.NewServiceBusClient(cfg.Azure)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Azure Service Bus, events will not be published")
		} else {
			a.publisher = a.bus
		}
	}

	a.service = services.NewWarehouseService(db, readOnlyDB, services.Dependencies{
		Cache:       a.cache,
		Search:      a.search,
		Publisher:   a.publisher,
		EventsQueue: cfg.Azure.EventsQueue,
		Tracer:      a.tracer,
		Metrics:     a.metrics,
	})

	return a, nil
}

// Close releases every connection the app opened
func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Service Bus client")
	}
	if err := a.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis client")
	}
	a.tracer.Close()

	if a.readOnlyDB != a.db {
		if err := database.Close(a.readOnlyDB); err != nil {
			log.Warn().Err(err).Msg("Failed to close read-only database")
		}
	}
	if err := database.Close(a.db); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}
