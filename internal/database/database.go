package database

import (
	"fmt"
	"strings"
	"time"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the write database and, when configured, a read-only replica.
// Without a replica DSN the write handle is returned for both.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, *gorm.DB, error) {
	db, err := open(cfg, cfg.DSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}

	if cfg.ReadOnlyDSN == "" {
		return db, db, nil
	}

	readOnlyDB, err := open(cfg, cfg.ReadOnlyDSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	return db, readOnlyDB, nil
}

// Open wires pool settings and metric hooks onto an already chosen dialector
func Open(dialector gorm.Dialector, cfg config.DatabaseConfig) (*gorm.DB, error) {
	level := logger.Error
	if cfg.Debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(&logAdapter{}, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying DB connection")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := RegisterHooks(db); err != nil {
		return nil, errors.Wrap(err, "failed to register metrics hooks")
	}

	return db, nil
}

func open(cfg config.DatabaseConfig, dsn string) (*gorm.DB, error) {
	return Open(postgres.Open(dsn), cfg)
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return models.SetupModels(db)
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// logAdapter routes GORM's logger through zerolog
type logAdapter struct{}

func (l *logAdapter) Printf(format string, args ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	log.Debug().Str("component", "gorm").Msg(msg)
}
