package database

import (
	"time"

	"example.com/backstage/services/warehouse/internal/metrics"

	"gorm.io/gorm"
)

const startTimeKey = "metrics:start_time"

// RegisterHooks times every create/query/update/delete/raw statement into the metrics collector
func RegisterHooks(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("metrics:before_create", markStart); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("metrics:after_create", record("insert")); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("metrics:before_query", markStart); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("metrics:after_query", record("select")); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("metrics:before_update", markStart); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("metrics:after_update", record("update")); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("metrics:before_delete", markStart); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("metrics:after_delete", record("delete")); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("metrics:before_raw", markStart); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("metrics:after_raw", record("raw"))
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func record(kind string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		var elapsed time.Duration
		if start, ok := db.InstanceGet(startTimeKey); ok {
			elapsed = time.Since(start.(time.Time))
		}
		success := db.Error == nil || db.Error == gorm.ErrRecordNotFound
		metrics.GetMetricsCollector().RecordDatabaseQuery(kind, success, elapsed)
	}
}
