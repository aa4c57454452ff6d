/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"github.com/friendsincode/grimnir_player/internal/telemetry"
	"gorm.io/gorm"
)

const _startTime = "gorm:start_time"

// RegisterCallbacks registers telemetry callbacks for GORM operations.
func RegisterCallbacks(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("telemetry:before_query", startTimer); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("telemetry:after_query", observe("query")); err != nil {
		return err
	}

	if err := db.Callback().Create().Before("gorm:create").Register("telemetry:before_create", startTimer); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("telemetry:after_create", observe("create")); err != nil {
		return err
	}

	if err := db.Callback().Update().Before("gorm:update").Register("telemetry:before_update", startTimer); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("telemetry:after_update", observe("update")); err != nil {
		return err
	}

	if err := db.Callback().Delete().Before("gorm:delete").Register("telemetry:before_delete", startTimer); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("telemetry:after_delete", observe("delete")); err != nil {
		return err
	}

	return nil
}

// startTimer records the start time before a database operation.
func startTimer(db *gorm.DB) {
	db.InstanceSet(_startTime, time.Now())
}

// observe creates a callback that records metrics after a database operation.
func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		startTimeValue, exists := db.InstanceGet(_startTime)
		if !exists {
			return
		}

		startTime, ok := startTimeValue.(time.Time)
		if !ok {
			return
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		telemetry.DatabaseQueryDuration.WithLabelValues(operation, tableName).Observe(time.Since(startTime).Seconds())

		// ErrRecordNotFound is an expected outcome, not an error.
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, "query_error").Inc()
		}
	}
}

// UpdateConnectionMetrics updates connection pool metrics.
// Should be called periodically (e.g., every 30 seconds).
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	stats := sqlDB.Stats()
	telemetry.DatabaseConnectionsActive.Set(float64(stats.OpenConnections))
}
