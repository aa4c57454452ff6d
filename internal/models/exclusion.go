/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// OccurrenceExclusion tombstones one generated occurrence that a
// single-mode series edit removed. Expansion re-derives the occurrence
// every time; the exclusion keeps it from surfacing without touching
// the rest of the series.
type OccurrenceExclusion struct {
	OccurrenceID string    `gorm:"primaryKey" json:"occurrenceId"`
	SeriesID     string    `gorm:"index" json:"seriesId"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName returns the table name for GORM.
func (OccurrenceExclusion) TableName() string { return "occurrence_exclusions" }
