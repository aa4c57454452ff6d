/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package importer pulls schedule data out of the legacy players and
// into the catalog and definition tables. Two sources feed the same
// pipeline: the desktop player's on-disk SQLite file and the legacy
// server's Postgres schedule tables. Rows are validated on admission;
// invalid rows are skipped with a warning rather than aborting the run.
package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/telemetry"
)

// Source names the legacy system a payload came from.
type Source string

const (
	SourceDesktop Source = "desktop"
	SourceServer  Source = "server"
)

// Payload is the converted contents of one legacy source, ready to be
// applied to the database.
type Payload struct {
	Source      Source
	Sequences   []models.Sequence
	Playlists   []models.Playlist
	Items       []models.PlaylistItem
	Definitions []models.ScheduleDefinition
}

// SkippedRow records one legacy row the pipeline refused, with the
// reason it was refused.
type SkippedRow struct {
	Entity string `json:"entity"`
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// Report summarizes an import run.
type Report struct {
	Source      Source       `json:"source"`
	DryRun      bool         `json:"dryRun"`
	Sequences   int          `json:"sequences"`
	Playlists   int          `json:"playlists"`
	Items       int          `json:"items"`
	Definitions int          `json:"definitions"`
	Skipped     []SkippedRow `json:"skipped,omitempty"`
}

func (r *Report) skip(entity, ref, reason string) {
	r.Skipped = append(r.Skipped, SkippedRow{Entity: entity, Ref: ref, Reason: reason})
}

// idNamespace scopes deterministic import ids so reruns regenerate the
// same uuids and upserts stay idempotent.
var idNamespace = uuid.MustParse("9f2c1c4e-5a68-4d40-9b7e-3f1d2a6c8e01")

// stableID derives the uuid for a legacy row. The same source, entity,
// and legacy key always map to the same id.
func stableID(source Source, entity, legacyKey string) string {
	return uuid.NewSHA1(idNamespace, []byte(string(source)+":"+entity+":"+legacyKey)).String()
}

// Apply validates a payload and upserts it inside one transaction.
// Definitions failing admission validation are dropped from the write
// set and recorded on the report; catalog rows are written as-is since
// the resolver tolerates dangling references. With dryRun set nothing
// is written and the report describes what would have happened.
func Apply(ctx context.Context, database *gorm.DB, payload *Payload, dryRun bool, logger zerolog.Logger) (*Report, error) {
	report := &Report{Source: payload.Source, DryRun: dryRun}

	admitted := make([]models.ScheduleDefinition, 0, len(payload.Definitions))
	for i := range payload.Definitions {
		def := payload.Definitions[i]
		if err := def.Validate(); err != nil {
			report.skip("definition", def.Title, err.Error())
			logger.Warn().
				Str("definition", def.Title).
				Err(err).
				Msg("skipping invalid legacy definition")
			continue
		}
		admitted = append(admitted, def)
	}

	report.Sequences = len(payload.Sequences)
	report.Playlists = len(payload.Playlists)
	report.Items = len(payload.Items)
	report.Definitions = len(admitted)

	if dryRun {
		logger.Info().
			Str("source", string(payload.Source)).
			Int("sequences", report.Sequences).
			Int("playlists", report.Playlists).
			Int("definitions", report.Definitions).
			Int("skipped", len(report.Skipped)).
			Msg("dry run, nothing written")
		return report, nil
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(payload.Sequences) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"name":      gorm.Expr("excluded.name"),
					"length_ms": gorm.Expr("excluded.length_ms"),
				}),
			}).Create(&payload.Sequences).Error; err != nil {
				return fmt.Errorf("upsert sequences: %w", err)
			}
		}

		if len(payload.Playlists) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"name": gorm.Expr("excluded.name"),
				}),
			}).Create(&payload.Playlists).Error; err != nil {
				return fmt.Errorf("upsert playlists: %w", err)
			}

			// Item sets are replaced wholesale so reruns converge on
			// the legacy ordering instead of accumulating duplicates.
			for _, pl := range payload.Playlists {
				if err := tx.Where("playlist_id = ?", pl.ID).Delete(&models.PlaylistItem{}).Error; err != nil {
					return fmt.Errorf("clear playlist %s items: %w", pl.ID, err)
				}
			}
		}

		if len(payload.Items) > 0 {
			if err := tx.Create(&payload.Items).Error; err != nil {
				return fmt.Errorf("insert playlist items: %w", err)
			}
		}

		if len(admitted) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"playlist_id":      gorm.Expr("excluded.playlist_id"),
					"title":            gorm.Expr("excluded.title"),
					"from_time":        gorm.Expr("excluded.from_time"),
					"to_time":          gorm.Expr("excluded.to_time"),
					"recurrence":       gorm.Expr("excluded.recurrence"),
					"recurrence_rule":  gorm.Expr("excluded.recurrence_rule"),
					"priority":         gorm.Expr("excluded.priority"),
					"end_policy":       gorm.Expr("excluded.end_policy"),
					"schedule_type":    gorm.Expr("excluded.schedule_type"),
					"base_schedule_id": gorm.Expr("excluded.base_schedule_id"),
					"deleted":          gorm.Expr("excluded.deleted"),
				}),
			}).Create(&admitted).Error; err != nil {
				return fmt.Errorf("upsert definitions: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.ImportRowsTotal.WithLabelValues(string(payload.Source), "sequence").Add(float64(report.Sequences))
	telemetry.ImportRowsTotal.WithLabelValues(string(payload.Source), "playlist").Add(float64(report.Playlists))
	telemetry.ImportRowsTotal.WithLabelValues(string(payload.Source), "definition").Add(float64(report.Definitions))

	logger.Info().
		Str("source", string(payload.Source)).
		Int("sequences", report.Sequences).
		Int("playlists", report.Playlists).
		Int("items", report.Items).
		Int("definitions", report.Definitions).
		Int("skipped", len(report.Skipped)).
		Msg("import applied")

	return report, nil
}
