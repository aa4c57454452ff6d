/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule persists definitions and materializes them into the
// occurrence snapshot the engine arbitrates over.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_player/internal/cache"
	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/series"
)

var (
	// ErrDefinitionNotFound indicates the definition was not found.
	ErrDefinitionNotFound = errors.New("definition not found")
)

// Publisher is the event fanout surface the store needs. Both the
// in-process bus and the NATS bridge satisfy it.
type Publisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// Store owns the definition table. All writes flow through it so that
// cache invalidation and change events stay consistent with the data.
type Store struct {
	db     *gorm.DB
	cache  *cache.Cache // nil when caching is off
	bus    Publisher
	editor *series.Editor
	logger zerolog.Logger
}

// NewStore creates a definition store.
func NewStore(db *gorm.DB, c *cache.Cache, bus Publisher, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		cache:  c,
		bus:    bus,
		editor: series.NewEditor(logger),
		logger: logger.With().Str("component", "schedule_store").Logger(),
	}
}

// CreateDefinition validates and stores a new definition.
func (s *Store) CreateDefinition(ctx context.Context, def *models.ScheduleDefinition) error {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if def.Recurrence.IsSeries() && def.BaseScheduleID == "" {
		def.BaseScheduleID = def.ID
	}

	if err := def.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(def).Error; err != nil {
		return fmt.Errorf("create definition: %w", err)
	}

	s.invalidate(ctx)
	s.publish(events.EventDefinitionCreated, def)

	s.logger.Info().
		Str("definition_id", def.ID).
		Str("title", def.Title).
		Str("track", string(def.ScheduleType)).
		Str("recurrence", string(def.Recurrence)).
		Msg("definition created")

	return nil
}

// GetDefinition retrieves a definition by ID, soft-deleted ones included.
func (s *Store) GetDefinition(ctx context.Context, id string) (*models.ScheduleDefinition, error) {
	var def models.ScheduleDefinition
	if err := s.db.WithContext(ctx).First(&def, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("query definition: %w", err)
	}

	return &def, nil
}

// ListDefinitions lists all live definitions.
func (s *Store) ListDefinitions(ctx context.Context) ([]models.ScheduleDefinition, error) {
	if s.cache != nil {
		if defs, found := s.cache.GetDefinitionList(ctx); found {
			return defs, nil
		}
	}

	var defs []models.ScheduleDefinition
	if err := s.db.WithContext(ctx).
		Where("deleted = ?", false).
		Order("created_at ASC").
		Find(&defs).Error; err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.SetDefinitionList(ctx, defs)
	}

	return defs, nil
}

// UpdateDefinition replaces a definition's user-editable fields. The
// identity fields (id, base schedule id) never change through here;
// series edits that alter identity go through ApplyOccurrenceEdit.
func (s *Store) UpdateDefinition(ctx context.Context, def *models.ScheduleDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	var existing models.ScheduleDefinition
	if err := s.db.WithContext(ctx).First(&existing, "id = ?", def.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDefinitionNotFound
		}
		return fmt.Errorf("query definition: %w", err)
	}

	def.BaseScheduleID = existing.BaseScheduleID
	def.CreatedAt = existing.CreatedAt

	if err := s.db.WithContext(ctx).Save(def).Error; err != nil {
		return fmt.Errorf("update definition: %w", err)
	}

	s.invalidate(ctx)
	s.publish(events.EventDefinitionUpdated, def)

	s.logger.Info().Str("definition_id", def.ID).Msg("definition updated")
	return nil
}

// DeleteDefinition soft-deletes a definition. Expansion skips deleted
// records; they stay queryable for audit.
func (s *Store) DeleteDefinition(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.ScheduleDefinition{}).
		Where("id = ? AND deleted = ?", id, false).
		Update("deleted", true)
	if res.Error != nil {
		return fmt.Errorf("delete definition: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDefinitionNotFound
	}

	s.invalidate(ctx)
	s.bus.Publish(events.EventDefinitionDeleted, events.Payload{"definition_id": id})

	s.logger.Info().Str("definition_id", id).Msg("definition deleted")
	return nil
}

// ListExclusions returns every occurrence tombstone.
func (s *Store) ListExclusions(ctx context.Context) ([]models.OccurrenceExclusion, error) {
	var excls []models.OccurrenceExclusion
	if err := s.db.WithContext(ctx).Find(&excls).Error; err != nil {
		return nil, fmt.Errorf("query exclusions: %w", err)
	}

	return excls, nil
}

// ApplyOccurrenceEdit edits or deletes one occurrence with the given
// scope and persists the resulting change set atomically.
//
// single on a generated series member tombstones just that occurrence;
// the rest of the series is untouched. single on a standalone occurrence
// soft-deletes its definition. all soft-deletes every definition in the
// target's series and clears the series' tombstones, since nothing is
// left for them to suppress. Replacement definitions, when the edit
// carries one, are created in the same transaction.
//
// occs is the current occurrence set; the editor needs it to enumerate
// series members. The returned EditResult reports what changed.
func (s *Store) ApplyOccurrenceEdit(ctx context.Context, occs []models.Occurrence, target models.Occurrence, mode series.Mode, newDef *models.ScheduleDefinition) (series.EditResult, error) {
	result, err := s.editor.ApplyEdit(occs, target, mode, newDef)
	if err != nil {
		return series.EditResult{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch mode {
		case series.ModeSingle:
			if err := applySingleDelete(tx, target); err != nil {
				return err
			}
		case series.ModeAll:
			if err := applySeriesDelete(tx, target.SeriesID()); err != nil {
				return err
			}
		}

		for i := range result.ToCreate {
			if err := tx.Create(&result.ToCreate[i]).Error; err != nil {
				return fmt.Errorf("create replacement definition: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return series.EditResult{}, err
	}

	s.invalidate(ctx)
	s.publish(events.EventSeriesEdited, map[string]any{
		"series_id": target.SeriesID(),
		"target":    target.ID,
		"mode":      string(mode),
		"removed":   len(result.ToDelete),
		"created":   len(result.ToCreate),
	})

	s.logger.Info().
		Str("target", target.ID).
		Str("mode", string(mode)).
		Int("removed", len(result.ToDelete)).
		Int("created", len(result.ToCreate)).
		Msg("occurrence edit applied")

	return result, nil
}

// applySingleDelete removes one occurrence: a tombstone for generated
// series members, a definition soft-delete for standalone ones.
func applySingleDelete(tx *gorm.DB, target models.Occurrence) error {
	if target.ID != target.DefinitionID {
		excl := models.OccurrenceExclusion{
			OccurrenceID: target.ID,
			SeriesID:     target.SeriesID(),
			Date:         target.Date,
		}
		if err := tx.Where(models.OccurrenceExclusion{OccurrenceID: excl.OccurrenceID}).
			FirstOrCreate(&excl).Error; err != nil {
			return fmt.Errorf("create exclusion: %w", err)
		}
		return nil
	}

	if err := tx.Model(&models.ScheduleDefinition{}).
		Where("id = ?", target.DefinitionID).
		Update("deleted", true).Error; err != nil {
		return fmt.Errorf("soft-delete definition: %w", err)
	}
	return nil
}

// applySeriesDelete soft-deletes all of a series' definitions and drops
// its tombstones.
func applySeriesDelete(tx *gorm.DB, seriesID string) error {
	if err := tx.Model(&models.ScheduleDefinition{}).
		Where("id = ? OR base_schedule_id = ?", seriesID, seriesID).
		Update("deleted", true).Error; err != nil {
		return fmt.Errorf("soft-delete series: %w", err)
	}

	if err := tx.Delete(&models.OccurrenceExclusion{}, "series_id = ?", seriesID).Error; err != nil {
		return fmt.Errorf("clear series exclusions: %w", err)
	}
	return nil
}

func (s *Store) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.InvalidateSchedule(ctx)
	}
}

func (s *Store) publish(eventType events.EventType, def any) {
	switch d := def.(type) {
	case *models.ScheduleDefinition:
		s.bus.Publish(eventType, events.Payload{
			"definition_id": d.ID,
			"title":         d.Title,
			"track":         string(d.ScheduleType),
		})
	case map[string]any:
		s.bus.Publish(eventType, events.Payload(d))
	}
}
