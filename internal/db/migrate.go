/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/grimnir_player/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Schedule definitions and series tombstones
		&models.ScheduleDefinition{},
		&models.OccurrenceExclusion{},

		// Content catalog
		&models.Sequence{},
		&models.Playlist{},
		&models.PlaylistItem{},

		// Access control
		&models.APIKey{},
	); err != nil {
		return err
	}

	if err := applyPostgresDefinitionGuards(database); err != nil {
		return err
	}
	if err := normalizeLegacyTokens(database); err != nil {
		return err
	}

	return nil
}

// applyPostgresDefinitionGuards installs CHECK constraints that keep the
// enumerated columns inside their wire token sets. Imports from legacy
// systems bypass the Go validator, so the database enforces the tokens too.
func applyPostgresDefinitionGuards(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	guards := []struct {
		name  string
		check string
	}{
		{"chk_schedule_definitions_priority", "priority IN ('low', 'normal', 'high')"},
		{"chk_schedule_definitions_end_policy", "end_policy IN ('hardcut', 'seqboundearly', 'seqboundlate', 'seqboundnearest')"},
		{"chk_schedule_definitions_recurrence", "recurrence IN ('once', 'daily', 'selectedDays')"},
		{"chk_schedule_definitions_track", "schedule_type IN ('main', 'background')"},
	}

	for _, g := range guards {
		drop := fmt.Sprintf("ALTER TABLE schedule_definitions DROP CONSTRAINT IF EXISTS %s", g.name)
		if err := database.Exec(drop).Error; err != nil {
			return fmt.Errorf("drop constraint %s: %w", g.name, err)
		}
		add := fmt.Sprintf("ALTER TABLE schedule_definitions ADD CONSTRAINT %s CHECK (%s)", g.name, g.check)
		if err := database.Exec(add).Error; err != nil {
			return fmt.Errorf("add constraint %s: %w", g.name, err)
		}
	}

	return nil
}

// normalizeLegacyTokens rewrites token spellings left behind by older
// importers. The desktop player stored end policies in mixed case and
// priorities with surrounding whitespace.
func normalizeLegacyTokens(database *gorm.DB) error {
	if err := database.Exec("UPDATE schedule_definitions SET priority = LOWER(TRIM(priority)) WHERE priority <> LOWER(TRIM(priority))").Error; err != nil {
		return fmt.Errorf("normalize legacy priorities: %w", err)
	}
	if err := database.Exec("UPDATE schedule_definitions SET end_policy = ? WHERE LOWER(REPLACE(end_policy, '_', '')) = ? AND end_policy <> ?",
		models.EndPolicySeqBoundEarly, string(models.EndPolicySeqBoundEarly), models.EndPolicySeqBoundEarly).Error; err != nil {
		return fmt.Errorf("normalize legacy seqboundearly tokens: %w", err)
	}
	if err := database.Exec("UPDATE schedule_definitions SET end_policy = ? WHERE LOWER(REPLACE(end_policy, '_', '')) = ? AND end_policy <> ?",
		models.EndPolicySeqBoundLate, string(models.EndPolicySeqBoundLate), models.EndPolicySeqBoundLate).Error; err != nil {
		return fmt.Errorf("normalize legacy seqboundlate tokens: %w", err)
	}
	if err := database.Exec("UPDATE schedule_definitions SET end_policy = ? WHERE LOWER(REPLACE(end_policy, '_', '')) = ? AND end_policy <> ?",
		models.EndPolicySeqBoundNearest, string(models.EndPolicySeqBoundNearest), models.EndPolicySeqBoundNearest).Error; err != nil {
		return fmt.Errorf("normalize legacy seqboundnearest tokens: %w", err)
	}
	return nil
}
