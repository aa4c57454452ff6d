/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package series implements edit and delete semantics for schedule
// series: mutating "this occurrence only" or "the whole series" without
// corrupting the identity of sibling occurrences.
package series

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/models"
)

// Mode selects the scope of an edit.
type Mode string

const (
	// ModeSingle touches only the targeted occurrence.
	ModeSingle Mode = "single"
	// ModeAll rewrites the whole series the target belongs to.
	ModeAll Mode = "all"
)

// Valid reports whether m is a defined edit mode.
func (m Mode) Valid() bool { return m == ModeSingle || m == ModeAll }

// ErrUnknownMode is returned for edit modes other than single or all.
var ErrUnknownMode = errors.New("unknown edit mode")

// ErrInvalidReplacement flags a replacement definition that fails
// admission validation. The underlying validation error is wrapped
// alongside it.
var ErrInvalidReplacement = errors.New("invalid replacement definition")

// EditResult is the computed change set: occurrence ids to remove and
// definitions to create. The caller persists it; the editor itself
// never touches storage.
type EditResult struct {
	ToDelete []string
	ToCreate []models.ScheduleDefinition
}

// Editor computes series edits. It is the sole writer in the engine's
// concurrency model: every mutation of the definition set flows through
// an EditResult it produced.
type Editor struct {
	logger zerolog.Logger
	newID  func() string
}

// NewEditor creates an editor minting uuid identifiers.
func NewEditor(logger zerolog.Logger) *Editor {
	return &Editor{
		logger: logger.With().Str("component", "series_editor").Logger(),
		newID:  uuid.NewString,
	}
}

// ApplyEdit computes the delete/create set for editing target.
//
// single removes just the target occurrence and, when newDef is given,
// replaces it with a standalone once definition anchored at the
// target's date — the currently selected date, never the series'
// original start. Sibling occurrences are untouched.
//
// all removes every occurrence sharing the target's series and, when
// newDef is given, creates a brand-new series under a freshly minted
// id. The old series id is never reused, so occurrences generated
// before the edit cannot alias the new ones.
//
// newDef is validated here, at the admission boundary; invalid
// definitions never reach expansion.
func (e *Editor) ApplyEdit(occs []models.Occurrence, target models.Occurrence, mode Mode, newDef *models.ScheduleDefinition) (EditResult, error) {
	switch mode {
	case ModeSingle:
		return e.editSingle(target, newDef)
	case ModeAll:
		return e.editAll(occs, target, newDef)
	default:
		return EditResult{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// ApplyDelete is ApplyEdit with no replacement definition.
func (e *Editor) ApplyDelete(occs []models.Occurrence, target models.Occurrence, mode Mode) (EditResult, error) {
	return e.ApplyEdit(occs, target, mode, nil)
}

func (e *Editor) editSingle(target models.Occurrence, newDef *models.ScheduleDefinition) (EditResult, error) {
	result := EditResult{ToDelete: []string{target.ID}}
	if newDef == nil {
		return result, nil
	}

	def := *newDef
	def.ID = e.newID()
	def.BaseScheduleID = ""
	def.Recurrence = models.RecurrenceOnce
	def.RecurrenceRule = &models.RecurrenceRule{StartDate: models.Day(target.Date)}
	def.Deleted = false
	if err := def.Validate(); err != nil {
		return EditResult{}, fmt.Errorf("%w: %w", ErrInvalidReplacement, err)
	}

	e.logger.Info().
		Str("target", target.ID).
		Str("replacement", def.ID).
		Msg("single occurrence replaced with standalone definition")
	result.ToCreate = []models.ScheduleDefinition{def}
	return result, nil
}

func (e *Editor) editAll(occs []models.Occurrence, target models.Occurrence, newDef *models.ScheduleDefinition) (EditResult, error) {
	seriesID := target.SeriesID()

	var result EditResult
	for _, occ := range occs {
		if occ.SeriesID() == seriesID {
			result.ToDelete = append(result.ToDelete, occ.ID)
		}
	}
	sort.Strings(result.ToDelete)

	if newDef == nil {
		return result, nil
	}

	def := *newDef
	def.ID = e.newID()
	def.Deleted = false
	if def.Recurrence.IsSeries() {
		def.BaseScheduleID = def.ID
	} else {
		def.BaseScheduleID = ""
	}
	if err := def.Validate(); err != nil {
		return EditResult{}, fmt.Errorf("%w: %w", ErrInvalidReplacement, err)
	}

	e.logger.Info().
		Str("series", seriesID).
		Str("replacement", def.ID).
		Int("removed", len(result.ToDelete)).
		Msg("series rewritten under fresh identity")
	result.ToCreate = []models.ScheduleDefinition{def}
	return result, nil
}
