/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/recurrence"
)

// Violation severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Violation types.
const (
	ViolationInvalidDefinition = "invalid_definition"
	ViolationTieOverlap        = "tie_overlap"
	ViolationShadowed          = "shadowed"
	ViolationPreempts          = "preempts"
)

// ValidationViolation describes one finding against a candidate
// definition.
type ValidationViolation struct {
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	Message     string         `json:"message"`
	StartsAt    time.Time      `json:"starts_at,omitempty"`
	EndsAt      time.Time      `json:"ends_at,omitempty"`
	AffectedIDs []string       `json:"affected_ids,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// ValidationResult is the full validation report for a candidate.
// Overlaps on a track are legal here; arbitration resolves them at
// playback. Valid only goes false for definitions that cannot be
// admitted at all.
type ValidationResult struct {
	Valid     bool                  `json:"valid"`
	Errors    []ValidationViolation `json:"errors"`
	Warnings  []ValidationViolation `json:"warnings"`
	Info      []ValidationViolation `json:"info"`
	CheckedAt time.Time             `json:"checked_at"`
}

// Validator checks candidate definitions against the current snapshot
// and reports how they would interact with what is already scheduled.
type Validator struct {
	builder *Builder
	logger  zerolog.Logger
}

// NewValidator creates a schedule validator.
func NewValidator(builder *Builder, logger zerolog.Logger) *Validator {
	return &Validator{
		builder: builder,
		logger:  logger.With().Str("component", "schedule_validator").Logger(),
	}
}

// ValidateDefinition reports how a candidate definition interacts with
// the current snapshot. Admission errors make the result invalid;
// overlap findings are advisory. The candidate's own occurrences (same
// definition or series) are never reported against it, so re-validating
// an existing definition after an edit stays clean.
func (v *Validator) ValidateDefinition(def *models.ScheduleDefinition) *ValidationResult {
	result := &ValidationResult{
		Valid:     true,
		Errors:    []ValidationViolation{},
		Warnings:  []ValidationViolation{},
		Info:      []ValidationViolation{},
		CheckedAt: time.Now(),
	}

	if err := def.Validate(); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationViolation{
			Type:     ViolationInvalidDefinition,
			Severity: SeverityError,
			Message:  err.Error(),
		})
		return result
	}

	snap := v.builder.Current()
	if snap == nil {
		return result
	}

	window := recurrence.Window{Start: snap.WindowStart, End: snap.WindowEnd}
	expander := recurrence.NewExpander(zerolog.Nop())
	candidates, _, err := expander.Expand(def, window)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationViolation{
			Type:     ViolationInvalidDefinition,
			Severity: SeverityError,
			Message:  err.Error(),
		})
		return result
	}

	for _, cand := range candidates {
		for _, other := range snap.Occurrences {
			if other.ScheduleType != cand.ScheduleType {
				continue
			}
			if other.DefinitionID == def.ID || other.SeriesID() == def.SeriesID() {
				continue
			}
			if !windowsOverlap(&cand, &other) {
				continue
			}
			result.append(overlapViolation(&cand, &other))
		}
	}

	v.logger.Debug().
		Str("definition_id", def.ID).
		Int("warnings", len(result.Warnings)).
		Int("info", len(result.Info)).
		Msg("definition validated")

	return result
}

func (r *ValidationResult) append(vio ValidationViolation) {
	switch vio.Severity {
	case SeverityError:
		r.Valid = false
		r.Errors = append(r.Errors, vio)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, vio)
	default:
		r.Info = append(r.Info, vio)
	}
}

// overlapViolation classifies one overlap. Equal priority is a warning:
// arbitration will break the tie deterministically, but the outcome
// depends on start order and cut-in flags, which operators tend not to
// intend. A priority difference is informational; preemption there is
// the feature working as designed.
func overlapViolation(cand, other *models.Occurrence) ValidationViolation {
	overlapStart := maxTime(cand.StartAt(), other.StartAt())
	overlapEnd := minTime(cand.EndAt(), other.EndAt())
	overlapMinutes := int(overlapEnd.Sub(overlapStart).Minutes())
	if overlapMinutes < 0 {
		overlapMinutes = 0
	}

	details := map[string]any{
		"overlap_start":   overlapStart,
		"overlap_end":     overlapEnd,
		"overlap_minutes": overlapMinutes,
		"track":           string(cand.ScheduleType),
		"other": map[string]any{
			"id":       other.ID,
			"title":    other.Title,
			"priority": string(other.Priority),
		},
	}

	candRank, otherRank := cand.Priority.Rank(), other.Priority.Rank()
	switch {
	case candRank == otherRank:
		return ValidationViolation{
			Type:     ViolationTieOverlap,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("overlaps %q from %s to %s at equal priority (%d minute overlap); the later starter wins only with hardCutIn set",
				other.Title, overlapStart.Format(time.RFC3339), overlapEnd.Format(time.RFC3339), overlapMinutes),
			StartsAt:    cand.StartAt(),
			EndsAt:      cand.EndAt(),
			AffectedIDs: []string{cand.ID, other.ID},
			Details:     details,
		}
	case candRank > otherRank:
		return ValidationViolation{
			Type:     ViolationPreempts,
			Severity: SeverityInfo,
			Message: fmt.Sprintf("will preempt lower-priority %q from %s to %s",
				other.Title, overlapStart.Format(time.RFC3339), overlapEnd.Format(time.RFC3339)),
			StartsAt:    cand.StartAt(),
			EndsAt:      cand.EndAt(),
			AffectedIDs: []string{cand.ID, other.ID},
			Details:     details,
		}
	default:
		return ValidationViolation{
			Type:     ViolationShadowed,
			Severity: SeverityInfo,
			Message: fmt.Sprintf("will be shadowed by higher-priority %q from %s to %s",
				other.Title, overlapStart.Format(time.RFC3339), overlapEnd.Format(time.RFC3339)),
			StartsAt:    cand.StartAt(),
			EndsAt:      cand.EndAt(),
			AffectedIDs: []string{cand.ID, other.ID},
			Details:     details,
		}
	}
}

// windowsOverlap checks if two occurrences overlap in time.
func windowsOverlap(a, b *models.Occurrence) bool {
	// a starts before b ends AND a ends after b starts
	return a.StartAt().Before(b.EndAt()) && a.EndAt().After(b.StartAt())
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
