/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package recurrence expands schedule definitions into dated
// occurrences. Expansion is pure and idempotent: identical inputs yield
// identical occurrence sets, so hosts may cache results freely.
package recurrence

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"

	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/timecode"
)

// Window bounds an expansion request. Both ends are inclusive calendar
// days (UTC midnights).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow normalizes arbitrary instants to a day-granular window.
func NewWindow(start, end time.Time) Window {
	return Window{Start: models.Day(start), End: models.Day(end)}
}

// contains reports whether the day d falls inside the window.
func (w Window) contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

var rruleWeekdays = map[models.Weekday]rrule.Weekday{
	models.WeekdaySun: rrule.SU,
	models.WeekdayMon: rrule.MO,
	models.WeekdayTue: rrule.TU,
	models.WeekdayWed: rrule.WE,
	models.WeekdayThu: rrule.TH,
	models.WeekdayFri: rrule.FR,
	models.WeekdaySat: rrule.SA,
}

// Expander materializes definitions into occurrences.
type Expander struct {
	logger zerolog.Logger
}

// NewExpander creates an expander.
func NewExpander(logger zerolog.Logger) *Expander {
	return &Expander{logger: logger.With().Str("component", "recurrence_expander").Logger()}
}

// Expand produces the dated occurrences def generates inside window,
// bounded by the definition's own start/end dates. A selectedDays rule
// with an empty weekday set degrades to once and is flagged with an
// AmbiguousSelectedDays diagnostic instead of silently producing zero
// results.
func (e *Expander) Expand(def *models.ScheduleDefinition, window Window) ([]models.Occurrence, []models.Diagnostic, error) {
	if def.RecurrenceRule == nil {
		return nil, nil, fmt.Errorf("%w: definition %s", models.ErrMissingRecurrenceRule, def.ID)
	}
	from, to, err := timecode.ParseWindow(def.FromTime, def.ToTime)
	if err != nil {
		return nil, nil, fmt.Errorf("definition %s: %w", def.ID, err)
	}

	var (
		dates  []time.Time
		diags  []models.Diagnostic
		series bool
	)
	switch def.Recurrence {
	case models.RecurrenceOnce:
		dates = e.anchorDates(def, window)

	case models.RecurrenceDaily:
		series = true
		dates, err = e.ruleDates(def, window, nil)
		if err != nil {
			return nil, nil, err
		}

	case models.RecurrenceSelectedDays:
		if len(def.RecurrenceRule.ByWeekDay) == 0 {
			diags = append(diags, models.Diagnostic{
				Code:    models.DiagAmbiguousSelectedDays,
				Ref:     def.ID,
				Message: "selectedDays rule has no weekdays, expanding as a single occurrence",
			})
			e.logger.Warn().Str("definition_id", def.ID).Msg("selectedDays rule without weekdays, degrading to once")
			dates = e.anchorDates(def, window)
			break
		}
		series = true
		byday := make([]rrule.Weekday, 0, len(def.RecurrenceRule.ByWeekDay))
		for _, wd := range def.RecurrenceRule.ByWeekDay {
			rd, ok := rruleWeekdays[wd]
			if !ok {
				return nil, nil, fmt.Errorf("definition %s: unknown weekday %q", def.ID, wd)
			}
			byday = append(byday, rd)
		}
		dates, err = e.ruleDates(def, window, byday)
		if err != nil {
			return nil, nil, err
		}

	default:
		return nil, nil, fmt.Errorf("definition %s: unknown recurrence kind %q", def.ID, def.Recurrence)
	}

	occs := make([]models.Occurrence, 0, len(dates))
	for _, d := range dates {
		occs = append(occs, build(def, models.Day(d), int(from), int(to), series))
	}
	return occs, diags, nil
}

// anchorDates implements the once behavior: a single occurrence on the
// rule's start date, dropped when the window does not cover it.
func (e *Expander) anchorDates(def *models.ScheduleDefinition, window Window) []time.Time {
	anchor := models.Day(def.RecurrenceRule.StartDate)
	if !window.contains(anchor) {
		return nil
	}
	return []time.Time{anchor}
}

// ruleDates evaluates a daily or weekly rule across the window.
func (e *Expander) ruleDates(def *models.ScheduleDefinition, window Window, byday []rrule.Weekday) ([]time.Time, error) {
	rule := def.RecurrenceRule
	if rule.EndDate == nil {
		return nil, fmt.Errorf("%w: definition %s", models.ErrMissingRecurrenceEnd, def.ID)
	}

	opt := rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: models.Day(rule.StartDate),
		Until:   models.Day(*rule.EndDate),
	}
	if len(byday) > 0 {
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = byday
	}
	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("definition %s: build rule: %w", def.ID, err)
	}

	// Between is inclusive on both ends and already clipped to
	// [Dtstart, Until], which gives window ∩ [startDate, endDate].
	return rr.Between(window.Start, window.End, true), nil
}

// build copies the definition's playback modifiers onto one dated
// occurrence. Generated series members get the derived
// "{baseId}-{date}" id; standalone once occurrences keep the
// definition's own id.
func build(def *models.ScheduleDefinition, date time.Time, fromMinutes, toMinutes int, series bool) models.Occurrence {
	id := def.ID
	base := def.BaseScheduleID
	if series {
		id = models.OccurrenceID{BaseID: def.ID, Date: date}.String()
		base = def.ID
	}
	return models.Occurrence{
		ID:             id,
		Date:           date,
		BaseScheduleID: base,
		DefinitionID:   def.ID,

		Title:          def.Title,
		PlaylistID:     def.PlaylistID,
		PrePlaylistID:  def.PrePlaylistID,
		PostPlaylistID: def.PostPlaylistID,

		FromTime:    def.FromTime,
		ToTime:      def.ToTime,
		FromMinutes: fromMinutes,
		ToMinutes:   toMinutes,

		Shuffle:                     def.Shuffle,
		Loop:                        def.Loop,
		Priority:                    def.Priority,
		EndPolicy:                   def.EndPolicy,
		HardCutIn:                   def.HardCutIn,
		PreferHardCutIn:             def.PreferHardCutIn,
		KeepToScheduleWhenPreempted: def.KeepToScheduleWhenPreempted,
		ScheduleType:                def.ScheduleType,
	}
}
