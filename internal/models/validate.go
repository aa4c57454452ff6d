/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"fmt"

	"github.com/friendsincode/grimnir_player/internal/timecode"
)

// Validation sentinels. Definitions are checked where they are admitted
// (store writes, series edits, imports), never later: by the time
// occurrences exist they are known-valid.
var (
	// ErrMissingRecurrenceRule flags a definition without any rule; even
	// once needs an anchor date.
	ErrMissingRecurrenceRule = errors.New("definition has no recurrence rule")
	// ErrMissingRecurrenceEnd flags a daily or selectedDays definition
	// without an end date. Unbounded expansion is never allowed.
	ErrMissingRecurrenceEnd = errors.New("recurring definition has no end date")
	// ErrAmbiguousSelectedDays flags a selectedDays definition with an
	// empty weekday set. New definitions are rejected; records already
	// stored degrade to once at expansion with a warning.
	ErrAmbiguousSelectedDays = errors.New("selectedDays definition has no weekdays")
)

// Validate checks a definition against the admission invariants:
// parseable and strictly ordered times, a defined recurrence kind with
// the bounds it needs, and defined enum values throughout.
func (d *ScheduleDefinition) Validate() error {
	if d.PlaylistID == "" {
		return errors.New("definition has no playlist")
	}
	if _, _, err := timecode.ParseWindow(d.FromTime, d.ToTime); err != nil {
		return err
	}
	if !d.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", d.Priority)
	}
	if !d.EndPolicy.Valid() {
		return fmt.Errorf("unknown end policy %q", d.EndPolicy)
	}
	if !d.ScheduleType.Valid() {
		return fmt.Errorf("unknown schedule type %q", d.ScheduleType)
	}
	if !d.Recurrence.Valid() {
		return fmt.Errorf("unknown recurrence kind %q", d.Recurrence)
	}
	if d.RecurrenceRule == nil || d.RecurrenceRule.StartDate.IsZero() {
		return fmt.Errorf("%w: %s", ErrMissingRecurrenceRule, d.ID)
	}
	if d.Recurrence.IsSeries() {
		if d.RecurrenceRule.EndDate == nil {
			return fmt.Errorf("%w: %s", ErrMissingRecurrenceEnd, d.ID)
		}
		if d.RecurrenceRule.EndDate.Before(d.RecurrenceRule.StartDate) {
			return fmt.Errorf("definition %s ends before it starts", d.ID)
		}
	}
	if d.Recurrence == RecurrenceSelectedDays {
		if len(d.RecurrenceRule.ByWeekDay) == 0 {
			return fmt.Errorf("%w: %s", ErrAmbiguousSelectedDays, d.ID)
		}
		for _, wd := range d.RecurrenceRule.ByWeekDay {
			if !wd.Valid() {
				return fmt.Errorf("unknown weekday %q", wd)
			}
		}
	}
	return nil
}
