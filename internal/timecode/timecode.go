/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timecode parses and formats the engine's HH:MM time
// representation. The standard form covers one day (hours 0-23); the
// extended form allows hours up to 168 so a window can run past midnight
// or across several days.
package timecode

import (
	"errors"
	"fmt"
	"time"
)

// Minutes counts elapsed minutes since local midnight of the owning
// occurrence's date. Extended values run past 1440 into following days.
type Minutes int

// ErrInvalidTime is returned for malformed or out-of-range time strings
// and for non-ordered from/to pairs. Inputs are never clamped.
var ErrInvalidTime = errors.New("invalid time")

const (
	maxStandardHour = 23
	maxExtendedHour = 168 // seven days

	// MaxExtended is the largest representable instant, 168:00.
	MaxExtended Minutes = maxExtendedHour * 60
)

// ParseStandard parses a same-day HH:MM string, hours 0-23.
func ParseStandard(s string) (Minutes, error) {
	return parse(s, maxStandardHour)
}

// ParseExtended parses an HH:MM string with hours 0-168. 24:00 and
// beyond express spans past midnight; 168:00 is the maximum instant.
func ParseExtended(s string) (Minutes, error) {
	m, err := parse(s, maxExtendedHour)
	if err != nil {
		return 0, err
	}
	if m > MaxExtended {
		return 0, fmt.Errorf("%w: %q exceeds seven days", ErrInvalidTime, s)
	}
	return m, nil
}

func parse(s string, maxHour int) (Minutes, error) {
	sep := -1
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			sep = i
			break
		}
	}
	if sep < 0 {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTime, s)
	}
	hh, mm := s[:sep], s[sep+1:]
	if len(hh) < 2 || len(hh) > 3 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q is not zero-padded HH:MM", ErrInvalidTime, s)
	}
	hour, ok := atoi(hh)
	if !ok || hour > maxHour {
		return 0, fmt.Errorf("%w: hour in %q outside 0-%d", ErrInvalidTime, s, maxHour)
	}
	minute, ok := atoi(mm)
	if !ok || minute > 59 {
		return 0, fmt.Errorf("%w: minutes in %q outside 0-59", ErrInvalidTime, s)
	}
	return Minutes(hour*60 + minute), nil
}

// atoi converts a small all-digit string. Signs, spaces and any other
// non-digit byte fail; this keeps "+1:30" and " 1:30" out.
func atoi(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}

// Format renders m back to zero-padded HH:MM. Format(Parse(s)) == s for
// all valid inputs.
func Format(m Minutes) string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// IsAfter reports whether to is strictly later than from. Equal times
// never form a valid window.
func IsAfter(from, to Minutes) bool { return to > from }

// ParseWindow parses a schedule's from/to pair: fromTime in standard
// form, toTime in extended form, ordered strictly.
func ParseWindow(fromTime, toTime string) (from, to Minutes, err error) {
	from, err = ParseStandard(fromTime)
	if err != nil {
		return 0, 0, fmt.Errorf("fromTime: %w", err)
	}
	to, err = ParseExtended(toTime)
	if err != nil {
		return 0, 0, fmt.Errorf("toTime: %w", err)
	}
	if !IsAfter(from, to) {
		return 0, 0, fmt.Errorf("%w: window %s..%s is not strictly ordered", ErrInvalidTime, fromTime, toTime)
	}
	return from, to, nil
}

// Duration converts m to a wall-clock duration.
func (m Minutes) Duration() time.Duration { return time.Duration(m) * time.Minute }

// Clock splits m into hour and minute components.
func (m Minutes) Clock() (hour, minute int) { return int(m) / 60, int(m) % 60 }
