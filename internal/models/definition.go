/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// Priority orders overlapping schedules on a track.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Rank maps a priority to its arbitration weight. Higher wins.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	}
	return -1
}

// Valid reports whether p is one of the defined priority levels.
func (p Priority) Valid() bool { return p.Rank() >= 0 }

// Track is an independent scheduling lane. Arbitration is always scoped
// to a single track.
type Track string

const (
	TrackMain       Track = "main"
	TrackBackground Track = "background"
)

// Valid reports whether t is a defined track.
func (t Track) Valid() bool { return t == TrackMain || t == TrackBackground }

// Tracks lists all scheduling lanes, in evaluation order.
func Tracks() []Track { return []Track{TrackMain, TrackBackground} }

// RecurrenceKind selects how a definition expands into dated occurrences.
// The persisted value strings are load-bearing: existing records use
// exactly these spellings.
type RecurrenceKind string

const (
	RecurrenceOnce         RecurrenceKind = "once"
	RecurrenceDaily        RecurrenceKind = "daily"
	RecurrenceSelectedDays RecurrenceKind = "selectedDays"
)

// Valid reports whether k is a defined recurrence kind.
func (k RecurrenceKind) Valid() bool {
	return k == RecurrenceOnce || k == RecurrenceDaily || k == RecurrenceSelectedDays
}

// IsSeries reports whether k generates more than one occurrence.
func (k RecurrenceKind) IsSeries() bool {
	return k == RecurrenceDaily || k == RecurrenceSelectedDays
}

// EndPolicy controls how a schedule's nominal end snaps to content item
// boundaries. Persisted value strings are load-bearing (lowercase).
type EndPolicy string

const (
	EndPolicyHardCut         EndPolicy = "hardcut"
	EndPolicySeqBoundEarly   EndPolicy = "seqboundearly"
	EndPolicySeqBoundLate    EndPolicy = "seqboundlate"
	EndPolicySeqBoundNearest EndPolicy = "seqboundnearest"
)

// Valid reports whether e is a defined end policy.
func (e EndPolicy) Valid() bool {
	switch e {
	case EndPolicyHardCut, EndPolicySeqBoundEarly, EndPolicySeqBoundLate, EndPolicySeqBoundNearest:
		return true
	}
	return false
}

// Weekday is the wire token for a day-of-week selection.
type Weekday string

const (
	WeekdaySun Weekday = "Sun"
	WeekdayMon Weekday = "Mon"
	WeekdayTue Weekday = "Tue"
	WeekdayWed Weekday = "Wed"
	WeekdayThu Weekday = "Thu"
	WeekdayFri Weekday = "Fri"
	WeekdaySat Weekday = "Sat"
)

var weekdayIndex = map[Weekday]time.Weekday{
	WeekdaySun: time.Sunday,
	WeekdayMon: time.Monday,
	WeekdayTue: time.Tuesday,
	WeekdayWed: time.Wednesday,
	WeekdayThu: time.Thursday,
	WeekdayFri: time.Friday,
	WeekdaySat: time.Saturday,
}

// Valid reports whether w is one of the seven wire tokens.
func (w Weekday) Valid() bool {
	_, ok := weekdayIndex[w]
	return ok
}

// Time converts w to the stdlib weekday. Panics on invalid tokens;
// validation happens at the admission boundary.
func (w Weekday) Time() time.Weekday { return weekdayIndex[w] }

// WeekdayOf converts a stdlib weekday to its wire token.
func WeekdayOf(d time.Weekday) Weekday {
	switch d {
	case time.Sunday:
		return WeekdaySun
	case time.Monday:
		return WeekdayMon
	case time.Tuesday:
		return WeekdayTue
	case time.Wednesday:
		return WeekdayWed
	case time.Thursday:
		return WeekdayThu
	case time.Friday:
		return WeekdayFri
	default:
		return WeekdaySat
	}
}

// RecurrenceRule bounds a recurring definition. StartDate doubles as the
// anchor date for once definitions. Dates are UTC midnights.
type RecurrenceRule struct {
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	ByWeekDay []Weekday  `json:"byWeekDay,omitempty"`
}

// ScheduleDefinition is a user-authored scheduling rule: a playlist bound
// to a repeating time window on one track. Definitions are the only
// authoritative state; occurrences are derived from them on demand.
type ScheduleDefinition struct {
	ID             string          `gorm:"type:uuid;primaryKey" json:"id"`
	PlaylistID     string          `gorm:"type:uuid;index" json:"playlistId"`
	PrePlaylistID  *string         `gorm:"type:uuid" json:"prePlaylistId,omitempty"`
	PostPlaylistID *string         `gorm:"type:uuid" json:"postPlaylistId,omitempty"`
	Title          string          `gorm:"type:varchar(255)" json:"title"`
	FromTime       string          `gorm:"type:varchar(8)" json:"fromTime"`
	ToTime         string          `gorm:"type:varchar(8)" json:"toTime"`
	Recurrence     RecurrenceKind  `gorm:"type:varchar(16)" json:"recurrenceKind"`
	RecurrenceRule *RecurrenceRule `gorm:"type:jsonb;serializer:json" json:"recurrenceRule,omitempty"`

	Shuffle                     bool      `json:"shuffle"`
	Loop                        bool      `json:"loop"`
	Priority                    Priority  `gorm:"type:varchar(8);index" json:"priority"`
	EndPolicy                   EndPolicy `gorm:"type:varchar(16)" json:"endPolicy"`
	HardCutIn                   bool      `json:"hardCutIn"`
	PreferHardCutIn             bool      `json:"preferHardCutIn"`
	KeepToScheduleWhenPreempted bool      `json:"keepToScheduleWhenPreempted"`

	ScheduleType   Track  `gorm:"type:varchar(16);index" json:"scheduleType"`
	BaseScheduleID string `gorm:"type:uuid;index" json:"baseScheduleId,omitempty"`
	Deleted        bool   `gorm:"index" json:"deleted"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (ScheduleDefinition) TableName() string { return "schedule_definitions" }

// AnchorDate returns the definition's start date, or zero when no rule is
// attached.
func (d *ScheduleDefinition) AnchorDate() time.Time {
	if d.RecurrenceRule == nil {
		return time.Time{}
	}
	return d.RecurrenceRule.StartDate
}

// SeriesID returns the identifier binding this definition's occurrences:
// the explicit base reference when present, the definition's own id
// otherwise.
func (d *ScheduleDefinition) SeriesID() string {
	if d.BaseScheduleID != "" {
		return d.BaseScheduleID
	}
	return d.ID
}

// DateOnly is the civil-date layout used in occurrence ids and the API.
const DateOnly = "2006-01-02"

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
