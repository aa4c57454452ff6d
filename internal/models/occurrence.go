/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"time"
)

// OccurrenceID is the derivation rule for generated occurrence
// identifiers: "{baseId}-{ISO date}". Series edits depend on being able
// to recompute it, so the projection is explicit rather than ad hoc.
type OccurrenceID struct {
	BaseID string
	Date   time.Time
}

// String renders the canonical id form.
func (id OccurrenceID) String() string {
	return fmt.Sprintf("%s-%s", id.BaseID, id.Date.UTC().Format(DateOnly))
}

// ParseOccurrenceID splits an occurrence id back into its base id and
// date. Returns false when s does not end in a "-YYYY-MM-DD" suffix.
func ParseOccurrenceID(s string) (OccurrenceID, bool) {
	const suffix = len("-2006-01-02")
	if len(s) <= suffix {
		return OccurrenceID{}, false
	}
	base, datePart := s[:len(s)-suffix], s[len(s)-suffix+1:]
	d, err := time.ParseInLocation(DateOnly, datePart, time.UTC)
	if err != nil {
		return OccurrenceID{}, false
	}
	return OccurrenceID{BaseID: base, Date: d}, true
}

// Occurrence is one concrete dated instance of a schedule definition.
// Occurrences are immutable once produced; they are regenerated whenever
// the owning definition or the expansion window changes, and only the
// expander produces them.
type Occurrence struct {
	ID             string    `json:"id"`
	Date           time.Time `json:"date"`
	BaseScheduleID string    `json:"baseScheduleId,omitempty"`
	DefinitionID   string    `json:"definitionId"`

	Title          string  `json:"title"`
	PlaylistID     string  `json:"playlistId"`
	PrePlaylistID  *string `json:"prePlaylistId,omitempty"`
	PostPlaylistID *string `json:"postPlaylistId,omitempty"`

	FromTime    string `json:"fromTime"`
	ToTime      string `json:"toTime"`
	FromMinutes int    `json:"fromMinutes"`
	ToMinutes   int    `json:"toMinutes"`

	Shuffle                     bool      `json:"shuffle"`
	Loop                        bool      `json:"loop"`
	Priority                    Priority  `json:"priority"`
	EndPolicy                   EndPolicy `json:"endPolicy"`
	HardCutIn                   bool      `json:"hardCutIn"`
	PreferHardCutIn             bool      `json:"preferHardCutIn"`
	KeepToScheduleWhenPreempted bool      `json:"keepToScheduleWhenPreempted"`
	ScheduleType                Track     `json:"scheduleType"`

	DurationMs int64 `json:"durationMs,omitempty"`
}

// StartAt returns the instant the occurrence's window opens.
func (o *Occurrence) StartAt() time.Time {
	return o.Date.Add(time.Duration(o.FromMinutes) * time.Minute)
}

// EndAt returns the instant the window closes. Extended to-times carry
// the window past midnight, possibly several days out.
func (o *Occurrence) EndAt() time.Time {
	return o.Date.Add(time.Duration(o.ToMinutes) * time.Minute)
}

// Contains reports whether at falls inside the half-open window
// [StartAt, EndAt).
func (o *Occurrence) Contains(at time.Time) bool {
	return !at.Before(o.StartAt()) && at.Before(o.EndAt())
}

// SeriesID returns the series this occurrence belongs to, or its own id
// for a standalone occurrence.
func (o *Occurrence) SeriesID() string {
	if o.BaseScheduleID != "" {
		return o.BaseScheduleID
	}
	return o.ID
}

// ResolvedWindow carries the duration and end-policy outputs for one
// occurrence at one evaluation.
type ResolvedWindow struct {
	PlannedEnd      time.Time `json:"plannedEnd"`
	ActualEnd       time.Time `json:"actualEnd"`
	TotalDurationMs int64     `json:"totalDurationMs"`
}

// ActiveDecision is the arbitration result for one track at one instant.
// A nil Occurrence is the valid "nothing scheduled" outcome, not an
// error. Preempted records the displaced incumbent, when there is one,
// and ResumeAfterPreemption mirrors its KeepToScheduleWhenPreempted flag.
type ActiveDecision struct {
	Track                 Track       `json:"track"`
	At                    time.Time   `json:"at"`
	Occurrence            *Occurrence `json:"occurrence,omitempty"`
	Preempted             *Occurrence `json:"preempted,omitempty"`
	ResumeAfterPreemption bool        `json:"resumeAfterPreemption"`
}

// Active reports whether anything is scheduled.
func (d *ActiveDecision) Active() bool { return d.Occurrence != nil }

// OccupantID identifies the active occurrence, empty when none. Tick
// loops compare occupants between evaluations to detect changes.
func (d *ActiveDecision) OccupantID() string {
	if d.Occurrence == nil {
		return ""
	}
	return d.Occurrence.ID
}

// DiagnosticCode classifies non-fatal scheduling conditions.
type DiagnosticCode string

const (
	// DiagMissingSequence flags a playlist item referencing a sequence
	// the catalog does not know; its length contributes zero.
	DiagMissingSequence DiagnosticCode = "MissingSequence"
	// DiagAmbiguousSelectedDays flags a selectedDays rule with an empty
	// weekday set; expansion degrades it to a single occurrence.
	DiagAmbiguousSelectedDays DiagnosticCode = "AmbiguousSelectedDays"
)

// Diagnostic is a non-fatal finding surfaced alongside a result.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	Ref     string         `json:"ref,omitempty"`
	Message string         `json:"message"`
}
