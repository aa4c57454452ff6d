/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/friendsincode/grimnir_player/internal/models"
)

// legacyDefinition is the common row shape both sources produce before
// conversion. Fields mirror the legacy column values verbatim; all
// normalization happens in convertDefinition.
type legacyDefinition struct {
	Key             string // legacy primary key, source-scoped
	PlaylistKey     string
	PrePlaylistKey  string
	PostPlaylistKey string
	Title           string
	FromTime        string
	ToTime          string
	Recurrence      string
	StartDate       string // ISO date
	EndDate         string // ISO date, empty when absent
	WeekDays        string // comma-separated tokens
	Shuffle         bool
	Loop            bool
	Priority        string
	EndPolicy       string
	HardCutIn       bool
	PreferHardCutIn bool
	KeepToSchedule  bool
	ScheduleType    string
	BaseKey         string
	Deleted         bool
}

// normalizeEndPolicy maps legacy spellings onto the wire tokens. The
// desktop player wrote mixed case and underscores ("Seq_Bound_Early");
// the stored tokens are lowercase without separators.
func normalizeEndPolicy(s string) models.EndPolicy {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return models.EndPolicy(s)
}

// normalizePriority trims the whitespace older exports carried.
func normalizePriority(s string) models.Priority {
	return models.Priority(strings.ToLower(strings.TrimSpace(s)))
}

func normalizeTrack(s string) models.Track {
	return models.Track(strings.ToLower(strings.TrimSpace(s)))
}

// normalizeRecurrence maps legacy kind spellings. "selectedDays" is the
// only camelCase token; everything else lowercases cleanly.
func normalizeRecurrence(s string) models.RecurrenceKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "once":
		return models.RecurrenceOnce
	case "daily":
		return models.RecurrenceDaily
	case "selecteddays", "selected_days":
		return models.RecurrenceSelectedDays
	}
	return models.RecurrenceKind(strings.TrimSpace(s))
}

// parseWeekDays splits a comma-separated token list ("Sun,Mon,Fri").
// Unknown tokens survive into the slice; Validate rejects them at
// admission so the skip reason names the bad token.
func parseWeekDays(s string) []models.Weekday {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	days := make([]models.Weekday, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// Tolerate full names and lowercase from the oldest exports.
		token := strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
		if len(token) > 3 {
			token = token[:3]
		}
		days = append(days, models.Weekday(token))
	}
	return days
}

func parseLegacyDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	// Some server rows carry a full timestamp; keep the day.
	for _, layout := range []string{models.DateOnly, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable legacy date %q", s)
}

// convertDefinition turns one legacy row into a ScheduleDefinition with
// deterministic ids. The result still goes through Validate at apply
// time; conversion never rejects.
func convertDefinition(source Source, row legacyDefinition) (models.ScheduleDefinition, error) {
	start, err := parseLegacyDate(row.StartDate)
	if err != nil {
		return models.ScheduleDefinition{}, err
	}

	rule := &models.RecurrenceRule{
		StartDate: start,
		ByWeekDay: parseWeekDays(row.WeekDays),
	}
	if end, err := parseLegacyDate(row.EndDate); err != nil {
		return models.ScheduleDefinition{}, err
	} else if !end.IsZero() {
		rule.EndDate = &end
	}

	def := models.ScheduleDefinition{
		ID:             stableID(source, "definition", row.Key),
		PlaylistID:     stableID(source, "playlist", row.PlaylistKey),
		Title:          row.Title,
		FromTime:       strings.TrimSpace(row.FromTime),
		ToTime:         strings.TrimSpace(row.ToTime),
		Recurrence:     normalizeRecurrence(row.Recurrence),
		RecurrenceRule: rule,

		Shuffle:                     row.Shuffle,
		Loop:                        row.Loop,
		Priority:                    normalizePriority(row.Priority),
		EndPolicy:                   normalizeEndPolicy(row.EndPolicy),
		HardCutIn:                   row.HardCutIn,
		PreferHardCutIn:             row.PreferHardCutIn,
		KeepToScheduleWhenPreempted: row.KeepToSchedule,

		ScheduleType: normalizeTrack(row.ScheduleType),
		Deleted:      row.Deleted,
	}

	if row.PrePlaylistKey != "" {
		pre := stableID(source, "playlist", row.PrePlaylistKey)
		def.PrePlaylistID = &pre
	}
	if row.PostPlaylistKey != "" {
		post := stableID(source, "playlist", row.PostPlaylistKey)
		def.PostPlaylistID = &post
	}

	// Series identity carries over so occurrence ids stay recomputable
	// after the migration. A row that is its own base gets its own id.
	switch {
	case row.BaseKey != "" && row.BaseKey != row.Key:
		def.BaseScheduleID = stableID(source, "definition", row.BaseKey)
	case def.Recurrence.IsSeries():
		def.BaseScheduleID = def.ID
	}

	return def, nil
}
