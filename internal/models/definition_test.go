package models

import (
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/grimnir_player/internal/timecode"
)

func validDef() *ScheduleDefinition {
	end := time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)
	return &ScheduleDefinition{
		ID:         "def-1",
		PlaylistID: "pl-1",
		Title:      "drive time",
		FromTime:   "16:00",
		ToTime:     "18:00",
		Recurrence: RecurrenceDaily,
		RecurrenceRule: &RecurrenceRule{
			StartDate: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
			EndDate:   &end,
		},
		Priority:     PriorityNormal,
		EndPolicy:    EndPolicySeqBoundEarly,
		ScheduleType: TrackMain,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScheduleDefinition)
		wantErr error
	}{
		{name: "valid daily definition", mutate: func(d *ScheduleDefinition) {}},
		{
			name: "valid once definition without end date",
			mutate: func(d *ScheduleDefinition) {
				d.Recurrence = RecurrenceOnce
				d.RecurrenceRule.EndDate = nil
			},
		},
		{
			name: "valid selectedDays definition",
			mutate: func(d *ScheduleDefinition) {
				d.Recurrence = RecurrenceSelectedDays
				d.RecurrenceRule.ByWeekDay = []Weekday{WeekdayMon, WeekdayWed}
			},
		},
		{
			name:    "missing playlist",
			mutate:  func(d *ScheduleDefinition) { d.PlaylistID = "" },
			wantErr: errAny,
		},
		{
			name:   "overnight window in extended form is valid",
			mutate: func(d *ScheduleDefinition) { d.FromTime = "23:00"; d.ToTime = "26:00" },
		},
		{
			name:    "extended fromTime rejected",
			mutate:  func(d *ScheduleDefinition) { d.FromTime = "24:00"; d.ToTime = "26:00" },
			wantErr: timecode.ErrInvalidTime,
		},
		{
			name:    "equal times rejected",
			mutate:  func(d *ScheduleDefinition) { d.FromTime = "10:00"; d.ToTime = "10:00" },
			wantErr: timecode.ErrInvalidTime,
		},
		{
			name:    "unknown priority",
			mutate:  func(d *ScheduleDefinition) { d.Priority = "urgent" },
			wantErr: errAny,
		},
		{
			name:    "unknown end policy",
			mutate:  func(d *ScheduleDefinition) { d.EndPolicy = "fade" },
			wantErr: errAny,
		},
		{
			name:    "unknown track",
			mutate:  func(d *ScheduleDefinition) { d.ScheduleType = "overlay" },
			wantErr: errAny,
		},
		{
			name:    "unknown recurrence kind",
			mutate:  func(d *ScheduleDefinition) { d.Recurrence = "weekly" },
			wantErr: errAny,
		},
		{
			name:    "missing rule",
			mutate:  func(d *ScheduleDefinition) { d.RecurrenceRule = nil },
			wantErr: ErrMissingRecurrenceRule,
		},
		{
			name:    "daily without end date",
			mutate:  func(d *ScheduleDefinition) { d.RecurrenceRule.EndDate = nil },
			wantErr: ErrMissingRecurrenceEnd,
		},
		{
			name: "end before start",
			mutate: func(d *ScheduleDefinition) {
				e := d.RecurrenceRule.StartDate.AddDate(0, 0, -1)
				d.RecurrenceRule.EndDate = &e
			},
			wantErr: errAny,
		},
		{
			name: "selectedDays without weekdays",
			mutate: func(d *ScheduleDefinition) {
				d.Recurrence = RecurrenceSelectedDays
				d.RecurrenceRule.ByWeekDay = nil
			},
			wantErr: ErrAmbiguousSelectedDays,
		},
		{
			name: "selectedDays with bad weekday token",
			mutate: func(d *ScheduleDefinition) {
				d.Recurrence = RecurrenceSelectedDays
				d.RecurrenceRule.ByWeekDay = []Weekday{"Monday"}
			},
			wantErr: errAny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDef()
			tt.mutate(def)
			err := def.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if tt.wantErr != errAny && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// errAny marks cases where any error is acceptable.
var errAny = errors.New("any error")

func TestOccurrenceIDRoundTrip(t *testing.T) {
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		baseID string
		want   string
	}{
		{name: "plain base", baseID: "abc", want: "abc-2026-03-02"},
		{name: "uuid base keeps its own hyphens", baseID: "6e5a1b2c-9f10-4ad2-8f6e-1db1c0ffee00", want: "6e5a1b2c-9f10-4ad2-8f6e-1db1c0ffee00-2026-03-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := OccurrenceID{BaseID: tt.baseID, Date: date}
			if got := id.String(); got != tt.want {
				t.Fatalf("String() = %s, want %s", got, tt.want)
			}
			parsed, ok := ParseOccurrenceID(id.String())
			if !ok {
				t.Fatalf("ParseOccurrenceID(%s) failed", id.String())
			}
			if parsed.BaseID != tt.baseID || !parsed.Date.Equal(date) {
				t.Errorf("ParseOccurrenceID() = %+v, want base %s date %v", parsed, tt.baseID, date)
			}
		})
	}

	if _, ok := ParseOccurrenceID("short"); ok {
		t.Error("ParseOccurrenceID(short) = ok, want failure")
	}
	if _, ok := ParseOccurrenceID("abc-2026-13-45"); ok {
		t.Error("ParseOccurrenceID(bad date) = ok, want failure")
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	if !(PriorityHigh.Rank() > PriorityNormal.Rank() && PriorityNormal.Rank() > PriorityLow.Rank()) {
		t.Error("priority ranks are not strictly ordered high > normal > low")
	}
	if Priority("emergency").Valid() {
		t.Error("unexpected priority accepted")
	}
}

func TestOccurrenceWindow(t *testing.T) {
	occ := Occurrence{
		Date:        time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		FromMinutes: 1380, // 23:00
		ToMinutes:   1530, // 25:30
	}
	start := time.Date(2026, time.March, 2, 23, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 3, 1, 30, 0, 0, time.UTC)
	if !occ.StartAt().Equal(start) || !occ.EndAt().Equal(end) {
		t.Errorf("window = %v..%v, want %v..%v", occ.StartAt(), occ.EndAt(), start, end)
	}
	if !occ.Contains(start) {
		t.Error("Contains(start) = false, want true for half-open window")
	}
	if occ.Contains(end) {
		t.Error("Contains(end) = true, want false for half-open window")
	}
}
