package series

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/timecode"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func member(base string, d int) models.Occurrence {
	date := day(d)
	return models.Occurrence{
		ID:             models.OccurrenceID{BaseID: base, Date: date}.String(),
		Date:           date,
		BaseScheduleID: base,
		DefinitionID:   base,
		PlaylistID:     "pl-1",
		FromTime:       "09:00",
		ToTime:         "10:00",
		FromMinutes:    540,
		ToMinutes:      600,
		Priority:       models.PriorityNormal,
		EndPolicy:      models.EndPolicyHardCut,
		ScheduleType:   models.TrackMain,
	}
}

func standalone(id string, d int) models.Occurrence {
	occ := member("", d)
	occ.ID = id
	occ.BaseScheduleID = ""
	occ.DefinitionID = id
	return occ
}

func fixtures() []models.Occurrence {
	return []models.Occurrence{
		member("series-x", 2),
		member("series-x", 3),
		member("series-x", 4),
		member("series-y", 3),
		standalone("once-z", 5),
	}
}

func replacement() *models.ScheduleDefinition {
	return &models.ScheduleDefinition{
		PlaylistID:   "pl-2",
		Title:        "replacement",
		FromTime:     "12:00",
		ToTime:       "13:30",
		Recurrence:   models.RecurrenceDaily,
		Priority:     models.PriorityNormal,
		EndPolicy:    models.EndPolicySeqBoundNearest,
		ScheduleType: models.TrackMain,
		RecurrenceRule: &models.RecurrenceRule{
			StartDate: day(2),
			EndDate:   func() *time.Time { d := day(20); return &d }(),
		},
	}
}

func testEditor(ids ...string) *Editor {
	e := NewEditor(zerolog.Nop())
	next := 0
	e.newID = func() string {
		id := ids[next]
		next++
		return id
	}
	return e
}

func TestApplyEditSingle(t *testing.T) {
	editor := testEditor("fresh-1")
	occs := fixtures()
	target := occs[1] // series-x on 2026-03-03

	result, err := editor.ApplyEdit(occs, target, ModeSingle, replacement())
	if err != nil {
		t.Fatalf("ApplyEdit() unexpected error: %v", err)
	}

	if len(result.ToDelete) != 1 || result.ToDelete[0] != target.ID {
		t.Errorf("ApplyEdit() toDelete = %v, want only %s", result.ToDelete, target.ID)
	}
	if len(result.ToCreate) != 1 {
		t.Fatalf("ApplyEdit() toCreate = %v, want one definition", result.ToCreate)
	}

	def := result.ToCreate[0]
	if def.ID != "fresh-1" {
		t.Errorf("ApplyEdit() new id = %s, want fresh-1", def.ID)
	}
	if def.Recurrence != models.RecurrenceOnce {
		t.Errorf("ApplyEdit() recurrence = %s, want once", def.Recurrence)
	}
	if def.BaseScheduleID != "" {
		t.Errorf("ApplyEdit() baseScheduleId = %s, want empty for standalone", def.BaseScheduleID)
	}
	// Anchored at the selected occurrence's date, not the series start.
	if !def.RecurrenceRule.StartDate.Equal(day(3)) {
		t.Errorf("ApplyEdit() anchor = %v, want %v", def.RecurrenceRule.StartDate, day(3))
	}

	// Siblings must not appear in the delete set.
	for _, sibling := range []string{occs[0].ID, occs[2].ID, occs[3].ID, occs[4].ID} {
		for _, del := range result.ToDelete {
			if del == sibling {
				t.Errorf("ApplyEdit() deleted sibling %s", sibling)
			}
		}
	}
}

func TestApplyEditAll(t *testing.T) {
	editor := testEditor("fresh-2")
	occs := fixtures()
	target := occs[0] // series-x on 2026-03-02

	result, err := editor.ApplyEdit(occs, target, ModeAll, replacement())
	if err != nil {
		t.Fatalf("ApplyEdit() unexpected error: %v", err)
	}

	want := []string{
		"series-x-2026-03-02",
		"series-x-2026-03-03",
		"series-x-2026-03-04",
	}
	if len(result.ToDelete) != len(want) {
		t.Fatalf("ApplyEdit() toDelete = %v, want %v", result.ToDelete, want)
	}
	for i, id := range want {
		if result.ToDelete[i] != id {
			t.Errorf("ApplyEdit() toDelete[%d] = %s, want %s", i, result.ToDelete[i], id)
		}
	}

	def := result.ToCreate[0]
	if def.ID != "fresh-2" || def.BaseScheduleID != "fresh-2" {
		t.Errorf("ApplyEdit() new series identity = %s/%s, want fresh-2/fresh-2", def.ID, def.BaseScheduleID)
	}
	if def.ID == "series-x" || def.BaseScheduleID == "series-x" {
		t.Error("ApplyEdit() reused the old series id")
	}
}

func TestApplyEditAllOnStandaloneTarget(t *testing.T) {
	editor := testEditor("fresh-3")
	occs := fixtures()
	target := occs[4] // standalone once-z

	result, err := editor.ApplyDelete(occs, target, ModeAll)
	if err != nil {
		t.Fatalf("ApplyDelete() unexpected error: %v", err)
	}
	if len(result.ToDelete) != 1 || result.ToDelete[0] != "once-z" {
		t.Errorf("ApplyDelete() toDelete = %v, want only once-z", result.ToDelete)
	}
	if len(result.ToCreate) != 0 {
		t.Errorf("ApplyDelete() toCreate = %v, want empty", result.ToCreate)
	}
}

func TestApplyDeleteSingle(t *testing.T) {
	editor := testEditor()
	occs := fixtures()

	result, err := editor.ApplyDelete(occs, occs[2], ModeSingle)
	if err != nil {
		t.Fatalf("ApplyDelete() unexpected error: %v", err)
	}
	if len(result.ToDelete) != 1 || result.ToDelete[0] != occs[2].ID {
		t.Errorf("ApplyDelete() toDelete = %v, want only %s", result.ToDelete, occs[2].ID)
	}
	if len(result.ToCreate) != 0 {
		t.Errorf("ApplyDelete() toCreate = %v, want empty", result.ToCreate)
	}
}

func TestApplyEditValidatesAtBoundary(t *testing.T) {
	occs := fixtures()
	target := occs[0]

	tests := []struct {
		name    string
		mode    Mode
		mutate  func(*models.ScheduleDefinition)
		wantErr error
	}{
		{
			name:    "non-ordered window rejected",
			mode:    ModeSingle,
			mutate:  func(d *models.ScheduleDefinition) { d.FromTime = "10:00"; d.ToTime = "10:00" },
			wantErr: timecode.ErrInvalidTime,
		},
		{
			name:    "malformed time rejected",
			mode:    ModeSingle,
			mutate:  func(d *models.ScheduleDefinition) { d.FromTime = "9am" },
			wantErr: timecode.ErrInvalidTime,
		},
		{
			name:    "daily without end date rejected",
			mode:    ModeAll,
			mutate:  func(d *models.ScheduleDefinition) { d.RecurrenceRule.EndDate = nil },
			wantErr: models.ErrMissingRecurrenceEnd,
		},
		{
			name: "selectedDays without weekdays rejected",
			mode: ModeAll,
			mutate: func(d *models.ScheduleDefinition) {
				d.Recurrence = models.RecurrenceSelectedDays
				d.RecurrenceRule.ByWeekDay = nil
			},
			wantErr: models.ErrAmbiguousSelectedDays,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			editor := testEditor("unused")
			def := replacement()
			tt.mutate(def)
			_, err := editor.ApplyEdit(occs, target, tt.mode, def)
			if err == nil {
				t.Fatal("ApplyEdit() accepted an invalid definition")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ApplyEdit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEditUnknownMode(t *testing.T) {
	editor := testEditor()
	_, err := editor.ApplyEdit(fixtures(), fixtures()[0], Mode("sometimes"), nil)
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ApplyEdit() error = %v, want ErrUnknownMode", err)
	}
}
