package schedule

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/models"
)

// newTestValidator builds a snapshot holding one normal-priority
// incumbent on main, 10:00-11:00 on March 2.
func newTestValidator(t *testing.T) (*Validator, *models.ScheduleDefinition) {
	t.Helper()

	b, store, _ := newTestBuilder(t)
	incumbent := onceDefinition("incumbent show")
	if err := store.CreateDefinition(context.Background(), incumbent); err != nil {
		t.Fatalf("create incumbent: %v", err)
	}
	if _, err := b.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	return NewValidator(b, zerolog.Nop()), incumbent
}

func candidateAt(from, to string, prio models.Priority) *models.ScheduleDefinition {
	def := onceDefinition("candidate show")
	def.ID = "cand-1"
	def.FromTime = from
	def.ToTime = to
	def.Priority = prio
	return def
}

func TestValidateRejectsInadmissibleDefinition(t *testing.T) {
	v, _ := newTestValidator(t)

	def := candidateAt("11:00", "10:00", models.PriorityNormal)
	result := v.ValidateDefinition(def)

	if result.Valid {
		t.Fatal("inverted window should be invalid")
	}
	if len(result.Errors) != 1 || result.Errors[0].Type != ViolationInvalidDefinition {
		t.Errorf("errors = %+v, want one invalid_definition", result.Errors)
	}
}

func TestValidateFlagsEqualPriorityOverlapAsWarning(t *testing.T) {
	v, incumbent := newTestValidator(t)

	def := candidateAt("10:30", "11:30", models.PriorityNormal)
	result := v.ValidateDefinition(def)

	if !result.Valid {
		t.Fatal("overlap alone must not make a definition invalid")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(result.Warnings))
	}

	w := result.Warnings[0]
	if w.Type != ViolationTieOverlap {
		t.Errorf("type = %q, want tie_overlap", w.Type)
	}
	if len(w.AffectedIDs) != 2 || w.AffectedIDs[1] != incumbent.ID {
		t.Errorf("affected ids = %v, want [cand-1 %s]", w.AffectedIDs, incumbent.ID)
	}
	if w.Details["overlap_minutes"] != 30 {
		t.Errorf("overlap minutes = %v, want 30", w.Details["overlap_minutes"])
	}
}

func TestValidateClassifiesPriorityDifferencesAsInfo(t *testing.T) {
	v, _ := newTestValidator(t)

	tests := []struct {
		name string
		prio models.Priority
		typ  string
	}{
		{"higher priority preempts", models.PriorityHigh, ViolationPreempts},
		{"lower priority is shadowed", models.PriorityLow, ViolationShadowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateDefinition(candidateAt("10:00", "11:00", tt.prio))

			if !result.Valid {
				t.Fatal("priority overlap must not make a definition invalid")
			}
			if len(result.Warnings) != 0 {
				t.Errorf("warnings = %v, want none", result.Warnings)
			}
			if len(result.Info) != 1 || result.Info[0].Type != tt.typ {
				t.Errorf("info = %+v, want one %s", result.Info, tt.typ)
			}
		})
	}
}

func TestValidateIgnoresOtherTracksAndDisjointWindows(t *testing.T) {
	v, _ := newTestValidator(t)

	other := candidateAt("10:00", "11:00", models.PriorityNormal)
	other.ScheduleType = models.TrackBackground
	if result := v.ValidateDefinition(other); len(result.Warnings)+len(result.Info) != 0 {
		t.Errorf("different track reported: %+v", result)
	}

	// Windows are half-open, so back-to-back is not an overlap.
	adjacent := candidateAt("11:00", "12:00", models.PriorityNormal)
	if result := v.ValidateDefinition(adjacent); len(result.Warnings)+len(result.Info) != 0 {
		t.Errorf("adjacent window reported: %+v", result)
	}
}

func TestValidateSkipsCandidatesOwnSeries(t *testing.T) {
	v, incumbent := newTestValidator(t)

	// Re-validating the stored definition reports nothing against itself.
	result := v.ValidateDefinition(incumbent)
	if !result.Valid || len(result.Warnings)+len(result.Info) != 0 {
		t.Errorf("self-validation reported: %+v", result)
	}
}

func TestValidateWithoutSnapshotOnlyChecksAdmission(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	v := NewValidator(b, zerolog.Nop())

	result := v.ValidateDefinition(candidateAt("10:00", "11:00", models.PriorityNormal))
	if !result.Valid {
		t.Error("valid definition should pass without a snapshot")
	}
	if result.CheckedAt.IsZero() {
		t.Error("checked_at should be stamped")
	}
}
