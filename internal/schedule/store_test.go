package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/series"
)

func openScheduleTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.ScheduleDefinition{},
		&models.OccurrenceExclusion{},
		&models.Sequence{},
		&models.Playlist{},
		&models.PlaylistItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db := openScheduleTestDB(t)
	return NewStore(db, nil, events.NewBus(), zerolog.Nop()), db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func onceDefinition(title string) *models.ScheduleDefinition {
	return &models.ScheduleDefinition{
		PlaylistID: "pl-1",
		Title:      title,
		FromTime:   "10:00",
		ToTime:     "11:00",
		Recurrence: models.RecurrenceOnce,
		RecurrenceRule: &models.RecurrenceRule{
			StartDate: date(2026, time.March, 2),
		},
		Priority:     models.PriorityNormal,
		EndPolicy:    models.EndPolicyHardCut,
		ScheduleType: models.TrackMain,
	}
}

func dailyDefinition(title string, start, end time.Time) *models.ScheduleDefinition {
	return &models.ScheduleDefinition{
		PlaylistID: "pl-1",
		Title:      title,
		FromTime:   "10:00",
		ToTime:     "11:00",
		Recurrence: models.RecurrenceDaily,
		RecurrenceRule: &models.RecurrenceRule{
			StartDate: start,
			EndDate:   &end,
		},
		Priority:     models.PriorityNormal,
		EndPolicy:    models.EndPolicyHardCut,
		ScheduleType: models.TrackMain,
	}
}

func TestCreateDefinitionSetsSeriesIdentity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	def := dailyDefinition("morning show", date(2026, time.March, 2), date(2026, time.March, 6))
	if err := store.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	if def.ID == "" {
		t.Fatal("id should be minted")
	}
	if def.BaseScheduleID != def.ID {
		t.Errorf("base schedule id = %q, want own id %q", def.BaseScheduleID, def.ID)
	}

	once := onceDefinition("one-off")
	if err := store.CreateDefinition(ctx, once); err != nil {
		t.Fatalf("create once: %v", err)
	}
	if once.BaseScheduleID != "" {
		t.Errorf("once definition should have no base schedule id, got %q", once.BaseScheduleID)
	}
}

func TestCreateDefinitionRejectsInvalid(t *testing.T) {
	store, _ := newTestStore(t)

	def := onceDefinition("broken")
	def.FromTime = "11:00"
	def.ToTime = "10:00"

	if err := store.CreateDefinition(context.Background(), def); err == nil {
		t.Fatal("expected validation error for inverted window")
	}
}

func TestDeleteDefinitionIsSoft(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	def := onceDefinition("short-lived")
	if err := store.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.DeleteDefinition(ctx, def.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	defs, err := store.ListDefinitions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(defs) != 0 {
		t.Errorf("live definitions = %d, want 0", len(defs))
	}

	// Still present for audit.
	got, err := store.GetDefinition(ctx, def.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if !got.Deleted {
		t.Error("definition should be marked deleted")
	}

	if err := store.DeleteDefinition(ctx, def.ID); !errors.Is(err, ErrDefinitionNotFound) {
		t.Errorf("second delete = %v, want ErrDefinitionNotFound", err)
	}
}

func TestApplySingleEditTombstonesGeneratedOccurrence(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	def := dailyDefinition("daily mix", date(2026, time.March, 2), date(2026, time.March, 6))
	if err := store.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	target := models.Occurrence{
		ID:             models.OccurrenceID{BaseID: def.ID, Date: date(2026, time.March, 4)}.String(),
		Date:           date(2026, time.March, 4),
		BaseScheduleID: def.ID,
		DefinitionID:   def.ID,
		ScheduleType:   models.TrackMain,
	}

	result, err := store.ApplyOccurrenceEdit(ctx, nil, target, series.ModeSingle, nil)
	if err != nil {
		t.Fatalf("apply edit: %v", err)
	}
	if len(result.ToDelete) != 1 || result.ToDelete[0] != target.ID {
		t.Errorf("to delete = %v, want [%s]", result.ToDelete, target.ID)
	}

	var excl models.OccurrenceExclusion
	if err := db.First(&excl, "occurrence_id = ?", target.ID).Error; err != nil {
		t.Fatalf("exclusion not created: %v", err)
	}
	if excl.SeriesID != def.ID {
		t.Errorf("exclusion series = %q, want %q", excl.SeriesID, def.ID)
	}

	// The series itself stays live.
	defs, _ := store.ListDefinitions(ctx)
	if len(defs) != 1 {
		t.Errorf("live definitions = %d, want 1", len(defs))
	}
}

func TestApplySingleEditWithReplacementCreatesStandalone(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	def := dailyDefinition("daily mix", date(2026, time.March, 2), date(2026, time.March, 6))
	if err := store.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	target := models.Occurrence{
		ID:             models.OccurrenceID{BaseID: def.ID, Date: date(2026, time.March, 4)}.String(),
		Date:           date(2026, time.March, 4),
		BaseScheduleID: def.ID,
		DefinitionID:   def.ID,
		ScheduleType:   models.TrackMain,
	}

	replacement := onceDefinition("special broadcast")
	result, err := store.ApplyOccurrenceEdit(ctx, nil, target, series.ModeSingle, replacement)
	if err != nil {
		t.Fatalf("apply edit: %v", err)
	}
	if len(result.ToCreate) != 1 {
		t.Fatalf("to create = %d, want 1", len(result.ToCreate))
	}

	created := result.ToCreate[0]
	if created.Recurrence != models.RecurrenceOnce {
		t.Errorf("replacement recurrence = %q, want once", created.Recurrence)
	}
	// Anchored at the edited date, not the series start.
	if !created.RecurrenceRule.StartDate.Equal(date(2026, time.March, 4)) {
		t.Errorf("replacement anchored at %v, want 2026-03-04", created.RecurrenceRule.StartDate)
	}

	got, err := store.GetDefinition(ctx, created.ID)
	if err != nil {
		t.Fatalf("replacement not persisted: %v", err)
	}
	if got.BaseScheduleID != "" {
		t.Errorf("replacement should be standalone, base = %q", got.BaseScheduleID)
	}
}

func TestApplyAllEditRetiresSeries(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	def := dailyDefinition("daily mix", date(2026, time.March, 2), date(2026, time.March, 6))
	if err := store.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Pre-existing tombstone on the series; all-mode must clear it.
	excl := models.OccurrenceExclusion{
		OccurrenceID: models.OccurrenceID{BaseID: def.ID, Date: date(2026, time.March, 3)}.String(),
		SeriesID:     def.ID,
		Date:         date(2026, time.March, 3),
	}
	if err := db.Create(&excl).Error; err != nil {
		t.Fatalf("seed exclusion: %v", err)
	}

	target := models.Occurrence{
		ID:             models.OccurrenceID{BaseID: def.ID, Date: date(2026, time.March, 4)}.String(),
		Date:           date(2026, time.March, 4),
		BaseScheduleID: def.ID,
		DefinitionID:   def.ID,
		ScheduleType:   models.TrackMain,
	}

	replacement := dailyDefinition("refreshed mix", date(2026, time.March, 2), date(2026, time.March, 6))
	result, err := store.ApplyOccurrenceEdit(ctx, nil, target, series.ModeAll, replacement)
	if err != nil {
		t.Fatalf("apply edit: %v", err)
	}

	// Old series is retired.
	old, err := store.GetDefinition(ctx, def.ID)
	if err != nil {
		t.Fatalf("get old: %v", err)
	}
	if !old.Deleted {
		t.Error("old series should be soft-deleted")
	}

	// Its tombstones are gone.
	var exclCount int64
	if err := db.Model(&models.OccurrenceExclusion{}).Where("series_id = ?", def.ID).Count(&exclCount).Error; err != nil {
		t.Fatalf("count exclusions: %v", err)
	}
	if exclCount != 0 {
		t.Errorf("exclusions left = %d, want 0", exclCount)
	}

	// Replacement runs under a fresh identity.
	if len(result.ToCreate) != 1 {
		t.Fatalf("to create = %d, want 1", len(result.ToCreate))
	}
	created := result.ToCreate[0]
	if created.ID == def.ID {
		t.Error("replacement must not reuse the old series id")
	}
	if created.BaseScheduleID != created.ID {
		t.Errorf("replacement base = %q, want own id", created.BaseScheduleID)
	}
}

func TestApplyEditRejectsUnknownMode(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.ApplyOccurrenceEdit(context.Background(), nil, models.Occurrence{ID: "x"}, series.Mode("future"), nil)
	if !errors.Is(err, series.ErrUnknownMode) {
		t.Fatalf("err = %v, want ErrUnknownMode", err)
	}
}
