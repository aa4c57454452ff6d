package schedule

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/storage"
)

func newTestExportService(t *testing.T) (*ExportService, *Store, *Builder) {
	t.Helper()

	b, store, _ := newTestBuilder(t)
	archive := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	svc := NewExportService(store, b, archive, events.NewBus(), zerolog.Nop())
	return svc, store, b
}

func TestExportICalRendersOccurrences(t *testing.T) {
	svc, store, b := newTestExportService(t)
	ctx := context.Background()

	def := onceDefinition("Morning, Sunshine")
	if err := store.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := b.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	result, err := svc.ExportICal(ctx, models.TrackMain, date(2026, time.March, 1), date(2026, time.March, 8))
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	body := string(result.Data)
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"UID:" + def.ID + "@grimnirplayer",
		"DTSTART:20260302T100000Z",
		"DTEND:20260302T110000Z",
		// Commas in titles must be escaped.
		"SUMMARY:Morning\\, Sunshine",
		"CATEGORIES:main",
		"END:VCALENDAR",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("calendar missing %q", want)
		}
	}

	if result.ContentType != "text/calendar; charset=utf-8" {
		t.Errorf("content type = %q", result.ContentType)
	}
	if result.Filename != "grimnir-player-main-schedule-2026-03-01-to-2026-03-08.ics" {
		t.Errorf("filename = %q", result.Filename)
	}
}

func TestExportICalFiltersTrackAndRange(t *testing.T) {
	svc, store, b := newTestExportService(t)
	ctx := context.Background()

	main := onceDefinition("main show")
	if err := store.CreateDefinition(ctx, main); err != nil {
		t.Fatalf("create main: %v", err)
	}
	background := onceDefinition("ambient bed")
	background.ScheduleType = models.TrackBackground
	if err := store.CreateDefinition(ctx, background); err != nil {
		t.Fatalf("create background: %v", err)
	}
	if _, err := b.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	result, err := svc.ExportICal(ctx, models.TrackBackground, date(2026, time.March, 1), date(2026, time.March, 8))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := strings.Count(string(result.Data), "BEGIN:VEVENT"); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}

	// Range past every occurrence yields an empty calendar, not an error.
	empty, err := svc.ExportICal(ctx, "", date(2026, time.March, 10), date(2026, time.March, 12))
	if err != nil {
		t.Fatalf("export empty: %v", err)
	}
	if strings.Contains(string(empty.Data), "BEGIN:VEVENT") {
		t.Error("empty range should render no events")
	}
}

func TestExportICalWithoutSnapshotFails(t *testing.T) {
	svc, _, _ := newTestExportService(t)

	if _, err := svc.ExportICal(context.Background(), "", date(2026, time.March, 1), date(2026, time.March, 8)); err == nil {
		t.Fatal("expected error before first rebuild")
	}
}

func TestExportArchivesResult(t *testing.T) {
	svc, store, b := newTestExportService(t)
	ctx := context.Background()

	if err := store.CreateDefinition(ctx, onceDefinition("archived show")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := b.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	result, err := svc.ExportICal(ctx, "", date(2026, time.March, 1), date(2026, time.March, 8))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.ArchiveKey == "" {
		t.Fatal("export should have been archived")
	}

	keys, err := svc.ListArchived(ctx)
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	found := false
	for _, key := range keys {
		if key == result.ArchiveKey {
			found = true
		}
	}
	if !found {
		t.Errorf("archive key %q not listed in %v", result.ArchiveKey, keys)
	}
}

func TestYAMLBackupRoundTrip(t *testing.T) {
	svc, store, _ := newTestExportService(t)
	ctx := context.Background()

	daily := dailyDefinition("daily mix", date(2026, time.March, 2), date(2026, time.March, 6))
	if err := store.CreateDefinition(ctx, daily); err != nil {
		t.Fatalf("create: %v", err)
	}

	backup, err := svc.ExportYAML(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(backup.Data), daily.ID) {
		t.Fatal("backup should contain the definition")
	}

	// Restore into an empty deployment.
	restored, restoredStore, _ := newTestExportService(t)
	result, err := restored.ImportYAML(ctx, bytes.NewReader(backup.Data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 1 || result.Skipped != 0 || len(result.Errors) != 0 {
		t.Fatalf("import result = %+v, want 1 imported", result)
	}

	got, err := restoredStore.GetDefinition(ctx, daily.ID)
	if err != nil {
		t.Fatalf("restored definition missing: %v", err)
	}
	if got.Title != daily.Title || got.Recurrence != models.RecurrenceDaily {
		t.Errorf("restored definition = %+v", got)
	}
	if got.BaseScheduleID != daily.ID {
		t.Errorf("restored base = %q, want %q", got.BaseScheduleID, daily.ID)
	}
}

func TestImportYAMLSkipsExistingDefinitions(t *testing.T) {
	svc, store, _ := newTestExportService(t)
	ctx := context.Background()

	def := onceDefinition("already here")
	if err := store.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	backup, err := svc.ExportYAML(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	// Importing into the same deployment touches nothing.
	result, err := svc.ImportYAML(ctx, bytes.NewReader(backup.Data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 0 || result.Skipped != 1 {
		t.Errorf("import result = %+v, want 1 skipped", result)
	}
}

func TestImportYAMLRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestExportService(t)

	if _, err := svc.ImportYAML(context.Background(), strings.NewReader("{not yaml")); err == nil {
		t.Fatal("expected parse error")
	}
}
