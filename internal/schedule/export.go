/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/storage"
	"github.com/friendsincode/grimnir_player/internal/telemetry"
)

// Export formats.
const (
	FormatICal = "ical"
	FormatYAML = "yaml"
)

// ExportService renders the schedule for external consumers and backs
// up the definition set.
type ExportService struct {
	store   *Store
	builder *Builder
	archive storage.ObjectStore // nil disables archiving
	bus     Publisher
	logger  zerolog.Logger
}

// NewExportService creates an export service.
func NewExportService(store *Store, builder *Builder, archive storage.ObjectStore, bus Publisher, logger zerolog.Logger) *ExportService {
	return &ExportService{
		store:   store,
		builder: builder,
		archive: archive,
		bus:     bus,
		logger:  logger.With().Str("component", "schedule_export").Logger(),
	}
}

// ExportResult contains rendered export data.
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
	ArchiveKey  string // set when the export was archived
}

// ExportICal renders the occurrences intersecting [start, end) as an
// iCalendar feed. An empty track includes both tracks.
func (s *ExportService) ExportICal(ctx context.Context, track models.Track, start, end time.Time) (*ExportResult, error) {
	snap := s.builder.Current()
	if snap == nil {
		telemetry.ExportsTotal.WithLabelValues(FormatICal, "error").Inc()
		return nil, fmt.Errorf("no snapshot available yet")
	}

	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//Grimnir Player//Schedule Export//EN\r\n")
	buf.WriteString(fmt.Sprintf("X-WR-CALNAME:%s\r\n", escapeICalText(calendarName(track))))
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	count := 0
	for _, occ := range snap.Between(start, end) {
		if track != "" && occ.ScheduleType != track {
			continue
		}

		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s@grimnirplayer\r\n", occ.ID))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICalTime(time.Now())))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(occ.StartAt())))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(occ.EndAt())))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(occ.Title)))
		buf.WriteString(fmt.Sprintf("CATEGORIES:%s\r\n", escapeICalText(string(occ.ScheduleType))))
		buf.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICalText(
			fmt.Sprintf("priority: %s, end policy: %s", occ.Priority, occ.EndPolicy))))
		buf.WriteString("END:VEVENT\r\n")
		count++
	}

	buf.WriteString("END:VCALENDAR\r\n")

	filename := fmt.Sprintf("%s-schedule-%s-to-%s.ics",
		slugify(calendarName(track)),
		start.Format(models.DateOnly),
		end.Format(models.DateOnly))

	result := &ExportResult{
		Data:        buf.Bytes(),
		Filename:    filename,
		ContentType: "text/calendar; charset=utf-8",
	}

	s.finish(ctx, FormatICal, result, count)
	return result, nil
}

// definitionsExport is the YAML backup document.
type definitionsExport struct {
	ExportedAt  time.Time                    `yaml:"exported_at"`
	Definitions []models.ScheduleDefinition  `yaml:"definitions"`
	Exclusions  []models.OccurrenceExclusion `yaml:"exclusions,omitempty"`
}

// ExportYAML dumps the live definition set and its tombstones as a YAML
// backup that ImportYAML can restore.
func (s *ExportService) ExportYAML(ctx context.Context) (*ExportResult, error) {
	defs, err := s.store.ListDefinitions(ctx)
	if err != nil {
		telemetry.ExportsTotal.WithLabelValues(FormatYAML, "error").Inc()
		return nil, err
	}
	excls, err := s.store.ListExclusions(ctx)
	if err != nil {
		telemetry.ExportsTotal.WithLabelValues(FormatYAML, "error").Inc()
		return nil, err
	}

	doc := definitionsExport{
		ExportedAt:  time.Now().UTC(),
		Definitions: defs,
		Exclusions:  excls,
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		telemetry.ExportsTotal.WithLabelValues(FormatYAML, "error").Inc()
		return nil, fmt.Errorf("marshal definitions: %w", err)
	}

	result := &ExportResult{
		Data:        data,
		Filename:    fmt.Sprintf("definitions-%s.yaml", time.Now().UTC().Format(models.DateOnly)),
		ContentType: "application/yaml",
	}

	s.finish(ctx, FormatYAML, result, len(defs))
	return result, nil
}

// ImportYAMLResult counts what an ImportYAML run did.
type ImportYAMLResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportYAML restores definitions from a YAML backup. Records that
// already exist or fail validation are skipped, so a partial restore
// never clobbers live data.
func (s *ExportService) ImportYAML(ctx context.Context, r io.Reader) (*ImportYAMLResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import data: %w", err)
	}

	var doc definitionsExport
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse import data: %w", err)
	}

	result := &ImportYAMLResult{}
	for i := range doc.Definitions {
		def := doc.Definitions[i]

		if def.ID != "" {
			if _, err := s.store.GetDefinition(ctx, def.ID); err == nil {
				result.Skipped++
				continue
			}
		}

		if err := s.store.CreateDefinition(ctx, &def); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("definition %s: %v", def.ID, err))
			continue
		}
		result.Imported++
	}

	if result.Imported > 0 {
		s.bus.Publish(events.EventImportCompleted, events.Payload{
			"source":   "yaml",
			"imported": result.Imported,
			"skipped":  result.Skipped,
		})
	}

	s.logger.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("YAML import completed")

	return result, nil
}

// finish archives the export when an archive store is configured, then
// records metrics and emits the completion event.
func (s *ExportService) finish(ctx context.Context, format string, result *ExportResult, count int) {
	if s.archive != nil {
		key := fmt.Sprintf("exports/%s/%s", time.Now().UTC().Format(models.DateOnly), result.Filename)
		if err := s.archive.Put(ctx, key, result.Data, result.ContentType); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to archive export")
		} else {
			result.ArchiveKey = key
		}
	}

	telemetry.ExportsTotal.WithLabelValues(format, "ok").Inc()
	s.bus.Publish(events.EventExportCompleted, events.Payload{
		"format":   format,
		"filename": result.Filename,
		"entries":  count,
		"archived": result.ArchiveKey != "",
	})

	s.logger.Info().
		Str("format", format).
		Str("filename", result.Filename).
		Int("entries", count).
		Msg("schedule exported")
}

// ListArchived returns the keys of archived exports.
func (s *ExportService) ListArchived(ctx context.Context) ([]string, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.List(ctx, "exports/")
}

// Helper functions

func calendarName(track models.Track) string {
	if track == "" {
		return "Grimnir Player Schedule"
	}
	return fmt.Sprintf("Grimnir Player %s Schedule", track)
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
