/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_player/internal/catalog"
	"github.com/friendsincode/grimnir_player/internal/duration"
	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/schedule"
	"github.com/friendsincode/grimnir_player/internal/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the schedule",
	Long:  "Render the definition set as YAML or the expanded occurrences as an iCalendar feed",
}

var exportYAMLCmd = &cobra.Command{
	Use:   "yaml",
	Short: "Export all definitions as a YAML document",
	RunE:  runExportYAML,
}

var exportICalCmd = &cobra.Command{
	Use:   "ical",
	Short: "Export expanded occurrences as an iCalendar feed",
	RunE:  runExportICal,
}

var (
	exportOutPath string
	exportArchive bool
	exportTrack   string
	exportDays    int
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportYAMLCmd)
	exportCmd.AddCommand(exportICalCmd)

	exportCmd.PersistentFlags().StringVar(&exportOutPath, "out", "", "Write to this file instead of stdout")
	exportCmd.PersistentFlags().BoolVar(&exportArchive, "archive", false, "Also push the export to the archive store")

	exportICalCmd.Flags().StringVar(&exportTrack, "track", "", "Limit to one track (main or background)")
	exportICalCmd.Flags().IntVar(&exportDays, "days", 7, "Days ahead to include")
}

func runExportYAML(cmd *cobra.Command, args []string) error {
	svc, err := exportService(false)
	if err != nil {
		return err
	}

	result, err := svc.ExportYAML(context.Background())
	if err != nil {
		return fmt.Errorf("export yaml: %w", err)
	}
	return writeExport(result)
}

func runExportICal(cmd *cobra.Command, args []string) error {
	track := models.Track(exportTrack)
	if exportTrack != "" && !track.Valid() {
		return fmt.Errorf("unknown track %q", exportTrack)
	}

	svc, err := exportService(true)
	if err != nil {
		return err
	}

	start := models.Day(time.Now())
	end := start.AddDate(0, 0, exportDays)
	result, err := svc.ExportICal(context.Background(), track, start, end)
	if err != nil {
		return fmt.Errorf("export ical: %w", err)
	}
	return writeExport(result)
}

// exportService assembles the read-side of the schedule stack without
// starting the server. The iCal export needs a snapshot, so rebuild is
// optional.
func exportService(rebuild bool) (*schedule.ExportService, error) {
	if err := loadConfig(); err != nil {
		return nil, err
	}

	database, err := initDatabase()
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	ctx := context.Background()
	bus := events.NewBus()
	cat := catalog.NewService(database, nil, logger)
	store := schedule.NewStore(database, nil, bus, logger)
	resolver := duration.NewResolver(cat, logger)
	builder := schedule.NewBuilder(store, resolver, bus, cfg.ExpansionHorizon, logger)

	if rebuild {
		if _, err := builder.Rebuild(ctx); err != nil {
			return nil, fmt.Errorf("build snapshot: %w", err)
		}
	}

	var archive storage.ObjectStore
	if exportArchive {
		archive, err = storage.NewObjectStore(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create archive store: %w", err)
		}
		if err := archive.CheckAccess(ctx); err != nil {
			return nil, fmt.Errorf("archive store inaccessible: %w", err)
		}
	}

	return schedule.NewExportService(store, builder, archive, bus, logger), nil
}

func writeExport(result *schedule.ExportResult) error {
	if exportOutPath == "" {
		_, err := os.Stdout.Write(result.Data)
		return err
	}

	if err := os.WriteFile(exportOutPath, result.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOutPath, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", exportOutPath, len(result.Data))
	if result.ArchiveKey != "" {
		fmt.Fprintf(os.Stderr, "archived as %s\n", result.ArchiveKey)
	}
	return nil
}
