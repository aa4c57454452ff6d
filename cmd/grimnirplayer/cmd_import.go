/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_player/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import schedules from the legacy players",
	Long:  "Import sequences, playlists, and schedule definitions from the desktop player's schedule file or the legacy server's database",
}

var importDesktopCmd = &cobra.Command{
	Use:   "desktop",
	Short: "Import from a desktop player schedule file",
	Long:  "Read the desktop player's on-disk SQLite schedule file and import its songs, song lists, and schedules",
	RunE:  runImportDesktop,
}

var importServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Import from the legacy server database",
	Long:  "Read the legacy server's PostgreSQL schedule tables and import its sequences, playlists, and schedules",
	RunE:  runImportServer,
}

// Desktop import flags
var (
	desktopFilePath string
	desktopDryRun   bool
)

// Server import flags
var (
	serverDSN    string
	serverDryRun bool
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importDesktopCmd)
	importCmd.AddCommand(importServerCmd)

	importDesktopCmd.Flags().StringVar(&desktopFilePath, "file", "", "Path to the desktop player schedule file (required)")
	importDesktopCmd.Flags().BoolVar(&desktopDryRun, "dry-run", false, "Analyze the file without importing")
	importDesktopCmd.MarkFlagRequired("file")

	importServerCmd.Flags().StringVar(&serverDSN, "dsn", "", "PostgreSQL DSN of the legacy server database (required)")
	importServerCmd.Flags().BoolVar(&serverDryRun, "dry-run", false, "Analyze the database without importing")
	importServerCmd.MarkFlagRequired("dsn")
}

func runImportDesktop(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().
		Str("file", desktopFilePath).
		Bool("dry_run", desktopDryRun).
		Msg("starting desktop import")

	ctx := context.Background()
	payload, err := importer.NewDesktopImporter(desktopFilePath, logger).Read(ctx)
	if err != nil {
		return fmt.Errorf("read desktop file: %w", err)
	}

	return applyImport(ctx, payload, desktopDryRun)
}

func runImportServer(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().
		Bool("dry_run", serverDryRun).
		Msg("starting legacy server import")

	ctx := context.Background()
	payload, err := importer.NewServerImporter(serverDSN, logger).Read(ctx)
	if err != nil {
		return fmt.Errorf("read legacy server: %w", err)
	}

	return applyImport(ctx, payload, serverDryRun)
}

func applyImport(ctx context.Context, payload *importer.Payload, dryRun bool) error {
	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	report, err := importer.Apply(ctx, database, payload, dryRun, logger)
	if err != nil {
		return fmt.Errorf("apply import: %w", err)
	}

	fmt.Printf("Imported from %s%s:\n", report.Source, dryRunSuffix(report.DryRun))
	fmt.Printf("  sequences:   %d\n", report.Sequences)
	fmt.Printf("  playlists:   %d\n", report.Playlists)
	fmt.Printf("  items:       %d\n", report.Items)
	fmt.Printf("  definitions: %d\n", report.Definitions)
	if len(report.Skipped) > 0 {
		fmt.Printf("  skipped:     %d\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Printf("    - %s %q: %s\n", s.Entity, s.Ref, s.Reason)
		}
	}
	return nil
}

func dryRunSuffix(dryRun bool) string {
	if dryRun {
		return " (dry run)"
	}
	return ""
}
