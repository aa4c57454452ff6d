/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package importer

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/models"
)

// DesktopImporter reads the desktop player's on-disk SQLite file. The
// desktop schema keeps songs, song lists, and show schedules in four
// tables; the file is opened read-only and never modified.
type DesktopImporter struct {
	path   string
	logger zerolog.Logger
}

// NewDesktopImporter creates an importer for the SQLite file at path.
func NewDesktopImporter(path string, logger zerolog.Logger) *DesktopImporter {
	return &DesktopImporter{
		path:   path,
		logger: logger.With().Str("importer", "desktop").Logger(),
	}
}

// Read loads and converts the desktop file into a payload.
func (d *DesktopImporter) Read(ctx context.Context) (*Payload, error) {
	if _, err := os.Stat(d.path); err != nil {
		return nil, fmt.Errorf("desktop schedule file: %w", err)
	}

	database, err := sql.Open("sqlite3", "file:"+d.path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open desktop schedule file: %w", err)
	}
	defer database.Close()

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("read desktop schedule file: %w", err)
	}

	payload := &Payload{Source: SourceDesktop}

	if err := d.readSongs(ctx, database, payload); err != nil {
		return nil, err
	}
	if err := d.readSongLists(ctx, database, payload); err != nil {
		return nil, err
	}
	if err := d.readSchedules(ctx, database, payload); err != nil {
		return nil, err
	}

	d.logger.Info().
		Int("sequences", len(payload.Sequences)).
		Int("playlists", len(payload.Playlists)).
		Int("definitions", len(payload.Definitions)).
		Msg("desktop file read")

	return payload, nil
}

func (d *DesktopImporter) readSongs(ctx context.Context, database *sql.DB, payload *Payload) error {
	rows, err := database.QueryContext(ctx, `SELECT id, name, length_ms FROM songs`)
	if err != nil {
		return fmt.Errorf("query desktop songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key      string
			name     string
			lengthMs sql.NullInt64
		)
		if err := rows.Scan(&key, &name, &lengthMs); err != nil {
			return fmt.Errorf("scan desktop song: %w", err)
		}
		payload.Sequences = append(payload.Sequences, models.Sequence{
			ID:       stableID(SourceDesktop, "sequence", key),
			Name:     name,
			LengthMs: lengthMs.Int64,
		})
	}
	return rows.Err()
}

func (d *DesktopImporter) readSongLists(ctx context.Context, database *sql.DB, payload *Payload) error {
	rows, err := database.QueryContext(ctx, `SELECT id, name FROM song_lists`)
	if err != nil {
		return fmt.Errorf("query desktop song lists: %w", err)
	}
	for rows.Next() {
		var key, name string
		if err := rows.Scan(&key, &name); err != nil {
			rows.Close()
			return fmt.Errorf("scan desktop song list: %w", err)
		}
		payload.Playlists = append(payload.Playlists, models.Playlist{
			ID:   stableID(SourceDesktop, "playlist", key),
			Name: name,
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	itemRows, err := database.QueryContext(ctx,
		`SELECT list_id, song_id, position FROM song_list_items ORDER BY list_id, position`)
	if err != nil {
		return fmt.Errorf("query desktop song list items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var listKey, songKey string
		var position int
		if err := itemRows.Scan(&listKey, &songKey, &position); err != nil {
			return fmt.Errorf("scan desktop song list item: %w", err)
		}
		payload.Items = append(payload.Items, models.PlaylistItem{
			ID:         stableID(SourceDesktop, "item", listKey+"#"+songKey+"#"+fmt.Sprint(position)),
			PlaylistID: stableID(SourceDesktop, "playlist", listKey),
			Position:   position,
			SequenceID: stableID(SourceDesktop, "sequence", songKey),
		})
	}
	return itemRows.Err()
}

func (d *DesktopImporter) readSchedules(ctx context.Context, database *sql.DB, payload *Payload) error {
	rows, err := database.QueryContext(ctx, `
		SELECT id, song_list_id, COALESCE(pre_list_id, ''), COALESCE(post_list_id, ''),
		       title, from_time, to_time, recurrence,
		       COALESCE(start_date, ''), COALESCE(end_date, ''), COALESCE(week_days, ''),
		       shuffle, loop, priority, end_policy,
		       hard_cut_in, prefer_hard_cut_in, keep_to_schedule,
		       schedule_type, COALESCE(base_schedule_id, ''), deleted
		  FROM schedules`)
	if err != nil {
		return fmt.Errorf("query desktop schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row legacyDefinition
		if err := rows.Scan(
			&row.Key, &row.PlaylistKey, &row.PrePlaylistKey, &row.PostPlaylistKey,
			&row.Title, &row.FromTime, &row.ToTime, &row.Recurrence,
			&row.StartDate, &row.EndDate, &row.WeekDays,
			&row.Shuffle, &row.Loop, &row.Priority, &row.EndPolicy,
			&row.HardCutIn, &row.PreferHardCutIn, &row.KeepToSchedule,
			&row.ScheduleType, &row.BaseKey, &row.Deleted,
		); err != nil {
			return fmt.Errorf("scan desktop schedule: %w", err)
		}

		def, err := convertDefinition(SourceDesktop, row)
		if err != nil {
			d.logger.Warn().Str("schedule", row.Title).Err(err).Msg("unconvertible desktop schedule")
			continue
		}
		payload.Definitions = append(payload.Definitions, def)
	}
	return rows.Err()
}
