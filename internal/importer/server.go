/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package importer

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/models"
)

// ServerImporter reads the legacy server's Postgres schedule tables.
// The legacy schema prefixes everything with show_; the connection is
// read-only in practice (only SELECTs are issued).
type ServerImporter struct {
	dsn    string
	logger zerolog.Logger
}

// NewServerImporter creates an importer for the Postgres DSN.
func NewServerImporter(dsn string, logger zerolog.Logger) *ServerImporter {
	return &ServerImporter{
		dsn:    dsn,
		logger: logger.With().Str("importer", "server").Logger(),
	}
}

// Read connects and converts the legacy tables into a payload.
func (s *ServerImporter) Read(ctx context.Context) (*Payload, error) {
	database, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open legacy server database: %w", err)
	}
	defer database.Close()

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to legacy server database: %w", err)
	}

	payload := &Payload{Source: SourceServer}

	if err := s.readSequences(ctx, database, payload); err != nil {
		return nil, err
	}
	if err := s.readPlaylists(ctx, database, payload); err != nil {
		return nil, err
	}
	if err := s.readSchedules(ctx, database, payload); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("sequences", len(payload.Sequences)).
		Int("playlists", len(payload.Playlists)).
		Int("definitions", len(payload.Definitions)).
		Msg("legacy server tables read")

	return payload, nil
}

func (s *ServerImporter) readSequences(ctx context.Context, database *sql.DB, payload *Payload) error {
	rows, err := database.QueryContext(ctx,
		`SELECT id::text, name, duration_ms FROM show_sequences WHERE NOT deleted`)
	if err != nil {
		return fmt.Errorf("query legacy sequences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key        string
			name       string
			durationMs sql.NullInt64
		)
		if err := rows.Scan(&key, &name, &durationMs); err != nil {
			return fmt.Errorf("scan legacy sequence: %w", err)
		}
		payload.Sequences = append(payload.Sequences, models.Sequence{
			ID:       stableID(SourceServer, "sequence", key),
			Name:     name,
			LengthMs: durationMs.Int64,
		})
	}
	return rows.Err()
}

func (s *ServerImporter) readPlaylists(ctx context.Context, database *sql.DB, payload *Payload) error {
	rows, err := database.QueryContext(ctx,
		`SELECT id::text, name FROM show_playlists WHERE NOT deleted`)
	if err != nil {
		return fmt.Errorf("query legacy playlists: %w", err)
	}
	for rows.Next() {
		var key, name string
		if err := rows.Scan(&key, &name); err != nil {
			rows.Close()
			return fmt.Errorf("scan legacy playlist: %w", err)
		}
		payload.Playlists = append(payload.Playlists, models.Playlist{
			ID:   stableID(SourceServer, "playlist", key),
			Name: name,
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	itemRows, err := database.QueryContext(ctx, `
		SELECT i.playlist_id::text, i.sequence_id::text, i.position
		  FROM show_playlist_items i
		  JOIN show_playlists p ON p.id = i.playlist_id
		 WHERE NOT p.deleted
		 ORDER BY i.playlist_id, i.position`)
	if err != nil {
		return fmt.Errorf("query legacy playlist items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var listKey, seqKey string
		var position int
		if err := itemRows.Scan(&listKey, &seqKey, &position); err != nil {
			return fmt.Errorf("scan legacy playlist item: %w", err)
		}
		payload.Items = append(payload.Items, models.PlaylistItem{
			ID:         stableID(SourceServer, "item", listKey+"#"+seqKey+"#"+fmt.Sprint(position)),
			PlaylistID: stableID(SourceServer, "playlist", listKey),
			Position:   position,
			SequenceID: stableID(SourceServer, "sequence", seqKey),
		})
	}
	return itemRows.Err()
}

func (s *ServerImporter) readSchedules(ctx context.Context, database *sql.DB, payload *Payload) error {
	rows, err := database.QueryContext(ctx, `
		SELECT id::text, playlist_id::text,
		       COALESCE(pre_playlist_id::text, ''), COALESCE(post_playlist_id::text, ''),
		       title, from_time, to_time, recurrence,
		       COALESCE(start_date::text, ''), COALESCE(end_date::text, ''),
		       COALESCE(week_days, ''),
		       shuffle, "loop", priority, end_policy,
		       hard_cut_in, prefer_hard_cut_in, keep_to_schedule,
		       schedule_type, COALESCE(base_schedule_id::text, ''), deleted
		  FROM show_schedules`)
	if err != nil {
		return fmt.Errorf("query legacy schedules: %w", err)
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
			return fmt.Errorf("scan legacy schedule: %w", err)
		}

		def, err := convertDefinition(SourceServer, row)
		if err != nil {
			s.logger.Warn().Str("schedule", row.Title).Err(err).Msg("unconvertible legacy schedule")
			continue
		}
		payload.Definitions = append(payload.Definitions, def)
	}
	return rows.Err()
}
