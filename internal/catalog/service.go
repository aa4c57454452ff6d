/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog stores the sequences and playlists schedules refer to.
// The engine only reads lengths and item order from it; playback and
// media handling live outside this system.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/grimnir_player/internal/cache"
	"github.com/friendsincode/grimnir_player/internal/models"
)

var (
	// ErrSequenceNotFound indicates the sequence was not found.
	ErrSequenceNotFound = errors.New("sequence not found")

	// ErrPlaylistNotFound indicates the playlist was not found.
	ErrPlaylistNotFound = errors.New("playlist not found")
)

// Service manages catalog records and answers duration lookups.
type Service struct {
	db     *gorm.DB
	cache  *cache.Cache // nil when caching is off
	logger zerolog.Logger
}

// NewService creates a catalog service.
func NewService(db *gorm.DB, c *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// SequenceLength reports a sequence's length in milliseconds. A dangling
// reference returns ok=false with no error; schedules degrade rather
// than fail on missing content.
func (s *Service) SequenceLength(ctx context.Context, sequenceID string) (int64, bool, error) {
	if s.cache != nil {
		if lengthMs, found := s.cache.GetSequenceLength(ctx, sequenceID); found {
			return lengthMs, true, nil
		}
	}

	var seq models.Sequence
	if err := s.db.WithContext(ctx).First(&seq, "id = ?", sequenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query sequence: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.SetSequenceLength(ctx, sequenceID, seq.LengthMs)
	}

	return seq.LengthMs, true, nil
}

// PlaylistItems returns the sequence ids of a playlist in position order.
// An unknown playlist yields an empty list, not an error.
func (s *Service) PlaylistItems(ctx context.Context, playlistID string) ([]string, error) {
	if s.cache != nil {
		if items, found := s.cache.GetPlaylistItems(ctx, playlistID); found {
			return itemSequenceIDs(items), nil
		}
	}

	var items []models.PlaylistItem
	if err := s.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Order("position ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("query playlist items: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.SetPlaylistItems(ctx, playlistID, items)
	}

	return itemSequenceIDs(items), nil
}

func itemSequenceIDs(items []models.PlaylistItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.SequenceID)
	}
	return ids
}

// Sequence CRUD

// CreateSequence stores a new sequence.
func (s *Service) CreateSequence(ctx context.Context, seq *models.Sequence) error {
	if seq.ID == "" {
		seq.ID = uuid.NewString()
	}

	if err := s.db.WithContext(ctx).Create(seq).Error; err != nil {
		return fmt.Errorf("create sequence: %w", err)
	}

	s.logger.Info().Str("sequence_id", seq.ID).Str("name", seq.Name).Msg("sequence created")
	return nil
}

// UpsertSequences inserts or updates sequences in bulk. Importers use
// this to make reruns idempotent.
func (s *Service) UpsertSequences(ctx context.Context, seqs []models.Sequence) error {
	if len(seqs) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":       gorm.Expr("excluded.name"),
			"length_ms":  gorm.Expr("excluded.length_ms"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&seqs).Error; err != nil {
		return fmt.Errorf("upsert sequences: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.InvalidateCatalog(ctx)
	}

	return nil
}

// GetSequence retrieves a sequence by ID.
func (s *Service) GetSequence(ctx context.Context, id string) (*models.Sequence, error) {
	var seq models.Sequence
	if err := s.db.WithContext(ctx).First(&seq, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSequenceNotFound
		}
		return nil, fmt.Errorf("query sequence: %w", err)
	}

	return &seq, nil
}

// ListSequences lists all sequences ordered by name.
func (s *Service) ListSequences(ctx context.Context) ([]models.Sequence, error) {
	var seqs []models.Sequence
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&seqs).Error; err != nil {
		return nil, fmt.Errorf("query sequences: %w", err)
	}

	return seqs, nil
}

// UpdateSequence applies field updates to a sequence.
func (s *Service) UpdateSequence(ctx context.Context, id string, updates map[string]any) error {
	var seq models.Sequence
	if err := s.db.WithContext(ctx).First(&seq, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSequenceNotFound
		}
		return fmt.Errorf("query sequence: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&seq).Updates(updates).Error; err != nil {
		return fmt.Errorf("update sequence: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.InvalidateSequenceLength(ctx, id)
	}

	s.logger.Info().Str("sequence_id", id).Msg("sequence updated")
	return nil
}

// DeleteSequence removes a sequence. Playlist items referring to it
// become dangling references and resolve to zero length.
func (s *Service) DeleteSequence(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.Sequence{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete sequence: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.InvalidateSequenceLength(ctx, id)
	}

	s.logger.Info().Str("sequence_id", id).Msg("sequence deleted")
	return nil
}

// Playlist CRUD

// CreatePlaylist stores a new playlist, optionally with items.
func (s *Service) CreatePlaylist(ctx context.Context, pl *models.Playlist, sequenceIDs []string) error {
	if pl.ID == "" {
		pl.ID = uuid.NewString()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pl).Error; err != nil {
			return fmt.Errorf("create playlist: %w", err)
		}
		return replaceItems(tx, pl.ID, sequenceIDs)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("playlist_id", pl.ID).
		Str("name", pl.Name).
		Int("item_count", len(sequenceIDs)).
		Msg("playlist created")

	return nil
}

// GetPlaylist retrieves a playlist by ID.
func (s *Service) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var pl models.Playlist
	if err := s.db.WithContext(ctx).First(&pl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("query playlist: %w", err)
	}

	return &pl, nil
}

// ListPlaylists lists all playlists ordered by name.
func (s *Service) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var pls []models.Playlist
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&pls).Error; err != nil {
		return nil, fmt.Errorf("query playlists: %w", err)
	}

	return pls, nil
}

// ReplacePlaylistItems swaps a playlist's contents for a new ordered
// sequence list in one transaction.
func (s *Service) ReplacePlaylistItems(ctx context.Context, playlistID string, sequenceIDs []string) error {
	var pl models.Playlist
	if err := s.db.WithContext(ctx).First(&pl, "id = ?", playlistID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPlaylistNotFound
		}
		return fmt.Errorf("query playlist: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.PlaylistItem{}, "playlist_id = ?", playlistID).Error; err != nil {
			return fmt.Errorf("clear playlist items: %w", err)
		}
		return replaceItems(tx, playlistID, sequenceIDs)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.InvalidatePlaylistItems(ctx, playlistID)
	}

	s.logger.Info().
		Str("playlist_id", playlistID).
		Int("item_count", len(sequenceIDs)).
		Msg("playlist items replaced")

	return nil
}

// DeletePlaylist removes a playlist and its items.
func (s *Service) DeletePlaylist(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.PlaylistItem{}, "playlist_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete playlist items: %w", err)
		}
		if err := tx.Delete(&models.Playlist{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete playlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.InvalidatePlaylistItems(ctx, id)
	}

	s.logger.Info().Str("playlist_id", id).Msg("playlist deleted")
	return nil
}

func replaceItems(tx *gorm.DB, playlistID string, sequenceIDs []string) error {
	if len(sequenceIDs) == 0 {
		return nil
	}

	items := make([]models.PlaylistItem, 0, len(sequenceIDs))
	for i, seqID := range sequenceIDs {
		items = append(items, models.PlaylistItem{
			ID:         uuid.NewString(),
			PlaylistID: playlistID,
			Position:   i,
			SequenceID: seqID,
		})
	}

	if err := tx.Create(&items).Error; err != nil {
		return fmt.Errorf("create playlist items: %w", err)
	}

	return nil
}
