/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// Sequence is a playable media asset known to the catalog. The engine
// only consumes its reported length; content handling lives elsewhere.
type Sequence struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string `gorm:"index" json:"name"`
	LengthMs  int64  `json:"lengthMs"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (Sequence) TableName() string { return "sequences" }

// Playlist is an ordered collection of sequences.
type Playlist struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string `gorm:"index" json:"name"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (Playlist) TableName() string { return "playlists" }

// PlaylistItem places one sequence at a position inside a playlist.
type PlaylistItem struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	PlaylistID string `gorm:"type:uuid;index:idx_playlist_items_playlist" json:"playlistId"`
	Position   int    `gorm:"index:idx_playlist_items_playlist" json:"position"`
	SequenceID string `gorm:"type:uuid" json:"sequenceId"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for GORM.
func (PlaylistItem) TableName() string { return "playlist_items" }
