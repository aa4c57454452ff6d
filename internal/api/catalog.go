/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_player/internal/catalog"
	"github.com/friendsincode/grimnir_player/internal/models"
)

func (a *API) handleSequencesList(w http.ResponseWriter, r *http.Request) {
	seqs, err := a.catalog.ListSequences(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list sequences failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, seqs)
}

func (a *API) handleSequencesGet(w http.ResponseWriter, r *http.Request) {
	seq, err := a.catalog.GetSequence(r.Context(), chi.URLParam(r, "sequenceID"))
	if err != nil {
		if errors.Is(err, catalog.ErrSequenceNotFound) {
			writeError(w, http.StatusNotFound, "sequence_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("get sequence failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, seq)
}

func (a *API) handleSequencesCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		LengthMs int64  `json:"lengthMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if req.LengthMs < 0 {
		writeError(w, http.StatusBadRequest, "negative_length")
		return
	}

	seq := models.Sequence{ID: req.ID, Name: req.Name, LengthMs: req.LengthMs}
	if err := a.catalog.CreateSequence(r.Context(), &seq); err != nil {
		a.logger.Error().Err(err).Msg("create sequence failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusCreated, seq)
}

func (a *API) handleSequencesUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name"`
		LengthMs *int64  `json:"lengthMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := make(map[string]any, 2)
	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name_required")
			return
		}
		updates["name"] = *req.Name
	}
	if req.LengthMs != nil {
		if *req.LengthMs < 0 {
			writeError(w, http.StatusBadRequest, "negative_length")
			return
		}
		updates["length_ms"] = *req.LengthMs
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no_updates")
		return
	}

	id := chi.URLParam(r, "sequenceID")
	if err := a.catalog.UpdateSequence(r.Context(), id, updates); err != nil {
		if errors.Is(err, catalog.ErrSequenceNotFound) {
			writeError(w, http.StatusNotFound, "sequence_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("update sequence failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	seq, err := a.catalog.GetSequence(r.Context(), id)
	if err != nil {
		a.logger.Error().Err(err).Msg("get sequence failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, seq)
}

func (a *API) handleSequencesDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.catalog.DeleteSequence(r.Context(), chi.URLParam(r, "sequenceID")); err != nil {
		a.logger.Error().Err(err).Msg("delete sequence failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// playlistResponse joins a playlist with its ordered sequence ids.
type playlistResponse struct {
	models.Playlist
	SequenceIDs []string `json:"sequenceIds"`
}

func (a *API) handlePlaylistsList(w http.ResponseWriter, r *http.Request) {
	pls, err := a.catalog.ListPlaylists(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list playlists failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, pls)
}

func (a *API) handlePlaylistsGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playlistID")

	pl, err := a.catalog.GetPlaylist(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "playlist_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("get playlist failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	items, err := a.catalog.PlaylistItems(r.Context(), id)
	if err != nil {
		a.logger.Error().Err(err).Msg("get playlist items failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, playlistResponse{Playlist: *pl, SequenceIDs: items})
}

func (a *API) handlePlaylistsCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		SequenceIDs []string `json:"sequenceIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	pl := models.Playlist{ID: req.ID, Name: req.Name}
	if err := a.catalog.CreatePlaylist(r.Context(), &pl, req.SequenceIDs); err != nil {
		a.logger.Error().Err(err).Msg("create playlist failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusCreated, playlistResponse{Playlist: pl, SequenceIDs: req.SequenceIDs})
}

func (a *API) handlePlaylistItemsReplace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SequenceIDs []string `json:"sequenceIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	id := chi.URLParam(r, "playlistID")
	if err := a.catalog.ReplacePlaylistItems(r.Context(), id, req.SequenceIDs); err != nil {
		if errors.Is(err, catalog.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "playlist_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("replace playlist items failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "sequenceIds": req.SequenceIDs})
}

func (a *API) handlePlaylistsDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.catalog.DeletePlaylist(r.Context(), chi.URLParam(r, "playlistID")); err != nil {
		a.logger.Error().Err(err).Msg("delete playlist failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handlePlaylistDuration resolves the playlist's total runtime,
// optional pre and post rolls included via query params.
func (a *API) handlePlaylistDuration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playlistID")

	var pre, post *string
	if s := r.URL.Query().Get("pre"); s != "" {
		pre = &s
	}
	if s := r.URL.Query().Get("post"); s != "" {
		post = &s
	}

	result, err := a.resolver.Resolve(r.Context(), id, pre, post)
	if err != nil {
		a.logger.Error().Err(err).Str("playlist_id", id).Msg("duration resolve failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlistId":  id,
		"totalMs":     result.TotalMs,
		"missing":     result.Missing,
		"diagnostics": result.Diagnostics(),
	})
}
