/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/recurrence"
	"github.com/friendsincode/grimnir_player/internal/schedule"
	"github.com/friendsincode/grimnir_player/internal/series"
	"github.com/friendsincode/grimnir_player/internal/timecode"
)

// previewSpan bounds expansion previews when the caller gives no range.
const previewSpan = 7 * 24 * time.Hour

// validationCode maps an admission error to its wire code.
func validationCode(err error) string {
	switch {
	case errors.Is(err, timecode.ErrInvalidTime):
		return "invalid_time"
	case errors.Is(err, models.ErrMissingRecurrenceRule):
		return "missing_recurrence_rule"
	case errors.Is(err, models.ErrMissingRecurrenceEnd):
		return "missing_recurrence_end"
	case errors.Is(err, models.ErrAmbiguousSelectedDays):
		return "ambiguous_selected_days"
	default:
		return "invalid_definition"
	}
}

func (a *API) handleDefinitionsList(w http.ResponseWriter, r *http.Request) {
	defs, err := a.store.ListDefinitions(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list definitions failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, defs)
}

func (a *API) handleDefinitionsCreate(w http.ResponseWriter, r *http.Request) {
	var def models.ScheduleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if def.Recurrence.IsSeries() && def.BaseScheduleID == "" {
		def.BaseScheduleID = def.ID
	}
	if err := def.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, validationCode(err))
		return
	}

	if err := a.store.CreateDefinition(r.Context(), &def); err != nil {
		a.logger.Error().Err(err).Msg("create definition failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusCreated, def)
}

func (a *API) handleDefinitionsGet(w http.ResponseWriter, r *http.Request) {
	def, err := a.store.GetDefinition(r.Context(), chi.URLParam(r, "definitionID"))
	if err != nil {
		if errors.Is(err, schedule.ErrDefinitionNotFound) {
			writeError(w, http.StatusNotFound, "definition_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("get definition failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, def)
}

func (a *API) handleDefinitionsUpdate(w http.ResponseWriter, r *http.Request) {
	var def models.ScheduleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	def.ID = chi.URLParam(r, "definitionID")
	if err := def.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, validationCode(err))
		return
	}

	if err := a.store.UpdateDefinition(r.Context(), &def); err != nil {
		if errors.Is(err, schedule.ErrDefinitionNotFound) {
			writeError(w, http.StatusNotFound, "definition_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("update definition failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, def)
}

func (a *API) handleDefinitionsDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteDefinition(r.Context(), chi.URLParam(r, "definitionID")); err != nil {
		if errors.Is(err, schedule.ErrDefinitionNotFound) {
			writeError(w, http.StatusNotFound, "definition_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("delete definition failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleDefinitionValidate reports how a candidate would interact with
// the current schedule without persisting it. The report itself is the
// payload; an inadmissible candidate is still a 200.
func (a *API) handleDefinitionValidate(w http.ResponseWriter, r *http.Request) {
	var def models.ScheduleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	writeJSON(w, http.StatusOK, a.validator.ValidateDefinition(&def))
}

// handleDefinitionPreview expands a candidate over a date range without
// persisting it, durations annotated from the catalog.
func (a *API) handleDefinitionPreview(w http.ResponseWriter, r *http.Request) {
	var def models.ScheduleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if def.Recurrence.IsSeries() && def.BaseScheduleID == "" {
		def.BaseScheduleID = def.ID
	}
	if err := def.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, validationCode(err))
		return
	}

	now := time.Now().UTC()
	from, to, err := timeRange(r, models.Day(now), models.Day(now.Add(previewSpan)))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}

	occs, diags, err := a.expander.Expand(&def, recurrence.NewWindow(from, to))
	if err != nil {
		a.logger.Error().Err(err).Str("definition_id", def.ID).Msg("preview expansion failed")
		writeError(w, http.StatusBadRequest, "expansion_failed")
		return
	}

	result, err := a.resolver.Resolve(r.Context(), def.PlaylistID, def.PrePlaylistID, def.PostPlaylistID)
	if err != nil {
		a.logger.Error().Err(err).Str("playlist_id", def.PlaylistID).Msg("preview duration failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	for i := range occs {
		occs[i].DurationMs = result.TotalMs
	}
	diags = append(diags, result.Diagnostics()...)

	writeJSON(w, http.StatusOK, map[string]any{
		"from":        from,
		"to":          to,
		"occurrences": occs,
		"diagnostics": diags,
	})
}

// handleDefinitionOccurrences lists the snapshot occurrences belonging
// to a definition's series.
func (a *API) handleDefinitionOccurrences(w http.ResponseWriter, r *http.Request) {
	def, err := a.store.GetDefinition(r.Context(), chi.URLParam(r, "definitionID"))
	if err != nil {
		if errors.Is(err, schedule.ErrDefinitionNotFound) {
			writeError(w, http.StatusNotFound, "definition_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("get definition failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	snap := a.builder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot_unavailable")
		return
	}

	seriesID := def.SeriesID()
	occs := make([]models.Occurrence, 0, 8)
	for i := range snap.Occurrences {
		if snap.Occurrences[i].SeriesID() == seriesID {
			occs = append(occs, snap.Occurrences[i])
		}
	}

	writeJSON(w, http.StatusOK, occs)
}

func (a *API) handleOccurrencesList(w http.ResponseWriter, r *http.Request) {
	snap := a.builder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot_unavailable")
		return
	}

	from, to, err := timeRange(r, snap.WindowStart, snap.WindowEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}

	track := models.Track(r.URL.Query().Get("track"))
	if track != "" && !track.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_track")
		return
	}

	occs := snap.Between(from, to)
	if track != "" {
		filtered := occs[:0]
		for _, occ := range occs {
			if occ.ScheduleType == track {
				filtered = append(filtered, occ)
			}
		}
		occs = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":     snap.Version,
		"occurrences": occs,
	})
}

// occurrenceEditRequest scopes an edit to one occurrence or its whole
// series, optionally replacing what it removes.
type occurrenceEditRequest struct {
	Mode        string                     `json:"mode"`
	Replacement *models.ScheduleDefinition `json:"replacement,omitempty"`
}

func (a *API) handleOccurrenceEdit(w http.ResponseWriter, r *http.Request) {
	var req occurrenceEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	a.applyOccurrenceEdit(w, r, req)
}

func (a *API) handleOccurrenceDelete(w http.ResponseWriter, r *http.Request) {
	a.applyOccurrenceEdit(w, r, occurrenceEditRequest{Mode: r.URL.Query().Get("mode")})
}

func (a *API) applyOccurrenceEdit(w http.ResponseWriter, r *http.Request, req occurrenceEditRequest) {
	snap := a.builder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot_unavailable")
		return
	}

	target := snap.Find(chi.URLParam(r, "occurrenceID"))
	if target == nil {
		writeError(w, http.StatusNotFound, "occurrence_not_found")
		return
	}

	if req.Mode == "" {
		req.Mode = string(series.ModeSingle)
	}
	mode := series.Mode(req.Mode)
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "unknown_edit_mode")
		return
	}

	result, err := a.store.ApplyOccurrenceEdit(r.Context(), snap.Occurrences, *target, mode, req.Replacement)
	if err != nil {
		switch {
		case errors.Is(err, series.ErrUnknownMode):
			writeError(w, http.StatusBadRequest, "unknown_edit_mode")
		case errors.Is(err, series.ErrInvalidReplacement):
			writeError(w, http.StatusBadRequest, validationCode(err))
		default:
			a.logger.Error().Err(err).Str("occurrence_id", target.ID).Msg("occurrence edit failed")
			writeError(w, http.StatusInternalServerError, "db_error")
		}
		return
	}

	created := make([]string, 0, len(result.ToCreate))
	for i := range result.ToCreate {
		created = append(created, result.ToCreate[i].ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":    string(mode),
		"removed": result.ToDelete,
		"created": created,
	})
}
