/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/friendsincode/grimnir_player/internal/models"
)

// exportSpan bounds iCal exports when the caller gives no range.
const exportSpan = 7 * 24 * time.Hour

func (a *API) handleExportICal(w http.ResponseWriter, r *http.Request) {
	track := models.Track(r.URL.Query().Get("track"))
	if track != "" && !track.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_track")
		return
	}

	now := time.Now().UTC()
	from, to, err := timeRange(r, models.Day(now), models.Day(now.Add(exportSpan)))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}

	result, err := a.export.ExportICal(r.Context(), track, from, to)
	if err != nil {
		a.logger.Error().Err(err).Msg("ical export failed")
		writeError(w, http.StatusServiceUnavailable, "export_failed")
		return
	}

	writeExport(w, result.ContentType, result.Filename, result.Data)
}

func (a *API) handleExportYAML(w http.ResponseWriter, r *http.Request) {
	result, err := a.export.ExportYAML(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("yaml export failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	writeExport(w, result.ContentType, result.Filename, result.Data)
}

func (a *API) handleImportYAML(w http.ResponseWriter, r *http.Request) {
	result, err := a.export.ImportYAML(r.Context(), r.Body)
	if err != nil {
		a.logger.Error().Err(err).Msg("yaml import failed")
		writeError(w, http.StatusBadRequest, "invalid_yaml")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleExportArchive(w http.ResponseWriter, r *http.Request) {
	keys, err := a.export.ListArchived(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list archived exports failed")
		writeError(w, http.StatusInternalServerError, "archive_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func writeExport(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
