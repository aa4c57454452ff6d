/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the scheduling engine over HTTP: definition and
// catalog management, arbitration queries, the decision stream, and
// schedule export. Everything mounts under /api/v1; health, version,
// and login are public, the rest requires a JWT or API key.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_player/internal/auth"
	"github.com/friendsincode/grimnir_player/internal/catalog"
	"github.com/friendsincode/grimnir_player/internal/duration"
	"github.com/friendsincode/grimnir_player/internal/engine"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/recurrence"
	"github.com/friendsincode/grimnir_player/internal/schedule"
	"github.com/friendsincode/grimnir_player/internal/version"
)

// Version is stamped by the build; the default marks source builds.
var Version = "dev"

// API wires the HTTP surface to the scheduling services.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	bus       engine.Bus
	store     *schedule.Store
	builder   *schedule.Builder
	validator *schedule.Validator
	catalog   *catalog.Service
	resolver  *duration.Resolver
	expander  *recurrence.Expander
	logger    zerolog.Logger

	engine  *engine.Engine          // nil disables decision queries and the stream
	export  *schedule.ExportService // nil disables export and import routes
	updates *version.Checker        // nil hides update info on /version

	adminUser         string
	adminPasswordHash string
}

// New creates the API layer. The engine, export service, and admin
// credentials attach through setters.
func New(db *gorm.DB, jwtSecret []byte, bus engine.Bus, store *schedule.Store, builder *schedule.Builder, validator *schedule.Validator, cat *catalog.Service, resolver *duration.Resolver, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		jwtSecret: jwtSecret,
		bus:       bus,
		store:     store,
		builder:   builder,
		validator: validator,
		catalog:   cat,
		resolver:  resolver,
		expander:  recurrence.NewExpander(logger),
		logger:    logger,
	}
}

// SetEngine attaches the decision engine.
func (a *API) SetEngine(e *engine.Engine) {
	a.engine = e
}

// SetExportService attaches the schedule export service.
func (a *API) SetExportService(svc *schedule.ExportService) {
	a.export = svc
}

// SetUpdateChecker attaches the background version checker.
func (a *API) SetUpdateChecker(c *version.Checker) {
	a.updates = c
}

// SetAdminCredentials enables password login for the bootstrap admin.
// An empty hash leaves password login disabled.
func (a *API) SetAdminCredentials(user, passwordHash string) {
	a.adminUser = user
	a.adminPasswordHash = passwordHash
}

// Routes registers all API routes on the given router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Get("/health", a.handleHealth)
		r.Get("/version", a.handleVersion)
		r.Post("/auth/login", a.handleLogin)

		// Protected endpoints
		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Get("/definitions", a.handleDefinitionsList)
			pr.Get("/definitions/{definitionID}", a.handleDefinitionsGet)
			pr.Get("/definitions/{definitionID}/occurrences", a.handleDefinitionOccurrences)
			pr.Post("/definitions/validate", a.handleDefinitionValidate)
			pr.Post("/definitions/preview", a.handleDefinitionPreview)
			pr.With(auth.RequireAdmin).Post("/definitions", a.handleDefinitionsCreate)
			pr.With(auth.RequireAdmin).Put("/definitions/{definitionID}", a.handleDefinitionsUpdate)
			pr.With(auth.RequireAdmin).Delete("/definitions/{definitionID}", a.handleDefinitionsDelete)

			pr.Get("/occurrences", a.handleOccurrencesList)
			pr.With(auth.RequireAdmin).Post("/occurrences/{occurrenceID}", a.handleOccurrenceEdit)
			pr.With(auth.RequireAdmin).Delete("/occurrences/{occurrenceID}", a.handleOccurrenceDelete)

			pr.Get("/active", a.handleActiveNow)
			pr.Get("/active/at", a.handleActiveAt)
			pr.Get("/decisions/stream", a.handleDecisionStream)

			pr.Get("/snapshot", a.handleSnapshot)
			pr.With(auth.RequireAdmin).Post("/snapshot/rebuild", a.handleSnapshotRebuild)

			pr.Get("/sequences", a.handleSequencesList)
			pr.Get("/sequences/{sequenceID}", a.handleSequencesGet)
			pr.With(auth.RequireAdmin).Post("/sequences", a.handleSequencesCreate)
			pr.With(auth.RequireAdmin).Put("/sequences/{sequenceID}", a.handleSequencesUpdate)
			pr.With(auth.RequireAdmin).Delete("/sequences/{sequenceID}", a.handleSequencesDelete)

			pr.Get("/playlists", a.handlePlaylistsList)
			pr.Get("/playlists/{playlistID}", a.handlePlaylistsGet)
			pr.Get("/playlists/{playlistID}/duration", a.handlePlaylistDuration)
			pr.With(auth.RequireAdmin).Post("/playlists", a.handlePlaylistsCreate)
			pr.With(auth.RequireAdmin).Put("/playlists/{playlistID}/items", a.handlePlaylistItemsReplace)
			pr.With(auth.RequireAdmin).Delete("/playlists/{playlistID}", a.handlePlaylistsDelete)

			// Export and backup (admin)
			if a.export != nil {
				pr.Group(func(er chi.Router) {
					er.Use(auth.RequireAdmin)
					er.Get("/export/ical", a.handleExportICal)
					er.Get("/export/yaml", a.handleExportYAML)
					er.Get("/export/archive", a.handleExportArchive)
					er.Post("/import/yaml", a.handleImportYAML)
				})
			}

			// Key management (admin)
			pr.Group(func(kr chi.Router) {
				kr.Use(auth.RequireAdmin)
				kr.Get("/auth/apikeys", a.handleAPIKeysList)
				kr.Post("/auth/apikeys", a.handleAPIKeysCreate)
				kr.Delete("/auth/apikeys/{keyID}", a.handleAPIKeysRevoke)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"version": Version}
	if a.updates != nil {
		info := a.updates.Info()
		body["updateAvailable"] = info.UpdateAvailable
		if info.UpdateAvailable {
			body["latestVersion"] = info.LatestVersion
			body["releaseUrl"] = info.ReleaseURL
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := a.builder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot_unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":     snap.Version,
		"builtAt":     snap.BuiltAt,
		"windowStart": snap.WindowStart,
		"windowEnd":   snap.WindowEnd,
		"occurrences": len(snap.Occurrences),
		"diagnostics": snap.Diagnostics,
	})
}

func (a *API) handleSnapshotRebuild(w http.ResponseWriter, r *http.Request) {
	snap, err := a.builder.Rebuild(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("snapshot rebuild failed")
		writeError(w, http.StatusInternalServerError, "rebuild_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":     snap.Version,
		"occurrences": len(snap.Occurrences),
	})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.MiddlewareWithJWT(a.db, a.jwtSecret)
}

// parseTimeParam accepts civil dates and RFC3339 instants.
func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(models.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// timeRange reads the from/to query params, falling back to the given
// defaults when absent.
func timeRange(r *http.Request, defFrom, defTo time.Time) (time.Time, time.Time, error) {
	from, to := defFrom, defTo
	if s := r.URL.Query().Get("from"); s != "" {
		t, err := parseTimeParam(s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("from: %w", err)
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := parseTimeParam(s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("to: %w", err)
		}
		to = t
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("empty range")
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
