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

	"github.com/friendsincode/grimnir_player/internal/auth"
)

// tokenTTL is the lifetime of JWTs minted by the login endpoint.
const tokenTTL = 24 * time.Hour

// defaultKeyTTL applies to API keys created without an explicit expiry.
const defaultKeyTTL = 365 * 24 * time.Hour

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if a.adminPasswordHash == "" {
		writeError(w, http.StatusForbidden, "password_login_disabled")
		return
	}

	claims, err := auth.VerifyAdminLogin(a.adminUser, a.adminPasswordHash, req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.Issue(a.jwtSecret, *claims, tokenTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "token_issue_failed")
		return
	}

	a.logger.Info().Str("user", req.Username).Msg("admin login")

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int64(tokenTTL.Seconds()),
	})
}

func (a *API) handleAPIKeysList(w http.ResponseWriter, r *http.Request) {
	keys, err := auth.ListAPIKeys(a.db.WithContext(r.Context()))
	if err != nil {
		a.logger.Error().Err(err).Msg("list api keys failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, keys)
}

func (a *API) handleAPIKeysCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		Subject       string `json:"subject"`
		Role          string `json:"role"`
		ExpiresInDays int    `json:"expiresInDays"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if req.Role == "" {
		req.Role = "viewer"
	}
	if req.Role != "viewer" && req.Role != "admin" {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if req.Subject == "" {
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
			req.Subject = claims.UserID
		}
	}

	ttl := defaultKeyTTL
	if req.ExpiresInDays > 0 {
		ttl = time.Duration(req.ExpiresInDays) * 24 * time.Hour
	}

	plaintext, key, err := auth.GenerateAPIKey(req.Subject, req.Name, req.Role, ttl)
	if err != nil {
		a.logger.Error().Err(err).Msg("generate api key failed")
		writeError(w, http.StatusInternalServerError, "key_generation_failed")
		return
	}

	if err := a.db.WithContext(r.Context()).Create(key).Error; err != nil {
		a.logger.Error().Err(err).Msg("store api key failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.logger.Info().
		Str("key_id", key.ID).
		Str("role", key.Role).
		Str("subject", key.Subject).
		Msg("api key created")

	// The plaintext key is shown exactly once; only its hash is stored.
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":    plaintext,
		"apiKey": key,
	})
}

func (a *API) handleAPIKeysRevoke(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	if err := auth.RevokeAPIKey(a.db.WithContext(r.Context()), keyID); err != nil {
		if errors.Is(err, auth.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, "api_key_not_found")
			return
		}
		a.logger.Error().Err(err).Msg("revoke api key failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.logger.Info().Str("key_id", keyID).Msg("api key revoked")

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
