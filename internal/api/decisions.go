/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/grimnir_player/internal/engine"
	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/telemetry"
)

// frameDecisionState carries the engine's current view when a stream
// client connects. It never transits the bus.
const frameDecisionState events.EventType = "decision.state"

func (a *API) handleActiveNow(w http.ResponseWriter, r *http.Request) {
	if a.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine_unavailable")
		return
	}

	track := models.Track(r.URL.Query().Get("track"))
	if track == "" {
		track = models.TrackMain
	}
	if !track.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_track")
		return
	}

	decision, err := a.engine.ActiveNow(r.Context(), track)
	if err != nil {
		if errors.Is(err, engine.ErrNoSnapshot) {
			writeError(w, http.StatusServiceUnavailable, "snapshot_unavailable")
			return
		}
		a.logger.Error().Err(err).Msg("active query failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

func (a *API) handleActiveAt(w http.ResponseWriter, r *http.Request) {
	if a.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine_unavailable")
		return
	}

	track := models.Track(r.URL.Query().Get("track"))
	if track == "" {
		track = models.TrackMain
	}
	if !track.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_track")
		return
	}

	atParam := r.URL.Query().Get("at")
	if atParam == "" {
		writeError(w, http.StatusBadRequest, "at_required")
		return
	}
	at, err := parseTimeParam(atParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_at")
		return
	}

	decision, err := a.engine.ActiveAt(at, track)
	if err != nil {
		if errors.Is(err, engine.ErrNoSnapshot) {
			writeError(w, http.StatusServiceUnavailable, "snapshot_unavailable")
			return
		}
		a.logger.Error().Err(err).Msg("active query failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// handleDecisionStream pushes decision transitions over a websocket.
// Each connection is primed with the engine's last decision per track
// so clients need no separate fetch to know what is playing.
func (a *API) handleDecisionStream(w http.ResponseWriter, r *http.Request) {
	if a.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine_unavailable")
		return
	}

	trackFilter := models.Track(r.URL.Query().Get("track"))
	if trackFilter != "" && !trackFilter.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_track")
		return
	}

	ctx := r.Context()
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.DecisionStreamClients.Inc()
	defer telemetry.DecisionStreamClients.Dec()

	for _, track := range models.Tracks() {
		if trackFilter != "" && track != trackFilter {
			continue
		}
		decision, ok := a.engine.LastDecision(track)
		if !ok {
			continue
		}
		if err := a.writeStreamFrame(ctx, conn, frameDecisionState, decision); err != nil {
			a.logger.Error().Err(err).Msg("decision stream prime failed")
			return
		}
	}

	eventTypes := []events.EventType{
		events.EventDecisionChanged,
		events.EventDecisionPreempted,
		events.EventDecisionResumed,
		events.EventDecisionIdle,
	}
	subscribers := make([]events.Subscriber, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		subscribers = append(subscribers, a.bus.Subscribe(eventType))
	}
	defer func() {
		for i, eventType := range eventTypes {
			a.bus.Unsubscribe(eventType, subscribers[i])
		}
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Error().Err(err).Msg("decision stream ping failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		default:
			sent := false
			for i, sub := range subscribers {
				select {
				case payload := <-sub:
					if trackFilter != "" && payload["track"] != string(trackFilter) {
						continue
					}
					if err := a.writeStreamFrame(ctx, conn, eventTypes[i], payload); err != nil {
						a.logger.Error().Err(err).Msg("decision stream write failed")
						conn.Close(ws.StatusInternalError, "write failed")
						return
					}
					sent = true
				default:
				}
			}
			if !sent {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

func (a *API) writeStreamFrame(ctx context.Context, conn *ws.Conn, frameType events.EventType, payload any) error {
	data := map[string]any{
		"type":    frameType,
		"payload": payload,
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, raw)
}
