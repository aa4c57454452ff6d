package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/friendsincode/grimnir_player/internal/models"
)

func TestSequenceCRUDOverHTTP(t *testing.T) {
	rig := newAPIRig(t)
	admin := rig.adminToken(t)

	rr := rig.do(t, http.MethodPost, "/api/v1/sequences", admin,
		map[string]any{"name": "top of hour sweep", "lengthMs": 15_000})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var seq models.Sequence
	decodeJSON(t, rr, &seq)
	if seq.ID == "" || seq.LengthMs != 15_000 {
		t.Fatalf("unexpected created sequence: %+v", seq)
	}

	rr = rig.do(t, http.MethodPut, "/api/v1/sequences/"+seq.ID, admin,
		map[string]any{"lengthMs": 20_000})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	decodeJSON(t, rr, &seq)
	if seq.LengthMs != 20_000 {
		t.Fatalf("expected updated length 20000, got %d", seq.LengthMs)
	}

	rr = rig.do(t, http.MethodGet, "/api/v1/sequences", admin, nil)
	var seqs []models.Sequence
	decodeJSON(t, rr, &seqs)
	if len(seqs) != 1 {
		t.Fatalf("expected 1 sequence, got %d", len(seqs))
	}

	rr = rig.do(t, http.MethodDelete, "/api/v1/sequences/"+seq.ID, admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}

	rr = rig.do(t, http.MethodGet, "/api/v1/sequences/"+seq.ID, admin, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestSequenceCreateValidation(t *testing.T) {
	rig := newAPIRig(t)
	admin := rig.adminToken(t)

	rr := rig.do(t, http.MethodPost, "/api/v1/sequences", admin,
		map[string]any{"lengthMs": 1000})
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "name_required") {
		t.Fatalf("expected name_required, got %d %s", rr.Code, rr.Body.String())
	}

	rr = rig.do(t, http.MethodPost, "/api/v1/sequences", admin,
		map[string]any{"name": "reversed tape", "lengthMs": -1})
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "negative_length") {
		t.Fatalf("expected negative_length, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestPlaylistLifecycleAndDuration(t *testing.T) {
	rig := newAPIRig(t)
	rig.seedCatalog(t)
	admin := rig.adminToken(t)

	rr := rig.do(t, http.MethodPost, "/api/v1/playlists", admin,
		map[string]any{"name": "drive time", "sequenceIds": []string{"seq-1", "seq-2", "seq-1"}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var created playlistResponse
	decodeJSON(t, rr, &created)
	if created.ID == "" || len(created.SequenceIDs) != 3 {
		t.Fatalf("unexpected created playlist: %+v", created)
	}

	rr = rig.do(t, http.MethodGet, "/api/v1/playlists/"+created.ID, admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	var fetched playlistResponse
	decodeJSON(t, rr, &fetched)
	if len(fetched.SequenceIDs) != 3 || fetched.SequenceIDs[2] != "seq-1" {
		t.Fatalf("expected ordered items back, got %v", fetched.SequenceIDs)
	}

	// 60000 + 120000 + 60000
	rr = rig.do(t, http.MethodGet, "/api/v1/playlists/"+created.ID+"/duration", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("duration: expected 200, got %d", rr.Code)
	}
	var dur struct {
		TotalMs int64    `json:"totalMs"`
		Missing []string `json:"missing"`
	}
	decodeJSON(t, rr, &dur)
	if dur.TotalMs != 240_000 {
		t.Fatalf("expected 240000 ms, got %d", dur.TotalMs)
	}
	if len(dur.Missing) != 0 {
		t.Fatalf("expected no missing sequences, got %v", dur.Missing)
	}

	rr = rig.do(t, http.MethodPut, "/api/v1/playlists/"+created.ID+"/items", admin,
		map[string]any{"sequenceIds": []string{"seq-2", "seq-ghost"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("replace items: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = rig.do(t, http.MethodGet, "/api/v1/playlists/"+created.ID+"/duration", admin, nil)
	decodeJSON(t, rr, &dur)
	if dur.TotalMs != 120_000 {
		t.Fatalf("expected 120000 ms after replace, got %d", dur.TotalMs)
	}
	if len(dur.Missing) != 1 || dur.Missing[0] != "seq-ghost" {
		t.Fatalf("expected seq-ghost reported missing, got %v", dur.Missing)
	}

	rr = rig.do(t, http.MethodDelete, "/api/v1/playlists/"+created.ID, admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}
	rr = rig.do(t, http.MethodGet, "/api/v1/playlists/"+created.ID, admin, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestPlaylistDurationWithRolls(t *testing.T) {
	rig := newAPIRig(t)
	rig.seedCatalog(t)
	admin := rig.adminToken(t)

	// pre and post both resolve to pl-1's content as well.
	rr := rig.do(t, http.MethodGet,
		"/api/v1/playlists/pl-1/duration?pre=pl-1&post=pl-1", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("duration: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var dur struct {
		TotalMs int64 `json:"totalMs"`
	}
	decodeJSON(t, rr, &dur)
	if dur.TotalMs != 540_000 {
		t.Fatalf("expected 540000 ms with rolls, got %d", dur.TotalMs)
	}
}
