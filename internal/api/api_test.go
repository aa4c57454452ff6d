package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_player/internal/auth"
	"github.com/friendsincode/grimnir_player/internal/catalog"
	"github.com/friendsincode/grimnir_player/internal/duration"
	"github.com/friendsincode/grimnir_player/internal/engine"
	"github.com/friendsincode/grimnir_player/internal/events"
	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/schedule"
	"github.com/friendsincode/grimnir_player/internal/storage"
)

// apiTestNow anchors every fixture inside the snapshot window.
var apiTestNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type apiRig struct {
	api     *API
	router  *chi.Mux
	db      *gorm.DB
	bus     *events.Bus
	store   *schedule.Store
	builder *schedule.Builder
	catalog *catalog.Service
	engine  *engine.Engine
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.ScheduleDefinition{},
		&models.OccurrenceExclusion{},
		&models.Sequence{},
		&models.Playlist{},
		&models.PlaylistItem{},
		&models.APIKey{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	bus := events.NewBus()
	cat := catalog.NewService(db, nil, logger)
	store := schedule.NewStore(db, nil, bus, logger)
	resolver := duration.NewResolver(cat, logger)
	builder := schedule.NewBuilder(store, resolver, bus, 14*24*time.Hour, logger)
	builder.SetClock(func() time.Time { return apiTestNow })
	validator := schedule.NewValidator(builder, logger)

	eng := engine.New(builder, bus, nil, time.Minute, logger)
	eng.SetClock(func() time.Time { return apiTestNow })

	a := New(db, testSecret, bus, store, builder, validator, cat, resolver, logger)
	a.SetEngine(eng)
	a.SetExportService(schedule.NewExportService(
		store, builder, storage.NewFilesystemStore(t.TempDir(), logger), bus, logger))

	router := chi.NewRouter()
	a.Routes(router)

	return &apiRig{
		api:     a,
		router:  router,
		db:      db,
		bus:     bus,
		store:   store,
		builder: builder,
		catalog: cat,
		engine:  eng,
	}
}

func (rig *apiRig) token(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := auth.Issue(testSecret, auth.Claims{UserID: "tester", Roles: roles}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (rig *apiRig) adminToken(t *testing.T) string {
	return rig.token(t, "admin")
}

func (rig *apiRig) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	rig.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a request with a verbatim body, for payloads that are not
// JSON.
func (rig *apiRig) doRaw(t *testing.T, method, path, token, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	rig.router.ServeHTTP(rr, req)
	return rr
}

func (rig *apiRig) rebuild(t *testing.T) {
	t.Helper()
	if _, err := rig.builder.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
}

// seedCatalog installs pl-1 holding one minute plus two minutes of
// content.
func (rig *apiRig) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	for _, seq := range []models.Sequence{
		{ID: "seq-1", Name: "station ident", LengthMs: 60_000},
		{ID: "seq-2", Name: "morning block", LengthMs: 120_000},
	} {
		if err := rig.catalog.CreateSequence(ctx, &seq); err != nil {
			t.Fatalf("create sequence: %v", err)
		}
	}
	pl := models.Playlist{ID: "pl-1", Name: "breakfast"}
	if err := rig.catalog.CreatePlaylist(ctx, &pl, []string{"seq-1", "seq-2"}); err != nil {
		t.Fatalf("create playlist: %v", err)
	}
}

// definitionBody builds a once definition request anchored on the rig
// clock's day.
func definitionBody(title, from, to string) map[string]any {
	return map[string]any{
		"playlistId":     "pl-1",
		"title":          title,
		"fromTime":       from,
		"toTime":         to,
		"recurrenceKind": "once",
		"recurrenceRule": map[string]any{
			"startDate": "2026-03-02T00:00:00Z",
		},
		"priority":     "normal",
		"endPolicy":    "hardcut",
		"scheduleType": "main",
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthAndVersionArePublic(t *testing.T) {
	rig := newAPIRig(t)

	rr := rig.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("health body = %s", rr.Body.String())
	}

	rr = rig.do(t, http.MethodGet, "/api/v1/version", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("version: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "version") {
		t.Fatalf("version body = %s", rr.Body.String())
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	rig := newAPIRig(t)

	rr := rig.do(t, http.MethodGet, "/api/v1/definitions", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr = rig.do(t, http.MethodGet, "/api/v1/definitions", rig.token(t, "viewer"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with viewer token, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMutationsRequireAdminRole(t *testing.T) {
	rig := newAPIRig(t)
	rig.seedCatalog(t)

	rr := rig.do(t, http.MethodPost, "/api/v1/definitions", rig.token(t, "viewer"),
		definitionBody("locked out", "10:00", "11:00"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", rr.Code)
	}

	rr = rig.do(t, http.MethodPost, "/api/v1/definitions", rig.adminToken(t),
		definitionBody("let in", "10:00", "11:00"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLoginIssuesUsableToken(t *testing.T) {
	rig := newAPIRig(t)
	rig.seedCatalog(t)

	hash, err := auth.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	rig.api.SetAdminCredentials("admin", hash)

	rr := rig.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "admin", "password": "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rr.Code)
	}

	rr = rig.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "admin", "password": "s3cret-pass"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for good login, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("expected a token in the login response")
	}

	rr = rig.do(t, http.MethodPost, "/api/v1/definitions", resp.Token,
		definitionBody("created via login token", "10:00", "11:00"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 using login token, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLoginDisabledWithoutPasswordHash(t *testing.T) {
	rig := newAPIRig(t)

	rr := rig.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "admin", "password": "anything"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when login is disabled, got %d", rr.Code)
	}
}

func TestSnapshotEndpointAndRebuild(t *testing.T) {
	rig := newAPIRig(t)
	rig.seedCatalog(t)
	admin := rig.adminToken(t)

	rr := rig.do(t, http.MethodGet, "/api/v1/snapshot", admin, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first rebuild, got %d", rr.Code)
	}

	rr = rig.do(t, http.MethodPost, "/api/v1/snapshot/rebuild", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("rebuild: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = rig.do(t, http.MethodGet, "/api/v1/snapshot", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("snapshot: expected 200, got %d", rr.Code)
	}

	var snap struct {
		Version int64 `json:"version"`
	}
	decodeJSON(t, rr, &snap)
	if snap.Version != 1 {
		t.Fatalf("expected snapshot version 1, got %d", snap.Version)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	rig := newAPIRig(t)
	admin := rig.adminToken(t)

	rr := rig.do(t, http.MethodPost, "/api/v1/auth/apikeys", admin,
		map[string]any{"name": "ingest bot", "role": "admin"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create key: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var created struct {
		Key    string        `json:"key"`
		APIKey models.APIKey `json:"apiKey"`
	}
	decodeJSON(t, rr, &created)
	if created.Key == "" || created.APIKey.ID == "" {
		t.Fatalf("expected plaintext key and id, got %+v", created)
	}

	// The plaintext key authenticates via the X-API-Key header.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/definitions", nil)
	req.Header.Set("X-API-Key", created.Key)
	keyRR := httptest.NewRecorder()
	rig.router.ServeHTTP(keyRR, req)
	if keyRR.Code != http.StatusOK {
		t.Fatalf("expected 200 with api key, got %d", keyRR.Code)
	}

	rr = rig.do(t, http.MethodDelete, "/api/v1/auth/apikeys/"+created.APIKey.ID, admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/definitions", nil)
	req.Header.Set("X-API-Key", created.Key)
	keyRR = httptest.NewRecorder()
	rig.router.ServeHTTP(keyRR, req)
	if keyRR.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revocation, got %d", keyRR.Code)
	}

	rr = rig.do(t, http.MethodDelete, "/api/v1/auth/apikeys/no-such-key", admin, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", rr.Code)
	}
}
