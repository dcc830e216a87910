package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MysteryBlokHed/alheure/internal/config"
	"github.com/MysteryBlokHed/alheure/internal/game"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           8080,
		AnswerTime:     30,
		ShowdownTime:   15,
		BuzzAnswerTime: 10,
		CategoryPolicy: game.PolicyRoundRobin,
		SingleSession:  true,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (http.Handler, *game.RoomManager) {
	t.Helper()
	questions, err := loadQuestions("")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	rm := game.NewRoomManager(questions, game.WithSingleSession(cfg.SingleSession))
	return newRouter(cfg, rm), rm
}

func do(h http.Handler, method, path string, body []byte, edit ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, e := range edit {
		e(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, testConfig())
	w := do(h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCreateAndInspectSession(t *testing.T) {
	h, rm := newTestRouter(t, testConfig())

	if w := do(h, http.MethodGet, "/api/session/active", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any session, got %d", w.Code)
	}

	w := do(h, http.MethodPost, "/api/host/create", []byte(`{"config":{"answerTime":12,"categoryPolicy":"balanced"}}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		SessionCode string `json:"sessionCode"`
		HostToken   string `json:"hostToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	sess, err := rm.Get(created.SessionCode)
	if err != nil {
		t.Fatalf("session should exist: %v", err)
	}
	want := game.SessionConfig{AnswerTime: 12, ShowdownTime: 15, BuzzAnswerTime: 10, CategoryPolicy: game.PolicyBalanced}
	if sess.Config != want || sess.HostToken != created.HostToken {
		t.Fatalf("expected %+v merged over the server defaults, got %+v", want, sess.Config)
	}

	w = do(h, http.MethodGet, "/api/session/active", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), created.SessionCode) {
		t.Fatalf("expected the new session to be active, got %d: %s", w.Code, w.Body.String())
	}

	w = do(h, http.MethodGet, "/api/session/"+created.SessionCode+"/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Phase != game.PhasePregame || snap.Code != created.SessionCode {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCreateUsesServerDefaults(t *testing.T) {
	h, rm := newTestRouter(t, testConfig())
	w := do(h, http.MethodPost, "/api/host/create", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	_, sess := rm.Active()
	if sess == nil || sess.Config.AnswerTime != 30 || sess.Config.ShowdownTime != 15 {
		t.Fatalf("expected the server defaults, got %+v", sess)
	}
}

func TestCreateRejectsInvalidConfig(t *testing.T) {
	h, rm := newTestRouter(t, testConfig())
	for _, body := range []string{
		`{"config":{"answerTime":-1}}`,
		`{"config":{"categoryPolicy":"alphabetical"}}`,
	} {
		w := do(h, http.MethodPost, "/api/host/create", []byte(body))
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), string(game.CodeInvalidConfig)) {
			t.Fatalf("%s: expected 400 %s, got %d: %s", body, game.CodeInvalidConfig, w.Code, w.Body.String())
		}
	}
	if _, sess := rm.Active(); sess != nil {
		t.Fatal("no session should have been created")
	}
}

func TestCreateRequiresHostAuth(t *testing.T) {
	cfg := testConfig()
	cfg.HostUser, cfg.HostPass = "host", "secret"
	h, _ := newTestRouter(t, cfg)

	if w := do(h, http.MethodPost, "/api/host/create", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}
	w := do(h, http.MethodPost, "/api/host/create", nil, func(r *http.Request) {
		r.SetBasicAuth("host", "secret")
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", w.Code)
	}
}

func TestSessionQRCode(t *testing.T) {
	h, rm := newTestRouter(t, testConfig())
	code, _, err := rm.CreateSession(game.SessionConfig{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	w := do(h, http.MethodGet, "/api/session/"+code+"/qr", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatal("expected a PNG body")
	}
}

func TestUnknownSession(t *testing.T) {
	h, _ := newTestRouter(t, testConfig())
	for _, path := range []string{"/api/session/NOPE1/state", "/api/session/NOPE1/qr"} {
		w := do(h, http.MethodGet, path, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), string(game.CodeSessionNotFound)) {
			t.Fatalf("%s: expected error code in body, got %s", path, w.Body.String())
		}
	}
}

func TestWebClientRoutes(t *testing.T) {
	h, _ := newTestRouter(t, testConfig())
	for _, path := range []string{"/", "/join/ABCDE"} {
		w := do(h, http.MethodGet, path, nil)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/app.js") {
			t.Fatalf("%s: expected the app page, got %d", path, w.Code)
		}
	}
	if w := do(h, http.MethodGet, "/app.js", nil); w.Code != http.StatusOK {
		t.Fatalf("expected the script to be served, got %d", w.Code)
	}
}
