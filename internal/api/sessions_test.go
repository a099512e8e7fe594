package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/deskagent/internal/config"
	"github.com/ashureev/deskagent/internal/store"
	"github.com/go-chi/chi/v5"
)

type recordingEvictor struct {
	mu      sync.Mutex
	evicted []string
}

func (e *recordingEvictor) Evict(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evicted = append(e.evicted, sessionID)
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Provider:  "comet",
			Model:     "cometapi-3-7-sonnet",
			MaxTokens: 1024,
		},
		VNC: config.VNCConfig{
			Display:  ":1",
			Password: "vncpassword",
			Port:     5900,
			WebPort:  6080,
			Width:    1024,
			Height:   768,
		},
	}
}

func newSessionServer(t *testing.T) (*httptest.Server, store.Repository, *recordingEvictor) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	evictor := &recordingEvictor{}
	r := chi.NewRouter()
	NewSessionHandler(repo, testConfig(), evictor).RegisterRoutes(r)
	NewMessageHandler(repo).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo, evictor
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func createTestSession(t *testing.T, srv *httptest.Server, body string) string {
	t.Helper()
	resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, body %v", resp.StatusCode, decoded)
	}
	id, _ := decoded["id"].(string)
	if id == "" {
		t.Fatalf("create session returned no id: %v", decoded)
	}
	return id
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	srv, _, evictor := newSessionServer(t)

	id := createTestSession(t, srv, `{"title":"My desktop"}`)

	resp, decoded := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if decoded["title"] != "My desktop" || decoded["status"] != "active" {
		t.Errorf("session = %v", decoded)
	}
	if decoded["model"] != "cometapi-3-7-sonnet" || decoded["api_provider"] != "comet" {
		t.Errorf("defaults not applied: %v", decoded)
	}
	vnc, ok := decoded["vnc_details"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing vnc_details: %v", decoded)
	}
	if vnc["display"] != ":1" || vnc["port"] != float64(5900) {
		t.Errorf("vnc_details = %v", vnc)
	}

	resp, decoded = doJSON(t, http.MethodPatch, srv.URL+"/api/sessions/"+id, `{"title":"Renamed","status":"inactive"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d: %v", resp.StatusCode, decoded)
	}
	if decoded["title"] != "Renamed" || decoded["status"] != "inactive" {
		t.Errorf("patched session = %v", decoded)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if len(evictor.evicted) != 1 || evictor.evicted[0] != id {
		t.Errorf("evicted = %v, want [%s]", evictor.evicted, id)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+id, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionCreateDefaults(t *testing.T) {
	t.Parallel()
	srv, _, _ := newSessionServer(t)

	resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", `{}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	title, _ := decoded["title"].(string)
	if !strings.HasPrefix(title, "Session ") {
		t.Errorf("default title = %q", title)
	}
	if decoded["max_tokens"] != float64(1024) {
		t.Errorf("max_tokens = %v", decoded["max_tokens"])
	}
}

func TestSessionList(t *testing.T) {
	t.Parallel()
	srv, _, _ := newSessionServer(t)

	first := createTestSession(t, srv, `{"title":"a"}`)
	second := createTestSession(t, srv, `{"title":"b"}`)
	if _, decoded := doJSON(t, http.MethodPatch, srv.URL+"/api/sessions/"+second, `{"status":"terminated"}`); decoded["status"] != "terminated" {
		t.Fatalf("patch failed: %v", decoded)
	}

	resp, decoded := doJSON(t, http.MethodGet, srv.URL+"/api/sessions?status=active", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	sessions, _ := decoded["sessions"].([]interface{})
	if len(sessions) != 1 {
		t.Fatalf("active sessions = %v", decoded)
	}
	got, _ := sessions[0].(map[string]interface{})
	if got["id"] != first {
		t.Errorf("listed id = %v, want %s", got["id"], first)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/sessions?status=bogus", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d, want 400", resp.StatusCode)
	}
}

func TestSessionVNCDetails(t *testing.T) {
	t.Parallel()
	srv, _, _ := newSessionServer(t)

	id := createTestSession(t, srv, `{}`)

	resp, decoded := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+id+"/vnc", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if decoded["session_id"] != id {
		t.Errorf("session_id = %v", decoded["session_id"])
	}
	vnc, _ := decoded["vnc"].(map[string]interface{})
	wantURL := "http://localhost:6080/vnc.html?host=localhost&port=5900"
	if vnc["web_url"] != wantURL {
		t.Errorf("web_url = %v, want %s", vnc["web_url"], wantURL)
	}
	desktop, _ := decoded["desktop"].(map[string]interface{})
	if desktop["width"] != float64(1024) || desktop["height"] != float64(768) {
		t.Errorf("desktop = %v", desktop)
	}
}

func TestMessageEndpoints(t *testing.T) {
	t.Parallel()
	srv, _, _ := newSessionServer(t)

	id := createTestSession(t, srv, `{}`)

	resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/messages",
		`{"role":"user","content":"open calculator"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create message status = %d: %v", resp.StatusCode, decoded)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/messages",
		`{"role":"wizard","content":"hi"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid role status = %d, want 400", resp.StatusCode)
	}

	resp, decoded = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+id+"/messages", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list messages status = %d", resp.StatusCode)
	}
	messages, _ := decoded["messages"].([]interface{})
	if len(messages) != 1 {
		t.Fatalf("messages = %v", decoded)
	}
	msg, _ := messages[0].(map[string]interface{})
	if msg["content"] != "open calculator" || msg["role"] != "user" {
		t.Errorf("message = %v", msg)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/does-not-exist/messages", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("messages for missing session = %d, want 404", resp.StatusCode)
	}
}
