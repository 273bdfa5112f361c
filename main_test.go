package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"snapnotes/core"
	photosapi "snapnotes/handlers/api/photos"
	"snapnotes/handlers/auth"
	"snapnotes/notes"
	"snapnotes/photos"
	"snapnotes/stores/memory"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestServer(t *testing.T, tokens *auth.Tokens) *httptest.Server {
	t.Helper()
	backend := memory.NewStore()
	srv := httptest.NewServer(setupRouter(notes.NewStore(backend), photos.NewStore(backend), tokens))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, token string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status = %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

func TestRouter_NoteLifecycle(t *testing.T) {
	srv := newTestServer(t, auth.NewTokens(""))

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/photos", "", bytes.NewReader(pngBytes))
	expectStatus(t, resp, http.StatusCreated)
	var photo photosapi.UploadPhotoResponse
	decodeBody(t, resp, &photo)

	create := `{"title":"Beach","description":"Sunset walk","image":"` + photo.Image + `"}`
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/notes", "", strings.NewReader(create))
	expectStatus(t, resp, http.StatusCreated)
	var created core.Note
	decodeBody(t, resp, &created)
	if created.ID == "" || created.Date == "" {
		t.Fatalf("created note missing id or date: %+v", created)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/notes", "", nil)
	expectStatus(t, resp, http.StatusOK)
	var list []core.Note
	decodeBody(t, resp, &list)
	if len(list) != 1 || list[0] != created {
		t.Fatalf("list = %+v, want [%+v]", list, created)
	}

	resp = doRequest(t, http.MethodPatch, srv.URL+"/api/notes/"+created.ID, "", strings.NewReader(`{"title":"Dunes"}`))
	expectStatus(t, resp, http.StatusOK)
	var updated core.Note
	decodeBody(t, resp, &updated)
	if updated.Title != "Dunes" || updated.Description != created.Description || updated.Image != created.Image {
		t.Errorf("updated = %+v", updated)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/notes?q=dune", "", nil)
	expectStatus(t, resp, http.StatusOK)
	list = nil
	decodeBody(t, resp, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("search = %+v, want the updated note", list)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+updated.Image, "", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("photo Content-Type = %q, want image/png", ct)
	}

	for i := 0; i < 2; i++ {
		resp = doRequest(t, http.MethodDelete, srv.URL+"/api/notes/"+created.ID, "", nil)
		expectStatus(t, resp, http.StatusNoContent)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/notes/"+created.ID, "", nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/notes", "", nil)
	expectStatus(t, resp, http.StatusOK)
	raw, _ := io.ReadAll(resp.Body)
	if got := strings.TrimSpace(string(raw)); got != "[]" {
		t.Errorf("list after delete = %s, want []", got)
	}
}

func TestRouter_PatchMissingNote(t *testing.T) {
	srv := newTestServer(t, auth.NewTokens(""))

	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/notes/missing", "", strings.NewReader(`{"title":"x"}`))
	expectStatus(t, resp, http.StatusNotFound)
}

func TestRouter_RequiresTokenWhenSecretSet(t *testing.T) {
	tokens := auth.NewTokens("router-secret")
	srv := newTestServer(t, tokens)

	testCases := []struct {
		name  string
		token string
		want  int
	}{
		{name: "no token", token: "", want: http.StatusUnauthorized},
		{name: "wrong secret", token: mustIssue(t, auth.NewTokens("other-secret")), want: http.StatusUnauthorized},
		{name: "valid token", token: mustIssue(t, tokens), want: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, srv.URL+"/api/notes", tc.token, nil)
			expectStatus(t, resp, tc.want)
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, auth.NewTokens(""))

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/notes/abc", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:8081" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the request origin", got)
	}
}

func mustIssue(t *testing.T, tokens *auth.Tokens) string {
	t.Helper()
	token, err := tokens.Issue("owner", "", time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

// runCLI executes the command tree against a filesystem backend under dir.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--loglevel", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func useFilesystemStorage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORAGE_TYPE", "filesystem")
	t.Setenv("LOCAL_STORAGE_PATH", dir)
	return dir
}

func TestCLI_NoteLifecycle(t *testing.T) {
	useFilesystemStorage(t)

	out, err := runCLI(t, "add", "--title", "Beach", "--description", "Sunset walk", "--image", "file:///beach.jpg")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	id := strings.TrimSpace(out)
	if len(id) != 26 {
		t.Fatalf("add printed %q, want a ULID", out)
	}

	out, err = runCLI(t, "list", "--json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var list []core.Note
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("list --json output is not JSON: %v\n%s", err, out)
	}
	if len(list) != 1 || list[0].ID != id || list[0].Title != "Beach" {
		t.Fatalf("list = %+v", list)
	}

	if _, err := runCLI(t, "edit", id, "--title", "Dunes"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	out, err = runCLI(t, "show", id)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	var shown core.Note
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("show output is not JSON: %v", err)
	}
	if shown.Title != "Dunes" || shown.Description != "Sunset walk" {
		t.Errorf("show = %+v", shown)
	}

	out, err = runCLI(t, "show", id, "--yaml")
	if err != nil {
		t.Fatalf("show --yaml failed: %v", err)
	}
	if !strings.Contains(out, "title: Dunes") || !strings.Contains(out, "id: "+id) {
		t.Errorf("show --yaml output = %q", out)
	}

	out, err = runCLI(t, "list", "-q", "DUNES")
	if err != nil {
		t.Fatalf("list -q failed: %v", err)
	}
	if !strings.Contains(out, id) {
		t.Errorf("list -q output %q does not contain %s", out, id)
	}

	out, err = runCLI(t, "rm", id)
	if err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if !strings.HasPrefix(out, "Note deleted") {
		t.Errorf("rm output = %q", out)
	}

	out, err = runCLI(t, "rm", id)
	if err != nil {
		t.Fatalf("second rm failed: %v", err)
	}
	if !strings.HasPrefix(out, "No note with id") {
		t.Errorf("second rm output = %q", out)
	}

	if _, err := runCLI(t, "show", id); !errors.Is(err, notes.ErrNoteNotFound) {
		t.Errorf("show after rm: err = %v, want ErrNoteNotFound", err)
	}
}

func TestCLI_DefaultStorageSurvivesAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("LOCAL_STORAGE_PATH", dir)

	out, err := runCLI(t, "add", "--title", "A", "--description", "d", "--image", "img1")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	id := strings.TrimSpace(out)

	out, err = runCLI(t, "list", "--json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var list []core.Note
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("list --json output is not JSON: %v\n%s", err, out)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("list = %+v, want the note added by the previous command", list)
	}

	if _, err := runCLI(t, "show", id); err != nil {
		t.Errorf("show failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, notes.StorageKey)); err != nil {
		t.Errorf("notes were not written under LOCAL_STORAGE_PATH: %v", err)
	}
}

func TestCLI_ListOutputFlagsAreExclusive(t *testing.T) {
	useFilesystemStorage(t)

	if _, err := runCLI(t, "list", "--json", "--yaml"); err == nil {
		t.Error("expected an error when both --json and --yaml are given")
	}
}

func TestCLI_AddRejectsIncompleteNote(t *testing.T) {
	dir := useFilesystemStorage(t)

	_, err := runCLI(t, "add", "--title", "Beach", "--image", "file:///beach.jpg")
	if !errors.Is(err, core.ErrIncompleteNote) {
		t.Fatalf("err = %v, want ErrIncompleteNote", err)
	}
	if _, err := os.Stat(filepath.Join(dir, notes.StorageKey)); !os.IsNotExist(err) {
		t.Errorf("notes file should not exist after a rejected add, stat err = %v", err)
	}
}

func TestCLI_AddWithPhoto(t *testing.T) {
	useFilesystemStorage(t)
	photoPath := filepath.Join(t.TempDir(), "beach.png")
	if err := os.WriteFile(photoPath, pngBytes, 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}

	out, err := runCLI(t, "add", "--title", "Beach", "--description", "Sunset walk", "--photo", photoPath)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	out, err = runCLI(t, "show", strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	var note core.Note
	if err := json.Unmarshal([]byte(out), &note); err != nil {
		t.Fatalf("show output is not JSON: %v", err)
	}
	if !strings.HasPrefix(note.Image, "/api/photos/") {
		t.Errorf("image = %q, want a stored photo reference", note.Image)
	}

	if _, err := runCLI(t, "add", "--title", "a", "--description", "b", "--image", "x", "--photo", photoPath); err == nil {
		t.Error("expected an error when both --image and --photo are given")
	}
}

func TestCLI_EditErrors(t *testing.T) {
	useFilesystemStorage(t)

	testCases := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "missing note", args: []string{"edit", "missing", "--title", "x"}, wantErr: notes.ErrNoteNotFound},
		{name: "blank field", args: []string{"edit", "missing", "--title", ""}, wantErr: core.ErrIncompleteNote},
		{name: "no fields", args: []string{"edit", "missing"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCLI(t, tc.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCLI_Token(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	out, err := runCLI(t, "token", "--subject", "alice", "--device", "phone", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}

	claims, err := auth.NewTokens("cli-secret").Parse(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Subject != "alice" || claims.Device != "phone" {
		t.Errorf("claims = %+v", claims)
	}

	t.Setenv("JWT_SECRET", "")
	if _, err := runCLI(t, "token"); !errors.Is(err, auth.ErrNoSecret) {
		t.Errorf("err = %v, want ErrNoSecret", err)
	}
}

func TestCLI_InvalidLogLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--loglevel", "loud", "token"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}
