package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-apicaller/internal/config"
	"github.com/samvad-hq/samvad-apicaller/pkg/apiclient"
)

func newTestCaller(t *testing.T, baseURL string, publishersFile string) *Caller {
	t.Helper()
	dir := t.TempDir()
	profilesPath := filepath.Join(dir, "profiles.yaml")
	raw := "profiles:\n  - id: svc\n    base_url: " + baseURL + "\n    api_key: k\n"
	if err := os.WriteFile(profilesPath, []byte(raw), 0o644); err != nil {
		t.Fatalf("write profiles: %v", err)
	}

	cfg := &config.Config{
		ProfilesFile:           profilesPath,
		PublishersFile:         publishersFile,
		RequestTimeout:         2 * time.Second,
		HistoryType:            "bbolt",
		BBoltPath:              filepath.Join(dir, "history.db"),
		HistoryTTL:             time.Hour,
		HistoryCleanupInterval: time.Hour,
	}
	caller, err := NewCaller(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewCaller: %v", err)
	}
	t.Cleanup(func() { _ = caller.Close() })
	return caller
}

func TestCallerRecordsHistoryAndPublishes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"msg":"nf"}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer upstream.Close()

	events := make(chan []byte, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		events <- body
	}))
	defer hook.Close()

	pubPath := filepath.Join(t.TempDir(), "publishers.yaml")
	pubRaw := "publishers:\n  - id: hook\n    type: http\n    http:\n      url: " + hook.URL + "\n"
	if err := os.WriteFile(pubPath, []byte(pubRaw), 0o644); err != nil {
		t.Fatalf("write publishers: %v", err)
	}

	caller := newTestCaller(t, upstream.URL, pubPath)
	ctx := context.Background()

	reply, err := caller.Call(ctx, "svc", Request{Method: "post", Path: "/things", Fields: apiclient.Fields{"a": 1}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !reply.Result.OK() || reply.Response.State != apiclient.PayloadPresent {
		t.Fatalf("unexpected reply %+v", reply)
	}

	_, err = caller.Call(ctx, "svc", Request{Path: "/missing"})
	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}

	entries, err := caller.Recent("svc", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 || entries[0].Status != http.StatusNotFound || entries[1].Method != http.MethodPost {
		t.Fatalf("unexpected history %+v", entries)
	}
	if entries[0].Outcome != "http_error" || entries[0].Error == "" {
		t.Fatalf("error entry missing details: %+v", entries[0])
	}

	for i := 0; i < 2; i++ {
		select {
		case <-events:
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d not published", i)
		}
	}
}

func TestCallerUnknownProfile(t *testing.T) {
	caller := newTestCaller(t, "http://127.0.0.1:1", "")
	if _, err := caller.Call(context.Background(), "nope", Request{Path: "/"}); err == nil {
		t.Fatalf("expected unknown profile error")
	}
}
