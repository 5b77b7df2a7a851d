package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-apicaller/internal/app"
	"github.com/samvad-hq/samvad-apicaller/internal/config"
)

type seenRequest struct {
	method string
	uri    string
	body   string
	ctype  string
	apiKey string
}

func newRelay(t *testing.T, upstreamURL string) http.Handler {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	raw := "profiles:\n" +
		"  - id: api\n    base_url: " + upstreamURL + "\n    api_key: secret\n" +
		"  - id: legacy\n    base_url: " + upstreamURL + "\n    json_mode: false\n" +
		"  - id: pinned\n    base_url: " + upstreamURL + "\n    options:\n      follow_redirects: false\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write profiles: %v", err)
	}
	caller, err := app.NewCaller(context.Background(), &config.Config{
		ProfilesFile:   path,
		RequestTimeout: 2 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewCaller: %v", err)
	}
	t.Cleanup(func() { _ = caller.Close() })
	return NewRouter(caller, nil)
}

func upstream(t *testing.T, status int, body string) (*httptest.Server, chan seenRequest) {
	t.Helper()
	seen := make(chan seenRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		seen <- seenRequest{
			method: r.Method,
			uri:    r.URL.RequestURI(),
			body:   string(raw),
			ctype:  r.Header.Get("Content-Type"),
			apiKey: r.Header.Get("Authorization"),
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestHealthz(t *testing.T) {
	h := newRelay(t, "http://127.0.0.1:1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	var payload struct {
		Status   string   `json:"status"`
		Profiles []string `json:"profiles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if payload.Status != "ok" || len(payload.Profiles) != 3 {
		t.Fatalf("unexpected healthz payload %+v", payload)
	}
}

func TestRelayForwardsGetWithQuery(t *testing.T) {
	srv, seen := upstream(t, http.StatusOK, `{"items":[1]}`)
	h := newRelay(t, srv.URL)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items?page=2", nil))

	got := <-seen
	if got.method != http.MethodGet || got.uri != "/v1/items?page=2" {
		t.Fatalf("upstream saw %+v", got)
	}
	if got.apiKey != "secret" {
		t.Fatalf("api key header missing: %+v", got)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != `{"items":[1]}` {
		t.Fatalf("relay response %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestRelayForwardsJSONBodyAndErrorStatus(t *testing.T) {
	srv, seen := upstream(t, http.StatusUnprocessableEntity, `{"error":"bad name"}`)
	h := newRelay(t, srv.URL)

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	got := <-seen
	if got.method != http.MethodPost || got.body != `{"name":"x"}` {
		t.Fatalf("upstream saw %+v", got)
	}
	if rec.Code != http.StatusUnprocessableEntity || rec.Body.String() != `{"error":"bad name"}` {
		t.Fatalf("relay response %d %q", rec.Code, rec.Body.String())
	}
}

func TestRelayFormProfileReencodesForm(t *testing.T) {
	srv, seen := upstream(t, http.StatusOK, "ok")
	h := newRelay(t, srv.URL)

	form := url.Values{"b": {"2"}, "a": {"1"}}
	req := httptest.NewRequest(http.MethodPut, "/legacy/things/9", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	got := <-seen
	if got.method != http.MethodPut || got.uri != "/things/9" || got.body != "a=1&b=2" {
		t.Fatalf("upstream saw %+v", got)
	}
	if !strings.HasPrefix(got.ctype, "application/x-www-form-urlencoded") {
		t.Fatalf("upstream content type = %q", got.ctype)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("relay response %d %q", rec.Code, rec.Body.String())
	}
}

func TestRelayUnknownProfileAndTransportFailure(t *testing.T) {
	h := newRelay(t, "http://127.0.0.1:1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/x", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown profile status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("transport failure status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("transport failure body = %q", rec.Body.String())
	}
}

func TestRelayKeepsRepeatedFormKeys(t *testing.T) {
	srv, seen := upstream(t, http.StatusOK, "ok")
	h := newRelay(t, srv.URL)

	req := httptest.NewRequest(http.MethodPost, "/legacy/tags", strings.NewReader("a=x&a=y&b=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	got := <-seen
	if got.body != "a=x&a=y&b=1" {
		t.Fatalf("upstream body = %q", got.body)
	}
}

func TestRelayPassesRedirectThrough(t *testing.T) {
	srv, seen := upstream(t, http.StatusFound, `{"moved":true}`)
	h := newRelay(t, srv.URL)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pinned/start", nil))

	<-seen
	if rec.Code != http.StatusFound {
		t.Fatalf("relay status = %d, want 302", rec.Code)
	}
	if rec.Body.String() != `{"moved":true}` {
		t.Fatalf("relay body = %q", rec.Body.String())
	}
}
