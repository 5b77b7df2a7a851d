package profiles

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samvad-hq/samvad-apicaller/pkg/apiclient"
)

func writeFile(t *testing.T, name, raw string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writeFile(t, "profiles.yaml", `
profiles:
  - id: " billing "
    base_url: https://billing.example.com/v1
    api_key_env: BILLING_KEY
    headers:
      - name: X-Team
        value: payments
      - name: " "
        value: dropped
    options:
      Timeout: 5
  - id: legacy
    base_url: https://legacy.example.com
    json_mode: false
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if got := reg.IDs(); !reflect.DeepEqual(got, []string{"billing", "legacy"}) {
		t.Fatalf("IDs = %v", got)
	}

	billing, ok := reg.ByID("billing")
	if !ok {
		t.Fatalf("billing profile missing")
	}
	if !billing.JSON() || len(billing.Headers) != 1 || billing.Options["timeout"] != 5 {
		t.Fatalf("billing not sanitized: %+v", billing)
	}

	legacy, _ := reg.ByID("legacy")
	if legacy.JSON() {
		t.Fatalf("legacy must be form mode")
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "profiles.json", `{"profiles":[{"id":"a","base_url":"http://a"}]}`)
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 1 {
		t.Fatalf("expected 1 profile")
	}
}

func TestLoadRegistryRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing base": "profiles:\n  - id: a\n",
		"duplicate":    "profiles:\n  - id: a\n    base_url: http://a\n  - id: a\n    base_url: http://b\n",
		"empty":        "profiles: []\n",
		"both keys":    "profiles:\n  - id: a\n    base_url: http://a\n    api_key: x\n    api_key_env: Y\n",
	}
	for name, raw := range cases {
		if _, err := LoadRegistry(writeFile(t, "p.yaml", raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestResolveAPIKeyFromEnv(t *testing.T) {
	t.Setenv("PROFILE_TEST_KEY", " s3cret ")
	p := Profile{APIKeyEnv: "PROFILE_TEST_KEY"}
	if got := p.ResolveAPIKey(); got != "s3cret" {
		t.Fatalf("ResolveAPIKey = %q", got)
	}
}

func TestNewClientAppliesHeadersAndOptions(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := sanitizeProfile(Profile{
		ID:      "svc",
		BaseURL: srv.URL,
		APIKey:  "k",
		Headers: []HeaderEntry{{Name: "X-Team", Value: "core"}},
		Options: map[string]any{"user_agent": "profiles-test"},
	})
	c, err := p.NewClient()
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if _, err := c.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotHeaders.Get("Authorization") != "k" || gotHeaders.Get("X-Team") != "core" || gotHeaders.Get("User-Agent") != "profiles-test" {
		t.Fatalf("headers = %v", gotHeaders)
	}
}

func TestNewClientRejectsDeniedOption(t *testing.T) {
	p := sanitizeProfile(Profile{ID: "svc", BaseURL: "http://x", Options: map[string]any{"capture_body": false}})
	if _, err := p.NewClient(); !errors.Is(err, apiclient.ErrOptionDenied) {
		t.Fatalf("expected ErrOptionDenied, got %v", err)
	}
}
