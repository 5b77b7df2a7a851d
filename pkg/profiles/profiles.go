package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Package profiles loads API profiles (base URL, credentials, headers, options) from YAML/JSON.

// Profile describes one upstream API.
type Profile struct {
	ID        string         `json:"id" yaml:"id"`
	BaseURL   string         `json:"base_url" yaml:"base_url"`
	APIKey    string         `json:"api_key" yaml:"api_key"`
	APIKeyEnv string         `json:"api_key_env" yaml:"api_key_env"`
	JSONMode  *bool          `json:"json_mode" yaml:"json_mode"`
	Headers   []HeaderEntry  `json:"headers" yaml:"headers"`
	Options   map[string]any `json:"options" yaml:"options"`
}

// HeaderEntry is one extra header line; order in the file is kept.
type HeaderEntry struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

type configFile struct {
	Profiles []Profile `json:"profiles" yaml:"profiles"`
}

// Registry holds the loaded profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles []Profile
	idx      map[string]Profile
}

// LoadRegistry loads profiles from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("profiles file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profiles file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	parsed, err := parseProfiles(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(parsed.Profiles)
}

// NewRegistry validates and indexes the given profiles.
func NewRegistry(list []Profile) (*Registry, error) {
	if len(list) == 0 {
		return nil, errors.New("profiles file contains no profiles entries")
	}

	reg := &Registry{
		profiles: make([]Profile, len(list)),
		idx:      make(map[string]Profile, len(list)),
	}
	for i := range list {
		p := sanitizeProfile(list[i])
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("profiles[%d]: %w", i, err)
		}
		if _, exists := reg.idx[p.ID]; exists {
			return nil, fmt.Errorf("duplicate profile id %q", p.ID)
		}
		reg.profiles[i] = p
		reg.idx[p.ID] = p
	}
	return reg, nil
}

type unmarshalFn func([]byte, any) error

func parseProfiles(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var out configFile
		if err := d.fn(data, &out); err == nil {
			return out, nil
		}
	}

	return configFile{}, errors.New("profiles file format not recognized (expected YAML or JSON)")
}

func sanitizeProfile(p Profile) Profile {
	p.ID = strings.TrimSpace(p.ID)
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	p.APIKey = strings.TrimSpace(p.APIKey)
	p.APIKeyEnv = strings.TrimSpace(p.APIKeyEnv)

	if p.JSONMode == nil {
		def := true
		p.JSONMode = &def
	}

	headers := make([]HeaderEntry, 0, len(p.Headers))
	for _, h := range p.Headers {
		name := strings.TrimSpace(h.Name)
		if name == "" {
			continue
		}
		headers = append(headers, HeaderEntry{Name: name, Value: strings.TrimSpace(h.Value)})
	}
	p.Headers = headers

	if len(p.Options) > 0 {
		opts := make(map[string]any, len(p.Options))
		for k, v := range p.Options {
			if key := strings.ToLower(strings.TrimSpace(k)); key != "" {
				opts[key] = v
			}
		}
		p.Options = opts
	}
	return p
}

func validateProfile(p Profile) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required for profile %q", p.ID)
	}
	if p.APIKey != "" && p.APIKeyEnv != "" {
		return fmt.Errorf("profile %q sets both api_key and api_key_env", p.ID)
	}
	return nil
}

// ByID returns the profile with the given id.
func (r *Registry) ByID(id string) (Profile, bool) {
	if r == nil {
		return Profile{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.idx[id]
	return p, ok
}

// All returns every loaded profile.
func (r *Registry) All() []Profile {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// IDs returns the sorted profile ids.
func (r *Registry) IDs() []string {
	all := r.All()
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

// JSON reports whether the profile sends JSON bodies (default true).
func (p Profile) JSON() bool {
	if p.JSONMode == nil {
		return true
	}
	return *p.JSONMode
}

// ResolveAPIKey returns the inline key or the value of api_key_env.
func (p Profile) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return strings.TrimSpace(os.Getenv(p.APIKeyEnv))
	}
	return ""
}
