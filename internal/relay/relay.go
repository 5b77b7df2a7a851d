// Package relay exposes configured API profiles over a local HTTP endpoint.
package relay

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samvad-hq/samvad-apicaller/internal/app"
	"github.com/samvad-hq/samvad-apicaller/internal/logger"
	"github.com/samvad-hq/samvad-apicaller/pkg/apiclient"
)

const maxBodyBytes = 10 << 20

type server struct {
	caller *app.Caller
	log    logger.Logger
}

// NewRouter builds the relay handler. Requests to /{profile}/rest/of/path are
// replayed against the profile's base URL and the upstream status and body are
// written back unchanged.
func NewRouter(caller *app.Caller, log logger.Logger) http.Handler {
	if log == nil {
		log = &logger.NopLogger{}
	}
	s := &server{caller: caller, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.HandleFunc("/{profile}", s.handleRelay)
	r.HandleFunc("/{profile}/*", s.handleRelay)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"profiles": s.caller.Profiles().IDs(),
	})
}

// statusWriter forwards the upstream status to the response as soon as the
// client receives it.
type statusWriter struct {
	w       http.ResponseWriter
	written bool
}

func (s *statusWriter) SetStatus(code int) {
	if s.written {
		return
	}
	s.written = true
	s.w.WriteHeader(code)
}

func (s *server) handleRelay(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profile")
	profile, ok := s.caller.Profiles().ByID(profileID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown profile " + profileID})
		return
	}

	fields, err := readFields(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	endpoint := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		endpoint += "?" + r.URL.RawQuery
	}

	if profile.JSON() {
		w.Header().Set("Content-Type", "application/json")
	}
	sink := &statusWriter{w: w}

	start := time.Now()
	reply, err := s.caller.Call(r.Context(), profileID, app.Request{
		Method: r.Method,
		Path:   endpoint,
		Fields: fields,
	}, apiclient.WithStatusSink(sink))

	var transportErr *apiclient.TransportError
	switch {
	case errors.As(err, &transportErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": transportErr.Error()})
	case reply == nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": errString(err)})
	default:
		if !sink.written {
			w.WriteHeader(http.StatusBadGateway)
		}
		body := reply.Response.Raw
		if reply.Error.Present() || reply.Error.State == apiclient.PayloadParseError {
			body = reply.Error.Raw
		}
		if _, werr := w.Write(body); werr != nil {
			s.log.WarnObj("relay write failed", "error", werr)
		}
	}

	s.log.DebugObj("relay request served", "relay_request", map[string]any{
		"request_id": middleware.GetReqID(r.Context()),
		"profile_id": profileID,
		"method":     r.Method,
		"endpoint":   endpoint,
		"elapsed_ms": time.Since(start).Milliseconds(),
		"error":      errString(err),
	})
}

// readFields turns the inbound body into request fields. JSON objects are
// decoded as-is; anything else is parsed as a form, and repeated form keys
// are forwarded as repeated keys.
func readFields(r *http.Request) (apiclient.Fields, error) {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil, nil
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(strings.TrimSpace(string(raw))) == 0 {
			return nil, nil
		}
		var fields apiclient.Fields
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, errors.New("request body must be a JSON object")
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	if len(r.PostForm) == 0 {
		return nil, nil
	}
	fields := make(apiclient.Fields, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) == 1 {
			fields[k] = vs[0]
			continue
		}
		fields[k] = apiclient.Repeated(vs)
	}
	return fields, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
