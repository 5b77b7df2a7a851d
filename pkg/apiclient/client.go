// Package apiclient is a small HTTP API client: one reusable transport handle,
// an ordered header list and the state of the last request.
package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-apicaller/pkg/httpclient"
)

type headerLine struct {
	name  string
	value string
}

// lastExchange holds what the most recent request left behind.
type lastExchange struct {
	status    int
	hasStatus bool
	body      []byte
	hasBody   bool
	errBody   []byte
	hasErr    bool
}

// Client sends requests to one API. The base URL is a literal prefix for
// every endpoint: no joining or escaping is done, so callers pass correctly
// slashed paths.
//
// A Client is not safe for concurrent use. Requests must be issued one after
// another; each one overwrites the state left by the previous one.
type Client struct {
	apiKey   string
	baseURL  string
	jsonMode bool
	headers  []headerLine
	options  map[string]any
	handle   *httpclient.Handle
	sink     StatusSink
	log      Logger
	last     lastExchange
	closed   bool
}

// New builds a client. A non-empty apiKey is sent as the Authorization header;
// JSON mode (the default) adds Content-Type: application/json.
func New(apiKey, baseURL string, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	c := &Client{
		baseURL:  baseURL,
		jsonMode: cfg.jsonMode,
		options:  make(map[string]any),
		handle:   cfg.handle,
		sink:     cfg.sink,
		log:      ensureLogger(cfg.log),
	}
	if c.sink == nil {
		c.sink = noopSink{}
	}
	if apiKey != "" {
		c.apiKey = apiKey
		c.Header("Authorization", apiKey)
	}
	if c.jsonMode {
		c.Header("Content-Type", "application/json")
	}
	if c.handle == nil {
		c.handle = httpclient.NewHandle(cfg.timeout)
	} else if !c.handle.Ready() {
		c.handle.Reset()
	}
	return c
}

// BaseURL returns the prefix applied to every endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// JSONMode reports whether request bodies are sent as JSON.
func (c *Client) JSONMode() bool { return c.jsonMode }

// Header appends a header line. Same-named headers are kept, in order.
func (c *Client) Header(name, value string) {
	if c.closed {
		return
	}
	c.headers = append(c.headers, headerLine{name: name, value: value})
}

// Headers returns the configured header lines as "Name: value".
func (c *Client) Headers() []string {
	out := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		out = append(out, h.name+": "+h.value)
	}
	return out
}

// Opt sets a transport option from the allow-list (see the Opt* constants).
// Overriding body capture is refused with ErrOptionDenied and changes nothing.
func (c *Client) Opt(key string, value any) error {
	if c.closed {
		return ErrClosed
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if _, denied := deniedOptions[key]; denied {
		return fmt.Errorf("%w: %q", ErrOptionDenied, key)
	}
	if !c.handle.Ready() {
		c.handle.Reset()
	}
	normalized, err := c.applyOption(key, value)
	if err != nil {
		return err
	}
	c.options[key] = normalized
	return nil
}

// Options returns a copy of the options applied with Opt since the last Reset.
func (c *Client) Options() map[string]any {
	out := make(map[string]any, len(c.options))
	for k, v := range c.options {
		out[k] = v
	}
	return out
}

// Reset clears the last request state and options set with Opt, and
// reinitializes the transport handle. Headers are kept. No-op after Close.
func (c *Client) Reset() {
	if c.closed {
		return
	}
	c.last = lastExchange{}
	c.options = make(map[string]any)
	c.handle.Reset()
}

// Close releases the transport handle and clears configuration and state.
// Calling it again is a no-op; requests afterwards return ErrClosed.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	err := c.handle.Close()
	c.closed = true
	c.apiKey = ""
	c.baseURL = ""
	c.headers = nil
	c.options = nil
	c.last = lastExchange{}
	return err
}

// LastStatus returns the HTTP status of the last request, if one was received.
func (c *Client) LastStatus() (int, bool) {
	return c.last.status, c.last.hasStatus
}

// LastResponse returns the body of the last successful request. With decode
// set the body is parsed as JSON into Value.
func (c *Client) LastResponse(decode bool) Payload {
	return newPayload(c.last.body, c.last.hasBody, decode)
}

// LastError returns the error payload of the last request: the response body
// of a non-200 reply, or the transport error message.
func (c *Client) LastError(decode bool) Payload {
	return newPayload(c.last.errBody, c.last.hasErr, decode)
}

func (c *Client) hasHeader(name string) bool {
	for _, h := range c.headers {
		if strings.EqualFold(h.name, name) {
			return true
		}
	}
	return false
}

func (c *Client) headerPairs() [][2]string {
	out := make([][2]string, 0, len(c.headers)+1)
	for _, h := range c.headers {
		out = append(out, [2]string{h.name, h.value})
	}
	return out
}

// execute runs one request and records its outcome.
func (c *Client) execute(ctx context.Context, endpoint string, fields Fields, method string) (*Result, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if !c.handle.Ready() {
		c.handle.Reset()
	}
	c.last = lastExchange{}

	call := httpclient.Call{
		Method:  method,
		URL:     c.baseURL + endpoint,
		Headers: c.headerPairs(),
	}

	if method != http.MethodGet && fields != nil {
		if c.jsonMode {
			body, err := encodeJSON(fields)
			if err != nil {
				return nil, err
			}
			call.Body = body
		} else {
			call.Body = []byte(encodeForm(fields))
			if !c.hasHeader("Content-Type") {
				call.Headers = append(call.Headers, [2]string{"Content-Type", formContentType})
			}
		}
		call.HasBody = true
	}

	start := time.Now()
	resp, err := c.handle.Do(ctx, call)
	elapsed := time.Since(start)

	if err != nil {
		c.last.errBody = []byte(err.Error())
		c.last.hasErr = true
		c.log.WarnObj("api request transport failure", "api_exchange", map[string]any{
			"method":     displayMethod(call),
			"url":        call.URL,
			"elapsed_ms": elapsed.Milliseconds(),
			"error":      err.Error(),
		})
		return &Result{Outcome: OutcomeTransportError}, &TransportError{Method: displayMethod(call), URL: call.URL, Err: err}
	}

	status := resp.StatusCode()
	body := resp.Body()
	c.last.status = status
	c.last.hasStatus = true
	c.sink.SetStatus(status)

	res := &Result{StatusCode: status, Body: body}
	var resErr error
	switch {
	case len(body) == 0:
		res.Outcome = OutcomeEmpty
	case status == http.StatusOK:
		res.Outcome = OutcomeSuccess
		c.last.body = body
		c.last.hasBody = true
	default:
		res.Outcome = OutcomeHTTPError
		c.last.errBody = body
		c.last.hasErr = true
		resErr = &HTTPError{StatusCode: status, Body: body}
	}

	c.log.DebugObj("api request completed", "api_exchange", map[string]any{
		"method":     displayMethod(call),
		"url":        call.URL,
		"status":     status,
		"outcome":    res.Outcome.String(),
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return res, resErr
}

func displayMethod(call httpclient.Call) string {
	if call.Method != "" {
		return call.Method
	}
	if call.HasBody {
		return http.MethodPost
	}
	return http.MethodGet
}
