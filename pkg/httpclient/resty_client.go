package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrHandleClosed is returned when a call is made on a released handle.
var ErrHandleClosed = errors.New("httpclient: handle closed")

// Call is one prepared HTTP exchange.
type Call struct {
	Method string
	URL    string
	// Headers keeps insertion order; repeated names are sent as repeated header lines.
	Headers [][2]string
	Body    []byte
	HasBody bool
}

// Exchange is the captured result of a call.
type Exchange struct {
	status int
	body   []byte
}

func (e *Exchange) Body() []byte    { return e.body }
func (e *Exchange) StatusCode() int { return e.status }

// Handle is a reusable transport handle backed by resty. Response bodies are
// always captured in memory. A Handle is not safe for concurrent use.
type Handle struct {
	transport http.RoundTripper
	timeout   time.Duration
	client    *resty.Client
	closed    bool
}

// NewHandle creates a handle over a clone of http.DefaultTransport.
func NewHandle(timeout time.Duration) *Handle {
	var rt http.RoundTripper = http.DefaultTransport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		rt = t.Clone()
	}
	return NewHandleWithTransport(rt, timeout)
}

// NewHandleWithTransport creates a handle over the given round tripper.
func NewHandleWithTransport(rt http.RoundTripper, timeout time.Duration) *Handle {
	if rt == nil {
		rt = http.DefaultTransport
	}
	h := &Handle{transport: rt, timeout: timeout}
	h.init()
	return h
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(&http.Client{}, timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(hc *http.Client, timeout time.Duration) *resty.Client {
	c := resty.NewWithClient(hc)
	c.SetTimeout(timeout)
	return c
}

// init builds a fresh resty client sharing the handle's connection pool.
func (h *Handle) init() {
	if t, ok := h.transport.(*http.Transport); ok {
		t.Proxy = http.ProxyFromEnvironment
	}
	h.client = newRestyBaseClient(&http.Client{Transport: h.transport}, h.timeout)
	h.closed = false
}

// Ready reports whether the handle can execute calls without reinitializing.
func (h *Handle) Ready() bool {
	return h != nil && h.client != nil && !h.closed
}

// Reset drops every option applied since creation and reinitializes the
// handle. Idle connections are kept.
func (h *Handle) Reset() {
	if h == nil {
		return
	}
	h.init()
}

// Close releases idle connections and drops the resty client. Safe to call repeatedly.
func (h *Handle) Close() error {
	if h == nil || h.closed {
		return nil
	}
	if t, ok := h.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	h.client = nil
	h.closed = true
	return nil
}

// SetTimeout sets the total request timeout.
func (h *Handle) SetTimeout(d time.Duration) error {
	if !h.Ready() {
		return ErrHandleClosed
	}
	h.client.SetTimeout(d)
	return nil
}

// SetRedirects enables or disables redirect following; max <= 0 keeps the
// transport default limit. With following off the 3xx reply itself is returned.
func (h *Handle) SetRedirects(follow bool, max int) error {
	if !h.Ready() {
		return ErrHandleClosed
	}
	switch {
	case !follow:
		h.client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	case max > 0:
		h.client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(max))
	default:
		h.client.GetClient().CheckRedirect = nil
	}
	return nil
}

// SetUserAgent sets the User-Agent header sent on every call.
func (h *Handle) SetUserAgent(ua string) error {
	if !h.Ready() {
		return ErrHandleClosed
	}
	h.client.SetHeader("User-Agent", ua)
	return nil
}

// SetProxy routes calls through the given proxy URL.
func (h *Handle) SetProxy(proxyURL string) error {
	if !h.Ready() {
		return ErrHandleClosed
	}
	if _, err := url.Parse(proxyURL); err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}
	if _, ok := h.transport.(*http.Transport); !ok {
		return fmt.Errorf("proxy requires an *http.Transport, got %T", h.transport)
	}
	h.client.SetProxy(proxyURL)
	return nil
}

// SetCloseConnection toggles closing the connection after each call.
func (h *Handle) SetCloseConnection(on bool) error {
	if !h.Ready() {
		return ErrHandleClosed
	}
	h.client.SetCloseConnection(on)
	return nil
}

// Do executes the call synchronously and captures the response body.
func (h *Handle) Do(ctx context.Context, call Call) (Response, error) {
	if !h.Ready() {
		return nil, ErrHandleClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req := h.client.R().SetContext(ctx)
	for _, kv := range call.Headers {
		req.Header.Add(kv[0], kv[1])
	}
	if call.HasBody {
		req.SetBody(call.Body)
	}

	method := call.Method
	if method == "" {
		method = http.MethodGet
		if call.HasBody {
			method = http.MethodPost
		}
	}

	resp, err := req.Execute(method, call.URL)
	if err != nil {
		return nil, err
	}
	return &Exchange{status: resp.StatusCode(), body: resp.Body()}, nil
}
