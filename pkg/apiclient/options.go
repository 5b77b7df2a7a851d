package apiclient

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-apicaller/pkg/httpclient"
)

// Option configures New.
type Option func(*config)

type config struct {
	jsonMode bool
	timeout  time.Duration
	sink     StatusSink
	log      Logger
	handle   *httpclient.Handle
}

func defaultConfig() config {
	return config{jsonMode: true}
}

// WithJSONMode selects JSON (true, the default) or urlencoded form request bodies.
func WithJSONMode(on bool) Option {
	return func(c *config) { c.jsonMode = on }
}

// WithTimeout sets the transport timeout used when New creates the handle.
// Zero leaves the transport default (no client-level timeout).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithStatusSink receives the status code of every request that got a response.
// It is not called when the request fails before a status arrives.
func WithStatusSink(s StatusSink) Option {
	return func(c *config) { c.sink = s }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l Logger) Option {
	return func(c *config) { c.log = l }
}

// WithHandle makes the client use h instead of creating its own handle.
// The client takes ownership and closes h on Close.
func WithHandle(h *httpclient.Handle) Option {
	return func(c *config) { c.handle = h }
}

// Raw option keys accepted by Client.Opt.
const (
	OptTimeout         = "timeout"
	OptFollowRedirects = "follow_redirects"
	OptMaxRedirects    = "max_redirects"
	OptUserAgent       = "user_agent"
	OptProxy           = "proxy"
	OptCloseConnection = "close_connection"

	// OptCaptureBody and its alias are denied: the client always captures bodies.
	OptCaptureBody    = "capture_body"
	optReturnTransfer = "return_transfer"
)

var deniedOptions = map[string]struct{}{
	OptCaptureBody:    {},
	optReturnTransfer: {},
}

// applyOption normalizes value for key and applies it to the handle.
func (c *Client) applyOption(key string, value any) (any, error) {
	h := c.handle
	switch key {
	case OptTimeout:
		d, err := toDuration(value)
		if err != nil {
			return nil, err
		}
		return d, h.SetTimeout(d)
	case OptFollowRedirects:
		on, err := toBool(value)
		if err != nil {
			return nil, err
		}
		return on, h.SetRedirects(on, c.maxRedirects())
	case OptMaxRedirects:
		n, err := toInt(value)
		if err != nil {
			return nil, err
		}
		return n, h.SetRedirects(c.followRedirects(), n)
	case OptUserAgent, OptProxy:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s wants a string, got %T", ErrOptionValue, key, value)
		}
		s = strings.TrimSpace(s)
		if key == OptUserAgent {
			return s, h.SetUserAgent(s)
		}
		return s, h.SetProxy(s)
	case OptCloseConnection:
		on, err := toBool(value)
		if err != nil {
			return nil, err
		}
		return on, h.SetCloseConnection(on)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOption, key)
	}
}

func (c *Client) followRedirects() bool {
	if v, ok := c.options[OptFollowRedirects].(bool); ok {
		return v
	}
	return true
}

func (c *Client) maxRedirects() int {
	if v, ok := c.options[OptMaxRedirects].(int); ok {
		return v
	}
	return 0
}

func toDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case int64:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			return d, nil
		}
		if secs, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
	}
	return 0, fmt.Errorf("%w: timeout wants a duration or seconds, got %v", ErrOptionValue, v)
}

func toBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: want a bool, got %v", ErrOptionValue, v)
}

func toInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: want an integer, got %v", ErrOptionValue, v)
}
