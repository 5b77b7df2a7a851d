package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every request method once Close has been called.
	ErrClosed = errors.New("apiclient: client closed")
	// ErrOptionDenied is returned when an option the client depends on is overridden.
	ErrOptionDenied = errors.New("apiclient: option is owned by the client")
	// ErrUnknownOption is returned for option keys outside the allow-list.
	ErrUnknownOption = errors.New("apiclient: unknown option")
	// ErrOptionValue is returned when an option value has the wrong type.
	ErrOptionValue = errors.New("apiclient: invalid option value")
)

// Outcome classifies a completed request.
type Outcome int

const (
	// OutcomeSuccess is a 200 response carrying a body.
	OutcomeSuccess Outcome = iota + 1
	// OutcomeHTTPError is a non-200 response carrying a body.
	OutcomeHTTPError
	// OutcomeTransportError means no HTTP response was received.
	OutcomeTransportError
	// OutcomeEmpty is a response without a body; only the status is meaningful.
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Result describes the request that just ran. It is returned for every
// attempted request, alongside a non-nil error for HTTP and transport failures.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       []byte
}

// OK reports whether the request succeeded: a 200 with a body, or a 2xx without one.
func (r *Result) OK() bool {
	if r == nil {
		return false
	}
	switch r.Outcome {
	case OutcomeSuccess:
		return true
	case OutcomeEmpty:
		return r.StatusCode >= 200 && r.StatusCode < 300
	default:
		return false
	}
}

// TransportError is a connection level failure (DNS, connect, TLS, timeout).
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-200 response with a body. Body is the server payload, verbatim.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, summarize(e.Body, 256))
}

// PayloadState tells apart missing data from data that failed to decode.
type PayloadState int

const (
	PayloadAbsent PayloadState = iota
	PayloadPresent
	PayloadParseError
)

func (s PayloadState) String() string {
	switch s {
	case PayloadPresent:
		return "present"
	case PayloadParseError:
		return "parse_error"
	default:
		return "absent"
	}
}

// Payload is the stored response or error body of the last request.
// Raw is set for Present and ParseError; Value only when decoding was requested and succeeded.
type Payload struct {
	State PayloadState
	Raw   []byte
	Value any
	Err   error
}

func newPayload(raw []byte, present, decode bool) Payload {
	if !present {
		return Payload{State: PayloadAbsent}
	}
	p := Payload{State: PayloadPresent, Raw: raw}
	if !decode {
		return p
	}
	if err := json.Unmarshal(raw, &p.Value); err != nil {
		return Payload{State: PayloadParseError, Raw: raw, Err: fmt.Errorf("decode payload: %w", err)}
	}
	return p
}

// Present reports whether the payload holds data (decoded or raw).
func (p Payload) Present() bool { return p.State == PayloadPresent }

// String returns the raw payload text.
func (p Payload) String() string { return string(p.Raw) }

// Decode unmarshals the raw payload into v.
func (p Payload) Decode(v any) error {
	if p.State == PayloadAbsent {
		return errors.New("apiclient: no payload to decode")
	}
	if err := json.Unmarshal(p.Raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
