package apiclient

// StatusSink receives the HTTP status of each request, so a hosting server
// can mirror the upstream status on its own response.
type StatusSink interface {
	SetStatus(code int)
}

// StatusSinkFunc adapts a function to a StatusSink.
type StatusSinkFunc func(code int)

func (f StatusSinkFunc) SetStatus(code int) { f(code) }

type noopSink struct{}

func (noopSink) SetStatus(int) {}
