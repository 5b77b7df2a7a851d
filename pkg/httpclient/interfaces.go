package httpclient

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}
