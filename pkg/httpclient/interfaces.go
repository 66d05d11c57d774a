package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// Query values are appended to the URL; headers are set verbatim.
type Client interface {
	Get(ctx context.Context, url string, query map[string]string, headers map[string]string) (Response, error)
}

// IdleCloser is implemented by transports that pool connections.
type IdleCloser interface {
	CloseIdleConnections()
}
