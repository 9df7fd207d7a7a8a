package http

import "github.com/cockroachdb/errors"

// HTTP header constants
const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderConnection    = "Connection"
	HeaderCookie        = "Cookie"
	HeaderUserAgent     = "User-Agent"
	HeaderHost          = "Host"
	HeaderRequestID     = "X-Request-ID"
	HeaderAuthorization = "Authorization"
)

// Media types set by the response builder
const (
	MIMETextPlain = "text/plain; charset=utf-8"
	MIMEJSON      = "application/json"
)

// Error definitions
var (
	ErrInvalidRequest = errors.New("invalid HTTP request")
	ErrUnknownMethod  = errors.New("unknown HTTP method")
	ErrEmptyBody      = errors.New("empty request body")
	ErrNoResource     = errors.New("no shared resource configured")
)
