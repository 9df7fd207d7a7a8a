// Package httperr maps failures to protocol-level responses.
package httperr

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/searchktools/fast-dispatch/core/http"
)

// Kind classifies an error for the response it produces
type Kind uint8

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindDatabase
	KindValidation
	KindConfig
	KindSerialization
	KindDeserialization
	KindIO
	KindCustom
	KindTooManyRequests
	KindPayloadTooLarge
	KindUnavailable
)

var kinds = [...]struct {
	status int
	name   string
	label  string
}{
	KindInternal:        {500, "INTERNAL_SERVER_ERROR", "Internal Server Error"},
	KindBadRequest:      {400, "BAD_REQUEST", "Bad Request"},
	KindUnauthorized:    {401, "UNAUTHORIZED", "Unauthorized"},
	KindForbidden:       {403, "FORBIDDEN", "Forbidden"},
	KindNotFound:        {404, "NOT_FOUND", "Not Found"},
	KindDatabase:        {500, "DATABASE_ERROR", "Database Error"},
	KindValidation:      {400, "VALIDATION_ERROR", "Validation Error"},
	KindConfig:          {500, "CONFIG_ERROR", "Configuration Error"},
	KindSerialization:   {500, "SERIALIZATION_ERROR", "Serialization Error"},
	KindDeserialization: {400, "DESERIALIZATION_ERROR", "Deserialization Error"},
	KindIO:              {500, "IO_ERROR", "IO Error"},
	KindCustom:          {500, "CUSTOM_ERROR", "Custom Error"},
	KindTooManyRequests: {429, "TOO_MANY_REQUESTS", "Too Many Requests"},
	KindPayloadTooLarge: {413, "PAYLOAD_TOO_LARGE", "Payload Too Large"},
	KindUnavailable:     {503, "SERVICE_UNAVAILABLE", "Service Unavailable"},
}

// Status returns the HTTP status for the kind
func (k Kind) Status() int {
	if int(k) < len(kinds) {
		return kinds[k].status
	}
	return http.StatusInternalServerError
}

// String returns the wire name of the kind, e.g. NOT_FOUND
func (k Kind) String() string {
	if int(k) < len(kinds) {
		return kinds[k].name
	}
	return kinds[KindInternal].name
}

// Error carries a Kind through wrapping layers
type Error struct {
	kind Kind
	err  error
}

// New creates an error of the given kind
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, err: errors.New(msg)}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, err: errors.Newf(format, args...)}
}

// Wrap classifies err. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: err}
}

func (e *Error) Kind() Kind    { return e.kind }
func (e *Error) Unwrap() error { return e.err }

func (e *Error) Error() string {
	label := kinds[KindInternal].label
	if int(e.kind) < len(kinds) {
		label = kinds[e.kind].label
	}
	return label + ": " + e.err.Error()
}

// KindOf returns the kind of err, or KindInternal when it carries none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

type body struct {
	Error bodyError `json:"error"`
}

type bodyError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Builder converts err into a JSON error response builder so callers can
// add headers before building. The body has the shape
// {"error":{"type":...,"message":...,"status":...}}.
func Builder(err error) *http.Builder {
	kind := KindOf(err)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	data, merr := json.Marshal(body{Error: bodyError{
		Type:    kind.String(),
		Message: msg,
		Status:  kind.Status(),
	}})
	if merr != nil {
		return http.ServerError().
			JSON(`{"error":{"type":"INTERNAL_SERVER_ERROR","message":"failed to serialize error response","status":500}}`)
	}

	return http.NewBuilder(kind.Status()).JSON(string(data))
}

// Response converts err into a terminal JSON response
func Response(err error) http.Response {
	return Builder(err).Response()
}
