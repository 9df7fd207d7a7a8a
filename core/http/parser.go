package http

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/http/httpguts"
)

var (
	crlfSeparator = []byte("\r\n\r\n")
	lfSeparator   = []byte("\n\n")
)

// ParseRequest parses a raw request buffer.
// Any error means the buffer is not a request; callers answer 400.
func ParseRequest(data []byte) (*Request, error) {
	head, body := splitHead(data)

	// Request line
	line := head
	rest := []byte(nil)
	if lineEnd := bytes.IndexByte(head, '\n'); lineEnd != -1 {
		line = head[:lineEnd]
		rest = head[lineEnd+1:]
	}
	line = bytes.TrimSuffix(line, []byte{'\r'})

	// METHOD PATH PROTO, exactly three non-empty tokens
	tokens := strings.Split(string(line), " ")
	if len(tokens) != 3 || tokens[0] == "" || tokens[1] == "" || tokens[2] == "" {
		return nil, errors.Wrapf(ErrInvalidRequest, "request line has %d tokens", len(tokens))
	}
	if !strings.HasPrefix(tokens[2], "HTTP/") {
		return nil, errors.Wrapf(ErrInvalidRequest, "bad protocol marker %q", tokens[2])
	}

	method, ok := ParseMethod(tokens[0])
	if !ok {
		return nil, errors.Mark(errors.Wrapf(ErrUnknownMethod, "%q", tokens[0]), ErrInvalidRequest)
	}

	req := &Request{
		Method:  method,
		Proto:   tokens[2],
		headers: make(map[string]string),
	}

	// Split path from query string
	target := tokens[1]
	if idx := strings.IndexByte(target, '?'); idx != -1 {
		req.Query = parseQuery(target[idx+1:])
		target = target[:idx]
	}
	req.Path = normalizePath(target)

	parseHeaders(req, rest)

	if cookie, ok := req.headers["cookie"]; ok {
		req.Cookies = parseCookies(cookie)
	}

	if len(body) > 0 {
		req.Body = append([]byte(nil), body...)
	}

	return req, nil
}

// splitHead splits at the first blank line. Without one, everything is head.
func splitHead(data []byte) (head, body []byte) {
	if idx := bytes.Index(data, crlfSeparator); idx != -1 {
		return data[:idx], data[idx+len(crlfSeparator):]
	}
	if idx := bytes.Index(data, lfSeparator); idx != -1 {
		return data[:idx], data[idx+len(lfSeparator):]
	}
	return data, nil
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

// parseHeaders parses header lines; malformed lines are skipped
func parseHeaders(req *Request, data []byte) {
	for len(data) > 0 {
		lineEnd := bytes.IndexByte(data, '\n')
		if lineEnd == -1 {
			lineEnd = len(data)
		}

		line := bytes.TrimSuffix(data[:lineEnd], []byte{'\r'})

		colon := bytes.IndexByte(line, ':')
		if colon > 0 {
			name := string(bytes.TrimSpace(line[:colon]))
			if httpguts.ValidHeaderFieldName(name) {
				req.headers[strings.ToLower(name)] = string(bytes.TrimSpace(line[colon+1:]))
			}
		}

		if lineEnd == len(data) {
			break
		}
		data = data[lineEnd+1:]
	}
}

// parseQuery splits on '&' then the first '='. Values are not decoded.
func parseQuery(raw string) map[string]string {
	query := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		query[key] = value
	}
	return query
}

// parseCookies splits on ';' then the first '='
func parseCookies(raw string) map[string]string {
	cookies := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return cookies
}
