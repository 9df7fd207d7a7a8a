package http

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestMinimal(t *testing.T) {
	req, err := ParseRequest([]byte("GET /api HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, "/api", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.Empty(t, req.Body)
}

func TestParseRequestFull(t *testing.T) {
	raw := "POST /api/user?name=alice&flag&empty= HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Content-Type: application/json\r\n" +
		"Cookie: session=abc; theme=dark ; broken\r\n" +
		"\r\n" +
		`{"name":"alice"}`

	req, err := ParseRequest([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, MethodPost, req.Method)
	assert.Equal(t, "/api/user", req.Path)
	assert.Equal(t, map[string]string{"name": "alice", "flag": "", "empty": ""}, req.Query)
	assert.Equal(t, map[string]string{"session": "abc", "theme": "dark"}, req.Cookies)
	assert.Equal(t, "application/json", req.ContentType())
	assert.Equal(t, `{"name":"alice"}`, string(req.Body))

	host, ok := req.Header("HOST")
	assert.True(t, ok)
	assert.Equal(t, "localhost", host)
}

func TestParseRequestNoQueryInPath(t *testing.T) {
	targets := []string{"/a?b=c", "/?x", "/deep/path?q=1&r=2", "/plain"}
	for _, target := range targets {
		req, err := ParseRequest([]byte("GET " + target + " HTTP/1.1\r\n\r\n"))
		require.NoError(t, err, target)
		assert.NotContains(t, req.Path, "?", target)
	}
}

func TestParseRequestMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"free text", "not a valid request", ErrInvalidRequest},
		{"two tokens", "GET /api\r\n\r\n", ErrInvalidRequest},
		{"four tokens", "GET /api HTTP/1.1 extra\r\n\r\n", ErrInvalidRequest},
		{"double space", "GET  /api HTTP/1.1\r\n\r\n", ErrInvalidRequest},
		{"bad protocol", "GET /api FTP/1.0\r\n\r\n", ErrInvalidRequest},
		{"unknown method", "FETCH /api HTTP/1.1\r\n\r\n", ErrUnknownMethod},
		{"lower-case method", "get /api HTTP/1.1\r\n\r\n", ErrUnknownMethod},
		{"empty", "", ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.raw))
			assert.Nil(t, req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestParseRequestSkipsMalformedHeaders(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n" +
		"no colon here\r\n" +
		"Bad Name: value\r\n" +
		": empty name\r\n" +
		"X-Good: yes\r\n" +
		"\r\n"

	req, err := ParseRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x-good": "yes"}, req.Headers())
}

func TestParseRequestBareLF(t *testing.T) {
	req, err := ParseRequest([]byte("PUT /api/data/1 HTTP/1.0\nX-A: 1\n\nbody"))
	require.NoError(t, err)
	assert.Equal(t, MethodPut, req.Method)
	assert.Equal(t, "body", string(req.Body))
	assert.False(t, req.KeepAlive())
}

func TestParseRequestNoSeparator(t *testing.T) {
	req, err := ParseRequest([]byte("DELETE /api/user/7 HTTP/1.1\r\nX-A: 1"))
	require.NoError(t, err)
	assert.Equal(t, "/api/user/7", req.Path)
	assert.Empty(t, req.Body)

	v, _ := req.Header("x-a")
	assert.Equal(t, "1", v)
}

func TestParseRequestPathNormalized(t *testing.T) {
	req, err := ParseRequest([]byte("GET api HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "/api", req.Path)

	req, err = ParseRequest([]byte("GET ?q=1 HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "/", req.Path)
}

func TestParseRequestBodyIsCopied(t *testing.T) {
	buf := []byte("POST / HTTP/1.1\r\n\r\nabc")
	req, err := ParseRequest(buf)
	require.NoError(t, err)

	buf[len(buf)-1] = 'z'
	assert.Equal(t, "abc", string(req.Body))
}

func BenchmarkParseRequest(b *testing.B) {
	data := []byte("GET /api/users/123?page=2 HTTP/1.1\r\n" +
		"Host: localhost:8080\r\n" +
		"User-Agent: Mozilla/5.0\r\n" +
		"Accept: */*\r\n" +
		"Cookie: session=abc\r\n" +
		"\r\n")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParseRequest(data)
	}
}
