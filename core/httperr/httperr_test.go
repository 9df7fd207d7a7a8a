package httperr

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func responseBody(t *testing.T, buf []byte) []byte {
	t.Helper()
	idx := bytes.Index(buf, []byte("\r\n\r\n"))
	require.NotEqual(t, -1, idx)
	return buf[idx+4:]
}

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		name   string
	}{
		{KindBadRequest, 400, "BAD_REQUEST"},
		{KindUnauthorized, 401, "UNAUTHORIZED"},
		{KindForbidden, 403, "FORBIDDEN"},
		{KindNotFound, 404, "NOT_FOUND"},
		{KindInternal, 500, "INTERNAL_SERVER_ERROR"},
		{KindDatabase, 500, "DATABASE_ERROR"},
		{KindValidation, 400, "VALIDATION_ERROR"},
		{KindConfig, 500, "CONFIG_ERROR"},
		{KindSerialization, 500, "SERIALIZATION_ERROR"},
		{KindDeserialization, 400, "DESERIALIZATION_ERROR"},
		{KindIO, 500, "IO_ERROR"},
		{KindCustom, 500, "CUSTOM_ERROR"},
		{KindTooManyRequests, 429, "TOO_MANY_REQUESTS"},
		{KindPayloadTooLarge, 413, "PAYLOAD_TOO_LARGE"},
		{KindUnavailable, 503, "SERVICE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.kind.Status(), tt.name)
		assert.Equal(t, tt.name, tt.kind.String())
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := New(KindNotFound, "user 7")
	wrapped := errors.Wrap(base, "load user")

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Nil(t, Wrap(KindIO, nil))

	sentinel := errors.New("disk gone")
	assert.True(t, errors.Is(Wrap(KindIO, sentinel), sentinel))
}

func TestResponse(t *testing.T) {
	resp := Response(Newf(KindValidation, "field %s is required", "email"))
	assert.Equal(t, 400, resp.Status)
	assert.Contains(t, string(resp.Buffer), "Content-Type: application/json\r\n")

	body := responseBody(t, resp.Buffer)
	assert.Equal(t, "VALIDATION_ERROR", gjson.GetBytes(body, "error.type").String())
	assert.Equal(t, "Validation Error: field email is required", gjson.GetBytes(body, "error.message").String())
	assert.Equal(t, int64(400), gjson.GetBytes(body, "error.status").Int())
}

func TestResponseUnclassified(t *testing.T) {
	resp := Response(errors.New("boom"))
	assert.Equal(t, 500, resp.Status)
	body := responseBody(t, resp.Buffer)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", gjson.GetBytes(body, "error.type").String())
	assert.Equal(t, "boom", gjson.GetBytes(body, "error.message").String())
}
