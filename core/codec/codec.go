package codec

import (
	"encoding/json"
	"mime"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Codec encodes and decodes request and response bodies
type Codec interface {
	// Encode encodes a value to bytes
	Encode(v any) ([]byte, error)

	// Decode decodes bytes to a value
	Decode(data []byte, v any) error

	// Name returns the codec name
	Name() string

	// ContentType is the media type written next to encoded bodies
	ContentType() string
}

// Type identifies a body codec
type Type byte

const (
	TypeJSON     Type = 0x01
	TypeMsgPack  Type = 0x02
	TypeProtobuf Type = 0x03
)

// Get returns a codec by type
func Get(typ Type) (Codec, error) {
	switch typ {
	case TypeJSON:
		return JSON, nil
	case TypeMsgPack:
		return MsgPack, nil
	case TypeProtobuf:
		return Protobuf, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "codec type 0x%02x", byte(typ))
	}
}

// ForContentType picks the codec for a Content-Type header value.
// Parameters such as charset are ignored; an empty value means JSON.
func ForContentType(contentType string) (Codec, error) {
	if strings.TrimSpace(contentType) == "" {
		return JSON, nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedCodec, "content type %q", contentType)
	}

	switch mediaType {
	case "application/json", "text/json":
		return JSON, nil
	case "application/msgpack", "application/x-msgpack", "application/vnd.msgpack":
		return MsgPack, nil
	case "application/protobuf", "application/x-protobuf", "application/vnd.google.protobuf":
		return Protobuf, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "content type %q", contentType)
	}
}

// Shared codec instances; all are stateless.
var (
	JSON     Codec = &JSONCodec{}
	MsgPack  Codec = &MsgPackCodec{}
	Protobuf Codec = &ProtobufCodec{}
)

// JSONCodec implements JSON encoding/decoding
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

func (c *JSONCodec) ContentType() string {
	return "application/json"
}
