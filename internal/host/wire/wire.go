// Package wire serializes transport messages for hosts that move bytes.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/vmihailenco/msgpack/v5"
)

// MaxMessageSize bounds a single encoded message.
const MaxMessageSize = 64 << 20

var (
	ErrUnknownEncoding = errors.New("unknown wire encoding")
	ErrTooLarge        = errors.New("wire message exceeds maximum size")
)

// Encoder converts values to and from bytes.
type Encoder interface {
	Name() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }

func (Msgpack) Encode(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (Msgpack) Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

// ByName returns the encoder called name. An empty name selects msgpack.
func ByName(name string) (Encoder, error) {
	switch name {
	case "msgpack", "":
		return Msgpack{}, nil
	case "json":
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

// Names lists the supported encodings.
func Names() []string { return []string{"json", "msgpack"} }

// Compress s2-compresses data.
func Compress(data []byte) []byte {
	return s2.Encode(nil, data)
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("s2 header: %w", err)
	}
	if n > MaxMessageSize {
		return nil, ErrTooLarge
	}
	return s2.Decode(nil, data)
}

// Message is an encoded inbound message. It implements transport.Message.
type Message struct {
	enc  Encoder
	data []byte
	err  error
}

// NewMessage wraps encoded data.
func NewMessage(enc Encoder, data []byte) *Message {
	return &Message{enc: enc, data: data}
}

// ErrMessage returns a message whose Into always fails with err. Hosts use it
// to hand undecodable payloads to subscribers, which drop them.
func ErrMessage(err error) *Message {
	return &Message{err: err}
}

func (m *Message) Into(v any) error {
	if m.err != nil {
		return m.err
	}
	if len(m.data) > MaxMessageSize {
		return ErrTooLarge
	}
	return m.enc.Decode(m.data, v)
}

// Len returns the encoded size.
func (m *Message) Len() int { return len(m.data) }
