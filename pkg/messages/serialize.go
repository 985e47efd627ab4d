package messages

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoding selects how messages are framed on the wire.
type Encoding int

const (
	// EncodingZstd is zstd compressed JSON, sent as binary frames.
	EncodingZstd Encoding = iota
	// EncodingJSON is plain JSON, sent as text frames.
	EncodingJSON
	// EncodingFlatbuffers is a zstd compressed flatbuffer envelope, sent as binary frames.
	// Table state snapshots are encoded as flatbuffers too.
	EncodingFlatbuffers
)

func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "zstd":
		return EncodingZstd, nil
	case "json":
		return EncodingJSON, nil
	case "flatbuffers", "fb":
		return EncodingFlatbuffers, nil
	default:
		return 0, fmt.Errorf("unknown encoding: %s", s)
	}
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd writer: %v", err))
	}
	decoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd reader: %v", err))
	}
}

func SerializeMessage(m *Message) ([]byte, error) {
	return Serialize(m, EncodingZstd)
}

// Serialize encodes a message with the given encoding.
func Serialize(m *Message, encoding Encoding) ([]byte, error) {
	var b []byte
	var err error
	switch encoding {
	case EncodingFlatbuffers:
		b, err = SerializeMessageFlatbuffer(m)
	case EncodingZstd, EncodingJSON:
		b, err = json.Marshal(m)
	default:
		return nil, fmt.Errorf("unknown encoding: %d", encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}
	if encoding == EncodingJSON {
		return b, nil
	}
	return encoder.EncodeAll(b, make([]byte, 0, len(b))), nil
}

// DeserializeMessage decodes any encoding. Compression is detected from the
// zstd frame magic and flatbuffers from the envelope identifier.
func DeserializeMessage(data []byte) (*Message, error) {
	b := data
	if bytes.HasPrefix(data, zstdMagic) {
		var err error
		b, err = decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress message: %v", err)
		}
	}

	if isFlatbufferMessage(b) {
		message, err := DeserializeMessageFlatbuffer(b)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize message: %v", err)
		}
		return message, nil
	}

	message := &Message{}
	if err := json.Unmarshal(b, message); err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}
	return message, nil
}
