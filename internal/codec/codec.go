// Package codec maps chunk payloads to a text form that survives a URL
// query parameter without escaping, and back.
package codec

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// Codec encodes chunk payloads for the wire. The base64 URL alphabet keeps
// the encoded form free of characters that would need percent-escaping; the
// optional lz4 stage shrinks payloads for low-bandwidth profiles. Both sides
// must be configured identically, nothing is auto-detected.
type Codec struct {
	compress bool
}

// New returns a codec, with the lz4 compression stage enabled or not.
func New(compress bool) Codec {
	return Codec{compress: compress}
}

// Encode turns raw payload bytes into their query-parameter representation.
func (c Codec) Encode(raw []byte) (string, error) {
	data := raw
	if c.compress {
		compressed, err := compressPayload(raw)
		if err != nil {
			return "", err
		}
		data = compressed
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode reverses Encode. Decode(Encode(p)) == p for every payload,
// including empty and binary ones.
func (c Codec) Decode(text string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("payload is not valid base64: %v", err)
	}
	if c.compress {
		return decompressPayload(data)
	}
	return data, nil
}

func compressPayload(data []byte) ([]byte, error) {
	var compressed strings.Builder
	writer := lz4.NewWriter(&compressed)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("compression failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("compression failed: %v", err)
	}
	return []byte(compressed.String()), nil
}

func decompressPayload(data []byte) ([]byte, error) {
	reader := lz4.NewReader(strings.NewReader(string(data)))
	var decompressed strings.Builder

	if _, err := io.Copy(&decompressed, reader); err != nil {
		return nil, fmt.Errorf("decompression failed: %v", err)
	}

	return []byte(decompressed.String()), nil
}
