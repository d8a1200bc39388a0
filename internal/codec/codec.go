// Package codec converts bridge messages to and from wire frames.
//
// A frame is the base64 text of a MessagePack document, so binary payloads survive a
// text-only websocket transport byte for byte.
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrInvalidFrame is returned when a frame is not valid base64.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrNotMap is returned by DecodeMap for a well-formed document that is not a map.
	ErrNotMap = errors.New("message is not a map")
)

// Encode serializes v and returns its wire frame.
func Encode(v any) (string, error) {
	var buf bytes.Buffer

	if err := msgpack.NewEncoder(&buf).Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode parses a wire frame into v. Values decoded into interfaces keep their wire
// type: binary becomes []byte, maps become map[string]any and integers use the
// narrowest Go type of their encoding (int8 for small ints).
func Decode(frame string, v any) error {
	raw, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	if err := msgpack.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

// DecodeMap parses a wire frame holding a map with string keys.
func DecodeMap(frame string) (map[string]any, error) {
	var v any
	if err := Decode(frame, &v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok || m == nil {
		return nil, fmt.Errorf("%w: got %T", ErrNotMap, v)
	}
	return m, nil
}
