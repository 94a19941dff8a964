package session

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"
)

const (
	recordVersion    byte = 1
	recordHeaderSize      = 1 + 8
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// RegisterType makes a concrete attribute type known to the codec.
// Call it at init time for every custom struct stored in a session.
// Registering a type also covers pointers to it, but a nil pointer value
// can never be encoded; store nothing or remove the attribute instead.
func RegisterType(v any) {
	gob.Register(v)
}

// EncodeAttributes serializes an attribute map. Values of unregistered
// types and nil pointers fail with ErrEncode, which Save treats as fatal.
func EncodeAttributes(attrs map[string]any) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]any{}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(attrs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// DecodeAttributes deserializes an attribute map produced by EncodeAttributes.
func DecodeAttributes(data []byte) (map[string]any, error) {
	var attrs map[string]any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&attrs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return attrs, nil
}

// EncodeRecord produces the single-blob envelope used by key-value backends:
// a version byte, the expiration as big-endian unix milliseconds, then the
// attribute blob.
func EncodeRecord(rec Record) ([]byte, error) {
	blob, err := EncodeAttributes(rec.Attributes)
	if err != nil {
		return nil, err
	}

	out := make([]byte, recordHeaderSize, recordHeaderSize+len(blob))
	out[0] = recordVersion
	binary.BigEndian.PutUint64(out[1:recordHeaderSize], uint64(rec.ExpiresAt.UnixMilli()))
	return append(out, blob...), nil
}

// DecodeRecord parses an envelope produced by EncodeRecord.
func DecodeRecord(data []byte) (Record, error) {
	if len(data) < recordHeaderSize {
		return Record{}, fmt.Errorf("%w: envelope too short (%d bytes)", ErrDecode, len(data))
	}
	if data[0] != recordVersion {
		return Record{}, fmt.Errorf("%w: unknown envelope version %d", ErrDecode, data[0])
	}

	millis := int64(binary.BigEndian.Uint64(data[1:recordHeaderSize]))
	attrs, err := DecodeAttributes(data[recordHeaderSize:])
	if err != nil {
		return Record{}, err
	}

	return Record{ExpiresAt: time.UnixMilli(millis), Attributes: attrs}, nil
}
