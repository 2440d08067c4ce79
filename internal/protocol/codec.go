package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrEmptyFrame   = errors.New("empty frame")
	ErrUnknownEvent = errors.New("unknown event")
	ErrUnknownCodec = errors.New("unknown codec")
	ErrEmptyPayload = errors.New("empty payload")
)

// Frame is a decoded envelope whose data has not been parsed yet
type Frame struct {
	Event string
	Data  []byte

	codec Codec
}

// Codec turns envelopes into wire frames and back
type Codec interface {
	Name() string
	// Binary reports whether frames go out as binary WebSocket messages
	Binary() bool
	Encode(event string, data any) ([]byte, error)
	Decode(frame []byte) (Frame, error)
	Unmarshal(data []byte, v any) error
}

// CodecByName returns the codec registered under name
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// DecodePayload parses a frame's data into T
func DecodePayload[T any](f Frame) (T, error) {
	var out T
	if len(f.Data) == 0 {
		return out, fmt.Errorf("%w for event %q", ErrEmptyPayload, f.Event)
	}
	if f.codec == nil {
		return out, fmt.Errorf("frame %q has no codec", f.Event)
	}
	if err := f.codec.Unmarshal(f.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", f.Event, err)
	}
	return out, nil
}

func checkEvent(event string) error {
	if !KnownEvent(event) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return nil
}

// =============================================================================
// JSON
// =============================================================================

// JSON is the default text codec
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

type jsonEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(event string, data any) ([]byte, error) {
	if err := checkEvent(event); err != nil {
		return nil, err
	}
	env := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{event, data}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

func (c jsonCodec) Decode(frame []byte) (Frame, error) {
	if len(frame) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	var env jsonEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Frame{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := checkEvent(env.Event); err != nil {
		return Frame{}, err
	}
	return Frame{Event: env.Event, Data: env.Data, codec: c}, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// =============================================================================
// MSGPACK
// =============================================================================

// MsgPack is the binary codec. Struct fields use their json names so both
// codecs share one schema.
var MsgPack Codec = msgpackCodec{}

type msgpackCodec struct{}

type msgpackEnvelope struct {
	Event string             `msgpack:"event"`
	Data  msgpack.RawMessage `msgpack:"data,omitempty"`
}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(event string, data any) ([]byte, error) {
	if err := checkEvent(event); err != nil {
		return nil, err
	}
	env := struct {
		Event string `msgpack:"event"`
		Data  any    `msgpack:"data,omitempty"`
	}{event, data}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(&env); err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Decode(frame []byte) (Frame, error) {
	if len(frame) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return Frame{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := checkEvent(env.Event); err != nil {
		return Frame{}, err
	}
	return Frame{Event: env.Event, Data: env.Data, codec: c}, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
