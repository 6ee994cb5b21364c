package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Method identifies an RPC operation.
type Method string

// Built-in methods every node understands.
const (
	PingMethod  Method = "ping"
	PongMethod  Method = "pong"
	ErrorMethod Method = "error"
)

// String returns the method name.
func (m Method) String() string {
	return string(m)
}

// Params holds the named parameters of a request or response. Values stay
// raw until a handler translates them into a typed struct.
type Params map[string]json.RawMessage

// NewParams converts a map or struct into Params.
func NewParams(v any) (Params, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error marshalling params: %w", err)
	}

	var params Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("error unmarshalling params: %w", err)
	}
	return params, nil
}

// NewErrorParams builds the params of an error response: {"error": msg}.
func NewErrorParams(msg string) Params {
	raw, _ := json.Marshal(msg)
	return Params{"error": raw}
}

// Translate unmarshals the params into dst, which should be a pointer to a
// struct or map.
func (p Params) Translate(dst any) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("error marshalling params: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("error unmarshalling params: %w", err)
	}
	return nil
}

// Error extracts the message stored under the standard "error" key.
// It returns nil when the params carry no error.
func (p Params) Error() error {
	raw, ok := p["error"]
	if !ok {
		return nil
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil || msg == "" {
		return nil
	}
	return errors.New(msg)
}

// Payload is the common structure of requests and responses. On the wire it
// is the compact array [request_id, method, params, ts] with ts in unix
// milliseconds.
type Payload struct {
	RequestID uint64
	Method    string
	Params    Params
	Timestamp uint64
}

// NewPayload creates a Payload with the current timestamp.
func NewPayload(id uint64, method string, params Params) Payload {
	return Payload{
		RequestID: id,
		Method:    method,
		Params:    params,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// MarshalJSON always emits the array form [RequestID, Method, Params, Timestamp].
func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		p.RequestID,
		p.Method,
		p.Params,
		p.Timestamp,
	})
}

// UnmarshalJSON parses the array form, validating each element's type.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var rawArr []json.RawMessage
	if err := json.Unmarshal(data, &rawArr); err != nil {
		return fmt.Errorf("error reading payload as array: %w", err)
	}
	if len(rawArr) != 4 {
		return errors.New("invalid payload: expected 4 elements in array")
	}

	if err := json.Unmarshal(rawArr[0], &p.RequestID); err != nil {
		return fmt.Errorf("invalid request_id: %w", err)
	}
	if err := json.Unmarshal(rawArr[1], &p.Method); err != nil {
		return fmt.Errorf("invalid method: %w", err)
	}
	if err := json.Unmarshal(rawArr[2], &p.Params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if err := json.Unmarshal(rawArr[3], &p.Timestamp); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	return nil
}
