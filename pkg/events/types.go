package events

import (
	"encoding/json"
	"errors"
	"time"
)

// Event type names used on the websocket stream.
const (
	HUDInit  = "hud.init"
	HUDFrame = "hud.frame"
	Alert    = "alert"
)

// Envelope is the wire format of websocket messages.
type Envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data into an envelope of type typ.
func NewEnvelope(typ string, at time.Time, data any) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	env := Envelope{Type: typ, Data: b}
	if !at.IsZero() {
		env.Ts = &at
	}
	return json.Marshal(env)
}

// Decode parses one serialized envelope.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, errors.New("envelope has no type")
	}
	return env, nil
}

// DecodeAs decodes the envelope payload into the caller-specified generic type T.
// It ignores the type name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	frame, err := events.DecodeAs[hud.Frame](env)
//	if err != nil { /* handle */ }
//	fmt.Println(frame.State, frame.Title)
func DecodeAs[T any](e Envelope) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
