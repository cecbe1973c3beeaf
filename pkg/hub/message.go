// Package hub fans tracking updates and preview frames out to the
// dashboard's websocket clients.
package hub

import (
	"encoding/json"
	"fmt"
)

// Message is one broadcast payload. The dashboard sends exactly two kinds:
// JSON status/log updates (text frames) and encoded preview frames (binary).
type Message struct {
	Binary  bool
	Payload []byte
}

// StatusMessage encodes v as a JSON text message.
func StatusMessage(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("hub: encode status: %w", err)
	}
	return Message{Payload: data}, nil
}

// FrameMessage wraps an already-encoded preview frame.
func FrameMessage(data []byte) Message {
	return Message{Binary: true, Payload: data}
}
