// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import "encoding/json"

// Control message types on the terminal socket. Everything that is
// not a recognized JSON control frame is raw shell I/O in both
// directions.
const (
	// controlResize is sent by the client whenever the local display
	// dimensions become known or change.
	controlResize = "resize"

	// controlError is sent by the server to report a session-level
	// failure. Its message is surfaced to the caller, not echoed to
	// the display.
	controlError = "error"
)

// controlMessage is the JSON shape of a control frame in either
// direction.
type controlMessage struct {
	Type string `json:"type"`

	// Cols and Rows accompany resize frames.
	Cols int `json:"cols,omitempty"`
	Rows int `json:"rows,omitempty"`

	// Message accompanies server error frames.
	Message string `json:"message,omitempty"`
}

// encodeResize builds the resize control frame for the given display
// dimensions.
func encodeResize(cols, rows int) ([]byte, error) {
	return json.Marshal(controlMessage{Type: controlResize, Cols: cols, Rows: rows})
}

// decodeServerError probes an inbound text frame for an error control
// message. Returns the error text and true when the frame is one;
// anything else (parse failure included) is raw terminal output.
func decodeServerError(frame []byte) (string, bool) {
	var control controlMessage
	if err := json.Unmarshal(frame, &control); err != nil {
		return "", false
	}
	if control.Type != controlError {
		return "", false
	}
	return control.Message, true
}
