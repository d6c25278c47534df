// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package terminal implements the interactive session against a
// provisioned runner: a second WebSocket carrying raw shell I/O, with
// local line-buffered input editing, resize negotiation, and raw
// control-byte passthrough.
package terminal

// Printable reports whether c is in the ASCII printable range the
// line editor buffers and echoes locally (space through tilde).
// Everything outside this range is either an editing key or a raw
// control byte forwarded to the runner unbuffered.
func Printable(c byte) bool {
	return c >= 0x20 && c <= 0x7e
}

// LineEditor accumulates printable input between Enter presses. The
// remote shell expects whole line-buffered commands, so keystrokes
// are edited locally and only flushed on Enter. The editor is
// transport-independent: the session owns echo and socket writes.
type LineEditor struct {
	buffer []byte
}

// Push appends one printable character to the pending line.
func (e *LineEditor) Push(c byte) {
	e.buffer = append(e.buffer, c)
}

// Backspace removes the last buffered character. Returns false when
// the buffer is empty, so the caller knows not to erase anything on
// the display.
func (e *LineEditor) Backspace() bool {
	if len(e.buffer) == 0 {
		return false
	}
	e.buffer = e.buffer[:len(e.buffer)-1]
	return true
}

// Flush returns the pending line and clears the buffer.
func (e *LineEditor) Flush() string {
	line := string(e.buffer)
	e.buffer = e.buffer[:0]
	return line
}

// Len returns the number of buffered characters.
func (e *LineEditor) Len() int {
	return len(e.buffer)
}
