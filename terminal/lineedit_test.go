// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import "testing"

func TestLineEditorPushAndFlush(t *testing.T) {
	var editor LineEditor

	for _, c := range []byte("ls -la") {
		editor.Push(c)
	}
	if editor.Len() != 6 {
		t.Fatalf("Len = %d, want 6", editor.Len())
	}
	if got := editor.Flush(); got != "ls -la" {
		t.Fatalf("Flush = %q", got)
	}
	if editor.Len() != 0 {
		t.Fatalf("buffer not empty after Flush: %d", editor.Len())
	}
	if got := editor.Flush(); got != "" {
		t.Fatalf("second Flush = %q, want empty", got)
	}
}

func TestLineEditorBackspace(t *testing.T) {
	var editor LineEditor

	editor.Push('l')
	editor.Push('s')
	if !editor.Backspace() {
		t.Fatal("Backspace returned false with buffered input")
	}
	if got := editor.Flush(); got != "l" {
		t.Fatalf("Flush after backspace = %q, want %q", got, "l")
	}
}

func TestLineEditorBackspaceOnEmptyBuffer(t *testing.T) {
	var editor LineEditor

	if editor.Backspace() {
		t.Fatal("Backspace returned true on an empty buffer")
	}
	editor.Push('x')
	editor.Backspace()
	if editor.Backspace() {
		t.Fatal("Backspace returned true after the buffer drained")
	}
}

func TestPrintableRange(t *testing.T) {
	tests := []struct {
		c    byte
		want bool
	}{
		{' ', true},
		{'a', true},
		{'~', true},
		{0x1f, false}, // unit separator, below space
		{0x7f, false}, // DEL
		{'\r', false},
		{'\n', false},
		{0x03, false}, // Ctrl-C
		{0x80, false},
	}
	for _, test := range tests {
		if got := Printable(test.c); got != test.want {
			t.Errorf("Printable(%#x) = %v, want %v", test.c, got, test.want)
		}
	}
}
