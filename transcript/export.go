// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"fmt"
	"io"

	"github.com/charmbracelet/x/ansi"
)

// ExportText renders a transcript's output records as plain text:
// ANSI escape sequences stripped, input and resize records skipped.
// The result is what the operator saw, suitable for grep and diff.
func ExportText(source io.Reader, destination io.Writer) error {
	reader, err := NewReader(source)
	if err != nil {
		return err
	}
	for {
		record, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if record.Kind != KindOutput {
			continue
		}
		if _, err := io.WriteString(destination, ansi.Strip(string(record.Data))); err != nil {
			return fmt.Errorf("write transcript text: %w", err)
		}
	}
}
