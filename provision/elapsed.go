// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"fmt"
	"time"
)

// TickInterval is how often stage displays refresh elapsed times
// while any stage is active. Purely a display cadence: timing state
// lives on the stages themselves and completion logic never reads it.
const TickInterval = time.Second

// FormatElapsed renders a stage duration as "(M:SS)". Durations are
// clamped at zero so clock skew never renders a negative time.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int(d / time.Second)
	return fmt.Sprintf("(%d:%02d)", totalSeconds/60, totalSeconds%60)
}
