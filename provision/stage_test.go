// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"testing"
	"time"
)

func TestMapEventTable(t *testing.T) {
	tests := []struct {
		eventType EventType
		wantID    StageID
		wantLabel string
		wantForce Status
	}{
		{EventRequestProcessing, StageRequest, "Processing Request", ""},
		{EventRunnerAcquisition, StageAcquisition, "Acquiring Runner", ""},
		{EventInstanceLifecycle, StageProvisioning, "Provisioning Instance", ""},
		{EventSecurityGroupUpdate, StageSecurity, "Configuring Network", ""},
		{EventInstanceTagging, StageTagging, "Applying Tags", ""},
		{EventClientScriptExecution, StageScripting, "Running Setup Scripts", ""},
		{EventConnectionStatus, StageConnecting, "Establishing Connection", StatusSucceeded},
		{EventRunnerReady, StageConnecting, "Establishing Connection", StatusSucceeded},
		{EventGenericError, StageError, "Error Encountered", StatusFailed},
	}

	for _, test := range tests {
		mapping, ok := MapEvent(test.eventType)
		if !ok {
			t.Errorf("MapEvent(%q) unknown, want known", test.eventType)
			continue
		}
		if mapping.ID != test.wantID || mapping.Label != test.wantLabel || mapping.ForcedStatus != test.wantForce {
			t.Errorf("MapEvent(%q) = %+v, want id=%q label=%q forced=%q",
				test.eventType, mapping, test.wantID, test.wantLabel, test.wantForce)
		}
	}
}

func TestMapEventUnknownType(t *testing.T) {
	if _, ok := MapEvent("SOMETHING_ELSE"); ok {
		t.Fatal("MapEvent accepted an unknown event type")
	}
}

func TestEffectiveStatusDefaultsRunnerReady(t *testing.T) {
	event := Event{Type: EventRunnerReady, Message: "up"}
	if got := event.EffectiveStatus(); got != StatusSucceeded {
		t.Fatalf("EffectiveStatus = %q, want succeeded", got)
	}

	// Other types with a missing status stay empty; the tracker's
	// monotonic rule treats empty as non-terminal.
	event = Event{Type: EventInstanceLifecycle, Message: "booting"}
	if got := event.EffectiveStatus(); got != "" {
		t.Fatalf("EffectiveStatus = %q, want empty", got)
	}
}

func TestStageElapsed(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	active := Stage{StartTime: start}
	if got := active.Elapsed(start.Add(90 * time.Second)); got != 90*time.Second {
		t.Fatalf("active Elapsed = %v, want 90s", got)
	}

	finished := Stage{StartTime: start, EndTime: start.Add(30 * time.Second)}
	// A terminal stage's elapsed time is frozen regardless of now.
	if got := finished.Elapsed(start.Add(time.Hour)); got != 30*time.Second {
		t.Fatalf("terminal Elapsed = %v, want 30s", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "(0:00)"},
		{9 * time.Second, "(0:09)"},
		{59 * time.Second, "(0:59)"},
		{60 * time.Second, "(1:00)"},
		{95 * time.Second, "(1:35)"},
		{10*time.Minute + 5*time.Second, "(10:05)"},
		{-3 * time.Second, "(0:00)"},
		{1500 * time.Millisecond, "(0:01)"},
	}
	for _, test := range tests {
		if got := FormatElapsed(test.d); got != test.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", test.d, got, test.want)
		}
	}
}
