// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/quarterdeck-systems/quarterdeck/lib/clock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestTracker returns a tracker wired to a fake clock and a
// completion recorder. Completions are recorded synchronously because
// the fake clock fires AfterFunc callbacks inside Advance.
func newTestTracker(t *testing.T) (*Tracker, *clock.FakeClock, *[]Completion) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	var completions []Completion
	tracker := NewTracker(fake, testLogger(), func(c Completion) {
		completions = append(completions, c)
	})
	return tracker, fake, &completions
}

func feed(t *testing.T, tracker *Tracker, event Event) {
	t.Helper()
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	tracker.HandleMessage(raw)
}

func findStage(t *testing.T, tracker *Tracker, id StageID) Stage {
	t.Helper()
	for _, stage := range tracker.Stages() {
		if stage.ID == id {
			return stage
		}
	}
	t.Fatalf("stage %q not found in %v", id, tracker.Stages())
	panic("unreachable")
}

func TestSuccessfulProvisioningSequence(t *testing.T) {
	tracker, fake, completions := newTestTracker(t)

	feed(t, tracker, Event{Type: EventRequestProcessing, Status: StatusInProgress, Message: "queued"})
	fake.Advance(2 * time.Second)
	feed(t, tracker, Event{Type: EventRunnerAcquisition, Status: StatusInProgress, Message: "searching pool"})
	feed(t, tracker, Event{Type: EventConnectionStatus, Status: StatusSucceeded,
		Message: "connected", RunnerID: 42, URL: "wss://x"})

	if len(*completions) != 0 {
		t.Fatalf("completion delivered before the notification delay")
	}
	if got := tracker.StatusLine(); got != "succeeded! Connecting to terminal..." {
		t.Fatalf("StatusLine = %q", got)
	}

	fake.Advance(CompletionNotifyDelay)
	if len(*completions) != 1 {
		t.Fatalf("got %d completions, want 1", len(*completions))
	}
	result := (*completions)[0]
	if !result.Succeeded || result.RunnerID != 42 || result.URL != "wss://x" {
		t.Fatalf("completion = %+v", result)
	}

	connecting := findStage(t, tracker, StageConnecting)
	if connecting.Status != StatusSucceeded {
		t.Fatalf("connecting stage status = %q, want succeeded", connecting.Status)
	}
}

func TestCompletionFiresAtMostOnce(t *testing.T) {
	tracker, fake, completions := newTestTracker(t)

	feed(t, tracker, Event{Type: EventConnectionStatus, Status: StatusSucceeded,
		Message: "connected", RunnerID: 7, URL: "wss://a"})

	// Further qualifying events before delivery must not re-latch.
	feed(t, tracker, Event{Type: EventGenericError, Status: StatusFailed, Message: "late failure"})
	feed(t, tracker, Event{Type: EventConnectionStatus, Status: StatusSucceeded,
		Message: "connected again", RunnerID: 8, URL: "wss://b"})

	fake.Advance(CompletionNotifyDelay)

	// Events after delivery are dropped entirely.
	feed(t, tracker, Event{Type: EventGenericError, Status: StatusFailed, Message: "even later"})
	fake.Advance(time.Minute)

	if len(*completions) != 1 {
		t.Fatalf("got %d completions, want 1", len(*completions))
	}
	if result := (*completions)[0]; !result.Succeeded || result.RunnerID != 7 {
		t.Fatalf("completion = %+v, want the first outcome", result)
	}
}

func TestGenericErrorCompletesWithMessage(t *testing.T) {
	tracker, fake, completions := newTestTracker(t)

	feed(t, tracker, Event{Type: EventGenericError, Status: StatusFailed, Message: "boom"})

	if got := tracker.StatusLine(); got != "Error Encountered. Routing back..." {
		t.Fatalf("StatusLine = %q", got)
	}
	fake.Advance(CompletionNotifyDelay)

	if len(*completions) != 1 {
		t.Fatalf("got %d completions, want 1", len(*completions))
	}
	result := (*completions)[0]
	if result.Succeeded || result.Message != "boom" {
		t.Fatalf("completion = %+v", result)
	}
}

func TestFailureWithEmptyMessageGetsPlaceholder(t *testing.T) {
	tracker, fake, completions := newTestTracker(t)

	feed(t, tracker, Event{Type: EventInstanceLifecycle, Status: StatusFailed})
	fake.Advance(CompletionNotifyDelay)

	if len(*completions) != 1 {
		t.Fatalf("got %d completions, want 1", len(*completions))
	}
	if got := (*completions)[0].Message; got != "An unknown error occurred." {
		t.Fatalf("completion message = %q", got)
	}
}

func TestRunnerReadyWithoutURLFails(t *testing.T) {
	tracker, fake, completions := newTestTracker(t)

	feed(t, tracker, Event{Type: EventRunnerReady, Message: "runner is up"})

	if got := tracker.StatusLine(); got != "Error: Could not retrieve connection details." {
		t.Fatalf("StatusLine = %q", got)
	}
	fake.Advance(CompletionNotifyDelay)

	if len(*completions) != 1 {
		t.Fatalf("got %d completions, want 1", len(*completions))
	}
	result := (*completions)[0]
	if result.Succeeded {
		t.Fatalf("completion = %+v, want failure", result)
	}
	if result.Message != "Runner ready signal received, but connection URL missing." {
		t.Fatalf("completion message = %q", result.Message)
	}

	// The connecting stage still renders succeeded: the ready signal
	// itself arrived, only the connection details are missing.
	connecting := findStage(t, tracker, StageConnecting)
	if connecting.Status != StatusSucceeded {
		t.Fatalf("connecting stage status = %q", connecting.Status)
	}
}

func TestStageStatusNeverRegresses(t *testing.T) {
	tracker, fake, _ := newTestTracker(t)

	feed(t, tracker, Event{Type: EventInstanceLifecycle, Status: StatusInProgress, Message: "creating"})
	fake.Advance(3 * time.Second)
	feed(t, tracker, Event{Type: EventInstanceLifecycle, Status: StatusSucceeded, Message: "created"})

	stage := findStage(t, tracker, StageProvisioning)
	firstEnd := stage.EndTime
	if stage.Status != StatusSucceeded || firstEnd.IsZero() {
		t.Fatalf("stage after success = %+v", stage)
	}

	fake.Advance(5 * time.Second)
	feed(t, tracker, Event{Type: EventInstanceLifecycle, Status: StatusInProgress, Message: "re-checking"})

	stage = findStage(t, tracker, StageProvisioning)
	if stage.Status != StatusSucceeded {
		t.Fatalf("stage regressed to %q", stage.Status)
	}
	if !stage.EndTime.Equal(firstEnd) {
		t.Fatalf("EndTime moved from %v to %v", firstEnd, stage.EndTime)
	}
	// The message still refreshes after the status is terminal.
	if stage.Message != "re-checking" {
		t.Fatalf("stage message = %q, want latest", stage.Message)
	}
}

func TestStageTimingUsesClock(t *testing.T) {
	tracker, fake, _ := newTestTracker(t)
	start := fake.Now()

	feed(t, tracker, Event{Type: EventRequestProcessing, Status: StatusInProgress, Message: "queued"})
	fake.Advance(65 * time.Second)
	feed(t, tracker, Event{Type: EventRequestProcessing, Status: StatusSucceeded, Message: "accepted"})

	stage := findStage(t, tracker, StageRequest)
	if !stage.StartTime.Equal(start) {
		t.Fatalf("StartTime = %v, want %v", stage.StartTime, start)
	}
	if got := stage.Elapsed(fake.Now()); got != 65*time.Second {
		t.Fatalf("Elapsed = %v, want 65s", got)
	}
}

func TestUnparseableFrameBecomesErrorStage(t *testing.T) {
	tracker, fake, completions := newTestTracker(t)

	tracker.HandleMessage([]byte("not json at all"))

	stage := findStage(t, tracker, StageError)
	if stage.Status != StatusFailed {
		t.Fatalf("error stage status = %q", stage.Status)
	}
	if stage.Message != "Received invalid status update." {
		t.Fatalf("error stage message = %q", stage.Message)
	}

	fake.Advance(CompletionNotifyDelay)
	if len(*completions) != 1 || (*completions)[0].Succeeded {
		t.Fatalf("completions = %+v, want one failure", *completions)
	}
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	tracker, fake, completions := newTestTracker(t)

	tracker.HandleMessage([]byte(`{"type":"FUTURE_PHASE","status":"in_progress","message":"new thing"}`))

	if stages := tracker.Stages(); len(stages) != 0 {
		t.Fatalf("unknown event created stages: %v", stages)
	}
	fake.Advance(time.Minute)
	if len(*completions) != 0 {
		t.Fatalf("unknown event triggered completion: %v", *completions)
	}
}

func TestStagesKeepFirstAppearanceOrder(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	feed(t, tracker, Event{Type: EventRequestProcessing, Status: StatusSucceeded, Message: "done"})
	feed(t, tracker, Event{Type: EventRunnerAcquisition, Status: StatusInProgress, Message: "searching"})
	feed(t, tracker, Event{Type: EventInstanceLifecycle, Status: StatusInProgress, Message: "booting"})
	feed(t, tracker, Event{Type: EventRunnerAcquisition, Status: StatusSucceeded, Message: "found"})

	want := []StageID{StageRequest, StageAcquisition, StageProvisioning}
	stages := tracker.Stages()
	if len(stages) != len(want) {
		t.Fatalf("got %d stages, want %d", len(stages), len(want))
	}
	for i, id := range want {
		if stages[i].ID != id {
			t.Fatalf("stage[%d] = %q, want %q", i, stages[i].ID, id)
		}
	}
}

func TestResetCancelsPendingCompletion(t *testing.T) {
	tracker, fake, completions := newTestTracker(t)

	feed(t, tracker, Event{Type: EventGenericError, Status: StatusFailed, Message: "boom"})
	tracker.Reset()
	fake.Advance(time.Minute)

	if len(*completions) != 0 {
		t.Fatalf("completion delivered after Reset: %v", *completions)
	}
	if stages := tracker.Stages(); len(stages) != 0 {
		t.Fatalf("stages survived Reset: %v", stages)
	}
	if line := tracker.StatusLine(); line != "" {
		t.Fatalf("status line survived Reset: %q", line)
	}
}

func TestResetArmsTrackerForFreshStream(t *testing.T) {
	tracker, fake, completions := newTestTracker(t)

	feed(t, tracker, Event{Type: EventGenericError, Status: StatusFailed, Message: "first attempt"})
	fake.Advance(CompletionNotifyDelay)
	if len(*completions) != 1 {
		t.Fatalf("got %d completions before reset, want 1", len(*completions))
	}

	tracker.Reset()
	feed(t, tracker, Event{Type: EventConnectionStatus, Status: StatusSucceeded,
		Message: "connected", RunnerID: 9, URL: "wss://fresh"})
	fake.Advance(CompletionNotifyDelay)

	if len(*completions) != 2 {
		t.Fatalf("got %d completions after reset, want 2", len(*completions))
	}
	if result := (*completions)[1]; !result.Succeeded || result.RunnerID != 9 {
		t.Fatalf("second completion = %+v", result)
	}
}

func TestActiveReflectsNonTerminalStages(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	if tracker.Active() {
		t.Fatal("empty tracker reports active")
	}
	feed(t, tracker, Event{Type: EventRequestProcessing, Status: StatusInProgress, Message: "queued"})
	if !tracker.Active() {
		t.Fatal("tracker with an in-progress stage reports inactive")
	}
	feed(t, tracker, Event{Type: EventRequestProcessing, Status: StatusSucceeded, Message: "accepted"})
	if tracker.Active() {
		t.Fatal("tracker with only terminal stages reports active")
	}
}
