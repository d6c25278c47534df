// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"log/slog"
	"sync"
	"time"

	"github.com/quarterdeck-systems/quarterdeck/lib/clock"
)

// CompletionNotifyDelay is how long the tracker waits between
// deciding the outcome and invoking the completion callback. The
// delay gives the display time to show the terminal status line
// before the caller tears the view down or routes away.
const CompletionNotifyDelay = 2500 * time.Millisecond

// Completion is the once-only outcome of a provisioning attempt:
// either the runner identity and connection URL, or a failure reason.
type Completion struct {
	Succeeded bool

	// RunnerID and URL are set on success.
	RunnerID int64
	URL      string

	// Message is the failure reason. Empty on success.
	Message string
}

// Tracker aggregates the provisioning event stream into stages and
// decides the outcome exactly once per instance. It is inert after
// the completion callback has been delivered; a new provisioning
// attempt requires a new Tracker.
//
// All methods are safe for concurrent use, though the expected usage
// is a single read pump feeding HandleMessage.
type Tracker struct {
	clk    clock.Clock
	logger *slog.Logger

	// onComplete is invoked at most once, CompletionNotifyDelay after
	// the outcome is decided. Never invoked after Reset.
	onComplete func(Completion)

	mu         sync.Mutex
	stages     []*Stage
	index      map[StageID]*Stage
	statusLine string

	// latched is set synchronously when the outcome is decided;
	// result holds the pending completion until delivery. inert is
	// set when the callback has run: from then on every message is
	// dropped. Between latch and delivery, messages still update the
	// stage display but can no longer change the outcome.
	latched     bool
	inert       bool
	result      Completion
	notifyTimer *clock.Timer
}

// NewTracker creates a tracker that reports its outcome to
// onComplete. The logger may not be nil; pass slog with a discard
// handler in tests that do not assert on logs.
func NewTracker(clk clock.Clock, logger *slog.Logger, onComplete func(Completion)) *Tracker {
	return &Tracker{
		clk:        clk,
		logger:     logger,
		onComplete: onComplete,
		index:      make(map[StageID]*Stage),
	}
}

// HandleMessage ingests one raw provisioning socket frame. A frame
// that fails to parse is replaced by a synthetic GENERIC_ERROR event,
// so a corrupt stream surfaces as a failed stage rather than a panic
// or a silent drop.
func (t *Tracker) HandleMessage(raw []byte) {
	event, err := ParseEvent(raw)
	if err != nil {
		t.logger.Warn("unparseable provisioning frame", "error", err, "bytes", len(raw))
		event = Event{
			Type:    EventGenericError,
			Status:  StatusFailed,
			Message: "Received invalid status update.",
		}
	}
	t.Handle(event)
}

// Handle ingests one decoded lifecycle event. Events with unknown
// types are ignored. Exposed separately from HandleMessage so tests
// and replay tooling can feed events without re-serializing them.
func (t *Tracker) Handle(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inert {
		return
	}

	mapping, known := MapEvent(event.Type)
	if !known {
		t.logger.Debug("ignoring unknown event type", "type", string(event.Type))
		return
	}

	status := event.EffectiveStatus()
	displayStatus := status
	if mapping.ForcedStatus != "" {
		displayStatus = mapping.ForcedStatus
	}

	now := t.clk.Now()
	stage, exists := t.index[mapping.ID]
	if !exists {
		stage = &Stage{
			ID:        mapping.ID,
			Label:     mapping.Label,
			Status:    displayStatus,
			Message:   event.Message,
			StartTime: now,
		}
		if displayStatus.Terminal() {
			stage.EndTime = now
		}
		t.stages = append(t.stages, stage)
		t.index[mapping.ID] = stage
	} else {
		// Status only advances: once terminal it keeps its value and
		// its original EndTime. The message refreshes regardless.
		if !stage.Status.Terminal() {
			stage.Status = displayStatus
			if displayStatus.Terminal() {
				stage.EndTime = now
			}
		}
		stage.Message = event.Message
	}

	if !t.latched {
		t.evaluateCompletion(event, status)
	}
}

// evaluateCompletion applies the outcome rules to the incoming event.
// Caller holds t.mu and has verified the latch is not set.
func (t *Tracker) evaluateCompletion(event Event, status Status) {
	switch {
	case event.Type == EventConnectionStatus && status == StatusSucceeded:
		t.latch(
			Completion{Succeeded: true, RunnerID: event.RunnerID, URL: event.URL},
			"succeeded! Connecting to terminal...",
		)

	case event.Type == EventRunnerReady:
		// The ready signal carries no connection URL; without one
		// there is nothing to attach to, so this is a failure.
		t.latch(
			Completion{Message: "Runner ready signal received, but connection URL missing."},
			"Error: Could not retrieve connection details.",
		)

	case status == StatusFailed:
		message := event.Message
		if message == "" {
			message = "An unknown error occurred."
		}
		t.latch(Completion{Message: message}, "Error Encountered. Routing back...")
	}
}

// latch captures the outcome, updates the status line immediately,
// and schedules the delayed notification. Caller holds t.mu.
func (t *Tracker) latch(result Completion, statusLine string) {
	t.latched = true
	t.result = result
	t.statusLine = statusLine
	t.notifyTimer = t.clk.AfterFunc(CompletionNotifyDelay, t.deliver)

	if result.Succeeded {
		t.logger.Info("provisioning succeeded", "runner", result.RunnerID)
	} else {
		t.logger.Info("provisioning failed", "reason", result.Message)
	}
}

// deliver runs when the notification delay elapses. The latch and
// inert flags guard against delivery after Reset even if the timer
// fires concurrently with the Stop call.
func (t *Tracker) deliver() {
	t.mu.Lock()
	if !t.latched || t.inert {
		t.mu.Unlock()
		return
	}
	t.inert = true
	result := t.result
	onComplete := t.onComplete
	t.mu.Unlock()

	if onComplete != nil {
		onComplete(result)
	}
}

// Reset clears the stage list, the completion latch, and any pending
// notification. Call it whenever the underlying socket is replaced;
// a reset tracker accepts a fresh event stream and may complete
// again.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.notifyTimer != nil {
		t.notifyTimer.Stop()
		t.notifyTimer = nil
	}
	t.stages = nil
	t.index = make(map[StageID]*Stage)
	t.statusLine = ""
	t.latched = false
	t.inert = false
	t.result = Completion{}
}

// Stages returns a snapshot of the stage list in first-appearance
// order. The returned values are copies; mutating them does not
// affect the tracker.
func (t *Tracker) Stages() []Stage {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make([]Stage, len(t.stages))
	for i, stage := range t.stages {
		snapshot[i] = *stage
	}
	return snapshot
}

// StatusLine returns the tracker-level display message. Empty until
// the outcome is decided.
func (t *Tracker) StatusLine() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLine
}

// Active reports whether any stage is still non-terminal. The elapsed
// time tick only needs to run while this is true.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, stage := range t.stages {
		if !stage.Status.Terminal() {
			return true
		}
	}
	return false
}

// Outcome returns the decided completion and whether the outcome has
// been decided yet. The completion callback is still the delivery
// mechanism; Outcome exists for status displays and tests.
func (t *Tracker) Outcome() (Completion, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.latched
}
