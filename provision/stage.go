// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import "time"

// StageID names one display bucket of the provisioning sequence.
// Stage identity is a fixed 1:1 mapping from event types; two event
// types (CONNECTION_STATUS and RUNNER_READY) share the connecting
// stage because both report on the final connection handshake.
type StageID string

const (
	StageRequest      StageID = "request"
	StageAcquisition  StageID = "acquisition"
	StageProvisioning StageID = "provisioning"
	StageSecurity     StageID = "security"
	StageTagging      StageID = "tagging"
	StageScripting    StageID = "scripting"
	StageConnecting   StageID = "connecting"
	StageError        StageID = "error"
)

// StageMapping is the stage identity derived from an event type.
// ForcedStatus, when non-empty, overrides the event's own status for
// display: connection events always render succeeded, generic errors
// always render failed.
type StageMapping struct {
	ID           StageID
	Label        string
	ForcedStatus Status
}

// stageTable is the fixed event-type-to-stage mapping. Event types
// absent from the table do not produce a stage.
var stageTable = map[EventType]StageMapping{
	EventRequestProcessing:     {ID: StageRequest, Label: "Processing Request"},
	EventRunnerAcquisition:     {ID: StageAcquisition, Label: "Acquiring Runner"},
	EventInstanceLifecycle:     {ID: StageProvisioning, Label: "Provisioning Instance"},
	EventSecurityGroupUpdate:   {ID: StageSecurity, Label: "Configuring Network"},
	EventInstanceTagging:       {ID: StageTagging, Label: "Applying Tags"},
	EventClientScriptExecution: {ID: StageScripting, Label: "Running Setup Scripts"},
	EventConnectionStatus:      {ID: StageConnecting, Label: "Establishing Connection", ForcedStatus: StatusSucceeded},
	EventRunnerReady:           {ID: StageConnecting, Label: "Establishing Connection", ForcedStatus: StatusSucceeded},
	EventGenericError:          {ID: StageError, Label: "Error Encountered", ForcedStatus: StatusFailed},
}

// MapEvent resolves the stage identity for an event type. The second
// return value is false for unknown types, which callers ignore.
// MapEvent is pure: it never mutates state and is re-derivable in
// tests without a socket.
func MapEvent(eventType EventType) (StageMapping, bool) {
	mapping, ok := stageTable[eventType]
	return mapping, ok
}

// Stage is one named, timed, status-bearing bucket of the display
// sequence. Stages are created lazily by the tracker on the first
// matching event and mutated only by the tracker.
type Stage struct {
	ID    StageID
	Label string

	// Status mirrors the most recent relevant event, except that a
	// terminal value is sticky: later in_progress events for the same
	// stage are ignored.
	Status Status

	// Message is the most recent event message for this stage. It is
	// refreshed even after the status is terminal, so a final error
	// elaboration still reaches the display.
	Message string

	// StartTime is stamped when the stage is created. EndTime is
	// stamped once, when the stage first reaches a terminal status,
	// and never overwritten.
	StartTime time.Time
	EndTime   time.Time
}

// Elapsed returns the display duration for the stage: end minus start
// once terminal, now minus start while active.
func (s Stage) Elapsed(now time.Time) time.Duration {
	if !s.EndTime.IsZero() {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}
