// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package provision implements the client side of the runner
// provisioning protocol: it consumes the ordered lifecycle event
// stream from the provisioning socket, aggregates it into named,
// timed stages for display, and decides the provisioning outcome
// exactly once.
//
// The package is organized around the data flow:
//
//   - event.go: wire format of lifecycle events (JSON tagged union)
//   - stage.go: stage identity mapping and the stage display model
//   - tracker.go: stateful aggregation and the completion latch
//   - elapsed.go: display-only elapsed time formatting
//   - watcher.go: the provisioning WebSocket read pump
package provision

import "encoding/json"

// EventType tags a lifecycle event with the provisioning phase it
// reports on. The server may introduce new types at any time; unknown
// types are ignored by the tracker, not treated as errors.
type EventType string

const (
	EventRequestProcessing     EventType = "REQUEST_PROCESSING"
	EventRunnerAcquisition     EventType = "RUNNER_ACQUISITION"
	EventInstanceLifecycle     EventType = "INSTANCE_LIFECYCLE"
	EventSecurityGroupUpdate   EventType = "SECURITY_GROUP_UPDATE"
	EventInstanceTagging       EventType = "INSTANCE_TAGGING"
	EventClientScriptExecution EventType = "CLIENT_SCRIPT_EXECUTION"
	EventConnectionStatus      EventType = "CONNECTION_STATUS"
	EventRunnerReady           EventType = "RUNNER_READY"
	EventGenericError          EventType = "GENERIC_ERROR"
)

// Status is the reported state of a provisioning phase. The same
// values describe stages: a stage mirrors the most recent relevant
// event, except that terminal values are sticky.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final. A stage that reaches
// a terminal status never regresses to in_progress.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Event is one frame of the provisioning socket stream. Exactly one
// Type per event; Message is always present. RunnerID and URL are
// only populated on a successful CONNECTION_STATUS event.
type Event struct {
	Type    EventType `json:"type"`
	Status  Status    `json:"status,omitempty"`
	Message string    `json:"message"`

	// Connection details, carried by CONNECTION_STATUS success events.
	RunnerID int64  `json:"runner_id,omitempty"`
	URL      string `json:"url,omitempty"`
}

// EffectiveStatus returns the event's status, defaulting RUNNER_READY
// (which omits the field) to succeeded.
func (e Event) EffectiveStatus() Status {
	if e.Status == "" && e.Type == EventRunnerReady {
		return StatusSucceeded
	}
	return e.Status
}

// ParseEvent decodes one socket frame. A frame that is not valid JSON
// for the event shape is not an error to the caller: the tracker
// substitutes a synthetic GENERIC_ERROR so a corrupt stream degrades
// to a visible failure instead of a crash.
func ParseEvent(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}
