// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui renders the runner launch sequence as a live terminal
// view: one line per provisioning stage with a status glyph, the
// stage message, and a running elapsed timer, plus the overall status
// line underneath.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quarterdeck-systems/quarterdeck/lib/clock"
	"github.com/quarterdeck-systems/quarterdeck/provision"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	succeedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	statusStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

// ErrCanceled reports that the operator quit the launch view before
// provisioning finished.
var ErrCanceled = errors.New("launch canceled")

type tickMsg time.Time

type completionMsg provision.Completion

// LaunchModel is the bubbletea model for the launch view. The
// provisioning watcher feeds the tracker from its own goroutine; the
// model re-reads tracker snapshots on every timer tick and quits when
// the completion channel delivers.
type LaunchModel struct {
	tracker     *provision.Tracker
	completions <-chan provision.Completion
	clk         clock.Clock
	spin        spinner.Model

	now        time.Time
	completion *provision.Completion
	canceled   bool
}

// NewLaunchModel creates a launch view over the given tracker. The
// completions channel is the tracker's delayed completion delivery,
// bridged by the caller.
func NewLaunchModel(tracker *provision.Tracker, completions <-chan provision.Completion, clk clock.Clock) LaunchModel {
	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = pendingStyle
	return LaunchModel{
		tracker:     tracker,
		completions: completions,
		clk:         clk,
		spin:        spin,
		now:         clk.Now(),
	}
}

func (m LaunchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.tick(), m.waitForCompletion())
}

func (m LaunchModel) tick() tea.Cmd {
	return tea.Tick(provision.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m LaunchModel) waitForCompletion() tea.Cmd {
	return func() tea.Msg {
		completion, ok := <-m.completions
		if !ok {
			return nil
		}
		return completionMsg(completion)
	}
}

func (m LaunchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.canceled = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.now = m.clk.Now()
		return m, m.tick()

	case completionMsg:
		completion := provision.Completion(msg)
		m.completion = &completion
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
}

func (m LaunchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Launching runner"))
	b.WriteString("\n\n")

	for _, stage := range m.tracker.Stages() {
		var glyph string
		switch stage.Status {
		case provision.StatusSucceeded:
			glyph = succeedStyle.Render("✓")
		case provision.StatusFailed:
			glyph = failStyle.Render("✗")
		default:
			glyph = m.spin.View()
		}

		elapsed := provision.FormatElapsed(stage.Elapsed(m.now))
		fmt.Fprintf(&b, "  %s %s %s\n", glyph, stage.Label, pendingStyle.Render(elapsed))
		if stage.Message != "" {
			fmt.Fprintf(&b, "     %s\n", messageStyle.Render(stage.Message))
		}
	}

	if statusLine := m.tracker.StatusLine(); statusLine != "" {
		style := statusStyle
		if m.completion != nil && !m.completion.Succeeded {
			style = style.Foreground(lipgloss.Color("1"))
		}
		b.WriteString(style.Render(statusLine))
		b.WriteString("\n")
	}
	return b.String()
}

// Canceled reports whether the operator quit before completion.
func (m LaunchModel) Canceled() bool {
	return m.canceled
}

// Completion returns the delivered completion, if any.
func (m LaunchModel) Completion() (provision.Completion, bool) {
	if m.completion == nil {
		return provision.Completion{}, false
	}
	return *m.completion, true
}

// RunLaunch drives the launch view to completion and returns the
// provisioning outcome. A quit before completion returns ErrCanceled.
func RunLaunch(model LaunchModel, options ...tea.ProgramOption) (provision.Completion, error) {
	program := tea.NewProgram(model, options...)
	final, err := program.Run()
	if err != nil {
		return provision.Completion{}, fmt.Errorf("launch view: %w", err)
	}
	launched := final.(LaunchModel)
	if completion, ok := launched.Completion(); ok {
		return completion, nil
	}
	return provision.Completion{}, ErrCanceled
}
