// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/quarterdeck-systems/quarterdeck/cmd/quarterdeck/cli"
	"github.com/quarterdeck-systems/quarterdeck/lib/clock"
	"github.com/quarterdeck-systems/quarterdeck/lib/config"
	"github.com/quarterdeck-systems/quarterdeck/terminal"
	"github.com/quarterdeck-systems/quarterdeck/transcript"
)

// detachKey is Ctrl-], the local escape that ends an attach without
// touching the remote shell.
const detachKey = 0x1d

type attachOptions struct {
	// transcriptPath, when non-empty, records the session to this
	// file.
	transcriptPath string

	// bufferPath, when non-empty, dumps the retained output buffer
	// to this file on detach.
	bufferPath string
}

func attachCommand() *cli.Command {
	var configPath string
	var transcriptPath string
	var bufferPath string

	return &cli.Command{
		Name:    "attach",
		Summary: "Attach to a runner's terminal",
		Usage:   "quarterdeck runner attach <runner-id> [flags]",
		Description: `Attach to a runner's terminal.

Keystrokes go to the runner; printable input is line-buffered with
local echo and sent on Enter, control keys pass through immediately.
Press Ctrl-] to detach without disturbing the remote shell.`,
		Examples: []cli.Example{
			{Description: "Attach and record a transcript", Command: "quarterdeck runner attach 42 --transcript session.qdtr"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("attach", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to quarterdeck.yaml")
			flagSet.StringVar(&transcriptPath, "transcript", "", "record the session to this transcript file")
			flagSet.StringVar(&bufferPath, "save-buffer", "", "write the retained output buffer to this file on detach")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("expected exactly one runner ID")
			}
			runnerID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return cli.Validation("invalid runner ID %q", args[0])
			}
			sess, err := newSession(configPath, "runner/attach")
			if err != nil {
				return err
			}
			if transcriptPath == "" {
				transcriptPath = defaultTranscriptPath(sess.cfg, runnerID)
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runAttach(ctx, sess, runnerID, attachOptions{
				transcriptPath: transcriptPath,
				bufferPath:     bufferPath,
			})
		},
	}
}

// defaultTranscriptPath returns the configured transcript location
// for a runner when always-record is enabled, or "".
func defaultTranscriptPath(cfg *config.Config, runnerID int64) string {
	if !cfg.Transcripts.Record || cfg.Transcripts.Dir == "" {
		return ""
	}
	name := fmt.Sprintf("runner-%d-%s.qdtr", runnerID, time.Now().Format("20060102-150405"))
	return filepath.Join(cfg.Transcripts.Dir, name)
}

func runAttach(ctx context.Context, sess *session, runnerID int64, options attachOptions) error {
	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return cli.Validation("attach requires an interactive terminal")
	}

	backlog := terminal.NewBacklog(terminal.DefaultBacklogSize)
	displayWriters := []io.Writer{os.Stdout, backlog}

	columns, rows, sizeErr := term.GetSize(stdinFd)

	var recorder *sessionRecorder
	if options.transcriptPath != "" {
		meta := transcript.Meta{RunnerID: runnerID}
		if sizeErr == nil {
			meta.Columns, meta.Rows = columns, rows
		}
		writer, file, err := transcript.Create(options.transcriptPath, meta, clock.Real())
		if err != nil {
			return cli.Internal("%w", err)
		}
		recorder = &sessionRecorder{writer: writer, file: file}
		displayWriters = append(displayWriters, recorder.output())
		defer recorder.close(sess.logger)
		fmt.Fprintf(os.Stderr, "Recording transcript to %s\n", options.transcriptPath)
	}

	termSession, err := terminal.NewSession(terminal.Config{
		BaseURL: sess.cfg.Console.URL,
		Tokens:  sess.client,
		Display: io.MultiWriter(displayWriters...),
		OnConnectionChange: func(connected bool) {
			if !connected {
				fmt.Fprintf(os.Stderr, "\r\nConnection to runner %d lost.\r\n", runnerID)
			}
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "\r\n%v\r\n", err)
		},
		Logger: sess.logger,
	})
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer termSession.Close()

	if sizeErr == nil {
		if err := termSession.Resize(columns, rows); err != nil {
			sess.logger.Warn("initial resize failed", "error", err)
		}
	}

	oldState, err := term.MakeRaw(stdinFd)
	if err != nil {
		return cli.Internal("entering raw mode: %w", err)
	}
	defer term.Restore(stdinFd, oldState)

	if err := termSession.Connect(ctx, runnerID); err != nil {
		term.Restore(stdinFd, oldState)
		return cli.Transient("%w", err)
	}

	// Resize propagation.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			columns, rows, err := term.GetSize(stdinFd)
			if err != nil {
				continue
			}
			if err := termSession.Resize(columns, rows); err != nil {
				sess.logger.Warn("resize failed", "error", err)
			}
			recorder.recordResize(columns, rows)
		}
	}()

	// Cancellation tears the session down; the read loop exit below
	// unblocks the wait.
	go func() {
		<-ctx.Done()
		termSession.Close()
	}()

	// Keystroke pump. Ctrl-] detaches locally.
	go func() {
		buffer := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buffer)
			if err != nil {
				termSession.Close()
				return
			}
			for _, key := range buffer[:n] {
				if key == detachKey {
					termSession.Close()
					return
				}
				recorder.recordKey(key)
				if err := termSession.HandleKey(key); err != nil {
					sess.logger.Warn("send key failed", "error", err)
				}
			}
		}
	}()

	<-termSession.Done()
	term.Restore(stdinFd, oldState)
	fmt.Printf("\nDetached from runner %d.\n", runnerID)

	if options.bufferPath != "" {
		if err := os.WriteFile(options.bufferPath, backlog.ReadFrom(0), 0o644); err != nil {
			return cli.Internal("saving output buffer: %w", err)
		}
		fmt.Printf("Output buffer saved to %s.\n", options.bufferPath)
	}

	if termSession.State() == terminal.StateErrored {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// sessionRecorder bridges the live session into a transcript file.
// Output arrives from the session's read loop, input from the
// keystroke pump; the mutex serializes the two writers. Input is
// recorded at line granularity, mirroring the session's local line
// editing.
type sessionRecorder struct {
	mu     sync.Mutex
	writer *transcript.Writer
	file   *os.File
	editor terminal.LineEditor
}

// output returns the io.Writer fed by the session display stream.
func (r *sessionRecorder) output() io.Writer {
	return recorderOutput{r}
}

type recorderOutput struct{ recorder *sessionRecorder }

func (o recorderOutput) Write(data []byte) (int, error) {
	o.recorder.mu.Lock()
	defer o.recorder.mu.Unlock()
	if err := o.recorder.writer.RecordOutput(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// recordKey mirrors the session's line discipline so the transcript
// carries whole edited lines, not raw keystrokes. Nil-safe.
func (r *sessionRecorder) recordKey(key byte) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case key == '\r' || key == '\n':
		line := r.editor.Flush() + "\n"
		r.writer.RecordInput([]byte(line))
	case key == 0x08 || key == 0x7f:
		r.editor.Backspace()
	case terminal.Printable(key):
		r.editor.Push(key)
	default:
		r.writer.RecordInput([]byte{key})
	}
}

func (r *sessionRecorder) recordResize(columns, rows int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writer.RecordResize(columns, rows)
}

func (r *sessionRecorder) close(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Close(); err != nil {
		logger.Warn("finalizing transcript failed", "error", err)
	}
	if err := r.file.Close(); err != nil {
		logger.Warn("closing transcript file failed", "error", err)
	}
}
