// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// State is the lifecycle position of a Session. Sessions move
// strictly forward: uninitialized → connecting → connected →
// (closed | errored). The terminal states require a fresh Session to
// reconnect; there is no automatic retry at this layer.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateClosed
	StateErrored
)

// String returns the lowercase state name for logs and errors.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TokenSource issues the short-lived credential that authorizes a
// terminal connection to a specific runner. Implemented by the
// console API client; faked in tests.
type TokenSource interface {
	TerminalToken(ctx context.Context, runnerID int64) (string, error)
}

// Conn is the subset of the WebSocket connection the session uses.
// Message types follow RFC 6455 opcodes as exposed by
// gorilla/websocket (TextMessage, BinaryMessage, CloseMessage).
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer establishes the terminal socket. The default dials with
// gorilla/websocket; tests substitute an in-memory connection.
type Dialer func(ctx context.Context, socketURL string) (Conn, error)

func defaultDialer(ctx context.Context, socketURL string) (Conn, error) {
	conn, response, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("%w (handshake status %s)", err, response.Status)
		}
		return nil, err
	}
	return conn, nil
}

// TerminalSocketURL builds the terminal socket endpoint for a runner.
// The console base URL's scheme maps http→ws and https→wss; the
// terminal token travels as a query parameter because WebSocket
// handshakes cannot carry a request body.
func TerminalSocketURL(baseURL string, runnerID int64, token string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse console URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "ws":
		parsed.Scheme = "ws"
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("console URL has unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = fmt.Sprintf("/api/v1/runners/connect/%d", runnerID)
	query := url.Values{}
	query.Set("terminal_token", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// Config wires a Session to its collaborators.
type Config struct {
	// BaseURL is the console endpoint (http(s) or ws(s) scheme).
	BaseURL string

	// Tokens issues terminal credentials. Required.
	Tokens TokenSource

	// Display receives raw session output and the local input echo.
	// Required.
	Display io.Writer

	// Dial overrides the transport. Nil uses gorilla/websocket.
	Dial Dialer

	// OnConnectionChange reports connected/disconnected transitions.
	// Optional.
	OnConnectionChange func(connected bool)

	// OnError receives asynchronous session failures: server error
	// control frames, abnormal closes, transport errors. Connect's
	// own failures are returned from Connect instead. Optional.
	OnError func(err error)

	// Logger may be nil for a silent session.
	Logger *slog.Logger
}

// Session is an interactive terminal attached to one runner. It owns
// its socket exclusively; the socket is opened once by Connect and
// released by Close. All exported methods are safe for concurrent
// use.
type Session struct {
	baseURL            string
	tokens             TokenSource
	dial               Dialer
	logger             *slog.Logger
	onConnectionChange func(bool)
	onError            func(error)

	mu     sync.Mutex
	state  State
	closed bool
	conn   Conn
	editor LineEditor

	// cols/rows is the last known display size. Zero means unknown;
	// the on-open resize is skipped until a size arrives.
	cols, rows int

	displayMu sync.Mutex
	display   io.Writer

	doneOnce sync.Once
	done     chan struct{}
}

// NewSession creates an unconnected session.
func NewSession(config Config) (*Session, error) {
	if config.Tokens == nil {
		return nil, errors.New("terminal: Config.Tokens is required")
	}
	if config.Display == nil {
		return nil, errors.New("terminal: Config.Display is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("terminal: Config.BaseURL is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dial := config.Dial
	if dial == nil {
		dial = defaultDialer
	}
	return &Session{
		baseURL:            config.BaseURL,
		tokens:             config.Tokens,
		dial:               dial,
		logger:             logger,
		onConnectionChange: config.OnConnectionChange,
		onError:            config.OnError,
		display:            config.Display,
		done:               make(chan struct{}),
	}, nil
}

// Connect fetches a terminal token for the runner and opens the
// socket. It fails fast, without dialing, when the token cannot be
// obtained. Connect may be called once per session; a session that
// has closed or errored must be recreated.
func (s *Session) Connect(ctx context.Context, runnerID int64) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("terminal session is %s; create a new session to reconnect", state)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	token, err := s.tokens.TerminalToken(ctx, runnerID)
	if err != nil {
		s.abandonConnect()
		return fmt.Errorf("fetch terminal token for runner %d: %w", runnerID, err)
	}
	if token == "" {
		s.abandonConnect()
		return fmt.Errorf("no terminal token available for runner %d", runnerID)
	}

	socketURL, err := TerminalSocketURL(s.baseURL, runnerID, token)
	if err != nil {
		s.abandonConnect()
		return err
	}

	conn, err := s.dial(ctx, socketURL)
	if err != nil {
		s.abandonConnect()
		return fmt.Errorf("dial terminal socket: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		// Torn down while the dial was in flight.
		s.mu.Unlock()
		conn.Close()
		return errors.New("terminal session closed during connect")
	}
	s.conn = conn
	s.state = StateConnected
	cols, rows := s.cols, s.rows
	s.mu.Unlock()

	s.logger.Info("terminal session connected", "runner", runnerID)
	s.emitConnectionChange(true)

	if cols > 0 && rows > 0 {
		if err := s.sendResize(conn, cols, rows); err != nil {
			s.logger.Warn("initial resize failed", "error", err)
		}
	}

	go s.readLoop(conn)
	return nil
}

// abandonConnect records a failed connection attempt. The session is
// unusable afterwards, matching the no-retry contract.
func (s *Session) abandonConnect() {
	s.mu.Lock()
	if !s.closed {
		s.state = StateErrored
	}
	s.mu.Unlock()
	s.markDone()
}

// readLoop pumps inbound frames until the socket dies. Binary frames
// are raw terminal output. Text frames are probed for an error
// control message first; everything else is written verbatim.
func (s *Session) readLoop(conn Conn) {
	defer s.markDone()
	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(err)
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			s.writeDisplay(frame)
		case websocket.TextMessage:
			if message, isError := decodeServerError(frame); isError {
				s.surfaceError(fmt.Errorf("runner reported an error: %s", message))
				continue
			}
			s.writeDisplay(frame)
		}
	}
}

// handleDisconnect classifies the read failure that ended the
// session. A normal or going-away close is a clean shutdown; any
// other close code or transport error is surfaced through OnError.
func (s *Session) handleDisconnect(err error) {
	s.mu.Lock()
	if s.closed {
		// Local teardown already ran; the read error is just the
		// socket unblocking. No callbacks after Close.
		s.mu.Unlock()
		return
	}
	s.editor.Flush()

	var closeErr *websocket.CloseError
	clean := errors.As(err, &closeErr) &&
		(closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway)
	if clean {
		s.state = StateClosed
	} else {
		s.state = StateErrored
	}
	s.conn = nil
	s.mu.Unlock()

	s.emitConnectionChange(false)
	switch {
	case clean:
		s.logger.Info("terminal session closed by server")
	case closeErr != nil:
		s.surfaceError(fmt.Errorf("terminal connection closed: code %d: %s", closeErr.Code, closeErr.Text))
	default:
		s.surfaceError(fmt.Errorf("terminal connection failed: %w", err))
	}
}

// HandleKey applies the line discipline to one input byte:
//
//   - printable bytes are buffered and echoed locally, not sent
//   - CR/LF flushes the buffer plus a trailing newline to the socket
//   - BS/DEL removes the last buffered character and erases it
//   - anything else (Ctrl-C and friends) is sent immediately, raw
//
// Input while the session is not connected is dropped.
func (s *Session) HandleKey(c byte) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return nil
	}
	conn := s.conn

	switch {
	case c == '\r' || c == '\n':
		line := s.editor.Flush() + "\n"
		s.mu.Unlock()
		s.writeDisplay([]byte("\r\n"))
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte(line)); err != nil {
			return fmt.Errorf("send command line: %w", err)
		}
		return nil

	case c == 0x08 || c == 0x7f:
		erased := s.editor.Backspace()
		s.mu.Unlock()
		if erased {
			s.writeDisplay([]byte("\b \b"))
		}
		return nil

	case Printable(c):
		s.editor.Push(c)
		s.mu.Unlock()
		s.writeDisplay([]byte{c})
		return nil

	default:
		s.mu.Unlock()
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte{c}); err != nil {
			return fmt.Errorf("send control byte: %w", err)
		}
		return nil
	}
}

// Resize records the display dimensions and, when connected and the
// size actually changed, sends a resize control frame. Sizes learned
// before Connect are replayed as the on-open resize.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	if cols == s.cols && rows == s.rows {
		s.mu.Unlock()
		return nil
	}
	s.cols, s.rows = cols, rows
	connected := s.state == StateConnected
	conn := s.conn
	s.mu.Unlock()

	if !connected {
		return nil
	}
	return s.sendResize(conn, cols, rows)
}

func (s *Session) sendResize(conn Conn, cols, rows int) error {
	frame, err := encodeResize(cols, rows)
	if err != nil {
		return fmt.Errorf("encode resize: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send resize: %w", err)
	}
	return nil
}

// Close tears the session down: pending input is discarded, the
// socket (if open) is closed with a normal-closure code, and no
// callback fires afterwards. Close is idempotent and safe to call
// before Connect completes.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.editor.Flush()
	conn := s.conn
	s.conn = nil
	if s.state != StateErrored {
		s.state = StateClosed
	}
	s.mu.Unlock()

	if conn == nil {
		s.markDone()
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session's read loop has exited (or the
// session was torn down before one started).
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) writeDisplay(data []byte) {
	s.displayMu.Lock()
	defer s.displayMu.Unlock()
	if _, err := s.display.Write(data); err != nil {
		s.logger.Warn("display write failed", "error", err)
	}
}

// emitConnectionChange invokes the connection-state callback unless
// the session has been closed locally.
func (s *Session) emitConnectionChange(connected bool) {
	s.mu.Lock()
	closed := s.closed
	callback := s.onConnectionChange
	s.mu.Unlock()
	if closed || callback == nil {
		return
	}
	callback(connected)
}

// surfaceError invokes the error callback unless the session has been
// closed locally.
func (s *Session) surfaceError(err error) {
	s.mu.Lock()
	closed := s.closed
	callback := s.onError
	s.mu.Unlock()
	s.logger.Warn("terminal session error", "error", err)
	if closed || callback == nil {
		return
	}
	callback(err)
}
