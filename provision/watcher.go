// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Watcher owns one provisioning socket and pumps every inbound frame
// into a Tracker. The socket is never shared and never reconnected:
// a caller that wants to retry provisioning creates a new Watcher and
// a fresh (or reset) Tracker.
type Watcher struct {
	// Dialer performs the WebSocket handshake. Nil uses
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Header carries extra handshake headers (authorization,
	// user-agent). May be nil.
	Header http.Header
}

// Watch dials socketURL and feeds every frame to the tracker until
// the socket closes or ctx is cancelled. Cancellation closes the
// socket with a normal-closure code and returns nil; the server
// closing cleanly also returns nil. Transport failures are returned
// to the caller, but outcome decisions still travel exclusively
// through the tracker's completion callback: a socket that dies
// mid-stream simply stops producing events.
func (w *Watcher) Watch(ctx context.Context, socketURL string, tracker *Tracker, logger *slog.Logger) error {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, response, err := dialer.DialContext(ctx, socketURL, w.Header)
	if err != nil {
		if response != nil {
			return fmt.Errorf("dial provisioning socket: %w (handshake status %s)", err, response.Status)
		}
		return fmt.Errorf("dial provisioning socket: %w", err)
	}

	// Closing the connection is the only way to unblock ReadMessage,
	// so cancellation closes it after announcing a normal departure.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	logger.Info("provisioning socket connected")

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("provisioning socket closed by server")
				return nil
			}
			return fmt.Errorf("provisioning socket read: %w", err)
		}
		tracker.HandleMessage(frame)
	}
}

// Watch dials socketURL with default dial settings. See
// Watcher.Watch.
func Watch(ctx context.Context, socketURL string, tracker *Tracker, logger *slog.Logger) error {
	watcher := &Watcher{}
	return watcher.Watch(ctx, socketURL, tracker, logger)
}
