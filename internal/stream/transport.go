// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/cheerboard/internal/logging"
)

// Conn is an open push-stream transport.
type Conn interface {
	// ReadMessage blocks until the next message arrives or the transport
	// fails. It returns an error once Close has been called.
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens transports. Implementations must honour ctx cancellation.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials the event source over gorilla/websocket.
type WebSocketDialer struct {
	dialer websocket.Dialer
}

// NewWebSocketDialer returns a dialer with a 10 second handshake timeout
// and compression enabled.
func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{
		dialer: websocket.Dialer{
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: true,
		},
	}
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	if err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	); err != nil {
		logging.Debug().Err(err).Msg("Stream: failed to send close message")
	}
	return c.conn.Close()
}
