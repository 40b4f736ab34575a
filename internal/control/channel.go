// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package control maintains the persistent websocket session to the
// backend and turns inbound text messages into device commands. The
// channel doubles as the device's connectivity signal: the offline
// syncer treats "control session established" as "network reachable".
package control

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chamcong/kioskd/internal/config"
	"github.com/chamcong/kioskd/internal/metrics"
)

// deviceHello identifies this endpoint to the backend hub, which routes
// operator commands only to connections that announced the device role.
const deviceHello = "role:device"

// Handler consumes one inbound control message. Dispatch must not block:
// long-running work is the handler's problem to background.
type Handler interface {
	Handle(ctx context.Context, msg string)
}

// Channel is the reconnecting websocket client. Implements suture.Service.
type Channel struct {
	serverAddr string
	handler    Handler
	cfg        config.ControlConfig
	logger     zerolog.Logger

	send      chan string
	connected atomic.Bool
}

// NewChannel creates the control channel for the backend at serverAddr
// (host:port). The handler is wired afterwards via SetHandler because the
// dispatcher needs the channel for acks; until then inbound messages are
// dropped.
func NewChannel(serverAddr string, cfg config.ControlConfig, logger zerolog.Logger) *Channel {
	return &Channel{
		serverAddr: serverAddr,
		cfg:        cfg,
		logger:     logger.With().Str("component", "control").Logger(),
		send:       make(chan string, cfg.SendBuffer),
	}
}

// SetHandler installs the inbound message handler. Must be called before
// Serve.
func (c *Channel) SetHandler(h Handler) {
	c.handler = h
}

// Connected reports whether a websocket session is currently established.
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Send enqueues an outbound message. It never blocks; false means the
// buffer was full and the message was dropped. Messages enqueued while
// disconnected are flushed on the next session.
func (c *Channel) Send(msg string) bool {
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn().Str("msg", msg).Msg("send buffer full, message dropped")
		return false
	}
}

// Serve dials, runs the session, and redials forever. Every session loss
// is followed by a fixed reconnect pause; there is no backoff escalation
// because the backend is on the same LAN and a tight retry is cheap.
func (c *Channel) Serve(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.serverAddr, Path: c.cfg.Path}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx, u.String())
		if err != nil {
			c.logger.Warn().Err(err).Str("url", u.String()).Msg("control dial failed")
			if werr := waitReconnect(ctx, c.cfg.ReconnectInterval); werr != nil {
				return werr
			}
			continue
		}

		c.logger.Info().Str("url", u.String()).Msg("control session established")
		c.connected.Store(true)
		err = c.session(ctx, conn)
		c.connected.Store(false)
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.ControlReconnects.Inc()
		c.logger.Warn().Err(err).Msg("control session lost, reconnecting")
		if werr := waitReconnect(ctx, c.cfg.ReconnectInterval); werr != nil {
			return werr
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (c *Channel) String() string {
	return "control-channel"
}

// dial establishes the websocket and announces the device role. The
// session does not count as established until the hello is on the wire.
func (c *Channel) dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(deviceHello)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("control: role announce: %w", err)
	}
	return conn, nil
}

// session pumps one established connection until it fails or the context
// ends. Reads run on the calling goroutine; a writer goroutine drains the
// send buffer.
func (c *Channel) session(ctx context.Context, conn *websocket.Conn) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- c.writePump(sctx, conn)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			cancel()
			<-writeDone
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		msg := string(data)
		c.logger.Debug().Str("msg", msg).Msg("control message received")
		if c.handler != nil {
			c.handler.Handle(sctx, msg)
		}
	}
}

func (c *Channel) writePump(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.send:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				// The read loop sees the broken connection and tears the
				// session down; the message rides the buffer to the next
				// session.
				c.requeue(msg)
				return err
			}
		}
	}
}

func (c *Channel) requeue(msg string) {
	select {
	case c.send <- msg:
	default:
	}
}

func waitReconnect(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
