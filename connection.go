/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// application-range WebSocket close codes, per spec.md §6.
const (
	CloseLobbyNotJoinable  = 4001
	CloseLobbyNotFound     = 4002
	CloseSessionExpired    = 4003
	CloseLobbyShuttingDown = 4101
	CloseInvalidMessage    = 4102
	CloseNoMovesSubmitted  = 4103
)

var errConnectionClosed = errors.New("connection closed")

// Connection abstracts one player's bidirectional channel, talking text
// JSON frames: outgoing frames go through a write pump on its own
// goroutine, while Receive reads synchronously on the caller's goroutine.
// Grounded on celebrity.go's Client/readPump/writePump pattern, generalized
// to the typed envelope/payload protocol instead of the celebrity game's
// ad-hoc message structs.
type Connection struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	closeOne sync.Once
}

func NewConnection(conn *websocket.Conn) *Connection {
	c := &Connection{
		conn: conn,
		send: make(chan []byte, 16),
		done: make(chan struct{}),
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.writePump()
	return c
}

// Send serializes msgType/payload into the envelope and writes a single
// framed text message; returns an error on disconnect.
func (c *Connection) Send(msgType string, payload any) error {
	data, err := encodeMessage(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errConnectionClosed
	}
}

// SendSilent returns success/failure without propagating an error.
func (c *Connection) SendSilent(msgType string, payload any) bool {
	return c.Send(msgType, payload) == nil
}

// Receive reads one framed text message and returns its type tag and raw
// payload. An invalid payload is surfaced as an error so the caller can
// translate it into a protocol-error close.
func (c *Connection) Receive() (string, []byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}
	msgType, payload, err := parseClientMessage(data)
	if err != nil {
		return "", nil, err
	}
	return msgType, payload, nil
}

// Close sends the channel-level close with the given application code and
// reason, then tears down the write pump.
func (c *Connection) Close(code int, reason string) {
	c.closeOne.Do(func() {
		close(c.done)
		deadline := time.Now().Add(writeWait)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.conn.Close()
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
