package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}

// ReadJSONUntil is ReadJSON with an explicit deadline.
func ReadJSONUntil(conn *websocket.Conn, deadline time.Time, v interface{}) error {
	conn.SetReadDeadline(deadline)
	return conn.ReadJSON(v)
}
