package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds how long a single event write may block; a candidate
	// on a dead link must not stall the attempt stream goroutine.
	writeWait = 10 * time.Second

	// readWait is generous: an idle candidate reading a long prompt sends
	// nothing for minutes, and pings reset the deadline.
	readWait = 5 * time.Minute
)

// WriteTyped sends one typed event to the client under a write deadline.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends an ErrorResponse carrying msg.
func WriteError(conn *websocket.Conn, msg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: msg,
	})
}

// RefreshReadDeadline pushes the read deadline out by readWait. Called
// before each blocking read so any client activity keeps the stream alive.
func RefreshReadDeadline(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(readWait))
}
