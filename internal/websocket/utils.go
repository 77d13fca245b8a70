package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// Clients ping at most every few seconds while an attempt is open; a
	// silent connection for this long is considered gone.
	readWait = 5 * time.Minute
)

// WriteTyped sends one event payload, bounding the write so a stalled client
// cannot block the attempt stream.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends an ErrorResponse with the given message.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{Event: EventError, Error: errMsg})
}

// RefreshReadDeadline extends the read deadline; call before each read.
func RefreshReadDeadline(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(readWait))
}
