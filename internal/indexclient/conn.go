package indexclient

import "github.com/gorilla/websocket"

// Conn is the send-side transport a Client delivers signed Update
// batches over. The index server itself, and everything about framing
// and reconnection beyond this one call, is out of scope (spec §1); this
// interface exists so Client can be built and tested without a real
// server.
type Conn interface {
	SendUpdate(u *Update) error
}

// WebsocketConn is a Conn backed by a single dialed websocket
// connection, mirroring the hub/client write-side of a gossiper's
// outgoing announcement pump: marshal, then write one binary frame. No
// write deadline is set on the connection.
type WebsocketConn struct {
	conn *websocket.Conn
}

// Dial opens a websocket connection to the index server at url.
func Dial(url string) (*WebsocketConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &WebsocketConn{conn: conn}, nil
}

// SendUpdate implements Conn.
func (w *WebsocketConn) SendUpdate(u *Update) error {
	data, err := encodeUpdate(u)
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close closes the underlying websocket connection.
func (w *WebsocketConn) Close() error {
	return w.conn.Close()
}
