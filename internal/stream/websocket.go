package stream

import (
	"context"

	"github.com/gorilla/websocket"
)

// WebSocketDialer opens duplex channels using gorilla/websocket.
type WebSocketDialer struct {
	// Dialer overrides the underlying websocket dialer. Defaults to
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Dial opens a websocket to the given ws:// or wss:// URL.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Handle, error) {
	wsd := d.Dialer
	if wsd == nil {
		wsd = websocket.DefaultDialer
	}
	conn, resp, err := wsd.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return &websocketHandle{conn: conn}, nil
}

type websocketHandle struct {
	conn *websocket.Conn
}

func (h *websocketHandle) ReadMessage() ([]byte, error) {
	_, data, err := h.conn.ReadMessage()
	return data, err
}

func (h *websocketHandle) Send(data []byte) error {
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *websocketHandle) Close() error {
	return h.conn.Close()
}
