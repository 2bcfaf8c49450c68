package stream

import (
	"context"
	"errors"
)

// ErrNotDuplex is returned by Send on half-duplex transports (SSE).
var ErrNotDuplex = errors.New("stream: transport is not duplex")

// ErrNotConnected is returned by Send when no channel is open.
var ErrNotConnected = errors.New("stream: not connected")

// Handle is one open channel to the backend. A Conn owns at most one Handle
// at a time; the old handle is closed before a new one is opened.
type Handle interface {
	// ReadMessage blocks until the next message arrives, the handle is
	// closed, or the channel fails.
	ReadMessage() ([]byte, error)
	// Send writes a message to the channel. Half-duplex transports return
	// ErrNotDuplex.
	Send(data []byte) error
	// Close tears the channel down. Closing unblocks a pending ReadMessage.
	Close() error
}

// Dialer opens a Handle for a URL. WebSocketDialer and SSEDialer are the two
// production implementations; tests substitute their own.
type Dialer interface {
	Dial(ctx context.Context, url string) (Handle, error)
}
