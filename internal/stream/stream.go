// Package stream implements a reconnecting client over one logical live
// channel (WebSocket or Server-Sent-Events) with exponential backoff,
// attempt capping, stale-timer invalidation and enable/disable lifecycle
// control. Any number of Conns can run concurrently, one per channel
// (telemetry, leaderboard, endurance feed).
package stream

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/trackside/internal/monitoring"
	"github.com/banshee-data/trackside/internal/timeutil"
)

// Status is the lifecycle state of a Conn.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosed     Status = "closed"
)

// MaxBackoff caps the delay between reconnect attempts.
const MaxBackoff = 30 * time.Second

// DefaultReconnectInterval is the base reconnect delay.
const DefaultReconnectInterval = 3 * time.Second

// backoffGrowth is the per-attempt multiplier applied to the base interval.
const backoffGrowth = 1.5

// Options configures a Conn. The zero value of each field selects the
// documented default.
type Options struct {
	// Reconnect enables automatic retry after failures. Defaults to true;
	// set DisableReconnect to turn it off.
	DisableReconnect bool
	// ReconnectInterval is the base retry delay. Defaults to 3s.
	ReconnectInterval time.Duration
	// MaxReconnectAttempts caps retries. Zero means unbounded.
	MaxReconnectAttempts int
	// AutoConnect dials immediately from New.
	AutoConnect bool
	// Disabled creates the Conn in the disabled state; Connect is a no-op
	// until SetEnabled(true).
	Disabled bool
	// Clock substitutes the timer source. Defaults to the real clock.
	Clock timeutil.Clock
}

// State is a snapshot of a Conn for observability.
type State struct {
	URL     string `json:"url"`
	Status  Status `json:"status"`
	Attempt int    `json:"attempt"`
	Enabled bool   `json:"enabled"`
}

// Conn is a reconnecting client over one logical channel.
//
// Callbacks are registered with last-write-wins semantics: the callback
// consulted at delivery time is always the most recently registered one, and
// swapping callbacks never forces a reconnect. All callbacks are invoked
// without internal locks held, so they may call back into the Conn.
type Conn struct {
	url    string
	opts   Options
	dialer Dialer
	clock  timeutil.Clock

	mu          sync.Mutex
	enabled     bool
	status      Status
	attempt     int
	token       uint64 // invalidates superseded dials, read loops and timers
	handle      Handle
	timerCancel chan struct{}
	lastMessage json.RawMessage

	cbMu      sync.Mutex
	onMessage func(json.RawMessage)
	onOpen    func()
	onClose   func()
	onError   func(error)
}

// New creates a Conn for the given URL and transport dialer. If
// opts.AutoConnect is set the first dial starts immediately.
func New(url string, dialer Dialer, opts Options) *Conn {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	c := &Conn{
		url:     url,
		opts:    opts,
		dialer:  dialer,
		clock:   opts.Clock,
		enabled: !opts.Disabled,
		status:  StatusIdle,
	}
	if opts.AutoConnect {
		c.Connect()
	}
	return c
}

// OnMessage registers the message callback. Last write wins.
func (c *Conn) OnMessage(fn func(json.RawMessage)) {
	c.cbMu.Lock()
	c.onMessage = fn
	c.cbMu.Unlock()
}

// OnOpen registers the open callback. Last write wins.
func (c *Conn) OnOpen(fn func()) {
	c.cbMu.Lock()
	c.onOpen = fn
	c.cbMu.Unlock()
}

// OnClose registers the close callback. Last write wins.
func (c *Conn) OnClose(fn func()) {
	c.cbMu.Lock()
	c.onClose = fn
	c.cbMu.Unlock()
}

// OnError registers the error callback. Last write wins. Errors surface here
// for observability only; they never halt the reconnect loop.
func (c *Conn) OnError(fn func(error)) {
	c.cbMu.Lock()
	c.onError = fn
	c.cbMu.Unlock()
}

// State returns a snapshot of the connection.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{URL: c.url, Status: c.status, Attempt: c.attempt, Enabled: c.enabled}
}

// LastMessage returns the most recent well-formed payload, or nil.
func (c *Conn) LastMessage() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMessage
}

// SetEnabled toggles the connection. Disabling behaves like Disconnect;
// enabling allows a subsequent Connect to proceed but does not dial by
// itself.
func (c *Conn) SetEnabled(enabled bool) {
	if !enabled {
		c.Disconnect()
		return
	}
	c.mu.Lock()
	c.enabled = true
	c.mu.Unlock()
}

// Connect opens the channel. It is a safe no-op while the connection is
// disabled or already connecting/open. An explicit call resets the attempt
// counter, so a connection that exhausted its retry budget resumes from
// here.
func (c *Conn) Connect() {
	c.mu.Lock()
	c.attempt = 0
	c.connectLocked()
	c.mu.Unlock()
}

// connectLocked starts a dial if the lifecycle allows one. Caller holds mu.
func (c *Conn) connectLocked() {
	if !c.enabled {
		return
	}
	if c.opts.MaxReconnectAttempts > 0 && c.attempt >= c.opts.MaxReconnectAttempts {
		return
	}
	if c.status == StatusConnecting || c.status == StatusOpen {
		return
	}

	c.cancelTimerLocked()
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}

	c.token++
	token := c.token
	c.status = StatusConnecting

	go c.dial(token)
}

// dial opens the underlying handle outside the lock, then installs it if the
// token is still live.
func (c *Conn) dial(token uint64) {
	handle, err := c.dialer.Dial(context.Background(), c.url)

	c.mu.Lock()
	if token != c.token || !c.enabled {
		c.mu.Unlock()
		if handle != nil {
			handle.Close() // superseded while dialing
		}
		return
	}

	if err != nil {
		c.status = StatusClosed
		c.scheduleReconnectLocked(token)
		c.mu.Unlock()
		c.fireError(err)
		return
	}

	c.handle = handle
	c.status = StatusOpen
	c.attempt = 0
	c.mu.Unlock()

	c.fireOpen()
	go c.readLoop(token, handle)
}

// readLoop pumps messages from one handle until it fails or is superseded.
func (c *Conn) readLoop(token uint64, handle Handle) {
	for {
		data, err := handle.ReadMessage()
		if err != nil {
			c.handleClosed(token, err)
			return
		}
		if !c.deliver(token, data) {
			return
		}
	}
}

// deliver validates and hands one payload to the current message callback.
// It reports whether the read loop should keep running.
func (c *Conn) deliver(token uint64, data []byte) bool {
	c.mu.Lock()
	if token != c.token || !c.enabled {
		c.mu.Unlock()
		return false
	}
	if !json.Valid(data) {
		c.mu.Unlock()
		monitoring.Logf("stream: dropping malformed payload from %s (%d bytes)", c.url, len(data))
		return true
	}
	msg := json.RawMessage(append([]byte(nil), data...))
	c.lastMessage = msg
	c.mu.Unlock()

	c.cbMu.Lock()
	fn := c.onMessage
	c.cbMu.Unlock()
	if fn != nil {
		fn(msg)
	}
	return true
}

// handleClosed runs when a handle's read loop ends. Stale tokens are
// ignored: a superseded handle must not trigger callbacks or retries.
func (c *Conn) handleClosed(token uint64, err error) {
	c.mu.Lock()
	if token != c.token || !c.enabled {
		c.mu.Unlock()
		return
	}
	c.status = StatusClosed
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
	c.scheduleReconnectLocked(token)
	c.mu.Unlock()

	c.fireError(err)
	c.fireClose()
}

// scheduleReconnectLocked arms the backoff timer for the next retry. Caller
// holds mu. The timer carries the current token; Disconnect or a manual
// Connect invalidates it.
func (c *Conn) scheduleReconnectLocked(token uint64) {
	if c.opts.DisableReconnect {
		return
	}
	c.attempt++
	if c.opts.MaxReconnectAttempts > 0 && c.attempt >= c.opts.MaxReconnectAttempts {
		monitoring.Logf("stream: %s exhausted %d reconnect attempts", c.url, c.attempt)
		return
	}

	backoff := Backoff(c.opts.ReconnectInterval, c.attempt)
	monitoring.Logf("stream: %s reconnect attempt %d in %v", c.url, c.attempt, backoff)

	c.cancelTimerLocked()
	cancel := make(chan struct{})
	c.timerCancel = cancel
	timer := c.clock.NewTimer(backoff)

	go func() {
		select {
		case <-timer.C():
			c.timerFired(token)
		case <-cancel:
			timer.Stop()
		}
	}()
}

// timerFired retries the connection, unless the timer was superseded while
// in flight.
func (c *Conn) timerFired(token uint64) {
	c.mu.Lock()
	if token != c.token || !c.enabled {
		c.mu.Unlock()
		return
	}
	c.status = StatusIdle
	c.connectLocked()
	c.mu.Unlock()
}

// Disconnect tears the channel down: disables the connection, cancels any
// pending reconnect timer, invalidates in-flight timers via the token,
// closes the active handle and resets the attempt counter. Safe to call
// repeatedly. No callback fires after Disconnect returns.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.enabled = false
	c.token++
	c.cancelTimerLocked()
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
	c.attempt = 0
	c.status = StatusIdle
	c.mu.Unlock()
}

// Send writes a message on the open channel. Returns ErrNotConnected if the
// channel is not open, or ErrNotDuplex on half-duplex transports.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	handle := c.handle
	open := c.status == StatusOpen
	c.mu.Unlock()
	if !open || handle == nil {
		return ErrNotConnected
	}
	return handle.Send(data)
}

func (c *Conn) cancelTimerLocked() {
	if c.timerCancel != nil {
		close(c.timerCancel)
		c.timerCancel = nil
	}
}

func (c *Conn) fireOpen() {
	c.cbMu.Lock()
	fn := c.onOpen
	c.cbMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Conn) fireClose() {
	c.cbMu.Lock()
	fn := c.onClose
	c.cbMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Conn) fireError(err error) {
	c.cbMu.Lock()
	fn := c.onError
	c.cbMu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Backoff returns the delay before the given retry attempt (1-based):
// interval * 1.5^(attempt-1), capped at MaxBackoff.
func Backoff(interval time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(interval) * math.Pow(backoffGrowth, float64(attempt-1)))
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}
