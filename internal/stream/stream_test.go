package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackside/internal/timeutil"
)

// fakeHandle is a scriptable channel handle.
type fakeHandle struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent [][]byte
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		msgs:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (h *fakeHandle) ReadMessage() ([]byte, error) {
	select {
	case m := <-h.msgs:
		return m, nil
	case <-h.closed:
		return nil, io.EOF
	}
}

func (h *fakeHandle) Send(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, data)
	return nil
}

func (h *fakeHandle) Close() error {
	h.once.Do(func() { close(h.closed) })
	return nil
}

func (h *fakeHandle) fail() { h.Close() }

// fakeDialer counts dials and can be scripted to fail the first n attempts.
type fakeDialer struct {
	mu        sync.Mutex
	dials     int
	failFirst int
	handles   []*fakeHandle
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failFirst {
		return nil, errors.New("dial refused")
	}
	h := newFakeHandle()
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastHandle() *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}

func waitStatus(t *testing.T, c *Conn, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State().Status == want
	}, 2*time.Second, time.Millisecond, "waiting for status %v", want)
}

func TestBackoffSequence(t *testing.T) {
	interval := 3000 * time.Millisecond
	want := []time.Duration{
		3000 * time.Millisecond,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		10125 * time.Millisecond,
		15187500 * time.Microsecond,
		22781250 * time.Microsecond,
		30 * time.Second, // capped
		30 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, Backoff(interval, i+1), "attempt %d", i+1)
	}
}

func TestConnectOpensSingleSocket(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{Clock: timeutil.NewMockClock(time.Now())})
	defer c.Disconnect()

	c.Connect()
	c.Connect() // immediate second call while CONNECTING must be a no-op
	waitStatus(t, c, StatusOpen)
	c.Connect() // and while OPEN

	assert.Equal(t, 1, d.dialCount(), "exactly one underlying socket")
}

func TestConnectWhileDisabledIsNoop(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{Disabled: true})

	c.Connect()
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, d.dialCount())
	assert.Equal(t, StatusIdle, c.State().Status)
}

func TestOpenResetsAttemptAndFiresCallback(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	d := &fakeDialer{failFirst: 2}
	c := New("ws://test/telemetry", d, Options{Clock: clock})
	defer c.Disconnect()

	var opened sync.WaitGroup
	opened.Add(1)
	c.OnOpen(func() { opened.Done() })

	c.Connect()

	// First dial fails, backoff 3s; second fails, backoff 4.5s; third opens.
	require.Eventually(t, func() bool { return c.State().Attempt == 1 }, 2*time.Second, time.Millisecond)
	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return c.State().Attempt == 2 }, 2*time.Second, time.Millisecond)
	clock.Advance(4500 * time.Millisecond)

	opened.Wait()
	state := c.State()
	assert.Equal(t, StatusOpen, state.Status)
	assert.Zero(t, state.Attempt, "successful open resets the attempt counter")
	assert.Equal(t, 3, d.dialCount())
}

func TestDisconnectInvalidatesPendingTimer(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	d := &fakeDialer{failFirst: 100}
	c := New("ws://test/telemetry", d, Options{Clock: clock})

	c.Connect()
	require.Eventually(t, func() bool { return c.State().Attempt == 1 }, 2*time.Second, time.Millisecond)

	c.Disconnect()
	clock.Advance(time.Minute) // the pre-disconnect timer firing late

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount(), "stale timer must not open a new socket")
	assert.Equal(t, StatusIdle, c.State().Status)
	assert.Zero(t, c.State().Attempt, "disconnect resets attempt")
}

func TestDisconnectIdempotent(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{})
	c.Connect()
	waitStatus(t, c, StatusOpen)

	c.Disconnect()
	c.Disconnect()
	c.Disconnect()
	assert.Equal(t, StatusIdle, c.State().Status)
}

func TestReconnectAfterHandleFailure(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{Clock: clock})
	defer c.Disconnect()

	c.Connect()
	waitStatus(t, c, StatusOpen)

	d.lastHandle().fail()
	require.Eventually(t, func() bool { return c.State().Attempt == 1 }, 2*time.Second, time.Millisecond)

	clock.Advance(3 * time.Second)
	waitStatus(t, c, StatusOpen)
	assert.Equal(t, 2, d.dialCount())
}

func TestMaxAttemptsExhaustionAndManualResume(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	d := &fakeDialer{failFirst: 100}
	c := New("ws://test/telemetry", d, Options{Clock: clock, MaxReconnectAttempts: 3})
	defer c.Disconnect()

	c.Connect()
	require.Eventually(t, func() bool { return c.State().Attempt == 1 }, 2*time.Second, time.Millisecond)
	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return c.State().Attempt == 2 }, 2*time.Second, time.Millisecond)
	clock.Advance(4500 * time.Millisecond)

	// Third attempt hits the cap: no more timers are armed.
	require.Eventually(t, func() bool { return c.State().Attempt == 3 }, 2*time.Second, time.Millisecond)
	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, d.dialCount())
	assert.Equal(t, StatusClosed, c.State().Status, "exhausted connection stays closed")

	// An explicit Connect resumes from a fresh attempt budget.
	d.mu.Lock()
	d.failFirst = 0
	d.mu.Unlock()
	c.Connect()
	waitStatus(t, c, StatusOpen)
}

func TestDeliverValidPayloads(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{})
	defer c.Disconnect()

	received := make(chan json.RawMessage, 4)
	c.OnMessage(func(m json.RawMessage) { received <- m })

	c.Connect()
	waitStatus(t, c, StatusOpen)

	h := d.lastHandle()
	h.msgs <- []byte(`{"vehicle_id":"car-1","lat":51.5,"lng":-0.12}`)

	msg := <-received
	assert.JSONEq(t, `{"vehicle_id":"car-1","lat":51.5,"lng":-0.12}`, string(msg))
	assert.Equal(t, msg, c.LastMessage())
}

func TestMalformedPayloadDroppedNotFatal(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{})
	defer c.Disconnect()

	received := make(chan json.RawMessage, 4)
	c.OnMessage(func(m json.RawMessage) { received <- m })

	c.Connect()
	waitStatus(t, c, StatusOpen)

	h := d.lastHandle()
	h.msgs <- []byte(`{{not json`)
	h.msgs <- []byte(`{"ok":true}`)

	msg := <-received
	assert.JSONEq(t, `{"ok":true}`, string(msg), "malformed payload skipped, connection kept")
	assert.Equal(t, StatusOpen, c.State().Status)
}

func TestCallbackLastWriteWins(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{})
	defer c.Disconnect()

	stale := make(chan json.RawMessage, 1)
	fresh := make(chan json.RawMessage, 1)
	c.OnMessage(func(m json.RawMessage) { stale <- m })

	c.Connect()
	waitStatus(t, c, StatusOpen)

	// Swapping the callback must take effect without a reconnect.
	c.OnMessage(func(m json.RawMessage) { fresh <- m })
	d.lastHandle().msgs <- []byte(`{"n":1}`)

	select {
	case <-fresh:
	case <-stale:
		t.Fatal("delivery used a stale callback")
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered")
	}
	assert.Equal(t, 1, d.dialCount())
}

func TestSend(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{})

	assert.ErrorIs(t, c.Send([]byte(`{"cmd":"ping"}`)), ErrNotConnected)

	c.Connect()
	waitStatus(t, c, StatusOpen)
	require.NoError(t, c.Send([]byte(`{"cmd":"ping"}`)))

	h := d.lastHandle()
	h.mu.Lock()
	sent := len(h.sent)
	h.mu.Unlock()
	assert.Equal(t, 1, sent)

	c.Disconnect()
	assert.ErrorIs(t, c.Send([]byte(`{}`)), ErrNotConnected)
}

func TestNoCallbacksAfterDisconnect(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{})

	var mu sync.Mutex
	closes := 0
	c.OnClose(func() { mu.Lock(); closes++; mu.Unlock() })

	c.Connect()
	waitStatus(t, c, StatusOpen)

	c.Disconnect()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, closes, "teardown initiated by Disconnect must not fire OnClose")
}

func TestAutoConnect(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{AutoConnect: true})
	defer c.Disconnect()
	waitStatus(t, c, StatusOpen)
}

func TestSetEnabled(t *testing.T) {
	d := &fakeDialer{}
	c := New("ws://test/telemetry", d, Options{Disabled: true})
	defer c.Disconnect()

	c.Connect()
	time.Sleep(10 * time.Millisecond)
	require.Zero(t, d.dialCount())

	c.SetEnabled(true)
	c.Connect()
	waitStatus(t, c, StatusOpen)

	c.SetEnabled(false)
	assert.Equal(t, StatusIdle, c.State().Status)
}
