package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/trackside/internal/config"
	"github.com/banshee-data/trackside/internal/ingest"
	"github.com/banshee-data/trackside/internal/stream"
	"github.com/banshee-data/trackside/internal/testutil"
)

func testPipeline() *ingest.Pipeline {
	return ingest.New(testutil.SquareTrack())
}

func TestNewChannelConnDisabled(t *testing.T) {
	disabled := false
	conn := newChannelConn(config.ChannelConfig{
		Name:      "test",
		URL:       "ws://example.invalid/live",
		Transport: config.TransportWebSocket,
		Enabled:   &disabled,
	}, testPipeline())

	// a disabled channel must not dial even when asked
	conn.Connect()
	state := conn.State()
	assert.Equal(t, stream.StatusIdle, state.Status)
	assert.False(t, state.Enabled)
}

func TestNewChannelConnDefaultsEnabled(t *testing.T) {
	conn := newChannelConn(config.ChannelConfig{
		Name:                "test",
		URL:                 "https://example.invalid/events",
		Transport:           config.TransportSSE,
		ReconnectIntervalMs: 500,
	}, testPipeline())

	state := conn.State()
	assert.Equal(t, stream.StatusIdle, state.Status)
	assert.True(t, state.Enabled)
}
