package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackside/internal/db"
	"github.com/banshee-data/trackside/internal/monitoring"
	"github.com/banshee-data/trackside/internal/timeutil"
	"github.com/banshee-data/trackside/internal/track"
)

type fakeStore struct {
	fixes     []db.Fix
	crossings []db.Crossing
}

func (s *fakeStore) RecordFix(f db.Fix) error            { s.fixes = append(s.fixes, f); return nil }
func (s *fakeStore) RecordCrossing(c db.Crossing) error { s.crossings = append(s.crossings, c); return nil }

type fakePublisher struct {
	events []json.RawMessage
}

func (p *fakePublisher) Publish(msg json.RawMessage) { p.events = append(p.events, msg) }

func testPath() track.Path {
	return track.Path{
		{Lat: 51.0000, Lng: -0.1000},
		{Lat: 51.0000, Lng: -0.0990},
		{Lat: 51.0010, Lng: -0.0990},
		{Lat: 51.0010, Lng: -0.1000},
	}
}

func TestHandleFixProjectsAndStores(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	clock := timeutil.NewMockClock(time.Date(2026, 5, 17, 14, 0, 0, 0, time.UTC))
	p := New(testPath(), WithStore(store), WithPublisher(pub), WithClock(clock))

	// A fix slightly off the first edge: the stored projection must be
	// glued back onto the centerline.
	p.HandleFix(Fix{VehicleID: "car-1", Lat: 50.9998, Lng: -0.0995})

	require.Len(t, store.fixes, 1)
	f := store.fixes[0]
	assert.Equal(t, p.SessionID(), f.SessionID)
	assert.Equal(t, 50.9998, f.Lat, "raw fix preserved")
	assert.InDelta(t, 51.0000, f.ProjectedLat, 1e-9, "projection snapped to the edge")
	assert.InDelta(t, 0.125, f.Progress, 1e-6)
	assert.Equal(t, clock.Now(), f.RecordedAt, "zero fix time stamped from the clock")

	require.Len(t, pub.events, 1)
	var pos Position
	require.NoError(t, json.Unmarshal(pub.events[0], &pos))
	assert.Equal(t, "position", pos.Type)
	assert.Equal(t, "car-1", pos.VehicleID)
	assert.InDelta(t, 0.125, pos.Progress, 1e-6)
}

func TestHandleMessageDropsMalformed(t *testing.T) {
	logged, restore := monitoring.Capture()
	defer restore()

	store := &fakeStore{}
	p := New(testPath(), WithStore(store))

	p.HandleMessage(json.RawMessage(`{"lat": "not a number"}`))
	p.HandleMessage(json.RawMessage(`{"lat": 51.0, "lng": -0.1}`)) // no vehicle id

	assert.Empty(t, store.fixes, "undecodable payloads are dropped, not stored")
	assert.Len(t, *logged, 2, "each dropped payload is logged")
}

func TestLapCrossingRecordedAndPublished(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := New(testPath(), WithStore(store), WithPublisher(pub))

	// Drive car-1 around the loop: progress climbs toward 1 then wraps.
	drive := []Fix{
		{VehicleID: "car-1", Lat: 51.0000, Lng: -0.0995}, // ~0.125
		{VehicleID: "car-1", Lat: 51.0005, Lng: -0.0990}, // ~0.375
		{VehicleID: "car-1", Lat: 51.0010, Lng: -0.0995}, // ~0.625
		{VehicleID: "car-1", Lat: 51.0001, Lng: -0.1000}, // ~0.97, closing edge
		{VehicleID: "car-1", Lat: 51.0000, Lng: -0.0999}, // wrapped past the seam
	}
	for _, f := range drive {
		p.HandleFix(f)
	}

	require.Len(t, store.crossings, 1, "one wraparound, one crossing")
	c := store.crossings[0]
	assert.Equal(t, "car-1", c.VehicleID)
	assert.Equal(t, 1, c.Lap)
	assert.Equal(t, p.SessionID(), c.SessionID)

	var lapEvents int
	for _, raw := range pub.events {
		var e LapEvent
		require.NoError(t, json.Unmarshal(raw, &e))
		if e.Type == "lap" {
			lapEvents++
			assert.Equal(t, 1, e.Lap)
		}
	}
	assert.Equal(t, 1, lapEvents)
}

func TestResetStartsNewSessionAndClearsLaps(t *testing.T) {
	store := &fakeStore{}
	p := New(testPath(), WithStore(store))

	p.HandleFix(Fix{VehicleID: "car-1", Lat: 51.0001, Lng: -0.1000}) // near the seam, high progress
	before := p.SessionID()

	p.Reset()
	assert.NotEqual(t, before, p.SessionID())

	// Without the reset this would look like a wraparound.
	p.HandleFix(Fix{VehicleID: "car-1", Lat: 51.0000, Lng: -0.0999})
	assert.Empty(t, store.crossings, "reset must clear previous-progress state")
}

func TestHandleFixWithoutStoreOrPublisher(t *testing.T) {
	p := New(testPath())
	// Smoke test: a bare pipeline must not panic.
	p.HandleFix(Fix{VehicleID: "car-1", Lat: 51.0, Lng: -0.1})
}

func TestFixTimePreserved(t *testing.T) {
	store := &fakeStore{}
	p := New(testPath(), WithStore(store))

	at := time.Date(2026, 5, 17, 15, 30, 0, 0, time.UTC)
	p.HandleFix(Fix{VehicleID: "car-1", Lat: 51.0, Lng: -0.1, Time: at})

	require.Len(t, store.fixes, 1)
	assert.Equal(t, at, store.fixes[0].RecordedAt)
}
