// Package ingest wires the live telemetry sources to the track engine: it
// decodes raw GPS fixes, snaps them onto the circuit, feeds the lap
// detector, persists the results and republishes projected positions for
// dashboard clients.
package ingest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trackside/internal/db"
	"github.com/banshee-data/trackside/internal/geo"
	"github.com/banshee-data/trackside/internal/laps"
	"github.com/banshee-data/trackside/internal/monitoring"
	"github.com/banshee-data/trackside/internal/timeutil"
	"github.com/banshee-data/trackside/internal/track"
)

// Fix is one raw per-vehicle GPS observation as delivered by a live
// channel. Heading and speed are optional; a zero Time means "now".
type Fix struct {
	VehicleID string    `json:"vehicle_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   *float64  `json:"heading,omitempty"`
	SpeedMPS  *float64  `json:"speed,omitempty"`
	Time      time.Time `json:"time,omitzero"`
}

// Position is the projected result published to the hub for every fix.
type Position struct {
	Type      string    `json:"type"` // "position"
	VehicleID string    `json:"vehicle_id"`
	Raw       geo.Point `json:"raw"`
	Point     geo.Point `json:"point"`
	Progress  float64   `json:"progress"`
	Laps      int       `json:"laps"`
	SpeedMPS  *float64  `json:"speed,omitempty"`
}

// LapEvent is published to the hub when a vehicle completes a lap.
type LapEvent struct {
	Type      string    `json:"type"` // "lap"
	VehicleID string    `json:"vehicle_id"`
	Lap       int       `json:"lap"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists pipeline output. *db.DB satisfies it.
type Store interface {
	RecordFix(db.Fix) error
	RecordCrossing(db.Crossing) error
}

// Publisher fans pipeline output to live clients. *hub.Hub satisfies it.
type Publisher interface {
	Publish(json.RawMessage)
}

// Pipeline consumes fixes from any source (stream callback, serial GPS,
// replay) against one configured track. Fix handling is synchronous and
// bounded by the track path length, so it is safe to run per message.
type Pipeline struct {
	path      track.Path
	detector  *laps.Detector
	store     Store
	publisher Publisher
	clock     timeutil.Clock
	sessionID string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore persists fixes and crossings to the given store.
func WithStore(s Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithPublisher republishes projected positions and lap events.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithClock substitutes the time source.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithDetector substitutes the lap detector, e.g. to tune seam thresholds.
func WithDetector(d *laps.Detector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// New creates a Pipeline for the given track path with a fresh session ID.
func New(path track.Path, opts ...Option) *Pipeline {
	p := &Pipeline{
		path:      path,
		clock:     timeutil.RealClock{},
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.detector == nil {
		p.detector = laps.NewDetector(laps.WithClock(p.clock))
	}
	return p
}

// SessionID identifies this pipeline run in the store.
func (p *Pipeline) SessionID() string { return p.sessionID }

// HandleMessage decodes one channel payload as a Fix and processes it.
// Undecodable payloads are logged and dropped; they never propagate as
// errors. Wire this to stream.Conn.OnMessage.
func (p *Pipeline) HandleMessage(msg json.RawMessage) {
	var f Fix
	if err := json.Unmarshal(msg, &f); err != nil || f.VehicleID == "" {
		monitoring.Logf("ingest: dropping undecodable fix payload (%d bytes)", len(msg))
		return
	}
	p.HandleFix(f)
}

// HandleFix projects one fix onto the track, runs lap detection, and hands
// the results to the store and publisher.
func (p *Pipeline) HandleFix(f Fix) {
	if f.Time.IsZero() {
		f.Time = p.clock.Now()
	}

	proj := track.Project(p.path, geo.Point{Lat: f.Lat, Lng: f.Lng})
	crossing := p.detector.Observe(f.VehicleID, proj.Progress)

	if p.store != nil {
		if err := p.store.RecordFix(db.Fix{
			VehicleID:    f.VehicleID,
			SessionID:    p.sessionID,
			Lat:          f.Lat,
			Lng:          f.Lng,
			Heading:      f.Heading,
			SpeedMPS:     f.SpeedMPS,
			ProjectedLat: proj.Point.Lat,
			ProjectedLng: proj.Point.Lng,
			Progress:     proj.Progress,
			RecordedAt:   f.Time,
		}); err != nil {
			monitoring.Logf("ingest: failed to record fix for %s: %v", f.VehicleID, err)
		}
	}

	p.publish(Position{
		Type:      "position",
		VehicleID: f.VehicleID,
		Raw:       geo.Point{Lat: f.Lat, Lng: f.Lng},
		Point:     proj.Point,
		Progress:  proj.Progress,
		Laps:      p.detector.Laps(f.VehicleID),
		SpeedMPS:  f.SpeedMPS,
	})

	if crossing != nil {
		if p.store != nil {
			if err := p.store.RecordCrossing(db.Crossing{
				SessionID: p.sessionID,
				VehicleID: crossing.VehicleID,
				Lap:       crossing.Lap,
				CrossedAt: crossing.Timestamp,
			}); err != nil {
				monitoring.Logf("ingest: failed to record crossing for %s: %v", crossing.VehicleID, err)
			}
		}
		p.publish(LapEvent{
			Type:      "lap",
			VehicleID: crossing.VehicleID,
			Lap:       crossing.Lap,
			Timestamp: crossing.Timestamp,
		})
	}
}

// Reset clears lap detection state and starts a new session. Called on
// playback pause or race restart.
func (p *Pipeline) Reset() {
	p.detector.Reset()
	p.sessionID = uuid.New().String()
}

func (p *Pipeline) publish(v any) {
	if p.publisher == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		monitoring.Logf("ingest: failed to marshal event: %v", err)
		return
	}
	p.publisher.Publish(data)
}
