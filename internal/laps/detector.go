// Package laps detects lap completion from a stream of normalized track
// progress values and summarises lap times per vehicle.
package laps

import (
	"sync"
	"time"

	"github.com/banshee-data/trackside/internal/timeutil"
)

// Default wraparound thresholds. A crossing fires when the previous progress
// was above the high threshold and the new progress is below the low one.
// These are jitter tolerances around the start/finish seam, not exact lap
// boundaries; tune them down for very short laps or sparse telemetry.
const (
	DefaultSeamHigh = 0.9
	DefaultSeamLow  = 0.1
)

// Crossing is emitted once per completed lap for each vehicle.
type Crossing struct {
	VehicleID string    `json:"vehicle_id"`
	Lap       int       `json:"lap"`
	Timestamp time.Time `json:"timestamp"`
}

type vehicleState struct {
	previousProgress float64
	lapsCompleted    int
}

// Detector tracks per-vehicle progress and reports wraparounds. It reports
// every completed lap for every vehicle; first-finisher gating is the
// caller's concern. A Detector is safe for use from multiple goroutines.
type Detector struct {
	mu       sync.Mutex
	vehicles map[string]*vehicleState

	seamHigh float64
	seamLow  float64
	clock    timeutil.Clock
}

// Option configures a Detector.
type Option func(*Detector)

// WithThresholds overrides the wraparound seam thresholds.
func WithThresholds(high, low float64) Option {
	return func(d *Detector) {
		d.seamHigh = high
		d.seamLow = low
	}
}

// WithClock substitutes the clock used to stamp crossings.
func WithClock(c timeutil.Clock) Option {
	return func(d *Detector) { d.clock = c }
}

// NewDetector creates a Detector with the default seam thresholds and the
// real clock.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		vehicles: make(map[string]*vehicleState),
		seamHigh: DefaultSeamHigh,
		seamLow:  DefaultSeamLow,
		clock:    timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe records a new progress value for a vehicle and returns a Crossing
// if the value wrapped around the start/finish seam, or nil otherwise.
//
// The first observation for a vehicle never fires: it only seeds the
// previous-progress state, which avoids a spurious crossing when a session
// resets mid-track. The previous progress is always updated, whether or not
// a crossing fired.
func (d *Detector) Observe(vehicleID string, progress float64) *Crossing {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.vehicles[vehicleID]
	if !ok {
		d.vehicles[vehicleID] = &vehicleState{previousProgress: progress}
		return nil
	}

	var crossing *Crossing
	if v.previousProgress > d.seamHigh && progress < d.seamLow {
		v.lapsCompleted++
		crossing = &Crossing{
			VehicleID: vehicleID,
			Lap:       v.lapsCompleted,
			Timestamp: d.clock.Now(),
		}
	}
	v.previousProgress = progress
	return crossing
}

// Laps returns the number of completed laps recorded for a vehicle.
func (d *Detector) Laps(vehicleID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.vehicles[vehicleID]; ok {
		return v.lapsCompleted
	}
	return 0
}

// Reset clears all vehicle state. Called when the owning session resets,
// e.g. playback pause; never triggered internally.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vehicles = make(map[string]*vehicleState)
}
