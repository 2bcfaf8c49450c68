package laps

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// VehicleStats summarises completed lap times for one vehicle. Durations are
// reported in seconds.
type VehicleStats struct {
	VehicleID string  `json:"vehicle_id"`
	Laps      int     `json:"laps"`
	Best      float64 `json:"best_seconds"`
	Mean      float64 `json:"mean_seconds"`
	StdDev    float64 `json:"stddev_seconds"`
}

// ComputeStats derives lap-time statistics from an ordered list of crossing
// timestamps for one vehicle. Lap times are the deltas between consecutive
// crossings, so at least two crossings are needed for any statistic; fewer
// yield a zeroed result carrying only the lap count.
func ComputeStats(vehicleID string, crossings []time.Time) VehicleStats {
	s := VehicleStats{VehicleID: vehicleID, Laps: len(crossings)}
	if len(crossings) < 2 {
		return s
	}

	lapSeconds := make([]float64, 0, len(crossings)-1)
	for i := 1; i < len(crossings); i++ {
		lapSeconds = append(lapSeconds, crossings[i].Sub(crossings[i-1]).Seconds())
	}

	s.Best = lapSeconds[0]
	for _, v := range lapSeconds[1:] {
		if v < s.Best {
			s.Best = v
		}
	}
	s.Mean = stat.Mean(lapSeconds, nil)
	if len(lapSeconds) > 1 {
		s.StdDev = stat.StdDev(lapSeconds, nil)
	}
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}
