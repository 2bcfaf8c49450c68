package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/trackside/internal/db"
	"github.com/banshee-data/trackside/internal/geo"
	"github.com/banshee-data/trackside/internal/httputil"
	"github.com/banshee-data/trackside/internal/laps"
	"github.com/banshee-data/trackside/internal/track"
	"github.com/banshee-data/trackside/internal/units"
)

// trackResponse is the full static geometry payload for map rendering.
type trackResponse struct {
	Centerline []geo.Point    `json:"centerline"`
	Boundary   track.Boundary `json:"boundary"`
	Surface    []geo.Point    `json:"surface"`
	Bounds     track.Bounds   `json:"bounds"`
}

func (s *Server) showTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, trackResponse{
		Centerline: s.path,
		Boundary:   s.boundary,
		Surface:    track.SurfaceRing(s.boundary),
		Bounds:     track.PathBounds(s.path),
	})
}

func (s *Server) projectFix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil {
		httputil.BadRequest(w, "lat and lng query parameters are required")
		return
	}
	httputil.WriteJSONOK(w, track.Project(s.path, geo.Point{Lat: lat, Lng: lng}))
}

// vehicleResponse is one vehicle's latest projected position with the speed
// converted to the display units.
type vehicleResponse struct {
	VehicleID string    `json:"vehicle_id"`
	Raw       geo.Point `json:"raw"`
	Point     geo.Point `json:"point"`
	Progress  float64   `json:"progress"`
	Speed     *float64  `json:"speed,omitempty"`
	Units     string    `json:"units"`
}

func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	session := r.URL.Query().Get("session")
	if session == "" {
		session = s.session()
	}

	fixes, err := s.db.LatestFixes(session)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to query vehicles: %v", err))
		return
	}

	resp := make([]vehicleResponse, 0, len(fixes))
	for _, f := range fixes {
		v := vehicleResponse{
			VehicleID: f.VehicleID,
			Raw:       geo.Point{Lat: f.Lat, Lng: f.Lng},
			Point:     geo.Point{Lat: f.ProjectedLat, Lng: f.ProjectedLng},
			Progress:  f.Progress,
			Units:     s.units,
		}
		if f.SpeedMPS != nil {
			converted := units.ConvertSpeed(*f.SpeedMPS, s.units)
			v.Speed = &converted
		}
		resp = append(resp, v)
	}
	httputil.WriteJSONOK(w, resp)
}

// lapsResponse pairs the raw crossings with per-vehicle lap statistics.
type lapsResponse struct {
	SessionID string              `json:"session_id"`
	Crossings []db.Crossing       `json:"crossings"`
	Stats     []laps.VehicleStats `json:"stats"`
}

func (s *Server) listLaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	session := r.URL.Query().Get("session")
	if session == "" {
		session = s.session()
	}

	crossings, err := s.db.CrossingsBySession(session)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to query crossings: %v", err))
		return
	}
	vehicles, err := s.db.VehiclesWithCrossings(session)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to query vehicles: %v", err))
		return
	}

	stats := make([]laps.VehicleStats, 0, len(vehicles))
	for _, vehicleID := range vehicles {
		times, err := s.db.CrossingTimes(session, vehicleID)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("failed to query crossing times: %v", err))
			return
		}
		stats = append(stats, laps.ComputeStats(vehicleID, times))
	}

	if crossings == nil {
		crossings = []db.Crossing{}
	}
	httputil.WriteJSONOK(w, lapsResponse{SessionID: session, Crossings: crossings, Stats: stats})
}
