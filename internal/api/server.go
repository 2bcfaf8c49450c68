// Package api exposes the dashboard-facing HTTP surface: track geometry,
// projected vehicle positions, lap standings and the live SSE feed.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/trackside/internal/db"
	"github.com/banshee-data/trackside/internal/hub"
	"github.com/banshee-data/trackside/internal/monitoring"
	"github.com/banshee-data/trackside/internal/track"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves the dashboard API for one configured track.
type Server struct {
	hub      *hub.Hub
	db       *db.DB
	path     track.Path
	boundary track.Boundary
	units    string
	session  func() string // current pipeline session id
}

// NewServer creates a Server. The boundary is derived once up front; the
// track is static configuration so it never needs recomputing.
func NewServer(h *hub.Hub, database *db.DB, path track.Path, widthMeters float64, units string, session func() string) *Server {
	return &Server{
		hub:      h,
		db:       database,
		path:     path,
		boundary: track.BuildBoundary(path, widthMeters),
		units:    units,
		session:  session,
	}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/track", s.showTrack)
	mux.HandleFunc("/api/project", s.projectFix)
	mux.HandleFunc("/api/vehicles", s.listVehicles)
	mux.HandleFunc("/api/laps", s.listLaps)
	mux.HandleFunc("/api/live", s.hub.ServeSSE)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
