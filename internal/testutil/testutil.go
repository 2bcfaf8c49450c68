// Package testutil provides shared test helpers and track fixtures.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/trackside/internal/geo"
)

// SquareTrack returns a four-waypoint closed loop roughly 70m by 110m,
// traversed counter-clockwise. Several packages use it as a minimal circuit
// with hand-checkable projection results.
func SquareTrack() []geo.Point {
	return []geo.Point{
		{Lat: 51.0000, Lng: -0.1000},
		{Lat: 51.0000, Lng: -0.0990},
		{Lat: 51.0010, Lng: -0.0990},
		{Lat: 51.0010, Lng: -0.1000},
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// DecodeJSON unmarshals a response body into v, failing the test on error.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
