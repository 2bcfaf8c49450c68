package db

import "time"

// Fix is one persisted GPS observation with its on-track projection.
type Fix struct {
	VehicleID    string    `json:"vehicle_id"`
	SessionID    string    `json:"session_id"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Heading      *float64  `json:"heading,omitempty"`
	SpeedMPS     *float64  `json:"speed_mps,omitempty"`
	ProjectedLat float64   `json:"projected_lat"`
	ProjectedLng float64   `json:"projected_lng"`
	Progress     float64   `json:"progress"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// RecordFix persists one observation.
func (db *DB) RecordFix(f Fix) error {
	_, err := db.Exec(`
		INSERT INTO fixes (
			vehicle_id, session_id, lat, lng, heading, speed_mps,
			projected_lat, projected_lng, progress, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.VehicleID, f.SessionID, f.Lat, f.Lng, f.Heading, f.SpeedMPS,
		f.ProjectedLat, f.ProjectedLng, f.Progress, f.RecordedAt,
	)
	return err
}

// LatestFixes returns the most recent fix for each vehicle in a session.
func (db *DB) LatestFixes(sessionID string) ([]Fix, error) {
	rows, err := db.Query(`
		SELECT vehicle_id, session_id, lat, lng, heading, speed_mps,
		       projected_lat, projected_lng, progress, MAX(recorded_at)
		FROM fixes
		WHERE session_id = ?
		GROUP BY vehicle_id
		ORDER BY vehicle_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fixes []Fix
	for rows.Next() {
		var f Fix
		if err := rows.Scan(
			&f.VehicleID, &f.SessionID, &f.Lat, &f.Lng, &f.Heading, &f.SpeedMPS,
			&f.ProjectedLat, &f.ProjectedLng, &f.Progress, &f.RecordedAt,
		); err != nil {
			return nil, err
		}
		fixes = append(fixes, f)
	}
	return fixes, rows.Err()
}

// FixHistory returns a vehicle's fixes in a session, oldest first, capped at
// limit rows.
func (db *DB) FixHistory(sessionID, vehicleID string, limit int) ([]Fix, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT vehicle_id, session_id, lat, lng, heading, speed_mps,
		       projected_lat, projected_lng, progress, recorded_at
		FROM fixes
		WHERE session_id = ? AND vehicle_id = ?
		ORDER BY recorded_at ASC
		LIMIT ?`, sessionID, vehicleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fixes []Fix
	for rows.Next() {
		var f Fix
		if err := rows.Scan(
			&f.VehicleID, &f.SessionID, &f.Lat, &f.Lng, &f.Heading, &f.SpeedMPS,
			&f.ProjectedLat, &f.ProjectedLng, &f.Progress, &f.RecordedAt,
		); err != nil {
			return nil, err
		}
		fixes = append(fixes, f)
	}
	return fixes, rows.Err()
}
