package db

import (
	"time"

	"github.com/google/uuid"
)

// Crossing is one persisted lap completion.
type Crossing struct {
	CrossingID string    `json:"crossing_id"`
	SessionID  string    `json:"session_id"`
	VehicleID  string    `json:"vehicle_id"`
	Lap        int       `json:"lap"`
	CrossedAt  time.Time `json:"crossed_at"`
}

// RecordCrossing persists a lap crossing. If CrossingID is empty, a UUID is
// generated.
func (db *DB) RecordCrossing(c Crossing) error {
	if c.CrossingID == "" {
		c.CrossingID = uuid.New().String()
	}
	_, err := db.Exec(`
		INSERT INTO lap_crossings (crossing_id, session_id, vehicle_id, lap, crossed_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.CrossingID, c.SessionID, c.VehicleID, c.Lap, c.CrossedAt,
	)
	return err
}

// CrossingsBySession returns all crossings in a session in crossing order.
func (db *DB) CrossingsBySession(sessionID string) ([]Crossing, error) {
	rows, err := db.Query(`
		SELECT crossing_id, session_id, vehicle_id, lap, crossed_at
		FROM lap_crossings
		WHERE session_id = ?
		ORDER BY crossed_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var crossings []Crossing
	for rows.Next() {
		var c Crossing
		if err := rows.Scan(&c.CrossingID, &c.SessionID, &c.VehicleID, &c.Lap, &c.CrossedAt); err != nil {
			return nil, err
		}
		crossings = append(crossings, c)
	}
	return crossings, rows.Err()
}

// CrossingTimes returns one vehicle's crossing timestamps in a session,
// oldest first. Feed these to laps.ComputeStats.
func (db *DB) CrossingTimes(sessionID, vehicleID string) ([]time.Time, error) {
	rows, err := db.Query(`
		SELECT crossed_at
		FROM lap_crossings
		WHERE session_id = ? AND vehicle_id = ?
		ORDER BY crossed_at ASC`, sessionID, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// VehiclesWithCrossings returns the distinct vehicle ids that completed at
// least one lap in a session.
func (db *DB) VehiclesWithCrossings(sessionID string) ([]string, error) {
	rows, err := db.Query(`
		SELECT DISTINCT vehicle_id
		FROM lap_crossings
		WHERE session_id = ?
		ORDER BY vehicle_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
