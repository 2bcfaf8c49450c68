// Package serialgps reads NMEA position sentences from a serial GPS
// receiver and turns them into telemetry fixes, as an alternative fix source
// for vehicles instrumented with a local receiver instead of a network
// uplink.
package serialgps

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const knotsToMPS = 0.514444

var (
	ErrNotRMC         = errors.New("serialgps: not an RMC sentence")
	ErrNoFix          = errors.New("serialgps: receiver has no fix")
	ErrBadChecksum    = errors.New("serialgps: checksum mismatch")
	ErrShortSentence  = errors.New("serialgps: truncated sentence")
	ErrBadCoordinates = errors.New("serialgps: unparseable coordinates")
)

// RMC is a decoded recommended-minimum position sentence.
type RMC struct {
	Time     time.Time
	Lat      float64
	Lng      float64
	SpeedMPS float64
	Heading  float64
}

// ParseRMC decodes a $GPRMC/$GNRMC sentence. Sentences from other talkers
// or of other types return ErrNotRMC so callers can skip them cheaply.
func ParseRMC(line string) (RMC, error) {
	line = strings.TrimSpace(line)

	payload, err := stripChecksum(line)
	if err != nil {
		return RMC{}, err
	}

	fields := strings.Split(payload, ",")
	if len(fields) < 10 {
		return RMC{}, ErrShortSentence
	}
	talker := fields[0]
	if !strings.HasPrefix(talker, "$") || !strings.HasSuffix(talker, "RMC") {
		return RMC{}, ErrNotRMC
	}
	if fields[2] != "A" {
		return RMC{}, ErrNoFix // V = void
	}

	lat, err := parseCoordinate(fields[3], fields[4])
	if err != nil {
		return RMC{}, err
	}
	lng, err := parseCoordinate(fields[5], fields[6])
	if err != nil {
		return RMC{}, err
	}

	var rmc RMC
	rmc.Lat = lat
	rmc.Lng = lng
	if fields[7] != "" {
		knots, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return RMC{}, fmt.Errorf("serialgps: bad speed %q: %w", fields[7], err)
		}
		rmc.SpeedMPS = knots * knotsToMPS
	}
	if fields[8] != "" {
		heading, err := strconv.ParseFloat(fields[8], 64)
		if err != nil {
			return RMC{}, fmt.Errorf("serialgps: bad heading %q: %w", fields[8], err)
		}
		rmc.Heading = heading
	}
	if t, err := parseDateTime(fields[9], fields[1]); err == nil {
		rmc.Time = t
	}
	return rmc, nil
}

// stripChecksum validates and removes a trailing *HH checksum if present.
func stripChecksum(line string) (string, error) {
	star := strings.LastIndexByte(line, '*')
	if star < 0 {
		return line, nil
	}
	if star+3 > len(line) {
		return "", ErrShortSentence
	}
	want, err := strconv.ParseUint(line[star+1:star+3], 16, 8)
	if err != nil {
		return "", ErrBadChecksum
	}
	var sum byte
	for i := 1; i < star; i++ { // checksum covers everything between $ and *
		sum ^= line[i]
	}
	if sum != byte(want) {
		return "", ErrBadChecksum
	}
	return line[:star], nil
}

// parseCoordinate converts NMEA ddmm.mmmm / dddmm.mmmm plus hemisphere into
// signed decimal degrees.
func parseCoordinate(value, hemisphere string) (float64, error) {
	if value == "" || hemisphere == "" {
		return 0, ErrBadCoordinates
	}
	dot := strings.IndexByte(value, '.')
	if dot < 3 {
		return 0, ErrBadCoordinates
	}
	degrees, err := strconv.ParseFloat(value[:dot-2], 64)
	if err != nil {
		return 0, ErrBadCoordinates
	}
	minutes, err := strconv.ParseFloat(value[dot-2:], 64)
	if err != nil {
		return 0, ErrBadCoordinates
	}
	deg := degrees + minutes/60
	switch hemisphere {
	case "S", "W":
		return -deg, nil
	case "N", "E":
		return deg, nil
	}
	return 0, ErrBadCoordinates
}

// parseDateTime combines the ddmmyy date and hhmmss.sss time fields.
func parseDateTime(date, clock string) (time.Time, error) {
	if len(date) != 6 || len(clock) < 6 {
		return time.Time{}, ErrShortSentence
	}
	day, err1 := strconv.Atoi(date[0:2])
	month, err2 := strconv.Atoi(date[2:4])
	year, err3 := strconv.Atoi(date[4:6])
	hour, err4 := strconv.Atoi(clock[0:2])
	minute, err5 := strconv.Atoi(clock[2:4])
	second, err6 := strconv.Atoi(clock[4:6])
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			return time.Time{}, err
		}
	}
	var nanos int
	if len(clock) > 7 {
		if frac, err := strconv.ParseFloat("0"+clock[6:], 64); err == nil {
			nanos = int(frac * 1e9)
		}
	}
	// Two-digit year pivot: NMEA predates 2000.
	if year >= 80 {
		year += 1900
	} else {
		year += 2000
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, nanos, time.UTC), nil
}
