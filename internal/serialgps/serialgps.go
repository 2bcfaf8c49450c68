package serialgps

import (
	"bufio"
	"context"
	"errors"
	"io"

	"go.bug.st/serial"

	"github.com/banshee-data/trackside/internal/ingest"
	"github.com/banshee-data/trackside/internal/monitoring"
)

// Porter is the minimal serial port surface the source needs. The
// abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.Reader
	io.Closer
}

// Open opens a real serial port at the given path and baud rate.
func Open(path string, baudRate int) (Porter, error) {
	if baudRate <= 0 {
		baudRate = 9600 // common GPS receiver default
	}
	return serial.Open(path, &serial.Mode{BaudRate: baudRate})
}

// Source reads NMEA sentences from one serial GPS receiver and emits fixes
// for a single configured vehicle.
type Source struct {
	port      Porter
	vehicleID string
	handler   func(ingest.Fix)
}

// NewSource creates a Source. Every decoded position is handed to handler
// tagged with vehicleID.
func NewSource(port Porter, vehicleID string, handler func(ingest.Fix)) *Source {
	return &Source{port: port, vehicleID: vehicleID, handler: handler}
}

// Monitor reads sentences from the port until the context is cancelled or
// the port fails. Non-RMC sentences and fix-less receivers are skipped;
// corrupt sentences are logged and dropped.
func (s *Source) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// A goroutine bridges the blocking scan so the outer loop can await
	// lines and context cancellation together.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				return scan.Err()
			}
			s.handleLine(line)
		}
	}
}

func (s *Source) handleLine(line string) {
	rmc, err := ParseRMC(line)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotRMC), errors.Is(err, ErrNoFix):
		return
	default:
		monitoring.Logf("serialgps: dropping sentence: %v", err)
		return
	}

	speed := rmc.SpeedMPS
	heading := rmc.Heading
	s.handler(ingest.Fix{
		VehicleID: s.vehicleID,
		Lat:       rmc.Lat,
		Lng:       rmc.Lng,
		SpeedMPS:  &speed,
		Heading:   &heading,
		Time:      rmc.Time,
	})
}

// Close closes the underlying port, unblocking Monitor.
func (s *Source) Close() error {
	return s.port.Close()
}
