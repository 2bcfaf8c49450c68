// Command replay serves a recorded stream of position fixes over a
// WebSocket endpoint, for exercising a dashboard without live telemetry.
//
// The capture file is JSON lines, one fix per line, in the same shape the
// live channels carry:
//
//	{"vehicle_id":"car-1","lat":51.0001,"lng":-0.0995,"speed_mps":31.2}
//
// Each connected client receives the full capture from the beginning at the
// configured cadence, looping if -loop is set.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

var (
	listen   = flag.String("listen", ":8090", "Listen address")
	path     = flag.String("path", "/live", "WebSocket path to serve")
	file     = flag.String("file", "", "JSON-lines capture file (required)")
	interval = flag.Duration("interval", 250*time.Millisecond, "Delay between fixes")
	loop     = flag.Bool("loop", false, "Restart the capture when it ends")
)

var upgrader = websocket.Upgrader{
	// replay is a local development tool, accept any origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// loadCapture reads the capture file, validating each line as JSON and
// skipping blanks.
func loadCapture(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var frames [][]byte
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			log.Printf("skipping invalid JSON on line %d", lineNo)
			continue
		}
		frame := make([]byte, len(line))
		copy(frame, line)
		frames = append(frames, frame)
	}
	return frames, scanner.Err()
}

func serveReplay(frames [][]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		log.Printf("client connected: %s", r.RemoteAddr)

		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		for {
			for _, frame := range frames {
				<-ticker.C
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					log.Printf("client gone: %s", r.RemoteAddr)
					return
				}
			}
			if !*loop {
				break
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture finished"))
	}
}

func main() {
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}
	frames, err := loadCapture(*file)
	if err != nil {
		log.Fatalf("failed to load capture: %v", err)
	}
	if len(frames) == 0 {
		log.Fatal("capture file contains no fixes")
	}
	log.Printf("loaded %d fixes from %s", len(frames), *file)

	mux := http.NewServeMux()
	mux.HandleFunc(*path, serveReplay(frames))

	log.Printf("replaying on ws://%s%s every %v", *listen, *path, *interval)
	if err := http.ListenAndServe(*listen, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
