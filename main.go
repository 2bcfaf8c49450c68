package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/trackside/internal/api"
	"github.com/banshee-data/trackside/internal/config"
	"github.com/banshee-data/trackside/internal/db"
	"github.com/banshee-data/trackside/internal/hub"
	"github.com/banshee-data/trackside/internal/ingest"
	"github.com/banshee-data/trackside/internal/laps"
	"github.com/banshee-data/trackside/internal/serialgps"
	"github.com/banshee-data/trackside/internal/stream"
)

var (
	configPath = flag.String("config", "", "Path to a JSON config file (defaults apply when empty)")
	listen     = flag.String("listen", "", "Listen address override")
)

func loadConfig() *config.Config {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return cfg
}

func newChannelConn(ch config.ChannelConfig, pipeline *ingest.Pipeline) *stream.Conn {
	var dialer stream.Dialer
	switch ch.Transport {
	case config.TransportSSE:
		dialer = &stream.SSEDialer{}
	default:
		dialer = &stream.WebSocketDialer{}
	}

	conn := stream.New(ch.URL, dialer, stream.Options{
		DisableReconnect:     !ch.ShouldReconnect(),
		ReconnectInterval:    ch.ReconnectInterval(),
		MaxReconnectAttempts: ch.MaxReconnectAttempts,
		Disabled:             !ch.IsEnabled(),
	})
	conn.OnMessage(pipeline.HandleMessage)
	conn.OnOpen(func() {
		log.Printf("channel %s (%s): connected", ch.Name, ch.URL)
	})
	conn.OnError(func(err error) {
		log.Printf("channel %s: %v", ch.Name, err)
	})
	return conn
}

func main() {
	flag.Parse()
	cfg := loadConfig()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	broadcast := hub.New()
	defer broadcast.Close()

	var detectorOpts []laps.Option
	if cfg.Track.SeamHigh > 0 {
		detectorOpts = append(detectorOpts, laps.WithThresholds(cfg.Track.SeamHigh, cfg.Track.SeamLow))
	}
	pipeline := ingest.New(cfg.Track.Waypoints,
		ingest.WithStore(database),
		ingest.WithPublisher(broadcast),
		ingest.WithDetector(laps.NewDetector(detectorOpts...)),
	)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// one reconnecting connection per configured live channel
	conns := make([]*stream.Conn, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		conns = append(conns, newChannelConn(ch, pipeline))
	}
	for _, conn := range conns {
		conn.Connect()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		for _, conn := range conns {
			conn.Disconnect()
		}
		log.Print("channel connections closed")
	}()

	// optional local GPS receiver feeding the same pipeline
	if cfg.Serial != nil {
		port, err := serialgps.Open(cfg.Serial.Port, cfg.Serial.BaudRate)
		if err != nil {
			log.Fatalf("failed to open serial port %s: %v", cfg.Serial.Port, err)
		}
		source := serialgps.NewSource(port, cfg.Serial.VehicleID, pipeline.HandleFix)
		defer source.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := source.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("serial monitor failed: %v", err)
			}
			log.Print("serial monitor terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(broadcast, database,
			cfg.Track.Waypoints, cfg.Track.WidthMeters,
			cfg.Units, pipeline.SessionID,
		).ServeMux()

		// admin debugging routes (accessible only over Tailscale)
		if err := database.AttachDebugRoutes(mux); err != nil {
			log.Printf("failed to attach debug routes: %v", err)
		}

		server := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
