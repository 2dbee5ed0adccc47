// Command layerscan bridges a multi-layer scanning range sensor into
// per-layer scan records, per-layer multi-echo records and one combined
// point cloud per scan cycle, published to the configured sinks.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/layerscan/internal/colaa"
	"github.com/banshee-data/layerscan/internal/scan"
	"github.com/banshee-data/layerscan/internal/scan/session"
	"github.com/banshee-data/layerscan/internal/sink"
	"github.com/banshee-data/layerscan/internal/sink/scandb"
)

var (
	host        = flag.String("host", "192.168.1.2", "Device host address")
	port        = flag.Int("port", colaa.DefaultPort, "Device command port")
	frameID     = flag.String("frame-id", "laser", "Frame identifier stamped onto published records")
	listen      = flag.String("listen", ":8081", "HTTP listen address for the status endpoint")
	dbFile      = flag.String("db", "", "Path to a SQLite file for the record database (disabled when empty)")
	forward     = flag.Bool("forward", false, "Forward published records as JSON over UDP")
	forwardAddr = flag.String("forward-addr", "localhost", "Address to forward records to")
	forwardPort = flag.Int("forward-port", 2370, "Port to forward records to")
	logInterval = flag.Int("log-interval", 60, "Statistics logging interval in seconds")
	devMode     = flag.Bool("dev", false, "Run against a simulated device link")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := scan.NewSessionStats()

	var sinks sink.Multi
	if *forward {
		udpSink, err := sink.NewUDPJSON(*forwardAddr, *forwardPort, time.Duration(*logInterval)*time.Second)
		if err != nil {
			log.Fatalf("failed to create UDP sink: %v", err)
		}
		udpSink.Start(ctx)
		sinks = append(sinks, udpSink)
	}
	if *dbFile != "" {
		recorder, err := scandb.NewRecorder(*dbFile)
		if err != nil {
			log.Fatalf("failed to open record database: %v", err)
		}
		log.Printf("recording to %s (session %s)", *dbFile, recorder.SessionID())
		sinks = append(sinks, recorder)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, sink.Log{})
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Printf("closing sinks: %v", err)
		}
	}()

	// The cloud buffer is reused across sessions; the synchronizer's
	// cycle state is rebuilt per session, so no stale writes can occur.
	buffer := scan.NewPointCloudBuffer(scan.ScanWidth)
	newObserver := func(timing scan.Timing) session.Observer {
		assembler := scan.NewOutputAssembler(*frameID, timing)
		return scan.NewLayerSynchronizer(assembler, buffer, sinks, stats)
	}

	var link session.DeviceLink
	if *devMode {
		log.Print("dev mode: using simulated device link")
		link = devLink()
	} else {
		link = colaa.NewClient(colaa.Config{Host: *host, Port: *port})
	}

	manager := session.NewManager(link, newObserver, session.Config{Stats: stats})

	web := scan.NewWebServer(scan.WebServerConfig{
		Address:   *listen,
		Stats:     stats,
		StateFunc: func() string { return manager.State().String() },
	})
	go func() {
		if err := web.Start(ctx); err != nil && ctx.Err() == nil {
			log.Printf("web server: %v", err)
		}
	}()

	go logStats(ctx, stats, time.Duration(*logInterval)*time.Second)

	log.Printf("connecting to scanner at %s:%d", *host, *port)
	if err := manager.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("session manager: %v", err)
	}
	log.Print("shutdown complete")
}

// logStats periodically logs acquisition statistics. An early first
// report avoids a long silence after startup.
func logStats(ctx context.Context, stats *scan.SessionStats, interval time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		stats.LogStats()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats.LogStats()
		}
	}
}

// devLink builds a mock link replaying one synthetic cycle forever at
// roughly the real device rate.
func devLink() session.DeviceLink {
	layers := []scan.LayerID{scan.Layer2, scan.Layer3, scan.Layer1, scan.Layer4}
	frames := make([]*scan.ScanFrame, 0, len(layers))
	for _, layer := range layers {
		ranges := make([]float32, scan.ScanWidth)
		intensities := make([]float32, scan.ScanWidth)
		for i := range ranges {
			// A gentle wave between 8 and 12 meters.
			ranges[i] = float32(10 + 2*math.Sin(float64(i)*2*math.Pi/float64(scan.ScanWidth)))
			intensities[i] = 100
		}
		frames = append(frames, &scan.ScanFrame{
			Layer:             layer,
			ScanFrequency:     5000,
			AngularResolution: 2500,
			StartAngle:        -1375000,
			StopAngle:         1375000,
			Echoes:            []scan.Echo{{Ranges: ranges, Intensities: intensities}},
			Timestamp:         time.Now(),
		})
	}
	return &session.MockLink{
		Frames:     frames,
		Loop:       true,
		FrameDelay: 50 * time.Millisecond,
	}
}
