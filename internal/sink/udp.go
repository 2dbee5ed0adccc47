package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/layerscan/internal/monitoring"
	"github.com/banshee-data/layerscan/internal/scan"
)

// envelope wraps a record with its channel name for the wire.
type envelope struct {
	Channel string      `json:"channel"`
	Kind    string      `json:"kind"` // scan, multi_echo, cloud
	Record  interface{} `json:"record"`
}

// UDPJSON forwards records as JSON datagrams to a collector address.
// Marshalling and sending happen on a dedicated goroutine; publishing
// never blocks the acquisition loop. If the queue is full the record is
// dropped and counted.
type UDPJSON struct {
	conn        *net.UDPConn
	channel     chan envelope
	logInterval time.Duration
	address     string

	mu      sync.Mutex
	dropped int64
}

// NewUDPJSON creates a forwarder sending to addr:port. Start must be
// called before records flow.
func NewUDPJSON(addr string, port int, logInterval time.Duration) (*UDPJSON, error) {
	forwardAddress := fmt.Sprintf("%s:%d", addr, port)
	udpAddr, err := net.ResolveUDPAddr("udp", forwardAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &UDPJSON{
		conn:        conn,
		channel:     make(chan envelope, 256),
		logInterval: logInterval,
		address:     forwardAddress,
	}, nil
}

// Start begins the forwarding goroutine. It exits on context
// cancellation, logging the number of drops per interval.
func (f *UDPJSON) Start(ctx context.Context) {
	go func() {
		sendErrors := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case env := <-f.channel:
				data, err := json.Marshal(env)
				if err == nil {
					_, err = f.conn.Write(data)
				}
				if err != nil {
					sendErrors++
					lastError = err
				}
			case <-ticker.C:
				if sendErrors > 0 && lastError != nil {
					monitoring.Logf("udp sink: %d records failed to send (latest: %v)", sendErrors, lastError)
					sendErrors = 0
					lastError = nil
				}
				if d := f.takeDropped(); d > 0 {
					monitoring.Logf("udp sink: dropped %d records, queue full", d)
				}
			}
		}
	}()

	monitoring.Logf("forwarding records to %s", f.address)
}

func (f *UDPJSON) takeDropped() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.dropped
	f.dropped = 0
	return d
}

// Dropped returns the number of records dropped since the last
// interval log.
func (f *UDPJSON) Dropped() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func (f *UDPJSON) enqueue(env envelope) error {
	select {
	case f.channel <- env:
	default:
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
	}
	return nil
}

func (f *UDPJSON) PublishScan(channel string, rec *scan.ScanRecord) error {
	return f.enqueue(envelope{Channel: channel, Kind: "scan", Record: rec})
}

func (f *UDPJSON) PublishMultiEcho(channel string, rec *scan.MultiEchoRecord) error {
	return f.enqueue(envelope{Channel: channel, Kind: "multi_echo", Record: rec})
}

func (f *UDPJSON) PublishCloud(channel string, rec *scan.CloudRecord) error {
	return f.enqueue(envelope{Channel: channel, Kind: "cloud", Record: rec})
}

// Close closes the UDP connection.
func (f *UDPJSON) Close() error {
	return f.conn.Close()
}
